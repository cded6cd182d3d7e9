package backend

import (
	"bytes"
	"errors"
	"testing"

	"github.com/gogpu/instbatch/gpucore"
)

func TestSoftwareBackendName(t *testing.T) {
	b := NewSoftwareBackend()
	if b.Name() != "software" {
		t.Errorf("Name() = %q, want %q", b.Name(), "software")
	}
}

func TestSoftwareBackendInit(t *testing.T) {
	b := NewSoftwareBackend()
	if err := b.Init(); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	b.Close()
}

func TestSoftwareBackendDeviceBeforeInit(t *testing.T) {
	b := NewSoftwareBackend()
	if _, err := b.Device(); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("Device() before Init = %v, want ErrNotInitialized", err)
	}
}

func TestSoftwareDeviceBufferLifecycle(t *testing.T) {
	b := NewSoftwareBackend()
	if err := b.Init(); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	defer b.Close()

	dev, err := b.Device()
	if err != nil {
		t.Fatalf("Device() error = %v", err)
	}

	id, err := dev.CreateBuffer(1024, gpucore.BufferUsageConstant|gpucore.BufferUsageCopyDst)
	if err != nil {
		t.Fatalf("CreateBuffer() error = %v", err)
	}
	if id == gpucore.InvalidID {
		t.Fatal("CreateBuffer() returned InvalidID")
	}

	// Fresh buffers read back zeroed.
	got, err := dev.ReadBuffer(id, 0, 16)
	if err != nil {
		t.Fatalf("ReadBuffer() error = %v", err)
	}
	if !bytes.Equal(got, make([]byte, 16)) {
		t.Error("fresh buffer is not zeroed")
	}

	data := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	dev.WriteBuffer(id, 256, data)

	got, err = dev.ReadBuffer(id, 256, uint64(len(data)))
	if err != nil {
		t.Fatalf("ReadBuffer() error = %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Errorf("ReadBuffer() = %v, want %v", got, data)
	}

	dev.DestroyBuffer(id)
	if _, err := dev.ReadBuffer(id, 0, 1); err == nil {
		t.Error("ReadBuffer() after destroy should fail")
	}

	// Unknown IDs are no-ops.
	dev.DestroyBuffer(9999)
	dev.WriteBuffer(9999, 0, data)
}

func TestSoftwareDeviceBounds(t *testing.T) {
	b := NewSoftwareBackend()
	if err := b.Init(); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	defer b.Close()

	dev, _ := b.Device()

	if _, err := dev.CreateBuffer(0, 0); err == nil {
		t.Error("CreateBuffer(0) should fail")
	}
	if _, err := dev.CreateBuffer(-5, 0); err == nil {
		t.Error("CreateBuffer(-5) should fail")
	}

	id, err := dev.CreateBuffer(64, gpucore.BufferUsageCopyDst)
	if err != nil {
		t.Fatalf("CreateBuffer() error = %v", err)
	}

	// Out-of-bounds writes are dropped, not partially applied.
	dev.WriteBuffer(id, 60, []byte{1, 2, 3, 4, 5, 6, 7, 8})
	got, err := dev.ReadBuffer(id, 60, 4)
	if err != nil {
		t.Fatalf("ReadBuffer() error = %v", err)
	}
	if !bytes.Equal(got, make([]byte, 4)) {
		t.Error("out-of-bounds write partially applied")
	}

	if _, err := dev.ReadBuffer(id, 60, 8); err == nil {
		t.Error("out-of-bounds read should fail")
	}
}

func TestSoftwareDeviceLimits(t *testing.T) {
	b := NewSoftwareBackend()
	if err := b.Init(); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	defer b.Close()

	dev, _ := b.Device()
	limits := dev.Limits()

	if limits.ConstantBufferOffsetAlignment == 0 {
		t.Error("ConstantBufferOffsetAlignment = 0")
	}
	if limits.MaxBufferSize == 0 {
		t.Error("MaxBufferSize = 0")
	}
	if limits != gpucore.DefaultLimits() {
		t.Errorf("Limits() = %+v, want defaults", limits)
	}
}

func TestRegistryRegisterAndGet(t *testing.T) {
	// Software backend is auto-registered via init()
	if !IsRegistered(BackendSoftware) {
		t.Error("software backend should be auto-registered")
	}

	b := Get(BackendSoftware)
	if b == nil {
		t.Fatal("Get(software) returned nil")
	}
	if b.Name() != BackendSoftware {
		t.Errorf("Name() = %q, want %q", b.Name(), BackendSoftware)
	}

	if Get("does-not-exist") != nil {
		t.Error("Get(unknown) should return nil")
	}
}

func TestRegistryCustomBackend(t *testing.T) {
	Register("custom-test", func() GPUBackend {
		return NewSoftwareBackend()
	})
	t.Cleanup(func() { Unregister("custom-test") })

	if !IsRegistered("custom-test") {
		t.Error("custom backend not registered")
	}

	found := false
	for _, name := range Available() {
		if name == "custom-test" {
			found = true
		}
	}
	if !found {
		t.Errorf("Available() = %v, missing custom-test", Available())
	}

	Unregister("custom-test")
	if IsRegistered("custom-test") {
		t.Error("custom backend still registered after Unregister")
	}
}

func TestInitDefault(t *testing.T) {
	// Only the software backend is linked into this test binary, so the
	// priority chain lands on it.
	b, err := InitDefault()
	if err != nil {
		t.Fatalf("InitDefault() error = %v", err)
	}
	defer b.Close()

	if b.Name() != BackendSoftware {
		t.Errorf("InitDefault() picked %q, want %q", b.Name(), BackendSoftware)
	}

	dev, err := b.Device()
	if err != nil {
		t.Fatalf("Device() error = %v", err)
	}
	if dev == nil {
		t.Fatal("Device() returned nil device")
	}
}
