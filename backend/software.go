package backend

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/gogpu/instbatch/gpucore"
)

// SoftwareBackend is an in-memory device backend. Buffers are plain
// byte slices, writes are copies, and readback always works, which
// makes it the reference implementation for tests and the fallback for
// headless use.
type SoftwareBackend struct {
	mu          sync.Mutex
	initialized bool
	device      *softwareDevice
}

// init registers the software backend on package import.
func init() {
	Register(BackendSoftware, func() GPUBackend {
		return &SoftwareBackend{}
	})
}

// NewSoftwareBackend creates a new software backend.
func NewSoftwareBackend() *SoftwareBackend {
	return &SoftwareBackend{}
}

// Name returns the backend identifier.
func (b *SoftwareBackend) Name() string {
	return BackendSoftware
}

// Init initializes the backend.
func (b *SoftwareBackend) Init() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.initialized {
		b.device = newSoftwareDevice()
		b.initialized = true
	}
	return nil
}

// Close releases all backend resources.
func (b *SoftwareBackend) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.device != nil {
		b.device.Close()
		b.device = nil
	}
	b.initialized = false
}

// Device returns the backend's in-memory device.
func (b *SoftwareBackend) Device() (gpucore.Device, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.initialized {
		return nil, ErrNotInitialized
	}
	return b.device, nil
}

// softwareDevice implements gpucore.Device over plain memory.
// Safe for concurrent use.
type softwareDevice struct {
	mu      sync.RWMutex
	buffers map[gpucore.BufferID][]byte
	nextID  atomic.Uint64
	limits  gpucore.Limits
}

func newSoftwareDevice() *softwareDevice {
	d := &softwareDevice{
		buffers: make(map[gpucore.BufferID][]byte),
		limits:  gpucore.DefaultLimits(),
	}
	// Start ID generation at 1 (0 is invalid)
	d.nextID.Store(1)
	return d
}

func (d *softwareDevice) CreateBuffer(size int, usage gpucore.BufferUsage) (gpucore.BufferID, error) {
	if size <= 0 {
		return gpucore.InvalidID, fmt.Errorf("software: buffer size must be positive, got %d", size)
	}
	if uint64(size) > d.limits.MaxBufferSize {
		return gpucore.InvalidID, fmt.Errorf("software: buffer size %d exceeds limit %d", size, d.limits.MaxBufferSize)
	}

	id := gpucore.BufferID(d.nextID.Add(1) - 1)

	d.mu.Lock()
	d.buffers[id] = make([]byte, size)
	d.mu.Unlock()

	return id, nil
}

func (d *softwareDevice) DestroyBuffer(id gpucore.BufferID) {
	d.mu.Lock()
	delete(d.buffers, id)
	d.mu.Unlock()
}

func (d *softwareDevice) WriteBuffer(id gpucore.BufferID, offset uint64, data []byte) {
	d.mu.RLock()
	buf, ok := d.buffers[id]
	d.mu.RUnlock()

	if !ok || len(data) == 0 {
		return
	}
	if offset+uint64(len(data)) > uint64(len(buf)) {
		return
	}
	copy(buf[offset:], data)
}

func (d *softwareDevice) ReadBuffer(id gpucore.BufferID, offset, size uint64) ([]byte, error) {
	d.mu.RLock()
	buf, ok := d.buffers[id]
	d.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("software: buffer %d not found", id)
	}
	if offset+size > uint64(len(buf)) {
		return nil, fmt.Errorf("software: read [%d,%d) out of bounds for buffer of %d bytes", offset, offset+size, len(buf))
	}
	out := make([]byte, size)
	copy(out, buf[offset:offset+size])
	return out, nil
}

func (d *softwareDevice) Limits() gpucore.Limits {
	return d.limits
}

func (d *softwareDevice) Close() {
	d.mu.Lock()
	clear(d.buffers)
	d.mu.Unlock()
}
