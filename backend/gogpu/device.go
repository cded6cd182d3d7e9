//go:build !nogpu

package gogpu

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/gogpu/gogpu/gpu"
	"github.com/gogpu/gogpu/gpu/types"
	"github.com/gogpu/gputypes"

	"github.com/gogpu/instbatch/gpucore"
)

// Device implements gpucore.Device using gogpu/gogpu's gpu.Backend.
// It bridges the gpucore abstraction and the gpu.Backend interface,
// which supports both Rust (wgpu-native) and Pure Go implementations.
//
// Thread Safety: Device is safe for concurrent use from multiple
// goroutines. All resource operations are protected by a mutex.
type Device struct {
	mu      sync.RWMutex
	backend gpu.Backend
	device  types.Device
	queue   types.Queue

	limits gpucore.Limits

	// ID generation
	nextID atomic.Uint64

	// Resource tracking maps gpucore IDs to gpu/types handles
	buffers map[gpucore.BufferID]types.Buffer
}

// NewDevice creates a Device wrapping the given gpu.Backend, device,
// and queue handles.
func NewDevice(backend gpu.Backend, device types.Device, queue types.Queue) *Device {
	d := &Device{
		backend: backend,
		device:  device,
		queue:   queue,
		limits:  gpucore.DefaultLimits(),
		buffers: make(map[gpucore.BufferID]types.Buffer),
	}

	// Start ID generation at 1 (0 is invalid)
	d.nextID.Store(1)

	return d
}

// newID generates a unique resource ID.
func (d *Device) newID() uint64 {
	return d.nextID.Add(1) - 1
}

// CreateBuffer creates a GPU buffer.
func (d *Device) CreateBuffer(size int, usage gpucore.BufferUsage) (gpucore.BufferID, error) {
	if size <= 0 {
		return gpucore.InvalidID, fmt.Errorf("gogpu: buffer size must be positive, got %d", size)
	}

	desc := &types.BufferDescriptor{
		Label: "instbatch-batch",
		Size:  uint64(size),
		Usage: convertBufferUsage(usage),
	}

	buffer, err := d.backend.CreateBuffer(d.device, desc)
	if err != nil {
		return gpucore.InvalidID, fmt.Errorf("gogpu: create buffer: %w", err)
	}

	id := gpucore.BufferID(d.newID())

	d.mu.Lock()
	d.buffers[id] = buffer
	d.mu.Unlock()

	return id, nil
}

// DestroyBuffer releases a GPU buffer.
func (d *Device) DestroyBuffer(id gpucore.BufferID) {
	d.mu.Lock()
	buffer, ok := d.buffers[id]
	if ok {
		delete(d.buffers, id)
	}
	d.mu.Unlock()

	if ok {
		d.backend.ReleaseBuffer(buffer)
	}
}

// WriteBuffer writes data to a buffer.
func (d *Device) WriteBuffer(id gpucore.BufferID, offset uint64, data []byte) {
	d.mu.RLock()
	buffer, ok := d.buffers[id]
	d.mu.RUnlock()

	if ok && len(data) > 0 {
		d.backend.WriteBuffer(d.queue, buffer, offset, data)
	}
}

// ReadBuffer is not supported: gpu.Backend doesn't expose buffer
// readback operations.
func (d *Device) ReadBuffer(id gpucore.BufferID, offset, size uint64) ([]byte, error) {
	return nil, ErrReadbackUnsupported
}

// Limits returns the device capability limits.
func (d *Device) Limits() gpucore.Limits {
	return d.limits
}

// Close releases all tracked buffers. The gpu.Backend device itself is
// owned by the Backend and released there.
func (d *Device) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()

	for id, buffer := range d.buffers {
		d.backend.ReleaseBuffer(buffer)
		delete(d.buffers, id)
	}
}

// convertBufferUsage maps gpucore usage flags to gpu/types usage flags.
func convertBufferUsage(usage gpucore.BufferUsage) gputypes.BufferUsage {
	var u gputypes.BufferUsage
	if usage&gpucore.BufferUsageMapRead != 0 {
		u |= gputypes.BufferUsageMapRead
	}
	if usage&gpucore.BufferUsageMapWrite != 0 {
		u |= gputypes.BufferUsageMapWrite
	}
	if usage&gpucore.BufferUsageCopySrc != 0 {
		u |= gputypes.BufferUsageCopySrc
	}
	if usage&gpucore.BufferUsageCopyDst != 0 {
		u |= gputypes.BufferUsageCopyDst
	}
	if usage&gpucore.BufferUsageConstant != 0 {
		u |= gputypes.BufferUsageUniform
	}
	if usage&gpucore.BufferUsageStorage != 0 {
		u |= gputypes.BufferUsageStorage
	}
	return u
}
