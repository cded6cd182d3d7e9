// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build !nogpu

package native

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/gogpu/wgpu/hal"
	types "github.com/gogpu/gputypes"

	"github.com/gogpu/instbatch/gpucore"
)

// HALDevice implements gpucore.Device using gogpu/wgpu/hal directly.
//
// Thread Safety: HALDevice is safe for concurrent use from multiple
// goroutines. All resource operations are protected by a mutex.
type HALDevice struct {
	mu     sync.RWMutex
	device hal.Device
	queue  hal.Queue

	limits gpucore.Limits

	// ID generation
	nextID atomic.Uint64

	// Resource tracking maps gpucore IDs to hal resources
	buffers map[gpucore.BufferID]hal.Buffer
}

// NewHALDevice creates a device wrapping the given hal device and
// queue. If limits is nil, wgpu default limits are used.
func NewHALDevice(device hal.Device, queue hal.Queue, limits *types.Limits) *HALDevice {
	var lim types.Limits
	if limits != nil {
		lim = *limits
	} else {
		lim = types.DefaultLimits()
	}

	// Constant-buffer alignment and binding size stay at the WebGPU
	// defaults; hal does not expose them per adapter.
	capabilities := gpucore.DefaultLimits()
	capabilities.MaxBufferSize = lim.MaxBufferSize

	d := &HALDevice{
		device:  device,
		queue:   queue,
		limits:  capabilities,
		buffers: make(map[gpucore.BufferID]hal.Buffer),
	}

	// Start ID generation at 1 (0 is invalid)
	d.nextID.Store(1)

	return d
}

// newID generates a unique resource ID.
func (d *HALDevice) newID() uint64 {
	return d.nextID.Add(1) - 1
}

// CreateBuffer creates a GPU buffer.
func (d *HALDevice) CreateBuffer(size int, usage gpucore.BufferUsage) (gpucore.BufferID, error) {
	if size <= 0 {
		return gpucore.InvalidID, fmt.Errorf("native: buffer size must be positive, got %d", size)
	}

	desc := &hal.BufferDescriptor{
		Label: "instbatch-batch",
		Size:  uint64(size),
		Usage: convertBufferUsage(usage),
	}

	buffer, err := d.device.CreateBuffer(desc)
	if err != nil {
		return gpucore.InvalidID, fmt.Errorf("native: create buffer: %w", err)
	}

	id := gpucore.BufferID(d.newID())

	d.mu.Lock()
	d.buffers[id] = buffer
	d.mu.Unlock()

	return id, nil
}

// DestroyBuffer releases a GPU buffer.
func (d *HALDevice) DestroyBuffer(id gpucore.BufferID) {
	d.mu.Lock()
	buffer, ok := d.buffers[id]
	if ok {
		delete(d.buffers, id)
	}
	d.mu.Unlock()

	if ok {
		d.device.DestroyBuffer(buffer)
	}
}

// WriteBuffer writes data to a buffer.
func (d *HALDevice) WriteBuffer(id gpucore.BufferID, offset uint64, data []byte) {
	d.mu.RLock()
	buffer, ok := d.buffers[id]
	d.mu.RUnlock()

	if ok && len(data) > 0 {
		d.queue.WriteBuffer(buffer, offset, data)
	}
}

// ReadBuffer is not supported by this device; the batching core only
// ever writes instance data.
func (d *HALDevice) ReadBuffer(id gpucore.BufferID, offset, size uint64) ([]byte, error) {
	return nil, ErrReadbackUnsupported
}

// Limits returns the device capability limits.
func (d *HALDevice) Limits() gpucore.Limits {
	return d.limits
}

// Close releases all tracked buffers. The underlying hal device is
// owned by the backend (or the external provider) and is not destroyed
// here.
func (d *HALDevice) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()

	for id, buffer := range d.buffers {
		d.device.DestroyBuffer(buffer)
		delete(d.buffers, id)
	}
}

// convertBufferUsage maps gpucore usage flags to wgpu usage flags.
func convertBufferUsage(usage gpucore.BufferUsage) types.BufferUsage {
	var u types.BufferUsage
	if usage&gpucore.BufferUsageMapRead != 0 {
		u |= types.BufferUsageMapRead
	}
	if usage&gpucore.BufferUsageMapWrite != 0 {
		u |= types.BufferUsageMapWrite
	}
	if usage&gpucore.BufferUsageCopySrc != 0 {
		u |= types.BufferUsageCopySrc
	}
	if usage&gpucore.BufferUsageCopyDst != 0 {
		u |= types.BufferUsageCopyDst
	}
	if usage&gpucore.BufferUsageConstant != 0 {
		u |= types.BufferUsageUniform
	}
	if usage&gpucore.BufferUsageStorage != 0 {
		u |= types.BufferUsageStorage
	}
	return u
}
