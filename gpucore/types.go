// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package gpucore

// BufferID is an opaque handle to a GPU buffer. Each device
// implementation maintains a mapping between IDs and actual backend
// resources. IDs are uint64 to accommodate various backend handle sizes.
type BufferID uint64

// InvalidID is the zero value, representing an invalid/null resource.
const InvalidID = 0

// BufferUsage is a bitmask specifying how a buffer will be used.
type BufferUsage uint32

// Buffer usage flags.
const (
	// BufferUsageMapRead indicates the buffer can be mapped for reading.
	BufferUsageMapRead BufferUsage = 1 << 0

	// BufferUsageMapWrite indicates the buffer can be mapped for writing.
	BufferUsageMapWrite BufferUsage = 1 << 1

	// BufferUsageCopySrc indicates the buffer can be used as a copy source.
	BufferUsageCopySrc BufferUsage = 1 << 2

	// BufferUsageCopyDst indicates the buffer can be used as a copy destination.
	BufferUsageCopyDst BufferUsage = 1 << 3

	// BufferUsageConstant indicates the buffer is bound as a constant
	// (uniform) buffer. Constant buffers are window-addressed: a draw
	// call can only see one aligned window at a time.
	BufferUsageConstant BufferUsage = 1 << 4

	// BufferUsageStorage indicates the buffer is bound as a raw
	// (structured) buffer with 4-byte addressing.
	BufferUsageStorage BufferUsage = 1 << 5
)

// Limits describes the device capabilities the batching core depends on.
type Limits struct {
	// MaxBufferSize is the maximum buffer size in bytes.
	MaxBufferSize uint64

	// ConstantBufferOffsetAlignment is the required alignment, in bytes,
	// of dynamic constant-buffer offsets. Batch windows are sized in
	// multiples of this value.
	ConstantBufferOffsetAlignment uint32

	// MaxConstantBufferSize is the largest constant-buffer binding the
	// device supports. A batch window must fit within it to use the
	// constant-buffer layout; larger windows fall back to raw buffers.
	MaxConstantBufferSize uint32
}

// DefaultLimits returns conservative limits matching the WebGPU
// defaults. Devices that cannot query their adapter report these.
func DefaultLimits() Limits {
	return Limits{
		MaxBufferSize:                 256 << 20,
		ConstantBufferOffsetAlignment: 256,
		MaxConstantBufferSize:         64 << 10,
	}
}
