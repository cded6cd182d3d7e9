// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package gpucore

// Device abstracts over GPU backend implementations.
//
// Implementations must be safe for concurrent use: the batching core
// issues WriteBuffer calls from user goroutines while a culling frame
// may be in flight.
//
// Resource lifecycle:
//   - Buffers are created via CreateBuffer
//   - Buffers must be explicitly destroyed via DestroyBuffer
//   - Destroying a buffer while in use is undefined behavior
//   - IDs become invalid after destruction and must not be reused
type Device interface {
	// CreateBuffer creates a GPU buffer of the given byte size.
	// Returns the buffer ID or an error if allocation fails.
	CreateBuffer(size int, usage BufferUsage) (BufferID, error)

	// DestroyBuffer releases a GPU buffer. Destroying an unknown ID is
	// a no-op.
	DestroyBuffer(id BufferID)

	// WriteBuffer writes data to a buffer at the given byte offset.
	// The data is copied to the GPU immediately or staged for later
	// upload; either way the caller's slice may be reused on return.
	WriteBuffer(id BufferID, offset uint64, data []byte)

	// ReadBuffer reads data back from a buffer. This may cause a
	// GPU-CPU synchronization stall; GPU devices may not support it at
	// all. The software device always does.
	ReadBuffer(id BufferID, offset, size uint64) ([]byte, error)

	// Limits returns the device capability limits.
	Limits() Limits

	// Close releases all device resources. The device must not be used
	// after Close.
	Close()
}
