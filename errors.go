package instbatch

import "errors"

// Sentinel errors for the instbatch package.
var (
	// ErrInvalidDescription is returned when a batch description is
	// malformed: non-positive counts, a window that cannot hold the
	// declared properties, or a window size that is not a multiple of
	// the device's constant-buffer alignment.
	ErrInvalidDescription = errors.New("instbatch: invalid batch description")

	// ErrNilMesh is returned when AddBatch is called with a nil mesh.
	ErrNilMesh = errors.New("instbatch: nil mesh")

	// ErrNilMaterial is returned when AddBatch is called with a nil material.
	ErrNilMaterial = errors.New("instbatch: nil material")

	// ErrWindowOutOfRange is returned when a window index exceeds the
	// batch's current draw-unit count.
	ErrWindowOutOfRange = errors.New("instbatch: window index out of range")

	// ErrInstanceOutOfRange is returned when an instance index exceeds
	// the batch's declared capacity.
	ErrInstanceOutOfRange = errors.New("instbatch: instance index out of range")

	// ErrUnknownProperty is returned when a property name ID is not
	// declared in the batch's metadata layout.
	ErrUnknownProperty = errors.New("instbatch: unknown property")

	// ErrBatchDestroyed is returned by handle operations after the batch
	// has been removed from its container. Writing through a dead handle
	// would otherwise corrupt a GPU buffer that may have been reused.
	ErrBatchDestroyed = errors.New("instbatch: batch destroyed")

	// ErrBufferAllocation is returned when the device fails to allocate
	// the batch's GPU buffer. The underlying device error is wrapped.
	ErrBufferAllocation = errors.New("instbatch: GPU buffer allocation failed")

	// ErrContainerDisposed is returned when operations are called on a
	// disposed container.
	ErrContainerDisposed = errors.New("instbatch: container disposed")

	// ErrNoDevice is returned when no GPU device is available: no device
	// option was given and no backend is registered.
	ErrNoDevice = errors.New("instbatch: no GPU device available")
)
