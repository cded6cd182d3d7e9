package instbatch

import "fmt"

// batchOps is the capability contract a handle uses to reach its
// container. The handle never holds the container type directly; it
// only sees these three delegated operations plus storage access for
// the instance writer. The container implements batchOps.
type batchOps interface {
	// uploadBatch pushes instance data for the identified batch.
	// count < 0 means "re-upload the currently persisted count".
	uploadBatch(id BatchID, count int) error

	// uploadBatchDirty pushes only dirty windows.
	uploadBatchDirty(id BatchID) error

	// destroyBatch removes the batch from the container. Idempotent.
	destroyBatch(id BatchID) error

	// isBatchAlive reports whether the identity is still registered.
	isBatchAlive(id BatchID) bool

	// batchStorage returns the live group state backing the writer, or
	// an error if the batch is gone.
	batchStorage(id BatchID) (*batchGroup, error)
}

// BatchHandle is the capability returned to a batch's owner: write
// access through an InstanceDataBuffer, explicit GPU upload, explicit
// destruction, and a liveness check. It is a small value type safe to
// copy and pass around.
//
// A handle does not own the batch. Validity is defined by IsAlive
// querying the container by identity; every mutating operation on a
// dead handle returns ErrBatchDestroyed instead of touching a GPU
// buffer that may have been reused.
type BatchHandle struct {
	id   BatchID
	desc BatchDescription
	ops  batchOps
}

// ID returns the batch identity assigned by the host render system.
func (h BatchHandle) ID() BatchID { return h.id }

// Description returns a copy of the batch's configuration.
func (h BatchHandle) Description() BatchDescription { return h.desc.clone() }

// IsAlive reports whether the batch is still registered with its
// container.
func (h BatchHandle) IsAlive() bool {
	return h.ops != nil && h.ops.isBatchAlive(h.id)
}

// InstanceCount returns the persisted instance count as of the last
// Upload, or 0 for a dead handle.
func (h BatchHandle) InstanceCount() int {
	if h.ops == nil {
		return 0
	}
	g, err := h.ops.batchStorage(h.id)
	if err != nil {
		return 0
	}
	return g.instanceCount()
}

// DrawCommandCount returns how many draw units (windows) the current
// instance count occupies, or 0 for a dead handle.
func (h BatchHandle) DrawCommandCount() int {
	if h.ops == nil {
		return 0
	}
	g, err := h.ops.batchStorage(h.id)
	if err != nil {
		return 0
	}
	return g.drawUnitCount()
}

// InstanceCountInWindow returns how many instances occupy the given
// window. Fails with ErrWindowOutOfRange past the draw-command count
// and ErrBatchDestroyed on a dead handle.
func (h BatchHandle) InstanceCountInWindow(window int) (int, error) {
	if h.ops == nil {
		return 0, fmt.Errorf("%w: zero handle", ErrBatchDestroyed)
	}
	g, err := h.ops.batchStorage(h.id)
	if err != nil {
		return 0, err
	}
	return g.instanceCountInWindow(window)
}

// AsInstanceDataBuffer returns a writer over the batch's native
// storage. The writer stays valid while the batch is alive; using it
// after Destroy corrupts nothing but its writes are lost.
func (h BatchHandle) AsInstanceDataBuffer() (*InstanceDataBuffer, error) {
	if h.ops == nil {
		return nil, fmt.Errorf("%w: zero handle", ErrBatchDestroyed)
	}
	g, err := h.ops.batchStorage(h.id)
	if err != nil {
		return nil, err
	}
	return &InstanceDataBuffer{data: g.storage, desc: &g.desc, dirty: g.dirty}, nil
}

// Upload pushes CPU-side instance data for the first instanceCount
// instances to the GPU buffer and records instanceCount as the new
// persisted count read by subsequent culling frames.
//
// Called with no argument, Upload re-uploads the currently persisted
// count; use that after mutating the buffer without changing how many
// instances are live. An explicit count of zero or less is a no-op.
func (h BatchHandle) Upload(instanceCount ...int) error {
	count := -1
	if len(instanceCount) > 0 {
		count = instanceCount[0]
		if count <= 0 {
			return nil
		}
	}
	if h.ops == nil {
		return fmt.Errorf("%w: zero handle", ErrBatchDestroyed)
	}
	return h.ops.uploadBatch(h.id, count)
}

// UploadDirty pushes only the windows written through the instance
// writer since the last upload. The persisted instance count is
// unchanged.
func (h BatchHandle) UploadDirty() error {
	if h.ops == nil {
		return fmt.Errorf("%w: zero handle", ErrBatchDestroyed)
	}
	return h.ops.uploadBatchDirty(h.id)
}

// Destroy removes the batch from its container, releasing the GPU
// buffer and native storage. Destroying an already-destroyed batch is
// a no-op.
func (h BatchHandle) Destroy() error {
	if h.ops == nil {
		return nil
	}
	return h.ops.destroyBatch(h.id)
}
