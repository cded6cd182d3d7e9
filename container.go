package instbatch

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/gogpu/instbatch/backend"
	"github.com/gogpu/instbatch/gpucore"
	"github.com/gogpu/instbatch/internal/parallel"
)

// BatchContainer owns the set of batch groups keyed by batch identity,
// the GPU buffers backing them, and the per-frame culling pipeline the
// host render system invokes.
//
// Batch management (AddBatch, RemoveBatch, Dispose) must be serialized
// by the caller against in-flight Cull invocations and against each
// other; the batch table deliberately takes no lock on the per-frame
// read path. Upload through handles may overlap a frame, with
// either-count semantics for that frame.
type BatchContainer struct {
	dev        gpucore.Device
	ownsDevice bool
	host       RenderHost
	pool       *parallel.WorkerPool
	limits     gpucore.Limits

	// groups and order together form the batch table. order fixes the
	// live-batch enumeration, which makes draw-range and draw-command
	// slot assignment deterministic for a given container state.
	groups map[BatchID]*batchGroup
	order  []BatchID

	counters counterArena

	disposed atomic.Bool

	statsMu sync.Mutex
	stats   Stats
}

// Stats is a point-in-time snapshot of container state.
type Stats struct {
	// Batches is the number of live batches.
	Batches int

	// BufferBytes is the total GPU buffer allocation across batches.
	BufferBytes uint64

	// FramesCulled counts completed culling frames.
	FramesCulled uint64

	// LastFrame holds the totals of the most recent culling frame.
	LastFrame FrameStats
}

// FrameStats are the output totals of one culling frame.
type FrameStats struct {
	DrawRanges       int
	DrawCommands     int
	VisibleInstances int
}

// Option configures a container.
type Option func(*containerConfig)

type containerConfig struct {
	dev     gpucore.Device
	host    RenderHost
	workers int
	bounds  *AABB
}

// WithDevice supplies an explicit GPU device. Without it the container
// asks the backend registry for the default backend's device.
func WithDevice(dev gpucore.Device) Option {
	return func(c *containerConfig) { c.dev = dev }
}

// WithHost attaches the host render system. Without it an in-process
// stub records registrations, which is enough for headless use and
// tests.
func WithHost(host RenderHost) Option {
	return func(c *containerConfig) { c.host = host }
}

// WithWorkers sets the culling worker count. Zero or negative means
// GOMAXPROCS. One worker runs the pipeline sequentially with identical
// results.
func WithWorkers(n int) Option {
	return func(c *containerConfig) { c.workers = n }
}

// WithBounds forwards initial global culling bounds to the host.
func WithBounds(bounds AABB) Option {
	return func(c *containerConfig) { c.bounds = &bounds }
}

// NewContainer creates a batch container.
//
// The device is resolved in order: WithDevice option, then the backend
// registry default. When the registry provides the device the container
// owns it and closes it on Dispose; an explicitly supplied device stays
// owned by the caller.
func NewContainer(opts ...Option) (*BatchContainer, error) {
	var cfg containerConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	dev := cfg.dev
	ownsDevice := false
	if dev == nil {
		b, err := backend.InitDefault()
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrNoDevice, err)
		}
		dev, err = b.Device()
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrNoDevice, err)
		}
		ownsDevice = true
		Logger().Info("instbatch: using backend device", "backend", b.Name())
	}

	host := cfg.host
	if host == nil {
		host = newHostStub()
	}

	c := &BatchContainer{
		dev:        dev,
		ownsDevice: ownsDevice,
		host:       host,
		pool:       parallel.NewWorkerPool(cfg.workers),
		limits:     dev.Limits(),
		groups:     make(map[BatchID]*batchGroup),
	}
	if cfg.bounds != nil {
		host.SetGlobalBounds(*cfg.bounds)
	}
	return c, nil
}

// Alignment returns the device's constant-buffer offset alignment, the
// unit batch windows are sized in.
func (c *BatchContainer) Alignment() uint32 {
	return c.limits.ConstantBufferOffsetAlignment
}

// AddBatch validates the description, allocates a GPU buffer sized for
// it, registers mesh and material with the host, and returns a handle
// bound to this container's upload/destroy/is-alive operations.
//
// Validation is eager: invalid configurations never reach the culling
// pipeline, and a failure leaves the batch table unchanged.
func (c *BatchContainer) AddBatch(desc BatchDescription, mesh Mesh, subMesh uint16, material Material, rd RendererDescription) (BatchHandle, error) {
	if c.disposed.Load() {
		return BatchHandle{}, ErrContainerDisposed
	}
	if mesh == nil {
		return BatchHandle{}, ErrNilMesh
	}
	if material == nil {
		return BatchHandle{}, ErrNilMaterial
	}
	if err := desc.Validate(c.limits.ConstantBufferOffsetAlignment); err != nil {
		return BatchHandle{}, err
	}

	d := desc.clone()

	// Constant-buffer layout when a window fits the device's binding
	// limit; raw/structured otherwise.
	usage := gpucore.BufferUsageConstant | gpucore.BufferUsageCopyDst
	if d.AlignedWindowSize > c.limits.MaxConstantBufferSize {
		usage = gpucore.BufferUsageStorage | gpucore.BufferUsageCopyDst
	}

	buffer, err := c.dev.CreateBuffer(int(d.TotalBufferSize()), usage)
	if err != nil {
		return BatchHandle{}, fmt.Errorf("%w: %w", ErrBufferAllocation, err)
	}

	slot, counter := c.counters.alloc()
	g := newBatchGroup(d, buffer, counter, slot)
	g.subMesh = subMesh
	g.register(c.host, mesh, material, rd)

	c.groups[g.id] = g
	c.order = append(c.order, g.id)

	Logger().Info("instbatch: batch added",
		"batch", g.id,
		"instances", d.MaxInstanceCount,
		"windows", d.WindowCount(),
		"bufferBytes", d.TotalBufferSize())

	return BatchHandle{id: g.id, desc: d.clone(), ops: c}, nil
}

// RemoveBatch removes the handle's batch: it unregisters the batch from
// the host, releases the GPU buffer, and drops the native storage.
// Removing an already-removed batch is a no-op.
func (c *BatchContainer) RemoveBatch(h BatchHandle) {
	c.removeBatchByID(h.id)
}

func (c *BatchContainer) removeBatchByID(id BatchID) {
	g, ok := c.groups[id]
	if !ok {
		return
	}

	g.unregister(c.host)
	c.dev.DestroyBuffer(g.buffer)
	c.counters.release(g.counterSlot)

	delete(c.groups, id)
	for i, oid := range c.order {
		if oid == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}

	Logger().Info("instbatch: batch removed", "batch", id)
}

// SetGlobalBounds forwards a bounding volume to the host culling
// system. Intended for scene changes, not per-frame updates.
func (c *BatchContainer) SetGlobalBounds(bounds AABB) {
	c.host.SetGlobalBounds(bounds)
}

// BatchCount returns the number of live batches.
func (c *BatchContainer) BatchCount() int {
	return len(c.groups)
}

// Stats returns a snapshot of container state, including the totals of
// the most recent culling frame.
func (c *BatchContainer) Stats() Stats {
	c.statsMu.Lock()
	s := c.stats
	c.statsMu.Unlock()

	s.Batches = len(c.groups)
	s.BufferBytes = 0
	for _, g := range c.groups {
		s.BufferBytes += uint64(g.desc.TotalBufferSize())
	}
	return s
}

// Dispose unregisters and releases every live batch and buffer, shuts
// down the worker pool, and releases the host handle. Dispose is
// idempotent; only the first call does work.
func (c *BatchContainer) Dispose() {
	if !c.disposed.CompareAndSwap(false, true) {
		return
	}

	for _, id := range append([]BatchID(nil), c.order...) {
		c.removeBatchByID(id)
	}
	c.pool.Close()
	c.host.Release()
	if c.ownsDevice {
		c.dev.Close()
	}
}

// === batchOps (handle capability contract) ===

func (c *BatchContainer) uploadBatch(id BatchID, count int) error {
	g, err := c.batchStorage(id)
	if err != nil {
		return err
	}
	if count < 0 {
		count = g.instanceCount()
	}
	if count == 0 {
		return nil
	}
	g.upload(c.dev, count)
	return nil
}

func (c *BatchContainer) uploadBatchDirty(id BatchID) error {
	g, err := c.batchStorage(id)
	if err != nil {
		return err
	}
	g.uploadDirty(c.dev)
	return nil
}

func (c *BatchContainer) destroyBatch(id BatchID) error {
	if c.disposed.Load() {
		return ErrContainerDisposed
	}
	c.removeBatchByID(id)
	return nil
}

func (c *BatchContainer) isBatchAlive(id BatchID) bool {
	if c.disposed.Load() {
		return false
	}
	_, ok := c.groups[id]
	return ok
}

func (c *BatchContainer) batchStorage(id BatchID) (*batchGroup, error) {
	if c.disposed.Load() {
		return nil, ErrContainerDisposed
	}
	g, ok := c.groups[id]
	if !ok {
		return nil, fmt.Errorf("%w: batch %d", ErrBatchDestroyed, id)
	}
	return g, nil
}

// counterArena owns the live instance count cells. Groups reference a
// cell for the batch's lifetime; handles reach counts only through the
// container, so a recycled cell can never be read through a stale
// handle.
type counterArena struct {
	mu    sync.Mutex
	cells []*atomic.Int32
	free  []int
}

func (a *counterArena) alloc() (int, *atomic.Int32) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if n := len(a.free); n > 0 {
		slot := a.free[n-1]
		a.free = a.free[:n-1]
		a.cells[slot].Store(0)
		return slot, a.cells[slot]
	}
	cell := new(atomic.Int32)
	a.cells = append(a.cells, cell)
	return len(a.cells) - 1, cell
}

func (a *counterArena) release(slot int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.cells[slot].Store(0)
	a.free = append(a.free, slot)
}
