package instbatch

import (
	"sync"

	"github.com/gogpu/instbatch/gpucore"
)

// Host-assigned resource identifiers. All are opaque to this package;
// the host render system issues them on registration and they are only
// echoed back in draw ranges and unregistration calls.
type (
	// MeshID identifies a registered mesh.
	MeshID uint32

	// MaterialID identifies a registered material.
	MaterialID uint32

	// BatchID identifies a registered batch. It is the container's only
	// key for batch lookup and stays unique while the batch is alive.
	BatchID uint32
)

// Mesh is an opaque mesh resource owned by the host render system.
type Mesh interface{}

// Material is an opaque material resource owned by the host render
// system.
type Material interface{}

// RendererDescription carries per-batch renderer configuration that the
// host needs when registering a batch. The container passes it through
// untouched.
type RendererDescription struct {
	// Layer is the rendering layer the batch draws on.
	Layer uint32

	// CastShadows enables shadow casting for all instances.
	CastShadows bool

	// ReceiveShadows enables shadow receiving for all instances.
	ReceiveShadows bool
}

// RenderHost is the boundary with the host render system. The container
// registers meshes, materials, and batch buffers with it, and forwards
// global culling bounds. Implementations are provided by the embedding
// application; the package default is an in-process stub that makes the
// library runnable headless.
type RenderHost interface {
	// RegisterMesh registers a mesh and returns its identifier.
	RegisterMesh(mesh Mesh) MeshID

	// RegisterMaterial registers a material and returns its identifier.
	RegisterMaterial(material Material) MaterialID

	// RegisterBatch attaches a GPU buffer as a batch under a fresh
	// identity. windowSize is the aligned window size draw commands use
	// to address the buffer.
	RegisterBatch(buffer gpucore.BufferID, windowSize uint32, rd RendererDescription) BatchID

	// UnregisterBatch detaches a previously registered batch.
	UnregisterBatch(id BatchID)

	// SetGlobalBounds forwards a bounding volume to the host culling
	// system. Called once per scene change, not per frame.
	SetGlobalBounds(bounds AABB)

	// Release drops the host-side handle for this container.
	Release()
}

// hostStub is the default RenderHost: it issues sequential IDs and
// records registrations locally. It lets the library run (and be
// tested) without a real render system attached.
type hostStub struct {
	mu      sync.Mutex
	nextID  uint32
	meshes  map[MeshID]Mesh
	mats    map[MaterialID]Material
	batches map[BatchID]gpucore.BufferID
	bounds  AABB
}

func newHostStub() *hostStub {
	return &hostStub{
		nextID:  1,
		meshes:  make(map[MeshID]Mesh),
		mats:    make(map[MaterialID]Material),
		batches: make(map[BatchID]gpucore.BufferID),
	}
}

func (h *hostStub) RegisterMesh(mesh Mesh) MeshID {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := MeshID(h.nextID)
	h.nextID++
	h.meshes[id] = mesh
	return id
}

func (h *hostStub) RegisterMaterial(material Material) MaterialID {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := MaterialID(h.nextID)
	h.nextID++
	h.mats[id] = material
	return id
}

func (h *hostStub) RegisterBatch(buffer gpucore.BufferID, windowSize uint32, rd RendererDescription) BatchID {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := BatchID(h.nextID)
	h.nextID++
	h.batches[id] = buffer
	return id
}

func (h *hostStub) UnregisterBatch(id BatchID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.batches, id)
}

func (h *hostStub) SetGlobalBounds(bounds AABB) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.bounds = bounds
}

func (h *hostStub) Release() {
	h.mu.Lock()
	defer h.mu.Unlock()
	clear(h.meshes)
	clear(h.mats)
	clear(h.batches)
}
