package instbatch

import (
	"fmt"
	"sync/atomic"
	"unsafe"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/gogpu/instbatch/gpucore"
	"github.com/gogpu/instbatch/internal/parallel"
)

// batchGroup owns the CPU-side state of one registered batch: the
// native storage mirroring the GPU buffer, the live instance counter,
// the immutable description copy, and host/device resource IDs.
// Groups are created by AddBatch and destroyed by RemoveBatch or
// container disposal; nothing else mutates them.
type batchGroup struct {
	id   BatchID
	desc BatchDescription

	// storage is the CPU-side mirror of the GPU buffer, in 16-byte
	// vectors. Uploads slice byte views out of it.
	storage []mgl32.Vec4

	// counter is the live instance count cell, owned by the container's
	// counter arena. Read by culling frames, written by Upload.
	counter     *atomic.Int32
	counterSlot int

	// dirty tracks which windows have been written since the last
	// upload.
	dirty *parallel.DirtyWindows

	buffer     gpucore.BufferID
	meshID     MeshID
	materialID MaterialID
	subMesh    uint16

	// transform caches the object-to-world metadata entry; the culling
	// stage addresses it every frame.
	transform    MetadataValue
	hasTransform bool

	registered bool
}

// newBatchGroup builds a group around freshly allocated storage. The
// batch identity is assigned later, by register.
func newBatchGroup(desc BatchDescription, buffer gpucore.BufferID, counter *atomic.Int32, slot int) *batchGroup {
	g := &batchGroup{
		desc:        desc,
		storage:     make([]mgl32.Vec4, desc.TotalBufferSize()/16),
		counter:     counter,
		counterSlot: slot,
		dirty:       parallel.NewDirtyWindows(desc.WindowCount()),
		buffer:      buffer,
	}
	g.transform, g.hasTransform = desc.Property(PropertyObjectToWorld)
	return g
}

// instanceCount returns the persisted instance count as of the last
// Upload.
func (g *batchGroup) instanceCount() int {
	return int(g.counter.Load())
}

// drawUnitCount returns how many windows the current instance count
// occupies: ceil(count / MaxInstancePerWindow), minimum 0.
func (g *batchGroup) drawUnitCount() int {
	count := g.instanceCount()
	if count <= 0 {
		return 0
	}
	return (count + g.desc.MaxInstancePerWindow - 1) / g.desc.MaxInstancePerWindow
}

// instanceCountInWindow returns how many instances occupy the given
// window: full windows hold MaxInstancePerWindow, the last one holds
// the remainder.
func (g *batchGroup) instanceCountInWindow(window int) (int, error) {
	if window < 0 || window >= g.drawUnitCount() {
		return 0, fmt.Errorf("%w: window %d, draw units %d", ErrWindowOutOfRange, window, g.drawUnitCount())
	}
	n := g.instanceCount() - window*g.desc.MaxInstancePerWindow
	if n > g.desc.MaxInstancePerWindow {
		n = g.desc.MaxInstancePerWindow
	}
	return n, nil
}

// transformAt assembles the object-to-world matrix of the instance at
// (window, local) from the storage. Without a declared transform
// property every instance is treated as identity.
func (g *batchGroup) transformAt(window, local int) mgl32.Mat4 {
	if !g.hasTransform {
		return mgl32.Ident4()
	}
	base := (uint32(window)*g.desc.AlignedWindowSize + g.transform.Offset + uint32(local)*g.transform.Size) / 16

	var m mgl32.Mat4
	for col := 0; col < 4; col++ {
		v := g.storage[base+uint32(col)]
		m.SetCol(col, v)
	}
	return m
}

// objectToWorldInto fills dst with the transforms of the first count
// live instances in frame order (window-major). The returned slice
// aliases dst and is only valid for the duration of one culling frame,
// which passes its own count snapshot.
func (g *batchGroup) objectToWorldInto(dst []mgl32.Mat4, count int) []mgl32.Mat4 {
	dst = dst[:0]
	for i := 0; i < count; i++ {
		window := i / g.desc.MaxInstancePerWindow
		local := i % g.desc.MaxInstancePerWindow
		dst = append(dst, g.transformAt(window, local))
	}
	return dst
}

// register attaches the batch's GPU buffer to the host render system.
// Must be called exactly once, before unregister.
func (g *batchGroup) register(host RenderHost, mesh Mesh, material Material, rd RendererDescription) {
	g.meshID = host.RegisterMesh(mesh)
	g.materialID = host.RegisterMaterial(material)
	g.id = host.RegisterBatch(g.buffer, g.desc.AlignedWindowSize, rd)
	g.registered = true
}

// unregister detaches the batch from the host render system.
// Safe to call only after register; a second call is a no-op.
func (g *batchGroup) unregister(host RenderHost) {
	if !g.registered {
		return
	}
	host.UnregisterBatch(g.id)
	g.registered = false
}

// upload pushes the first count instances to the GPU buffer.
//
// All complete windows are contiguous in storage (the window layout is
// uniform), so they go up in one bulk write. The trailing partial
// window is uploaded per property, covering only the occupied instance
// range of each property's sub-region: a partial window's properties
// are not contiguous across the unused slots.
// After the writes, count becomes the new persisted instance count.
func (g *batchGroup) upload(dev gpucore.Device, count int) {
	if count > g.desc.MaxInstanceCount {
		count = g.desc.MaxInstanceCount
	}

	perWindow := g.desc.MaxInstancePerWindow
	windowVec4 := g.desc.AlignedWindowSize / 16

	completeWindows := count / perWindow
	if completeWindows > 0 {
		n := uint32(completeWindows) * windowVec4
		dev.WriteBuffer(g.buffer, 0, vec4Bytes(g.storage[:n]))
	}

	if rem := count % perWindow; rem > 0 {
		windowBase := uint32(completeWindows) * g.desc.AlignedWindowSize
		for _, prop := range g.desc.Metadata {
			off := windowBase + prop.Offset
			n := uint32(rem) * prop.Size / 16
			dev.WriteBuffer(g.buffer, uint64(off), vec4Bytes(g.storage[off/16:off/16+n]))
		}
	}

	g.dirty.Clear()
	g.counter.Store(int32(count))

	Logger().Debug("instbatch: upload",
		"batch", g.id,
		"instances", count,
		"completeWindows", completeWindows,
		"partial", count%perWindow)
}

// uploadDirty pushes only the windows written since the last upload,
// leaving the persisted instance count unchanged. Windows beyond the
// occupied range are cleared but not written.
func (g *batchGroup) uploadDirty(dev gpucore.Device) {
	occupied := g.drawUnitCount()
	windowVec4 := g.desc.AlignedWindowSize / 16

	for _, w := range g.dirty.GetAndClear() {
		if w >= occupied {
			continue
		}
		base := uint32(w) * windowVec4
		off := uint64(w) * uint64(g.desc.AlignedWindowSize)
		dev.WriteBuffer(g.buffer, off, vec4Bytes(g.storage[base:base+windowVec4]))
	}
}

// vec4Bytes reinterprets a vector slice as its backing bytes.
// The slice must stay alive for the duration of the device write.
func vec4Bytes(v []mgl32.Vec4) []byte {
	if len(v) == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(&v[0])), len(v)*16)
}
