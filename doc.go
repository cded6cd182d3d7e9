// Package instbatch manages GPU-instanced draw batches for real-time
// rendering.
//
// # Overview
//
// instbatch packs per-instance attribute data into GPU-resident buffers,
// answers a per-frame visibility query by frustum-culling instances, and
// emits draw commands describing which instances to render and at which
// GPU buffer offsets. It is designed for constant-buffer style batching,
// where a single draw call can only address one fixed-size, alignment-
// constrained window of the backing buffer.
//
// # Quick Start
//
//	import (
//	    "github.com/gogpu/instbatch"
//	    _ "github.com/gogpu/instbatch/backend" // software device
//	)
//
//	// Create a container backed by the default device.
//	c, _ := instbatch.NewContainer()
//	defer c.Dispose()
//
//	// Describe a batch: 200 instances, 64 per window, one transform
//	// property per instance.
//	desc, _ := instbatch.NewBatchDescription(200, 64, c.Alignment(),
//	    []instbatch.PropertySpec{
//	        {NameID: instbatch.PropertyObjectToWorld, Size: 64},
//	    })
//
//	h, _ := c.AddBatch(desc, mesh, 0, material, instbatch.RendererDescription{})
//
//	// Write instance data and push it to the GPU.
//	w, _ := h.AsInstanceDataBuffer()
//	w.SetMat4(instbatch.PropertyObjectToWorld, 0, mgl32.Ident4())
//	h.Upload(1)
//
//	// Every frame: cull and consume the draw commands.
//	var out instbatch.CullingOutput
//	job := c.Cull(instbatch.CullingContext{Planes: planes[:]}, &out)
//	job.Wait()
//
// # Architecture
//
// The library is organized into:
//   - Public API: BatchContainer, BatchHandle, BatchDescription,
//     InstanceDataBuffer, CullingContext/CullingOutput
//   - gpucore: GPU buffer abstraction (opaque IDs, device limits)
//   - backend: pluggable devices (software, native gogpu/wgpu, gogpu)
//   - internal/parallel: worker pool and dirty-window tracking
//
// # Concurrency
//
// Batch management (AddBatch, RemoveBatch, Dispose) must be serialized
// by the caller against in-flight Cull invocations; the per-frame read
// path deliberately takes no locks. Upload may overlap a frame, in which
// case that frame observes either the pre- or post-upload instance count.
package instbatch

// Version information
const (
	// Version is the current version of the library
	Version = "0.2.0"
)
