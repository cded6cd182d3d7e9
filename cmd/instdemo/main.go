// Command instdemo demonstrates the instbatch instanced-batch library.
//
// It builds a few batches of instances laid out on a grid, runs the
// frustum-culling pipeline against a moving camera, and prints the
// resulting draw command counts per frame. The software backend is used
// so the demo runs without a GPU.
package main

import (
	"flag"
	"log"
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/gogpu/instbatch"
	"github.com/gogpu/instbatch/backend"
)

func main() {
	var (
		batches   = flag.Int("batches", 4, "number of batches")
		instances = flag.Int("instances", 1024, "instances per batch")
		frames    = flag.Int("frames", 8, "frames to simulate")
	)
	flag.Parse()

	b := backend.Get(backend.BackendSoftware)
	if b == nil {
		log.Fatal("software backend not registered")
	}
	if err := b.Init(); err != nil {
		log.Fatalf("Failed to init backend: %v", err)
	}
	defer b.Close()

	dev, err := b.Device()
	if err != nil {
		log.Fatalf("Failed to get device: %v", err)
	}

	c, err := instbatch.NewContainer(instbatch.WithDevice(dev))
	if err != nil {
		log.Fatalf("Failed to create container: %v", err)
	}
	defer c.Dispose()

	handles := make([]instbatch.BatchHandle, *batches)
	for i := range handles {
		handles[i] = createBatch(c, *instances, i)
	}
	log.Printf("Created %d batches, %d instances each", *batches, *instances)

	out := &instbatch.CullingOutput{}
	for f := 0; f < *frames; f++ {
		// Orbit the camera around the grid.
		angle := float64(f) / float64(*frames) * 2 * math.Pi
		eye := mgl32.Vec3{
			float32(60 * math.Cos(angle)),
			25,
			float32(60 * math.Sin(angle)),
		}
		proj := mgl32.Perspective(mgl32.DegToRad(60), 16.0/9.0, 0.1, 200)
		view := mgl32.LookAtV(eye, mgl32.Vec3{0, 0, 0}, mgl32.Vec3{0, 1, 0})
		planes := instbatch.PlanesFromViewProjection(proj.Mul4(view))

		job := c.Cull(instbatch.CullingContext{Planes: planes[:]}, out)
		job.Wait()

		log.Printf("frame %d: ranges=%d commands=%d visible=%d",
			f, len(out.DrawRanges), len(out.DrawCommands), len(out.VisibleInstances))
	}

	st := c.Stats()
	log.Printf("Done: %d frames culled, last frame visible=%d", st.FramesCulled, st.LastFrame.VisibleInstances)
}

// createBatch builds one batch whose instances sit on a flat grid,
// offset along Z per batch so the camera sweep culls them unevenly.
func createBatch(c *instbatch.BatchContainer, n, index int) instbatch.BatchHandle {
	desc, err := instbatch.NewBatchDescription(n, 128, c.Alignment(), []instbatch.PropertySpec{
		{NameID: instbatch.PropertyObjectToWorld, Size: 64},
		{NameID: instbatch.PropertyBaseColor, Size: 16},
	})
	if err != nil {
		log.Fatalf("Failed to build description: %v", err)
	}
	desc.Bounds = instbatch.AABB{
		Min: mgl32.Vec3{-0.5, -0.5, -0.5},
		Max: mgl32.Vec3{0.5, 0.5, 0.5},
	}

	h, err := c.AddBatch(desc, "cube-mesh", 0, "demo-material", instbatch.RendererDescription{})
	if err != nil {
		log.Fatalf("Failed to add batch: %v", err)
	}

	buf, err := h.AsInstanceDataBuffer()
	if err != nil {
		log.Fatalf("Failed to map instance data: %v", err)
	}

	side := int(math.Ceil(math.Sqrt(float64(n))))
	for i := 0; i < n; i++ {
		x := float32(i%side) * 2
		z := float32(i/side)*2 + float32(index)*40
		m := mgl32.Translate3D(x-float32(side), 0, z-float32(side))
		if err := buf.SetMat4(instbatch.PropertyObjectToWorld, i, m); err != nil {
			log.Fatalf("Failed to set transform: %v", err)
		}
		hue := float32(i) / float32(n)
		if err := buf.SetVec4(instbatch.PropertyBaseColor, i, mgl32.Vec4{hue, 0.5, 1 - hue, 1}); err != nil {
			log.Fatalf("Failed to set color: %v", err)
		}
	}

	if err := h.Upload(n); err != nil {
		log.Fatalf("Failed to upload: %v", err)
	}
	return h
}
