package instbatch

import "sync/atomic"

// The per-frame culling pipeline. One Cull invocation runs a fixed
// sequence of stages over all live batches; each stage fans out one
// task per batch on the worker pool, with a barrier between stages.
// Slot, command, and range indices all derive from the container's
// live-batch enumeration order, so output layout is deterministic for
// a fixed container state.

// DrawCommand describes one GPU-instanced draw call: which batch, which
// slice of the visible-instance array, and at which byte offset the
// draw's window starts in the batch's buffer.
type DrawCommand struct {
	// Batch identifies the batch the command draws from.
	Batch BatchID

	// VisibleOffset is the index of this command's first entry in the
	// flat visible-instance array.
	VisibleOffset uint32

	// VisibleCount is how many instances the command draws.
	VisibleCount uint32

	// BufferOffset is the window's byte offset in the batch buffer:
	// windowIndex * AlignedWindowSize.
	BufferOffset uint32
}

// DrawRange is the contiguous slice of draw commands belonging to one
// batch, along with the mesh and material to bind for it.
type DrawRange struct {
	Mesh     MeshID
	Material MaterialID
	SubMesh  uint16

	// CommandBegin and CommandCount delimit the batch's commands in the
	// output command array.
	CommandBegin uint32
	CommandCount uint32
}

// CullingContext carries the per-frame culling inputs.
type CullingContext struct {
	// Planes are the active culling planes, normals pointing inward.
	// An instance is visible iff its transformed bounds are not
	// entirely outside any plane. An empty set means everything is
	// visible.
	Planes []Plane
}

// CullingOutput receives one frame's draw commands. Slices are resized
// by the pipeline and reused across frames when capacity allows; the
// host must finish consuming them (after CullJob.Wait) before invoking
// the next frame.
type CullingOutput struct {
	DrawRanges   []DrawRange
	DrawCommands []DrawCommand

	// VisibleInstances is the flat array of window-relative-to-batch
	// instance indices the commands slice into. An index is the
	// instance's window base (windowIndex * MaxInstancePerWindow) plus
	// its within-window index.
	VisibleInstances []uint32
}

func (o *CullingOutput) reset() {
	o.DrawRanges = o.DrawRanges[:0]
	o.DrawCommands = o.DrawCommands[:0]
	o.VisibleInstances = o.VisibleInstances[:0]
}

// CullJob is the completion handle of one culling frame. The host must
// wait on it before consuming the CullingOutput.
type CullJob struct {
	done chan struct{}
}

// Wait blocks until the frame's pipeline has finished. Safe to call
// multiple times and from multiple goroutines.
func (j *CullJob) Wait() { <-j.done }

// Done reports whether the frame has finished without blocking.
func (j *CullJob) Done() bool {
	select {
	case <-j.done:
		return true
	default:
		return false
	}
}

// Cull runs the per-frame culling pipeline over all live batches and
// fills out with the frame's draw commands. It returns a completion
// handle immediately rather than blocking; the pipeline runs on the
// container's worker pool.
//
// Cull never fails: any internal inconsistency degrades to zero draw
// commands for the affected batch (or frame) rather than propagating,
// since a dropped frame is preferable to a crashed render loop.
func (c *BatchContainer) Cull(ctx CullingContext, out *CullingOutput) *CullJob {
	job := &CullJob{done: make(chan struct{})}

	if c.disposed.Load() || out == nil {
		if out != nil {
			out.reset()
		}
		close(job.done)
		return job
	}

	// Snapshot the live-batch enumeration and instance counts at frame
	// start. Uploads landing after this point affect the next frame.
	batches := make([]*batchGroup, 0, len(c.order))
	counts := make([]int, 0, len(c.order))
	for _, id := range c.order {
		g, ok := c.groups[id]
		if !ok {
			continue
		}
		count := g.instanceCount()
		if count > g.desc.MaxInstanceCount {
			count = g.desc.MaxInstanceCount
		}
		batches = append(batches, g)
		counts = append(counts, count)
	}

	go c.runFrame(batches, counts, ctx, out, job)
	return job
}

// runFrame executes the stage graph for one frame.
func (c *BatchContainer) runFrame(batches []*batchGroup, counts []int, ctx CullingContext, out *CullingOutput, job *CullJob) {
	defer close(job.done)
	defer func() {
		if r := recover(); r != nil {
			out.reset()
			Logger().Warn("instbatch: culling frame degraded to empty output", "panic", r)
		}
	}()

	out.reset()

	// Stage 1: draw-unit counting. Empty batches get zero draw units
	// and are never scheduled into later stages.
	scratchSlots := 0
	for i, g := range batches {
		scratchSlots += drawUnitsFor(counts[i], g.desc.MaxInstancePerWindow)
	}
	if scratchSlots == 0 {
		c.recordFrame(out)
		return
	}

	s := getScratch(len(batches), scratchSlots)
	defer putScratch(s)

	// Flat slot indices accumulate monotonically by each batch's
	// draw-unit count, so slots never alias across batches.
	slot := 0
	for i, g := range batches {
		du := drawUnitsFor(counts[i], g.desc.MaxInstancePerWindow)
		s.drawUnits[i] = du
		s.slotBase[i] = slot
		slot += du
	}

	// Stage 2: per-window frustum culling. Parallel across batches;
	// windows within a batch run sequentially so each batch task owns
	// its working buffers.
	ok := c.forEachBatch(batches, s, func(i int, g *batchGroup) {
		s.transforms[i] = g.objectToWorldInto(growSlice(s.transforms[i], counts[i]), counts[i])

		perWindow := g.desc.MaxInstancePerWindow
		for w := 0; w < s.drawUnits[i]; w++ {
			inWindow := counts[i] - w*perWindow
			if inWindow > perWindow {
				inWindow = perWindow
			}

			list := s.windowList(i, w)
			for local := 0; local < inWindow; local++ {
				m := s.transforms[i][w*perWindow+local]
				if aabbVisible(transformAABB(g.desc.Bounds, m), ctx.Planes) {
					list = append(list, uint32(local))
				}
			}
			s.batchLists[i][w] = list
		}
	})

	// Stage 3: visible-index compaction into the flat slot table.
	ok = ok && c.forEachBatch(batches, s, func(i int, g *batchGroup) {
		for w := 0; w < s.drawUnits[i]; w++ {
			dst := s.slotVisible[s.slotBase[i]+w][:0]
			s.slotVisible[s.slotBase[i]+w] = append(dst, s.batchLists[i][w]...)
		}
	})

	// Stage 4: draw-counter aggregation.
	ok = ok && c.forEachBatch(batches, s, func(i int, g *batchGroup) {
		total, cmds := 0, 0
		for w := 0; w < s.drawUnits[i]; w++ {
			n := len(s.slotVisible[s.slotBase[i]+w])
			total += n
			if n > 0 {
				cmds++
			}
		}
		s.batchTotal[i] = total
		s.batchCmds[i] = cmds
	})
	if !ok {
		c.degradeFrame(out)
		return
	}

	// Stage 5: output allocation. Prefix sums fix each batch's command,
	// range, and visible-instance slices before any parallel writer
	// touches them.
	totalCommands, totalRanges, totalVisible := 0, 0, 0
	for i := range batches {
		s.commandBase[i] = totalCommands
		s.visibleBase[i] = totalVisible
		s.rangeIndex[i] = totalRanges
		totalCommands += s.batchCmds[i]
		totalVisible += s.batchTotal[i]
		if s.batchTotal[i] > 0 {
			totalRanges++
		}
	}

	out.DrawRanges = growSlice(out.DrawRanges, totalRanges)
	out.DrawCommands = growSlice(out.DrawCommands, totalCommands)
	out.VisibleInstances = growSlice(out.VisibleInstances, totalVisible)

	// Stage 6: draw-range construction. Fully-culled batches contribute
	// no range: ranges stay dense, like commands.
	ok = c.forEachBatch(batches, s, func(i int, g *batchGroup) {
		if s.batchTotal[i] == 0 {
			return
		}
		out.DrawRanges[s.rangeIndex[i]] = DrawRange{
			Mesh:         g.meshID,
			Material:     g.materialID,
			SubMesh:      g.subMesh,
			CommandBegin: uint32(s.commandBase[i]),
			CommandCount: uint32(s.batchCmds[i]),
		}
	})

	// Stage 7: draw-command construction. Windows with zero visible
	// instances are skipped, not emitted as zero-count commands.
	ok = ok && c.forEachBatch(batches, s, func(i int, g *batchGroup) {
		cmd := s.commandBase[i]
		visible := s.visibleBase[i]
		for w := 0; w < s.drawUnits[i]; w++ {
			n := len(s.slotVisible[s.slotBase[i]+w])
			if n == 0 {
				continue
			}
			out.DrawCommands[cmd] = DrawCommand{
				Batch:         g.id,
				VisibleOffset: uint32(visible),
				VisibleCount:  uint32(n),
				BufferOffset:  uint32(w) * g.desc.AlignedWindowSize,
			}
			cmd++
			visible += n
		}
	})

	// Stage 8: visibility-index materialization. Local indices are
	// rebased by their window's base instance index.
	ok = ok && c.forEachBatch(batches, s, func(i int, g *batchGroup) {
		visible := s.visibleBase[i]
		perWindow := uint32(g.desc.MaxInstancePerWindow)
		for w := 0; w < s.drawUnits[i]; w++ {
			list := s.slotVisible[s.slotBase[i]+w]
			base := uint32(w) * perWindow
			for _, local := range list {
				out.VisibleInstances[visible] = base + local
				visible++
			}
		}
	})
	if !ok {
		c.degradeFrame(out)
		return
	}

	c.recordFrame(out)

	Logger().Debug("instbatch: frame culled",
		"batches", len(batches),
		"drawUnits", scratchSlots,
		"commands", totalCommands,
		"visible", totalVisible)
}

// drawUnitsFor is a batch's draw-unit count: one per alignment window,
// zero for an empty batch.
func drawUnitsFor(count, perWindow int) int {
	if count <= 0 {
		return 0
	}
	return (count + perWindow - 1) / perWindow
}

// forEachBatch runs one task per non-empty batch on the worker pool and
// waits for all of them. Batches with zero draw units are skipped
// entirely.
//
// Tasks run on pool goroutines, out of reach of runFrame's recover, so
// each task recovers its own panics. It reports whether every task
// completed; on false the stage's writes are incomplete and the frame
// must be degraded.
func (c *BatchContainer) forEachBatch(batches []*batchGroup, s *frameScratch, fn func(i int, g *batchGroup)) bool {
	var failed atomic.Bool
	tasks := make([]func(), 0, len(batches))
	for i, g := range batches {
		if s.drawUnits[i] == 0 {
			continue
		}
		i, g := i, g
		tasks = append(tasks, func() {
			defer func() {
				if r := recover(); r != nil {
					failed.Store(true)
					Logger().Warn("instbatch: culling task failed", "batch", g.id, "panic", r)
				}
			}()
			fn(i, g)
		})
	}
	c.pool.ExecuteAll(tasks)
	return !failed.Load()
}

// degradeFrame discards a partially built frame. A dropped frame of
// rendering is preferable to surfacing inconsistent draw commands.
func (c *BatchContainer) degradeFrame(out *CullingOutput) {
	out.reset()
	Logger().Warn("instbatch: culling frame degraded to empty output")
	c.recordFrame(out)
}

// recordFrame captures the frame totals for Stats.
func (c *BatchContainer) recordFrame(out *CullingOutput) {
	c.statsMu.Lock()
	c.stats.FramesCulled++
	c.stats.LastFrame = FrameStats{
		DrawRanges:       len(out.DrawRanges),
		DrawCommands:     len(out.DrawCommands),
		VisibleInstances: len(out.VisibleInstances),
	}
	c.statsMu.Unlock()
}
