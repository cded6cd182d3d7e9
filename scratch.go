package instbatch

import (
	"sync"

	"github.com/go-gl/mathgl/mgl32"
)

// frameScratch is the per-frame visibility working set: transform
// views, per-window visible-index lists, the flat slot table, and the
// per-batch totals the later stages read. Everything in it is owned by
// one culling frame and returned to the pool before the frame's job
// completes; nothing escapes into the output.
type frameScratch struct {
	// transforms holds one object-to-world view per batch (stage 2).
	transforms [][]mgl32.Mat4

	// batchLists holds stage 2's per-batch, per-window visible local
	// indices, before compaction into the flat slot table.
	batchLists [][][]uint32

	// slotVisible is the flat slot table (stage 3): one entry per draw
	// unit across all batches, indexed by slotBase[batch]+window.
	slotVisible [][]uint32

	// Per-batch derived values.
	drawUnits   []int // draw-unit count (stage 1)
	slotBase    []int // first flat slot (monotonic accumulation)
	batchTotal  []int // visible instances across the batch (stage 4)
	batchCmds   []int // windows with nonzero visible count (stage 4)
	commandBase []int // first draw-command index (stage 5 prefix)
	visibleBase []int // first visible-instance index (stage 5 prefix)
	rangeIndex  []int // draw-range index for contributing batches
}

var scratchPool = sync.Pool{
	New: func() any { return new(frameScratch) },
}

// getScratch retrieves a working set sized for the given batch and slot
// counts. Slices are reused across frames; after warmup a steady-state
// frame allocates nothing here.
func getScratch(batches, slots int) *frameScratch {
	s := scratchPool.Get().(*frameScratch)

	s.transforms = growSlice(s.transforms, batches)
	s.batchLists = growSlice(s.batchLists, batches)
	s.slotVisible = growSlice(s.slotVisible, slots)
	s.drawUnits = growSlice(s.drawUnits, batches)
	s.slotBase = growSlice(s.slotBase, batches)
	s.batchTotal = growSlice(s.batchTotal, batches)
	s.batchCmds = growSlice(s.batchCmds, batches)
	s.commandBase = growSlice(s.commandBase, batches)
	s.visibleBase = growSlice(s.visibleBase, batches)
	s.rangeIndex = growSlice(s.rangeIndex, batches)

	for i := range s.slotVisible {
		s.slotVisible[i] = s.slotVisible[i][:0]
	}
	return s
}

// putScratch returns a working set to the pool for reuse.
func putScratch(s *frameScratch) {
	if s == nil {
		return
	}
	scratchPool.Put(s)
}

// windowList returns a reusable visible-index buffer for one window of
// one batch, growing the per-batch table as needed.
func (s *frameScratch) windowList(batch, window int) []uint32 {
	lists := s.batchLists[batch]
	if window >= len(lists) {
		lists = growSlice(lists, window+1)
		s.batchLists[batch] = lists
	}
	return lists[window][:0]
}

// growSlice resizes s to length n, keeping capacity where possible.
func growSlice[T any](s []T, n int) []T {
	if cap(s) < n {
		return make([]T, n)
	}
	return s[:n]
}
