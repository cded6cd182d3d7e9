package parallel

import (
	"math/bits"
	"sync/atomic"
)

// DirtyWindows tracks which alignment windows of a batch's buffer need
// re-uploading, using an atomic bitmap. It provides lock-free,
// thread-safe operations so instance writers can mark windows while an
// upload drains them.
//
// The bitmap uses one bit per window, packed into uint64 words.
// All methods are safe for concurrent use without external
// synchronization.
type DirtyWindows struct {
	// words is the atomic bitmap where each bit represents one window.
	words []atomic.Uint64

	// windows is the total window count.
	windows int
}

// NewDirtyWindows creates a tracker for the given window count.
// All windows start clean. Returns nil if the count is not positive.
func NewDirtyWindows(windows int) *DirtyWindows {
	if windows <= 0 {
		return nil
	}
	numWords := (windows + 63) / 64
	return &DirtyWindows{
		words:   make([]atomic.Uint64, numWords),
		windows: windows,
	}
}

// Mark marks a single window as dirty. Lock-free O(1) via atomic OR.
// Does nothing if the index is out of bounds.
func (d *DirtyWindows) Mark(w int) {
	if w < 0 || w >= d.windows {
		return
	}
	d.words[w/64].Or(1 << (w & 63))
}

// MarkRange marks windows [first, last] as dirty.
// Out-of-range portions are clamped; an inverted range does nothing.
func (d *DirtyWindows) MarkRange(first, last int) {
	if first < 0 {
		first = 0
	}
	if last >= d.windows {
		last = d.windows - 1
	}
	for w := first; w <= last; w++ {
		d.Mark(w)
	}
}

// MarkAll marks every window as dirty.
func (d *DirtyWindows) MarkAll() {
	fullWords := d.windows / 64
	remainder := d.windows % 64

	for i := 0; i < fullWords; i++ {
		d.words[i].Store(^uint64(0))
	}
	if remainder > 0 {
		d.words[fullWords].Store((uint64(1) << remainder) - 1)
	}
}

// Clear marks every window as clean.
func (d *DirtyWindows) Clear() {
	for i := range d.words {
		d.words[i].Store(0)
	}
}

// IsDirty returns true if the window is marked dirty.
// Returns false for out-of-bounds indices.
func (d *DirtyWindows) IsDirty(w int) bool {
	if w < 0 || w >= d.windows {
		return false
	}
	return d.words[w/64].Load()&(1<<(w&63)) != 0
}

// IsEmpty returns true if no window is dirty.
func (d *DirtyWindows) IsEmpty() bool {
	for i := range d.words {
		if d.words[i].Load() != 0 {
			return false
		}
	}
	return true
}

// Count returns the number of dirty windows.
func (d *DirtyWindows) Count() int {
	count := 0
	fullWords := d.windows / 64
	for i := 0; i < fullWords; i++ {
		count += bits.OnesCount64(d.words[i].Load())
	}
	if fullWords < len(d.words) {
		mask := (uint64(1) << (d.windows % 64)) - 1
		count += bits.OnesCount64(d.words[fullWords].Load() & mask)
	}
	return count
}

// GetAndClear atomically retrieves all dirty window indices and clears
// them. This is the primary method for the dirty-upload path: windows
// marked after the swap stay dirty for the next upload.
func (d *DirtyWindows) GetAndClear() []int {
	var dirty []int
	for wordIdx := range d.words {
		word := d.words[wordIdx].Swap(0)
		for word != 0 {
			bitIdx := bits.TrailingZeros64(word)
			w := wordIdx*64 + bitIdx
			if w >= d.windows {
				break
			}
			dirty = append(dirty, w)
			word &^= 1 << bitIdx
		}
	}
	return dirty
}

// ForEachDirty calls fn for each dirty window, lowest index first,
// without clearing the dirty bits.
func (d *DirtyWindows) ForEachDirty(fn func(w int)) {
	if fn == nil {
		return
	}
	for wordIdx := range d.words {
		word := d.words[wordIdx].Load()
		for word != 0 {
			bitIdx := bits.TrailingZeros64(word)
			w := wordIdx*64 + bitIdx
			if w >= d.windows {
				break
			}
			fn(w)
			word &^= 1 << bitIdx
		}
	}
}

// Windows returns the total window count the tracker covers.
func (d *DirtyWindows) Windows() int {
	return d.windows
}
