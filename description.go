package instbatch

import "fmt"

// BatchDescription is the immutable configuration for one batch: its
// instance capacity, the window geometry that slices the backing buffer
// into per-draw-call addressable regions, and the metadata layout of
// per-instance properties inside each window.
//
// A description is copied into the container on AddBatch; mutating it
// afterwards has no effect on the live batch.
type BatchDescription struct {
	// MaxInstanceCount is the total instance capacity of the batch.
	MaxInstanceCount int

	// MaxInstancePerWindow is how many instances one window holds, and
	// therefore the most a single draw call can render for this batch.
	MaxInstancePerWindow int

	// WindowSize is the number of bytes the declared properties need
	// per window: MaxInstancePerWindow * sum of property sizes.
	WindowSize uint32

	// AlignedWindowSize is WindowSize rounded up to the device's
	// constant-buffer offset alignment. Draw commands address the
	// buffer at multiples of this value.
	AlignedWindowSize uint32

	// Bounds is the object-local bounding box applied to every instance
	// during frustum culling.
	Bounds AABB

	// Metadata is the ordered property layout. Order matters for the
	// partial-window upload path, which walks properties in declaration
	// order.
	Metadata []MetadataValue
}

// NewBatchDescription builds a description from a property list,
// computing per-property offsets in declaration order and rounding the
// window size up to the given alignment.
//
// alignment is the device's constant-buffer offset alignment, available
// from BatchContainer.Alignment or gpucore.Limits. Returns
// ErrInvalidDescription if counts are non-positive, alignment is zero,
// or any property size is not a multiple of 16.
func NewBatchDescription(maxInstances, perWindow int, alignment uint32, props []PropertySpec) (BatchDescription, error) {
	if maxInstances <= 0 || perWindow <= 0 {
		return BatchDescription{}, fmt.Errorf("%w: counts must be positive (max=%d, perWindow=%d)",
			ErrInvalidDescription, maxInstances, perWindow)
	}
	if alignment == 0 {
		return BatchDescription{}, fmt.Errorf("%w: zero alignment", ErrInvalidDescription)
	}
	if len(props) == 0 {
		return BatchDescription{}, fmt.Errorf("%w: no properties declared", ErrInvalidDescription)
	}

	meta := make([]MetadataValue, len(props))
	offset := uint32(0)
	for i, p := range props {
		if p.Size == 0 || p.Size%16 != 0 {
			return BatchDescription{}, fmt.Errorf("%w: property 0x%08x size %d is not a positive multiple of 16",
				ErrInvalidDescription, p.NameID, p.Size)
		}
		// The culling pipeline reads the transform property as a full
		// 4x4 matrix per instance.
		if p.NameID == PropertyObjectToWorld && p.Size != 64 {
			return BatchDescription{}, fmt.Errorf("%w: transform property size %d, want 64",
				ErrInvalidDescription, p.Size)
		}
		meta[i] = MetadataValue{NameID: p.NameID, Offset: offset, Size: p.Size}
		offset += p.Size * uint32(perWindow)
	}

	d := BatchDescription{
		MaxInstanceCount:     maxInstances,
		MaxInstancePerWindow: perWindow,
		WindowSize:           offset,
		AlignedWindowSize:    alignUp(offset, alignment),
		Metadata:             meta,
	}
	return d, nil
}

// Validate checks the description invariants against the given
// alignment. It is called eagerly by AddBatch so that malformed
// configurations never reach the culling pipeline.
func (d BatchDescription) Validate(alignment uint32) error {
	if d.MaxInstanceCount <= 0 || d.MaxInstancePerWindow <= 0 {
		return fmt.Errorf("%w: counts must be positive", ErrInvalidDescription)
	}
	if len(d.Metadata) == 0 {
		return fmt.Errorf("%w: no properties declared", ErrInvalidDescription)
	}
	if alignment != 0 && d.AlignedWindowSize%alignment != 0 {
		return fmt.Errorf("%w: window size %d is not a multiple of alignment %d",
			ErrInvalidDescription, d.AlignedWindowSize, alignment)
	}
	if d.AlignedWindowSize%16 != 0 {
		return fmt.Errorf("%w: window size %d is not a multiple of 16", ErrInvalidDescription, d.AlignedWindowSize)
	}

	var perInstance uint32
	for _, m := range d.Metadata {
		if m.Size == 0 || m.Size%16 != 0 {
			return fmt.Errorf("%w: property 0x%08x size %d is not a positive multiple of 16",
				ErrInvalidDescription, m.NameID, m.Size)
		}
		if m.NameID == PropertyObjectToWorld && m.Size != 64 {
			return fmt.Errorf("%w: transform property size %d, want 64",
				ErrInvalidDescription, m.Size)
		}
		end := m.Offset + m.Size*uint32(d.MaxInstancePerWindow)
		if end > d.AlignedWindowSize {
			return fmt.Errorf("%w: property 0x%08x region [%d,%d) exceeds window size %d",
				ErrInvalidDescription, m.NameID, m.Offset, end, d.AlignedWindowSize)
		}
		perInstance += m.Size
	}
	if uint32(d.MaxInstancePerWindow)*perInstance > d.AlignedWindowSize {
		return fmt.Errorf("%w: window capacity %d*%d exceeds window size %d",
			ErrInvalidDescription, d.MaxInstancePerWindow, perInstance, d.AlignedWindowSize)
	}
	return nil
}

// WindowCount returns how many windows the batch needs at full capacity:
// ceil(MaxInstanceCount / MaxInstancePerWindow).
func (d BatchDescription) WindowCount() int {
	return (d.MaxInstanceCount + d.MaxInstancePerWindow - 1) / d.MaxInstancePerWindow
}

// TotalBufferSize returns the backing buffer size in bytes:
// WindowCount() * AlignedWindowSize.
func (d BatchDescription) TotalBufferSize() uint32 {
	return uint32(d.WindowCount()) * d.AlignedWindowSize
}

// Property returns the metadata entry for the given name ID.
func (d BatchDescription) Property(nameID uint32) (MetadataValue, bool) {
	for _, m := range d.Metadata {
		if m.NameID == nameID {
			return m, true
		}
	}
	return MetadataValue{}, false
}

// clone returns a deep copy of the description. The container stores a
// clone so that caller-side mutation cannot alias live batch state.
func (d BatchDescription) clone() BatchDescription {
	d.Metadata = append([]MetadataValue(nil), d.Metadata...)
	return d
}

// alignUp rounds n up to the next multiple of align.
func alignUp(n, align uint32) uint32 {
	return (n + align - 1) / align * align
}
