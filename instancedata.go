package instbatch

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/gogpu/instbatch/internal/parallel"
)

// InstanceDataBuffer writes per-property, per-instance values into a
// batch's native storage at computed window offsets. It is pure
// addressing logic over a borrowed storage slice: it owns nothing and
// stays valid as long as the batch it was obtained from is alive.
//
// The value at (property, instance) lives at byte offset
//
//	window*AlignedWindowSize + property.Offset + local*property.Size
//
// where window = instance / MaxInstancePerWindow and
// local = instance % MaxInstancePerWindow.
//
// Writes mark the touched window dirty so UploadDirty can push only
// modified regions.
type InstanceDataBuffer struct {
	data  []mgl32.Vec4
	desc  *BatchDescription
	dirty *parallel.DirtyWindows
}

// address computes the vec4 index of (property, instance, element) and
// validates bounds. element selects a 16-byte vector within the
// property value (0 for a Vec4, 0..3 for a Mat4).
func (b *InstanceDataBuffer) address(nameID uint32, instance, element int) (uint32, int, error) {
	prop, ok := b.desc.Property(nameID)
	if !ok {
		return 0, 0, fmt.Errorf("%w: 0x%08x", ErrUnknownProperty, nameID)
	}
	if instance < 0 || instance >= b.desc.MaxInstanceCount {
		return 0, 0, fmt.Errorf("%w: instance %d, capacity %d", ErrInstanceOutOfRange, instance, b.desc.MaxInstanceCount)
	}
	if uint32(element+1)*16 > prop.Size {
		return 0, 0, fmt.Errorf("%w: element %d exceeds property size %d", ErrInstanceOutOfRange, element, prop.Size)
	}

	window := instance / b.desc.MaxInstancePerWindow
	local := instance % b.desc.MaxInstancePerWindow
	off := uint32(window)*b.desc.AlignedWindowSize + prop.Offset + uint32(local)*prop.Size + uint32(element)*16
	return off / 16, window, nil
}

// SetVec4 writes one 16-byte vector value for the given property and
// instance.
func (b *InstanceDataBuffer) SetVec4(nameID uint32, instance int, v mgl32.Vec4) error {
	idx, window, err := b.address(nameID, instance, 0)
	if err != nil {
		return err
	}
	b.data[idx] = v
	b.dirty.Mark(window)
	return nil
}

// Vec4 reads back one 16-byte vector value.
func (b *InstanceDataBuffer) Vec4(nameID uint32, instance int) (mgl32.Vec4, error) {
	idx, _, err := b.address(nameID, instance, 0)
	if err != nil {
		return mgl32.Vec4{}, err
	}
	return b.data[idx], nil
}

// SetMat4 writes a 64-byte matrix value (four vectors, column order)
// for the given property and instance. The property's declared size
// must be at least 64 bytes.
func (b *InstanceDataBuffer) SetMat4(nameID uint32, instance int, m mgl32.Mat4) error {
	idx, window, err := b.address(nameID, instance, 3)
	if err != nil {
		return err
	}
	idx -= 3
	for col := 0; col < 4; col++ {
		b.data[idx+uint32(col)] = m.Col(col)
	}
	b.dirty.Mark(window)
	return nil
}

// Mat4 reads back a 64-byte matrix value.
func (b *InstanceDataBuffer) Mat4(nameID uint32, instance int) (mgl32.Mat4, error) {
	idx, _, err := b.address(nameID, instance, 3)
	if err != nil {
		return mgl32.Mat4{}, err
	}
	idx -= 3
	var m mgl32.Mat4
	for col := 0; col < 4; col++ {
		m.SetCol(col, b.data[idx+uint32(col)])
	}
	return m, nil
}
