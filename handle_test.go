package instbatch

import (
	"bytes"
	"errors"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

// fillTransforms writes a distinct translation per instance.
func fillTransforms(t *testing.T, h BatchHandle, n int) {
	t.Helper()
	buf, err := h.AsInstanceDataBuffer()
	if err != nil {
		t.Fatalf("AsInstanceDataBuffer: %v", err)
	}
	for i := 0; i < n; i++ {
		m := mgl32.Translate3D(float32(i), 0, 0)
		if err := buf.SetMat4(PropertyObjectToWorld, i, m); err != nil {
			t.Fatalf("SetMat4(%d): %v", i, err)
		}
		v := mgl32.Vec4{float32(i), 0, 0, 1}
		if err := buf.SetVec4(PropertyBaseColor, i, v); err != nil {
			t.Fatalf("SetVec4(%d): %v", i, err)
		}
	}
}

// =============================================================================
// Upload Chunking Tests
// =============================================================================

func TestBatchHandle_Upload_Chunking(t *testing.T) {
	c, dev := newTestContainer(t)
	h := addTestBatch(t, c, 200, 64)
	desc := h.Description()

	fillTransforms(t, h, 130)
	dev.takeWrites()

	if err := h.Upload(130); err != nil {
		t.Fatalf("Upload: %v", err)
	}

	// 130 instances over 64-instance windows: two complete windows in
	// one bulk write, then one write per property for the 2-instance
	// partial window.
	writes := dev.takeWrites()
	if len(writes) != 3 {
		t.Fatalf("got %d writes, want 3: %+v", len(writes), writes)
	}

	bulk := writes[0]
	if bulk.Offset != 0 || bulk.Size != int(2*desc.AlignedWindowSize) {
		t.Errorf("bulk write = offset %d size %d, want offset 0 size %d",
			bulk.Offset, bulk.Size, 2*desc.AlignedWindowSize)
	}

	windowBase := uint64(2 * desc.AlignedWindowSize)
	transform, _ := desc.Property(PropertyObjectToWorld)
	color, _ := desc.Property(PropertyBaseColor)

	if w := writes[1]; w.Offset != windowBase+uint64(transform.Offset) || w.Size != 2*64 {
		t.Errorf("transform write = offset %d size %d, want offset %d size %d",
			w.Offset, w.Size, windowBase+uint64(transform.Offset), 2*64)
	}
	if w := writes[2]; w.Offset != windowBase+uint64(color.Offset) || w.Size != 2*16 {
		t.Errorf("color write = offset %d size %d, want offset %d size %d",
			w.Offset, w.Size, windowBase+uint64(color.Offset), 2*16)
	}
}

func TestBatchHandle_Upload_Counts(t *testing.T) {
	c, _ := newTestContainer(t)
	h := addTestBatch(t, c, 200, 64)

	fillTransforms(t, h, 130)
	if err := h.Upload(130); err != nil {
		t.Fatalf("Upload: %v", err)
	}

	if got := h.InstanceCount(); got != 130 {
		t.Errorf("InstanceCount() = %d, want 130", got)
	}
	if got := h.DrawCommandCount(); got != 3 {
		t.Errorf("DrawCommandCount() = %d, want 3", got)
	}

	wantWindows := []int{64, 64, 2}
	for w, want := range wantWindows {
		got, err := h.InstanceCountInWindow(w)
		if err != nil {
			t.Fatalf("InstanceCountInWindow(%d): %v", w, err)
		}
		if got != want {
			t.Errorf("InstanceCountInWindow(%d) = %d, want %d", w, got, want)
		}
	}

	if _, err := h.InstanceCountInWindow(3); !errors.Is(err, ErrWindowOutOfRange) {
		t.Errorf("InstanceCountInWindow(3) err = %v, want ErrWindowOutOfRange", err)
	}
	if _, err := h.InstanceCountInWindow(-1); !errors.Is(err, ErrWindowOutOfRange) {
		t.Errorf("InstanceCountInWindow(-1) err = %v, want ErrWindowOutOfRange", err)
	}
}

func TestBatchHandle_Upload_ContentRoundTrip(t *testing.T) {
	c, dev := newTestContainer(t)
	h := addTestBatch(t, c, 200, 64)
	desc := h.Description()

	fillTransforms(t, h, 130)
	if err := h.Upload(130); err != nil {
		t.Fatalf("Upload: %v", err)
	}

	// Spot-check instance 70 (window 1, local 6) and instance 129
	// (window 2, local 1) directly in GPU memory.
	transform, _ := desc.Property(PropertyObjectToWorld)
	for _, i := range []int{0, 63, 70, 129} {
		window := i / desc.MaxInstancePerWindow
		local := i % desc.MaxInstancePerWindow
		off := uint64(window)*uint64(desc.AlignedWindowSize) +
			uint64(transform.Offset) + uint64(local)*uint64(transform.Size)

		got, err := dev.ReadBuffer(1, off, 64)
		if err != nil {
			t.Fatalf("ReadBuffer(instance %d): %v", i, err)
		}
		want := vec4Bytes(matCols(mgl32.Translate3D(float32(i), 0, 0)))
		if !bytes.Equal(got, want) {
			t.Errorf("instance %d: GPU bytes do not match written transform", i)
		}
	}
}

func matCols(m mgl32.Mat4) []mgl32.Vec4 {
	return []mgl32.Vec4{m.Col(0), m.Col(1), m.Col(2), m.Col(3)}
}

// =============================================================================
// Upload Semantics Tests
// =============================================================================

func TestBatchHandle_Upload_NoArgReusesCount(t *testing.T) {
	c, dev := newTestContainer(t)
	h := addTestBatch(t, c, 200, 64)

	fillTransforms(t, h, 50)
	if err := h.Upload(50); err != nil {
		t.Fatalf("Upload(50): %v", err)
	}
	dev.takeWrites()

	// No-arg Upload re-pushes the persisted 50 instances.
	if err := h.Upload(); err != nil {
		t.Fatalf("Upload(): %v", err)
	}
	if got := h.InstanceCount(); got != 50 {
		t.Errorf("InstanceCount() = %d, want 50", got)
	}
	if writes := dev.takeWrites(); len(writes) == 0 {
		t.Error("no-arg Upload issued no writes")
	}
}

func TestBatchHandle_Upload_Idempotent(t *testing.T) {
	c, dev := newTestContainer(t)
	h := addTestBatch(t, c, 200, 64)
	total := uint64(h.Description().TotalBufferSize())

	fillTransforms(t, h, 130)
	if err := h.Upload(130); err != nil {
		t.Fatalf("Upload: %v", err)
	}
	first, err := dev.ReadBuffer(1, 0, total)
	if err != nil {
		t.Fatalf("ReadBuffer: %v", err)
	}

	// A second upload with the same count and unchanged contents leaves
	// the GPU buffer byte-identical.
	if err := h.Upload(130); err != nil {
		t.Fatalf("Upload: %v", err)
	}
	second, err := dev.ReadBuffer(1, 0, total)
	if err != nil {
		t.Fatalf("ReadBuffer: %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Error("repeated Upload changed buffer contents")
	}
}

func TestBatchHandle_Upload_ZeroIsNoOp(t *testing.T) {
	c, dev := newTestContainer(t)
	h := addTestBatch(t, c, 200, 64)
	dev.takeWrites()

	if err := h.Upload(0); err != nil {
		t.Errorf("Upload(0) = %v, want nil", err)
	}
	if err := h.Upload(-5); err != nil {
		t.Errorf("Upload(-5) = %v, want nil", err)
	}
	if writes := dev.takeWrites(); len(writes) != 0 {
		t.Errorf("zero upload issued %d writes, want 0", len(writes))
	}
	if got := h.InstanceCount(); got != 0 {
		t.Errorf("InstanceCount() = %d, want 0", got)
	}
}

func TestBatchHandle_Upload_ClampsToCapacity(t *testing.T) {
	c, _ := newTestContainer(t)
	h := addTestBatch(t, c, 200, 64)

	fillTransforms(t, h, 200)
	if err := h.Upload(500); err != nil {
		t.Fatalf("Upload(500): %v", err)
	}
	if got := h.InstanceCount(); got != 200 {
		t.Errorf("InstanceCount() = %d, want 200 (clamped)", got)
	}
}

// =============================================================================
// UploadDirty Tests
// =============================================================================

func TestBatchHandle_UploadDirty(t *testing.T) {
	c, dev := newTestContainer(t)
	h := addTestBatch(t, c, 200, 64)
	desc := h.Description()

	fillTransforms(t, h, 130)
	if err := h.Upload(130); err != nil {
		t.Fatalf("Upload: %v", err)
	}
	dev.takeWrites()

	// Touch one instance in window 1; only that window goes up.
	buf, err := h.AsInstanceDataBuffer()
	if err != nil {
		t.Fatalf("AsInstanceDataBuffer: %v", err)
	}
	if err := buf.SetVec4(PropertyBaseColor, 70, mgl32.Vec4{1, 2, 3, 4}); err != nil {
		t.Fatalf("SetVec4: %v", err)
	}
	if err := h.UploadDirty(); err != nil {
		t.Fatalf("UploadDirty: %v", err)
	}

	writes := dev.takeWrites()
	if len(writes) != 1 {
		t.Fatalf("got %d writes, want 1: %+v", len(writes), writes)
	}
	if writes[0].Offset != uint64(desc.AlignedWindowSize) || writes[0].Size != int(desc.AlignedWindowSize) {
		t.Errorf("dirty write = offset %d size %d, want offset %d size %d",
			writes[0].Offset, writes[0].Size, desc.AlignedWindowSize, desc.AlignedWindowSize)
	}

	// The persisted count is unchanged.
	if got := h.InstanceCount(); got != 130 {
		t.Errorf("InstanceCount() = %d, want 130", got)
	}

	// Nothing dirty, nothing written.
	if err := h.UploadDirty(); err != nil {
		t.Fatalf("UploadDirty: %v", err)
	}
	if writes := dev.takeWrites(); len(writes) != 0 {
		t.Errorf("clean UploadDirty issued %d writes, want 0", len(writes))
	}
}

func TestBatchHandle_UploadDirty_SkipsUnoccupiedWindows(t *testing.T) {
	c, dev := newTestContainer(t)
	h := addTestBatch(t, c, 200, 64)

	fillTransforms(t, h, 130)
	if err := h.Upload(130); err != nil {
		t.Fatalf("Upload: %v", err)
	}
	dev.takeWrites()

	// Instance 195 lives in window 3, past the 130 occupied instances.
	buf, err := h.AsInstanceDataBuffer()
	if err != nil {
		t.Fatalf("AsInstanceDataBuffer: %v", err)
	}
	if err := buf.SetVec4(PropertyBaseColor, 195, mgl32.Vec4{1, 1, 1, 1}); err != nil {
		t.Fatalf("SetVec4: %v", err)
	}
	if err := h.UploadDirty(); err != nil {
		t.Fatalf("UploadDirty: %v", err)
	}

	if writes := dev.takeWrites(); len(writes) != 0 {
		t.Errorf("unoccupied dirty window issued %d writes, want 0", len(writes))
	}
}

// =============================================================================
// Handle Lifetime Tests
// =============================================================================

func TestBatchHandle_DeadHandle(t *testing.T) {
	c, _ := newTestContainer(t)
	h := addTestBatch(t, c, 100, 32)

	if err := h.Destroy(); err != nil {
		t.Fatalf("Destroy: %v", err)
	}

	if h.IsAlive() {
		t.Error("IsAlive() = true after Destroy")
	}
	if err := h.Upload(10); !errors.Is(err, ErrBatchDestroyed) {
		t.Errorf("Upload on dead handle = %v, want ErrBatchDestroyed", err)
	}
	if err := h.UploadDirty(); !errors.Is(err, ErrBatchDestroyed) {
		t.Errorf("UploadDirty on dead handle = %v, want ErrBatchDestroyed", err)
	}
	if _, err := h.AsInstanceDataBuffer(); !errors.Is(err, ErrBatchDestroyed) {
		t.Errorf("AsInstanceDataBuffer on dead handle = %v, want ErrBatchDestroyed", err)
	}
	if got := h.InstanceCount(); got != 0 {
		t.Errorf("InstanceCount() on dead handle = %d, want 0", got)
	}
	if got := h.DrawCommandCount(); got != 0 {
		t.Errorf("DrawCommandCount() on dead handle = %d, want 0", got)
	}

	// Second Destroy is a no-op.
	if err := h.Destroy(); err != nil {
		t.Errorf("second Destroy = %v, want nil", err)
	}
}

func TestBatchHandle_ZeroValue(t *testing.T) {
	var h BatchHandle

	if h.IsAlive() {
		t.Error("zero handle IsAlive() = true")
	}
	if got := h.InstanceCount(); got != 0 {
		t.Errorf("zero handle InstanceCount() = %d, want 0", got)
	}
	if err := h.Upload(1); !errors.Is(err, ErrBatchDestroyed) {
		t.Errorf("zero handle Upload = %v, want ErrBatchDestroyed", err)
	}
	if err := h.Destroy(); err != nil {
		t.Errorf("zero handle Destroy = %v, want nil", err)
	}
}
