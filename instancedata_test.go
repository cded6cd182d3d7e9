package instbatch

import (
	"errors"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

func testInstanceBuffer(t *testing.T) *InstanceDataBuffer {
	t.Helper()
	c, _ := newTestContainer(t)
	h := addTestBatch(t, c, 200, 64)
	buf, err := h.AsInstanceDataBuffer()
	if err != nil {
		t.Fatalf("AsInstanceDataBuffer: %v", err)
	}
	return buf
}

// =============================================================================
// Vec4 Tests
// =============================================================================

func TestInstanceDataBuffer_Vec4RoundTrip(t *testing.T) {
	buf := testInstanceBuffer(t)

	// Instances spanning all three occupied windows plus the last slot.
	for _, i := range []int{0, 63, 64, 129, 199} {
		want := mgl32.Vec4{float32(i), float32(i) * 2, -1, 1}
		if err := buf.SetVec4(PropertyBaseColor, i, want); err != nil {
			t.Fatalf("SetVec4(%d): %v", i, err)
		}
		got, err := buf.Vec4(PropertyBaseColor, i)
		if err != nil {
			t.Fatalf("Vec4(%d): %v", i, err)
		}
		if got != want {
			t.Errorf("Vec4(%d) = %v, want %v", i, got, want)
		}
	}
}

func TestInstanceDataBuffer_Vec4NoAliasing(t *testing.T) {
	buf := testInstanceBuffer(t)

	// Neighboring instances and neighboring properties must not clobber
	// each other.
	if err := buf.SetVec4(PropertyBaseColor, 10, mgl32.Vec4{1, 1, 1, 1}); err != nil {
		t.Fatalf("SetVec4: %v", err)
	}
	if err := buf.SetVec4(PropertyBaseColor, 11, mgl32.Vec4{2, 2, 2, 2}); err != nil {
		t.Fatalf("SetVec4: %v", err)
	}
	if err := buf.SetMat4(PropertyObjectToWorld, 10, mgl32.Translate3D(5, 5, 5)); err != nil {
		t.Fatalf("SetMat4: %v", err)
	}

	got, err := buf.Vec4(PropertyBaseColor, 10)
	if err != nil {
		t.Fatalf("Vec4: %v", err)
	}
	if got != (mgl32.Vec4{1, 1, 1, 1}) {
		t.Errorf("Vec4(10) = %v, want {1 1 1 1}", got)
	}
	got, err = buf.Vec4(PropertyBaseColor, 11)
	if err != nil {
		t.Fatalf("Vec4: %v", err)
	}
	if got != (mgl32.Vec4{2, 2, 2, 2}) {
		t.Errorf("Vec4(11) = %v, want {2 2 2 2}", got)
	}
}

// =============================================================================
// Mat4 Tests
// =============================================================================

func TestInstanceDataBuffer_Mat4RoundTrip(t *testing.T) {
	buf := testInstanceBuffer(t)

	for _, i := range []int{0, 63, 64, 128, 199} {
		want := mgl32.Translate3D(float32(i), float32(-i), 3).Mul4(
			mgl32.HomogRotate3DY(float32(i) * 0.1))
		if err := buf.SetMat4(PropertyObjectToWorld, i, want); err != nil {
			t.Fatalf("SetMat4(%d): %v", i, err)
		}
		got, err := buf.Mat4(PropertyObjectToWorld, i)
		if err != nil {
			t.Fatalf("Mat4(%d): %v", i, err)
		}
		if got != want {
			t.Errorf("Mat4(%d) round trip mismatch", i)
		}
	}
}

func TestInstanceDataBuffer_Mat4OnSmallProperty(t *testing.T) {
	buf := testInstanceBuffer(t)

	// The 16-byte color property cannot hold a 64-byte matrix.
	err := buf.SetMat4(PropertyBaseColor, 0, mgl32.Ident4())
	if !errors.Is(err, ErrInstanceOutOfRange) {
		t.Errorf("SetMat4 on vec property = %v, want ErrInstanceOutOfRange", err)
	}
}

// =============================================================================
// Error Tests
// =============================================================================

func TestInstanceDataBuffer_UnknownProperty(t *testing.T) {
	buf := testInstanceBuffer(t)

	err := buf.SetVec4(PropertyID("_DoesNotExist"), 0, mgl32.Vec4{})
	if !errors.Is(err, ErrUnknownProperty) {
		t.Errorf("SetVec4 unknown property = %v, want ErrUnknownProperty", err)
	}
	_, err = buf.Mat4(PropertyID("_DoesNotExist"), 0)
	if !errors.Is(err, ErrUnknownProperty) {
		t.Errorf("Mat4 unknown property = %v, want ErrUnknownProperty", err)
	}
}

func TestInstanceDataBuffer_InstanceOutOfRange(t *testing.T) {
	buf := testInstanceBuffer(t)

	for _, i := range []int{-1, 200, 10000} {
		if err := buf.SetVec4(PropertyBaseColor, i, mgl32.Vec4{}); !errors.Is(err, ErrInstanceOutOfRange) {
			t.Errorf("SetVec4(%d) = %v, want ErrInstanceOutOfRange", i, err)
		}
		if _, err := buf.Vec4(PropertyBaseColor, i); !errors.Is(err, ErrInstanceOutOfRange) {
			t.Errorf("Vec4(%d) = %v, want ErrInstanceOutOfRange", i, err)
		}
	}
}
