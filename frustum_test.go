package instbatch

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

// testPlanes builds a frustum looking down -Z from the origin with a
// 90 degree field of view, near 0.1 and far 100.
func testPlanes(t *testing.T) []Plane {
	t.Helper()
	proj := mgl32.Perspective(mgl32.DegToRad(90), 1, 0.1, 100)
	view := mgl32.LookAtV(mgl32.Vec3{0, 0, 0}, mgl32.Vec3{0, 0, -1}, mgl32.Vec3{0, 1, 0})
	planes := PlanesFromViewProjection(proj.Mul4(view))
	return planes[:]
}

// =============================================================================
// Plane Extraction Tests
// =============================================================================

func TestPlanesFromViewProjection_PointClassification(t *testing.T) {
	planes := testPlanes(t)

	inside := []mgl32.Vec3{
		{0, 0, -1},
		{0, 0, -50},
		{5, 5, -10},
	}
	for _, pt := range inside {
		for i, p := range planes {
			if p.DistanceTo(pt) < 0 {
				t.Errorf("point %v should be inside, but plane %d distance = %f", pt, i, p.DistanceTo(pt))
			}
		}
	}

	outside := []mgl32.Vec3{
		{0, 0, 1},    // behind the camera
		{0, 0, -200}, // past the far plane
		{500, 0, -1}, // far off to the side
	}
	for _, pt := range outside {
		visible := true
		for _, p := range planes {
			if p.DistanceTo(pt) < 0 {
				visible = false
			}
		}
		if visible {
			t.Errorf("point %v should be outside the frustum", pt)
		}
	}
}

func TestPlanesFromViewProjection_Normalized(t *testing.T) {
	planes := testPlanes(t)
	for i, p := range planes {
		l := p.Normal.Len()
		if math.Abs(float64(l)-1) > 1e-4 {
			t.Errorf("plane %d normal length = %f, want 1", i, l)
		}
	}
}

// =============================================================================
// AABB Tests
// =============================================================================

func TestAABB_CenterExtents(t *testing.T) {
	b := AABB{Min: mgl32.Vec3{-1, -2, -3}, Max: mgl32.Vec3{3, 2, 1}}

	if c := b.Center(); c != (mgl32.Vec3{1, 0, -1}) {
		t.Errorf("Center() = %v, want {1 0 -1}", c)
	}
	if e := b.Extents(); e != (mgl32.Vec3{2, 2, 2}) {
		t.Errorf("Extents() = %v, want {2 2 2}", e)
	}
}

func TestTransformAABB_Translation(t *testing.T) {
	local := AABB{Min: mgl32.Vec3{-1, -1, -1}, Max: mgl32.Vec3{1, 1, 1}}
	m := mgl32.Translate3D(10, 20, 30)

	world := transformAABB(local, m)

	if world.Min != (mgl32.Vec3{9, 19, 29}) {
		t.Errorf("Min = %v, want {9 19 29}", world.Min)
	}
	if world.Max != (mgl32.Vec3{11, 21, 31}) {
		t.Errorf("Max = %v, want {11 21 31}", world.Max)
	}
}

func TestTransformAABB_Rotation(t *testing.T) {
	// A unit cube rotated 45 degrees about Y grows to sqrt(2) in X and Z.
	local := AABB{Min: mgl32.Vec3{-1, -1, -1}, Max: mgl32.Vec3{1, 1, 1}}
	m := mgl32.HomogRotate3DY(mgl32.DegToRad(45))

	world := transformAABB(local, m)

	want := float32(math.Sqrt2)
	if math.Abs(float64(world.Max.X()-want)) > 1e-5 {
		t.Errorf("Max.X = %f, want %f", world.Max.X(), want)
	}
	if math.Abs(float64(world.Max.Y()-1)) > 1e-5 {
		t.Errorf("Max.Y = %f, want 1", world.Max.Y())
	}
	if math.Abs(float64(world.Min.Z()+want)) > 1e-5 {
		t.Errorf("Min.Z = %f, want %f", world.Min.Z(), -want)
	}
}

// =============================================================================
// Visibility Tests
// =============================================================================

func TestAABBVisible(t *testing.T) {
	planes := testPlanes(t)

	tests := []struct {
		name string
		box  AABB
		want bool
	}{
		{"inside", AABB{Min: mgl32.Vec3{-1, -1, -11}, Max: mgl32.Vec3{1, 1, -9}}, true},
		{"behind camera", AABB{Min: mgl32.Vec3{-1, -1, 9}, Max: mgl32.Vec3{1, 1, 11}}, false},
		{"past far plane", AABB{Min: mgl32.Vec3{-1, -1, -301}, Max: mgl32.Vec3{1, 1, -299}}, false},
		{"straddles near plane", AABB{Min: mgl32.Vec3{-1, -1, -1}, Max: mgl32.Vec3{1, 1, 1}}, true},
		{"off to the side", AABB{Min: mgl32.Vec3{99, -1, -11}, Max: mgl32.Vec3{101, 1, -9}}, false},
		{"straddles side plane", AABB{Min: mgl32.Vec3{9, -1, -11}, Max: mgl32.Vec3{12, 1, -9}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := aabbVisible(tt.box, planes); got != tt.want {
				t.Errorf("aabbVisible(%v) = %v, want %v", tt.box, got, tt.want)
			}
		})
	}
}
