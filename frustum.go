package instbatch

import "github.com/go-gl/mathgl/mgl32"

// Plane is one culling plane in the form n·p + d = 0, with the normal
// pointing into the visible half-space.
type Plane struct {
	Normal mgl32.Vec3
	D      float32
}

// DistanceTo returns the signed distance from a point to the plane.
// Positive means on the visible side.
func (p Plane) DistanceTo(pt mgl32.Vec3) float32 {
	return p.Normal.Dot(pt) + p.D
}

// AABB is an axis-aligned bounding box.
type AABB struct {
	Min, Max mgl32.Vec3
}

// Center returns the box center.
func (b AABB) Center() mgl32.Vec3 {
	return b.Min.Add(b.Max).Mul(0.5)
}

// Extents returns the box half-extents.
func (b AABB) Extents() mgl32.Vec3 {
	return b.Max.Sub(b.Min).Mul(0.5)
}

// PlanesFromViewProjection extracts the six frustum planes from a
// view-projection matrix using the Gribb/Hartmann method, normalized so
// DistanceTo returns true world-space distances.
//
// The convention matches mgl32 (column vectors, v' = M*v): plane i is
// built from row 3 of the matrix plus or minus row i.
func PlanesFromViewProjection(vp mgl32.Mat4) [6]Plane {
	r0 := vp.Row(0)
	r1 := vp.Row(1)
	r2 := vp.Row(2)
	r3 := vp.Row(3)

	var planes [6]Plane
	planes[0] = normalizePlane(r3.Add(r0)) // left
	planes[1] = normalizePlane(r3.Sub(r0)) // right
	planes[2] = normalizePlane(r3.Add(r1)) // bottom
	planes[3] = normalizePlane(r3.Sub(r1)) // top
	planes[4] = normalizePlane(r3.Add(r2)) // near
	planes[5] = normalizePlane(r3.Sub(r2)) // far
	return planes
}

func normalizePlane(v mgl32.Vec4) Plane {
	n := v.Vec3()
	l := n.Len()
	if l == 0 {
		return Plane{}
	}
	return Plane{Normal: n.Mul(1 / l), D: v.W() / l}
}

// transformAABB returns the world-space AABB of a local box under an
// affine transform, using the center/extents form: the world center is
// the transformed local center and the world extents are the local
// extents scaled by the absolute upper-left 3x3 of the matrix.
func transformAABB(local AABB, m mgl32.Mat4) AABB {
	c := local.Center()
	e := local.Extents()

	wc := m.Mul4x1(c.Vec4(1)).Vec3()
	var we mgl32.Vec3
	for row := 0; row < 3; row++ {
		we[row] = mgl32.Abs(m.At(row, 0))*e.X() +
			mgl32.Abs(m.At(row, 1))*e.Y() +
			mgl32.Abs(m.At(row, 2))*e.Z()
	}
	return AABB{Min: wc.Sub(we), Max: wc.Add(we)}
}

// aabbVisible reports whether a world-space AABB is at least partially
// inside the frustum: the box is invisible only if it lies entirely
// outside some plane. Uses the n-vertex form with the box in
// center/extents representation: the box is outside a plane when
// n·c + d < -(e·|n|).
func aabbVisible(box AABB, planes []Plane) bool {
	c := box.Center()
	e := box.Extents()
	for _, p := range planes {
		r := e.X()*mgl32.Abs(p.Normal.X()) +
			e.Y()*mgl32.Abs(p.Normal.Y()) +
			e.Z()*mgl32.Abs(p.Normal.Z())
		if p.DistanceTo(c) < -r {
			return false
		}
	}
	return true
}
