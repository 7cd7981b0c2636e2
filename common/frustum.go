package common

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/go-gl/mathgl/mgl64"
)

// Plane is ax + by + cz + d = 0 with (a, b, c) the unit normal pointing into the frustum.
type Plane struct {
	Normal   mgl64.Vec3
	Distance float64
}

// Frustum holds the six planes of a view volume in world space: left, right, bottom, top, near, far.
type Frustum struct {
	Planes [6]Plane
}

const (
	FrustumLeft = iota
	FrustumRight
	FrustumBottom
	FrustumTop
	FrustumNear
	FrustumFar
)

// NewFrustum extracts the planes of a projection * view matrix (Gribb/Hartmann).
//
// Parameters:
//   - viewProj: the combined view-projection matrix, column-major
//
// Returns:
//   - Frustum: the frustum with normalized planes
func NewFrustum(viewProj mgl32.Mat4) Frustum {
	row := func(i int) [4]float64 {
		r := viewProj.Row(i)
		return [4]float64{float64(r[0]), float64(r[1]), float64(r[2]), float64(r[3])}
	}
	r0, r1, r2, r3 := row(0), row(1), row(2), row(3)

	combos := [6]struct {
		r    [4]float64
		sign float64
	}{
		FrustumLeft:   {r0, 1},
		FrustumRight:  {r0, -1},
		FrustumBottom: {r1, 1},
		FrustumTop:    {r1, -1},
		FrustumNear:   {r2, 1},
		FrustumFar:    {r2, -1},
	}

	var f Frustum
	for i, c := range combos {
		p := Plane{
			Normal:   mgl64.Vec3{r3[0] + c.sign*c.r[0], r3[1] + c.sign*c.r[1], r3[2] + c.sign*c.r[2]},
			Distance: r3[3] + c.sign*c.r[3],
		}
		if l := p.Normal.Len(); l > 0 {
			p.Normal = p.Normal.Mul(1 / l)
			p.Distance /= l
		}
		f.Planes[i] = p
	}
	return f
}

// Intersects reports whether any part of b may be inside the frustum. Boxes straddling a corner
// can report true while lying fully outside; they are never reported false while visible.
func (f Frustum) Intersects(b AABB) bool {
	if b.IsEmpty() {
		return false
	}
	for _, p := range f.Planes {
		// the box corner furthest along the plane normal
		var corner mgl64.Vec3
		for i := range 3 {
			corner[i] = b.Min[i]
			if p.Normal[i] >= 0 {
				corner[i] = b.Max[i]
			}
		}
		if p.SignedDistance(corner) < 0 {
			return false
		}
	}
	return true
}

// Transform returns the axis-aligned box enclosing b after applying m.
func (b AABB) Transform(m mgl64.Mat4) AABB {
	out := EmptyAABB()
	if b.IsEmpty() {
		return out
	}
	for i := range 8 {
		c := mgl64.Vec3{b.Min[0], b.Min[1], b.Min[2]}
		if i&1 != 0 {
			c[0] = b.Max[0]
		}
		if i&2 != 0 {
			c[1] = b.Max[1]
		}
		if i&4 != 0 {
			c[2] = b.Max[2]
		}
		out.Extend(mgl64.TransformCoordinate(c, m))
	}
	return out
}

// SignedDistance returns the distance from v to the plane, positive inside. NaN counts as outside.
func (p Plane) SignedDistance(v mgl64.Vec3) float64 {
	d := p.Normal.Dot(v) + p.Distance
	if math.IsNaN(d) {
		return math.Inf(-1)
	}
	return d
}
