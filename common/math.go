package common

import (
	"math"
	"unsafe"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/go-gl/mathgl/mgl64"
)

// AABB is an axis-aligned bounding box. The zero value is not empty; use EmptyAABB.
type AABB struct {
	Min mgl64.Vec3
	Max mgl64.Vec3
}

// EmptyAABB returns a box that contains nothing and grows on the first Extend.
func EmptyAABB() AABB {
	inf := math.Inf(1)
	return AABB{
		Min: mgl64.Vec3{inf, inf, inf},
		Max: mgl64.Vec3{-inf, -inf, -inf},
	}
}

// IsEmpty reports whether no point has been added to the box.
func (b AABB) IsEmpty() bool {
	return b.Min[0] > b.Max[0] || b.Min[1] > b.Max[1] || b.Min[2] > b.Max[2]
}

// Extend grows the box to contain p.
func (b *AABB) Extend(p mgl64.Vec3) {
	for i := range 3 {
		b.Min[i] = math.Min(b.Min[i], p[i])
		b.Max[i] = math.Max(b.Max[i], p[i])
	}
}

// Union grows the box to contain o.
func (b *AABB) Union(o AABB) {
	if o.IsEmpty() {
		return
	}
	b.Extend(o.Min)
	b.Extend(o.Max)
}

// Center returns the midpoint of the box.
func (b AABB) Center() mgl64.Vec3 {
	return b.Min.Add(b.Max).Mul(0.5)
}

// Size returns the extent of the box along each axis.
func (b AABB) Size() mgl64.Vec3 {
	if b.IsEmpty() {
		return mgl64.Vec3{}
	}
	return b.Max.Sub(b.Min)
}

// MaxDim returns the largest extent of the box.
func (b AABB) MaxDim() float64 {
	s := b.Size()
	return math.Max(s[0], math.Max(s[1], s[2]))
}

// IsFinite reports whether every bound is a finite number.
func (b AABB) IsFinite() bool {
	for i := range 3 {
		if math.IsNaN(b.Min[i]) || math.IsInf(b.Min[i], 0) || math.IsNaN(b.Max[i]) || math.IsInf(b.Max[i], 0) {
			return false
		}
	}
	return true
}

// Mat4ToFloat32 narrows a double precision matrix for GPU upload, keeping column-major order.
func Mat4ToFloat32(m mgl64.Mat4) mgl32.Mat4 {
	var out mgl32.Mat4
	for i := range m {
		out[i] = float32(m[i])
	}
	return out
}

// Mat4ToFloat64 widens a float32 matrix, keeping column-major order.
func Mat4ToFloat64(m mgl32.Mat4) mgl64.Mat4 {
	var out mgl64.Mat4
	for i := range m {
		out[i] = float64(m[i])
	}
	return out
}

// SliceToBytes converts any slice to a byte slice for GPU buffer uploads.
// Uses unsafe pointer operations to create a view into the original data.
// WARNING: The returned slice shares memory with the input - do not modify.
//
// Parameters:
//   - data: source slice of any type
//
// Returns:
//   - []byte: byte slice view of the input data, or nil if input is empty
func SliceToBytes[T any](data []T) []byte {
	if len(data) == 0 {
		return nil
	}
	var zero T
	size := unsafe.Sizeof(zero)
	totalBytes := int(size) * len(data)
	return unsafe.Slice((*byte)(unsafe.Pointer(&data[0])), totalBytes)
}

// StructToBytes reinterprets a pointer to a struct as a raw byte slice using unsafe.
//
// Parameters:
//   - v: pointer to the struct to reinterpret
//
// Returns:
//   - []byte: byte slice view of the struct's memory
func StructToBytes[T any](v *T) []byte {
	size := unsafe.Sizeof(*v)
	return unsafe.Slice((*byte)(unsafe.Pointer(v)), int(size))
}
