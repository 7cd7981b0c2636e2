package common

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
)

func TestAABB_ExtendAndMeasure(t *testing.T) {
	b := EmptyAABB()
	assert.True(t, b.IsEmpty())
	assert.Equal(t, 0.0, b.MaxDim())

	b.Extend(mgl64.Vec3{-1, 0, 2})
	b.Extend(mgl64.Vec3{3, 4, 2})

	assert.False(t, b.IsEmpty())
	assert.Equal(t, mgl64.Vec3{1, 2, 2}, b.Center())
	assert.Equal(t, mgl64.Vec3{4, 4, 0}, b.Size())
	assert.Equal(t, 4.0, b.MaxDim())
	assert.True(t, b.IsFinite())
}

func TestAABB_Union(t *testing.T) {
	a := EmptyAABB()
	a.Extend(mgl64.Vec3{0, 0, 0})
	o := EmptyAABB()
	o.Extend(mgl64.Vec3{5, -5, 1})
	a.Union(o)
	a.Union(EmptyAABB())
	assert.Equal(t, mgl64.Vec3{0, -5, 0}, a.Min)
	assert.Equal(t, mgl64.Vec3{5, 0, 1}, a.Max)
}

func TestAABB_NotFinite(t *testing.T) {
	b := EmptyAABB()
	b.Extend(mgl64.Vec3{math.NaN(), 0, 0})
	assert.False(t, b.IsFinite())
}

func TestSliceToBytes(t *testing.T) {
	assert.Nil(t, SliceToBytes([]float32{}))
	assert.Len(t, SliceToBytes([]float32{1, 2, 3}), 12)
}

func TestMat4Conversions(t *testing.T) {
	m := mgl64.Translate3D(1.5, -2, 3).Mul4(mgl64.Scale3D(2, 2, 2))
	assert.Equal(t, m, Mat4ToFloat64(Mat4ToFloat32(m)))
}
