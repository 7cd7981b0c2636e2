package thumbnail

import (
	"image"
	"image/color"
	"math"

	"github.com/Carmen-Shannon/oxy-figure/common"
	"github.com/Carmen-Shannon/oxy-figure/engine/scene"

	"github.com/go-gl/mathgl/mgl64"
)

// lightRig is a fixed key + rim setup for flat-shaded card renders.
type lightRig struct {
	key     mgl64.Vec3
	rim     mgl64.Vec3
	ambient float64
	direct  float64
	rimGain float64
}

func defaultLightRig() lightRig {
	return lightRig{
		key:     mgl64.Vec3{0.45, 0.65, 0.6}.Normalize(),
		rim:     mgl64.Vec3{-0.5, 0.4, -0.75}.Normalize(),
		ambient: 0.35,
		direct:  0.6,
		rimGain: 0.2,
	}
}

// shade returns the light factor of a face. Faces are lit on both sides.
func (l lightRig) shade(normal mgl64.Vec3) float64 {
	return l.ambient + math.Abs(normal.Dot(l.key))*l.direct + math.Abs(normal.Dot(l.rim))*l.rimGain
}

// frameBuffer is a square color target with a depth buffer. Depth is NDC z, smaller is nearer.
type frameBuffer struct {
	size  int
	color *image.NRGBA
	depth []float64
}

func newFrameBuffer(size int) *frameBuffer {
	depth := make([]float64, size*size)
	for i := range depth {
		depth[i] = math.Inf(1)
	}
	return &frameBuffer{
		size:  size,
		color: image.NewNRGBA(image.Rect(0, 0, size, size)),
		depth: depth,
	}
}

// drawItem rasterizes one draw item and returns how many triangles reached the screen.
func (fb *frameBuffer) drawItem(viewProj mgl64.Mat4, it scene.DrawItem, light lightRig) int {
	geo := it.Geometry
	if geo == nil || !geo.Triangles {
		return 0
	}
	mvp := viewProj.Mul4(it.World)

	world := make([]mgl64.Vec3, len(geo.Positions))
	screen := make([]mgl64.Vec3, len(geo.Positions))
	valid := make([]bool, len(geo.Positions))
	half := float64(fb.size) / 2
	for i, p := range geo.Positions {
		local := mgl64.Vec4{float64(p[0]), float64(p[1]), float64(p[2]), 1}
		world[i] = it.World.Mul4x1(local).Vec3()
		clip := mvp.Mul4x1(local)
		// vertices behind the eye are dropped with their triangles; cards always frame the whole figurine
		if clip[3] <= 1e-6 {
			continue
		}
		ndc := clip.Vec3().Mul(1 / clip[3])
		screen[i] = mgl64.Vec3{(ndc[0] + 1) * half, (1 - ndc[1]) * half, ndc[2]}
		valid[i] = true
	}

	drawn := 0
	for t := 0; t+2 < len(geo.Indices); t += 3 {
		a, b, c := int(geo.Indices[t]), int(geo.Indices[t+1]), int(geo.Indices[t+2])
		if a >= len(screen) || b >= len(screen) || c >= len(screen) {
			continue
		}
		if !valid[a] || !valid[b] || !valid[c] {
			continue
		}
		normal := world[b].Sub(world[a]).Cross(world[c].Sub(world[a]))
		if normal.Len() < 1e-12 {
			continue
		}
		s := light.shade(normal.Normalize())
		lit := [4]float64{it.BaseColor[0] * s, it.BaseColor[1] * s, it.BaseColor[2] * s, 1}
		col := common.ColorFromLinear(lit).NRGBA()
		if fb.triangle(screen[a], screen[b], screen[c], col) {
			drawn++
		}
	}
	return drawn
}

// triangle fills a screen-space triangle with depth testing, sampling at pixel centers.
// It reports whether any pixel was written.
func (fb *frameBuffer) triangle(p0, p1, p2 mgl64.Vec3, col color.NRGBA) bool {
	minX := max(0, int(math.Floor(min(p0[0], p1[0], p2[0]))))
	maxX := min(fb.size-1, int(math.Ceil(max(p0[0], p1[0], p2[0]))))
	minY := max(0, int(math.Floor(min(p0[1], p1[1], p2[1]))))
	maxY := min(fb.size-1, int(math.Ceil(max(p0[1], p1[1], p2[1]))))
	if minX > maxX || minY > maxY {
		return false
	}

	det := (p1[1]-p2[1])*(p0[0]-p2[0]) + (p2[0]-p1[0])*(p0[1]-p2[1])
	if math.Abs(det) < 1e-12 {
		return false
	}
	inv := 1 / det

	wrote := false
	for y := minY; y <= maxY; y++ {
		py := float64(y) + 0.5
		for x := minX; x <= maxX; x++ {
			px := float64(x) + 0.5
			w0 := ((p1[1]-p2[1])*(px-p2[0]) + (p2[0]-p1[0])*(py-p2[1])) * inv
			w1 := ((p2[1]-p0[1])*(px-p2[0]) + (p0[0]-p2[0])*(py-p2[1])) * inv
			w2 := 1 - w0 - w1
			if w0 < 0 || w1 < 0 || w2 < 0 {
				continue
			}
			z := w0*p0[2] + w1*p1[2] + w2*p2[2]
			if z < -1 || z > 1 {
				continue
			}
			i := y*fb.size + x
			if z >= fb.depth[i] {
				continue
			}
			fb.depth[i] = z
			fb.color.SetNRGBA(x, y, col)
			wrote = true
		}
	}
	return wrote
}
