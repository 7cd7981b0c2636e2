package renderer

import (
	_ "embed"
	"encoding/binary"
	"math"
	"unsafe"

	"github.com/go-gl/mathgl/mgl32"
)

// flatShaderSource draws one uniform-colored primitive with face normals derived from screen-space derivatives.
//
//go:embed assets/flat.wgsl
var flatShaderSource string

// drawUniform is the GPU-aligned per-draw uniform block. Matches the WGSL DrawUniform struct.
// Size: 144 bytes.
type drawUniform struct {
	MVP   mgl32.Mat4 // offset   0: projection * view * model (mat4x4<f32>)
	Model mgl32.Mat4 // offset  64: model to world (mat4x4<f32>)
	Color [4]float32 // offset 128: linear RGBA (vec4<f32>)
}

// Size returns the size of the drawUniform struct in bytes.
func (u *drawUniform) Size() int {
	return int(unsafe.Sizeof(*u))
}

// Marshal serializes the uniform for GPU upload.
//
// Returns:
//   - []byte: the serialized byte buffer
func (u *drawUniform) Marshal() []byte {
	buf := make([]byte, u.Size())
	for i := range 16 {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(u.MVP[i]))
		binary.LittleEndian.PutUint32(buf[64+i*4:], math.Float32bits(u.Model[i]))
	}
	for i := range 4 {
		binary.LittleEndian.PutUint32(buf[128+i*4:], math.Float32bits(u.Color[i]))
	}
	return buf
}
