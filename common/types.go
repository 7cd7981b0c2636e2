// Package common contains plain types shared by the figurine engine: structured errors, colors, bounding boxes,
// and byte views for GPU uploads. They are not interface-wrapped structs.
package common

// ContentTypeGLB is the media type of every exported artifact.
const ContentTypeGLB = "model/gltf-binary"

// Progress is an advisory byte count reported while an asset streams in.
// Total is -1 when the size is unknown.
type Progress struct {
	Received int64
	Total    int64
}

// Fraction returns Received/Total in [0, 1], or -1 when the total is unknown.
func (p Progress) Fraction() float64 {
	if p.Total <= 0 {
		return -1
	}
	return Clamp(float64(p.Received)/float64(p.Total), 0, 1)
}
