package common

import (
	"fmt"
	"image/color"
	"math"
	"strconv"
	"strings"

	"golang.org/x/image/colornames"
)

// Color is a non-premultiplied sRGB color with components in [0, 1].
type Color struct {
	R, G, B, A float64
}

// White is the glTF default base color.
var White = Color{R: 1, G: 1, B: 1, A: 1}

// ParseColor parses a hex color (#RGB, #RRGGBB, #RRGGBBAA, with or without the leading #)
// or a CSS color name such as "hotpink".
//
// Parameters:
//   - s: the color string
//
// Returns:
//   - Color: the parsed sRGB color
//   - error: an INVALID_COLOR *Error if s is not a recognized color
func ParseColor(s string) (Color, error) {
	raw := strings.TrimSpace(s)
	if raw == "" {
		return Color{}, NewError(ErrInvalidColor, "empty color")
	}

	if named, ok := colornames.Map[strings.ToLower(raw)]; ok {
		return Color{
			R: float64(named.R) / 255,
			G: float64(named.G) / 255,
			B: float64(named.B) / 255,
			A: float64(named.A) / 255,
		}, nil
	}

	hex := strings.TrimPrefix(raw, "#")
	switch len(hex) {
	case 3:
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]}) + "ff"
	case 6:
		hex += "ff"
	case 8:
	default:
		return Color{}, Errorf(ErrInvalidColor, "unrecognized color %q", s)
	}

	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return Color{}, Errorf(ErrInvalidColor, "unrecognized color %q", s).WithCause(err)
	}
	return Color{
		R: float64(v>>24&0xff) / 255,
		G: float64(v>>16&0xff) / 255,
		B: float64(v>>8&0xff) / 255,
		A: float64(v&0xff) / 255,
	}, nil
}

// MustParseColor is like ParseColor but panics on error. Intended for constants in tests and demos.
func MustParseColor(s string) Color {
	c, err := ParseColor(s)
	if err != nil {
		panic(err)
	}
	return c
}

// Hex formats the color as #rrggbb, appending alpha only when it is not opaque.
func (c Color) Hex() string {
	r, g, b, a := to8(c.R), to8(c.G), to8(c.B), to8(c.A)
	if a == 0xff {
		return fmt.Sprintf("#%02x%02x%02x", r, g, b)
	}
	return fmt.Sprintf("#%02x%02x%02x%02x", r, g, b, a)
}

// String implements fmt.Stringer.
func (c Color) String() string {
	return c.Hex()
}

// NRGBA converts the color to 8-bit non-premultiplied RGBA.
func (c Color) NRGBA() color.NRGBA {
	return color.NRGBA{R: to8(c.R), G: to8(c.G), B: to8(c.B), A: to8(c.A)}
}

// Linear converts the color to linear space as stored in glTF baseColorFactor. Alpha is unchanged.
func (c Color) Linear() [4]float64 {
	return [4]float64{srgbToLinear(c.R), srgbToLinear(c.G), srgbToLinear(c.B), c.A}
}

// ColorFromLinear converts a glTF baseColorFactor back to an sRGB Color.
func ColorFromLinear(f [4]float64) Color {
	return Color{R: linearToSRGB(f[0]), G: linearToSRGB(f[1]), B: linearToSRGB(f[2]), A: f[3]}
}

func srgbToLinear(c float64) float64 {
	if c <= 0.04045 {
		return c / 12.92
	}
	return math.Pow((c+0.055)/1.055, 2.4)
}

func linearToSRGB(c float64) float64 {
	if c <= 0.0031308 {
		return c * 12.92
	}
	return 1.055*math.Pow(c, 1/2.4) - 0.055
}

func to8(v float64) uint8 {
	return uint8(math.Round(Clamp(v, 0, 1) * 255))
}
