package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestParseColor_Hex(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"#ff0000", "#ff0000"},
		{"00ff00", "#00ff00"},
		{"#abc", "#aabbcc"},
		{"#11223380", "#11223380"},
		{"  #FFFFFF ", "#ffffff"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			c, err := ParseColor(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, c.Hex())
		})
	}
}

func TestParseColor_Named(t *testing.T) {
	c, err := ParseColor("HotPink")
	require.NoError(t, err)
	assert.Equal(t, "#ff69b4", c.Hex())
}

func TestParseColor_Invalid(t *testing.T) {
	for _, in := range []string{"", "#12", "#ggg", "notacolor", "#1234567"} {
		_, err := ParseColor(in)
		require.Error(t, err, in)
		assert.True(t, IsCode(err, ErrInvalidColor), in)
	}
}

func TestColor_LinearRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		c := Color{
			R: rapid.Float64Range(0, 1).Draw(t, "r"),
			G: rapid.Float64Range(0, 1).Draw(t, "g"),
			B: rapid.Float64Range(0, 1).Draw(t, "b"),
			A: 1,
		}
		back := ColorFromLinear(c.Linear())
		assert.InDelta(t, c.R, back.R, 1e-9)
		assert.InDelta(t, c.G, back.G, 1e-9)
		assert.InDelta(t, c.B, back.B, 1e-9)
	})
}

func TestColor_LinearKnownValues(t *testing.T) {
	l := MustParseColor("#808080").Linear()
	assert.InDelta(t, 0.2158605, l[0], 1e-6)
	assert.Equal(t, 1.0, l[3])
	assert.Equal(t, [4]float64{1, 1, 1, 1}, White.Linear())
}

func TestColor_NRGBA(t *testing.T) {
	c := MustParseColor("#11223380")
	n := c.NRGBA()
	assert.Equal(t, [4]uint8{0x11, 0x22, 0x33, 0x80}, [4]uint8{n.R, n.G, n.B, n.A})
}
