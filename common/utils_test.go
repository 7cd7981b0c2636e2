package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCoalesce(t *testing.T) {
	assert.Equal(t, "json", Coalesce("", "json", "console"))
	assert.Equal(t, 3, Coalesce(0, 0, 3))
	assert.Zero(t, Coalesce[float64]())
}

func TestClamp(t *testing.T) {
	assert.Equal(t, 0.0, Clamp(-0.5, 0, 1))
	assert.Equal(t, 1.0, Clamp(1.5, 0, 1))
	assert.Equal(t, 0.25, Clamp(0.25, 0, 1))
	assert.Equal(t, 4, Clamp(9, 1, 4))
}

func TestProgress_Fraction(t *testing.T) {
	assert.Equal(t, -1.0, Progress{Received: 10, Total: -1}.Fraction())
	assert.Equal(t, 0.5, Progress{Received: 5, Total: 10}.Fraction())
	assert.Equal(t, 1.0, Progress{Received: 12, Total: 10}.Fraction())
}
