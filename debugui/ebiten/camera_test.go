package ebiten

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/plus3/chunkq/spatial"
)

func TestCameraToScreen(t *testing.T) {
	c := Camera{Center: spatial.V(10, 10), Zoom: 2}

	x, y := c.ToScreen(spatial.V(10, 10), 800, 600)
	assert.Equal(t, float32(400), x)
	assert.Equal(t, float32(300), y)

	x, y = c.ToScreen(spatial.V(15, 5), 800, 600)
	assert.Equal(t, float32(410), x)
	assert.Equal(t, float32(290), y)

	x, _ = Camera{}.ToScreen(spatial.V(3, 0), 0, 0)
	assert.Equal(t, float32(3), x, "zero zoom falls back to 1")
}
