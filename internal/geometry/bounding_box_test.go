package geometry

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBoundingBoxExtend(t *testing.T) {
	box := EmptyBoundingBox()
	assert.True(t, box.IsEmpty())

	box.Extend(Coordinate{X: 1, Y: 2, Z: 3})
	box.Extend(Coordinate{X: -1, Y: 5, Z: 0})

	assert.False(t, box.IsEmpty())
	assert.Equal(t, -1.0, box.Xmin)
	assert.Equal(t, 1.0, box.Xmax)
	assert.Equal(t, 5.0, box.Ymax)
	assert.Equal(t, 0.0, box.Xmid)
	assert.Equal(t, 3.5, box.Ymid)
}

func TestBoundingBoxContains(t *testing.T) {
	box := NewBoundingBox(0, 10, 0, 10, 0, 5)

	assert.True(t, box.Contains(Coordinate{X: 5, Y: 5, Z: 2}, 0))
	assert.False(t, box.Contains(Coordinate{X: 5, Y: 5, Z: 6}, 0))
	assert.True(t, box.Contains(Coordinate{X: 5, Y: 5, Z: 5.5}, 0.6))
	assert.True(t, box.Contains2D(Coordinate{X: 10.05, Y: 0, Z: 99}, 0.1))
	assert.False(t, box.Contains2D(Coordinate{X: 10.2, Y: 0}, 0.1))
}
