package geometry

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPointToSegmentDistanceOnLine(t *testing.T) {
	s := Segment{A: Point{0, 0}, B: Point{10, 0}}
	d := PointToSegmentDistance(Point{5, 0}, s)
	assert.InDelta(t, 0, d, 1e-9)
}

func TestPointToSegmentDistanceClampsToEndpoint(t *testing.T) {
	s := Segment{A: Point{0, 0}, B: Point{10, 0}}
	d := PointToSegmentDistance(Point{-3, 4}, s)
	assert.InDelta(t, 5, d, 1e-9)
}

func TestWeightedCentroid(t *testing.T) {
	c := WeightedCentroid([]Point{{0, 0}, {10, 0}}, []float64{1, 1})
	assert.InDelta(t, 5, c.X, 1e-9)
	assert.InDelta(t, 0, c.Y, 1e-9)
}

func TestPolygonContains(t *testing.T) {
	square := Polygon{Vertices: []Point{{0, 0}, {10, 0}, {10, 10}, {0, 10}}}
	assert.True(t, square.Contains(Point{5, 5}))
	assert.False(t, square.Contains(Point{15, 5}))
}

func TestPolygonCenter(t *testing.T) {
	square := Polygon{Vertices: []Point{{0, 0}, {10, 0}, {10, 10}, {0, 10}}}
	c := square.Center()
	assert.InDelta(t, 5, c.X, 1e-9)
	assert.InDelta(t, 5, c.Y, 1e-9)
}
