// Package geometry provides the 2D computational-geometry primitives used
// by trilateration, tomography and room assignment: point/segment distance,
// polygon containment, and centroids.
//
// Grounded on the teacher's apoc/spatial package (Haversine/Vincenty
// distance helpers), generalized from geographic lat/lon to the planar
// floorplan coordinates this spec uses throughout (§1 Non-goals: "more
// than 2D layout").
package geometry

import "math"

// Point is a planar coordinate in meters.
type Point struct {
	X, Y float64
}

// Segment is a line segment between two points.
type Segment struct {
	A, B Point
}

// Distance returns the Euclidean distance between two points.
func Distance(p, q Point) float64 {
	return math.Hypot(p.X-q.X, p.Y-q.Y)
}

// PointToSegmentDistance returns the shortest distance from p to the
// segment s, clamping the projection to the segment's endpoints. Used by
// C6 to build the tomography kernel (spec.md §4.6).
func PointToSegmentDistance(p Point, s Segment) float64 {
	dx, dy := s.B.X-s.A.X, s.B.Y-s.A.Y
	lenSq := dx*dx + dy*dy
	if lenSq < 1e-12 {
		return Distance(p, s.A)
	}
	t := ((p.X-s.A.X)*dx + (p.Y-s.A.Y)*dy) / lenSq
	t = clamp01(t)
	proj := Point{X: s.A.X + t*dx, Y: s.A.Y + t*dy}
	return Distance(p, proj)
}

func clamp01(t float64) float64 {
	if t < 0 {
		return 0
	}
	if t > 1 {
		return 1
	}
	return t
}

// Midpoint returns the midpoint of a segment.
func Midpoint(s Segment) Point {
	return Point{X: (s.A.X + s.B.X) / 2, Y: (s.A.Y + s.B.Y) / 2}
}

// PerpendicularAt returns a short segment centered at p, perpendicular to
// s, with the given half-length — used to render a wall candidate at a
// link's midpoint (spec.md §4.7).
func PerpendicularAt(p Point, s Segment, halfLen float64) Segment {
	dx, dy := s.B.X-s.A.X, s.B.Y-s.A.Y
	norm := math.Hypot(dx, dy)
	if norm < 1e-12 {
		return Segment{A: p, B: p}
	}
	// Perpendicular direction is (-dy, dx) normalized.
	ux, uy := -dy/norm, dx/norm
	return Segment{
		A: Point{X: p.X - ux*halfLen, Y: p.Y - uy*halfLen},
		B: Point{X: p.X + ux*halfLen, Y: p.Y + uy*halfLen},
	}
}

// WeightedCentroid returns the weighted centroid of a set of points, used
// to initialize C5's Gauss-Newton iteration (spec.md §4.5).
func WeightedCentroid(points []Point, weights []float64) Point {
	var sx, sy, sw float64
	for i, p := range points {
		sx += weights[i] * p.X
		sy += weights[i] * p.Y
		sw += weights[i]
	}
	if sw == 0 {
		return Point{}
	}
	return Point{X: sx / sw, Y: sy / sw}
}

// Polygon is a closed sequence of vertices, in order.
type Polygon struct {
	Vertices []Point
}

// Contains reports whether p lies inside the polygon using the standard
// ray-casting algorithm. Used by world-state device-to-room assignment.
func (poly Polygon) Contains(p Point) bool {
	inside := false
	n := len(poly.Vertices)
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		vi, vj := poly.Vertices[i], poly.Vertices[j]
		if (vi.Y > p.Y) != (vj.Y > p.Y) {
			xCross := (vj.X-vi.X)*(p.Y-vi.Y)/(vj.Y-vi.Y) + vi.X
			if p.X < xCross {
				inside = !inside
			}
		}
	}
	return inside
}

// Center returns the unweighted vertex centroid of the polygon.
func (poly Polygon) Center() Point {
	if len(poly.Vertices) == 0 {
		return Point{}
	}
	var sx, sy float64
	for _, v := range poly.Vertices {
		sx += v.X
		sy += v.Y
	}
	n := float64(len(poly.Vertices))
	return Point{X: sx / n, Y: sy / n}
}
