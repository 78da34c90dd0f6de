package calibration

import (
	"math"

	"github.com/closedform/senseye/pkg/geometry"
	"github.com/closedform/senseye/pkg/linalg"
)

// ClassicalMDS recovers 2D coordinates from a symmetric distance matrix D
// via classical multidimensional scaling (spec.md §4.7):
//
//	B = -1/2 J D^2 J,  J = I - 11^T/n
//	top-2 eigenpairs V, Lambda (negative eigenvalues clipped to 0)
//	X = V Lambda^(1/2)
//
// Row/col i of D corresponds to the returned point at the same index.
func ClassicalMDS(d [][]float64) []geometry.Point {
	n := len(d)
	if n == 0 {
		return nil
	}

	// Squared distance matrix.
	d2 := linalg.Zeros(n, n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			d2.Set(i, j, d[i][j]*d[i][j])
		}
	}

	// Double-centering matrix B = -1/2 J D^2 J, J = I - (1/n) 11^T.
	j := linalg.Identity(n)
	invN := 1.0 / float64(n)
	for r := 0; r < n; r++ {
		for c := 0; c < n; c++ {
			j.Set(r, c, j.At(r, c)-invN)
		}
	}
	b := j.Mul(d2).Mul(j).Scale(-0.5)

	vals, vecs := eigenSorted(b)

	points := make([]geometry.Point, n)
	l0 := math.Sqrt(math.Max(vals[0], 0))
	l1 := 0.0
	if len(vals) > 1 {
		l1 = math.Sqrt(math.Max(vals[1], 0))
	}
	for i := 0; i < n; i++ {
		x := vecs.At(i, 0) * l0
		y := 0.0
		if len(vals) > 1 {
			y = vecs.At(i, 1) * l1
		}
		points[i] = geometry.Point{X: x, Y: y}
	}
	return points
}

// eigenSorted computes eigenvalues/eigenvectors of a symmetric matrix and
// returns them sorted by descending eigenvalue, so index 0 and 1 are the
// top-2 components MDS needs.
func eigenSorted(m *linalg.Dense) ([]float64, *linalg.Dense) {
	vals, vecs := linalg.Eigen(m)
	n := len(vals)
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	// Simple insertion sort descending; n is small (a handful of nodes).
	for i := 1; i < n; i++ {
		for k := i; k > 0 && vals[order[k]] > vals[order[k-1]]; k-- {
			order[k], order[k-1] = order[k-1], order[k]
		}
	}
	sortedVals := make([]float64, n)
	sortedVecs := linalg.Zeros(n, n)
	for newIdx, oldIdx := range order {
		sortedVals[newIdx] = vals[oldIdx]
		for r := 0; r < n; r++ {
			sortedVecs.Set(r, newIdx, vecs.At(r, oldIdx))
		}
	}
	return sortedVals, sortedVecs
}

// CanonicalizeOrientation translates the anchor point at index anchorIdx to
// the origin, and if a second anchor index is given (>= 0), rotates the
// layout about the origin so that second anchor lies on the positive X axis
// (spec.md §4.7). It never reflects the layout: the handedness ClassicalMDS
// produced is kept, so a mirrored layout stays mirrored.
func CanonicalizeOrientation(points []geometry.Point, anchorIdx, secondAnchorIdx int) []geometry.Point {
	if anchorIdx < 0 || anchorIdx >= len(points) {
		return points
	}
	origin := points[anchorIdx]
	out := make([]geometry.Point, len(points))
	for i, p := range points {
		out[i] = geometry.Point{X: p.X - origin.X, Y: p.Y - origin.Y}
	}
	if secondAnchorIdx < 0 || secondAnchorIdx >= len(points) || secondAnchorIdx == anchorIdx {
		return out
	}
	second := out[secondAnchorIdx]
	theta := math.Atan2(second.Y, second.X)
	cosT, sinT := math.Cos(-theta), math.Sin(-theta)
	for i, p := range out {
		out[i] = geometry.Point{
			X: p.X*cosT - p.Y*sinT,
			Y: p.X*sinT + p.Y*cosT,
		}
	}
	return out
}
