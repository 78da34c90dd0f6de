// Package tomography implements weighted ridge radio-tomographic imaging
// (C6): building a link/cell influence matrix from point-to-segment
// kernels, and solving a confidence-weighted, adaptively-regularized ridge
// system for the per-cell attenuation field.
//
// Grounded on pkg/geometry (point-to-segment distance for the kernel) and
// pkg/linalg (Cholesky-then-pseudoinverse normal-equation solve), per
// spec.md §4.6.
package tomography

import (
	"errors"
	"math"

	"github.com/closedform/senseye/pkg/geometry"
	"github.com/closedform/senseye/pkg/linalg"
)

// ErrIllConditioned is returned when the Cholesky solve fails and the
// pseudoinverse fallback finds no eigenvalue above the rank tolerance
// (spec.md §4.6). A rank-deficient but nonzero system is solved in the
// minimum-norm sense instead of failing.
var ErrIllConditioned = errors.New("tomography: ill-conditioned system, no solution")

// Grid describes a rectangular cell grid over the floorplan.
type Grid struct {
	OriginX, OriginY float64
	CellSizeM        float64
	Cols, Rows       int
}

// CellCenter returns the center point of cell (col, row).
func (g Grid) CellCenter(col, row int) geometry.Point {
	return geometry.Point{
		X: g.OriginX + (float64(col)+0.5)*g.CellSizeM,
		Y: g.OriginY + (float64(row)+0.5)*g.CellSizeM,
	}
}

// NumCells returns the total cell count.
func (g Grid) NumCells() int { return g.Cols * g.Rows }

// Link is one link's excess attenuation observation with its endpoints and
// fusion confidence (spec.md §4.6).
type Link struct {
	A, B        geometry.Point
	Attenuation float64
	Confidence  float64
}

// Config tunes the reconstruction.
type Config struct {
	KernelRadiusM float64
	RidgeConstant float64
	RidgeMin      float64
	RidgeMax      float64
	RankTolerance float64
}

// Result is the solved per-cell attenuation field plus the chosen ridge.
type Result struct {
	Field      []float64 // length grid.NumCells()
	RidgeAlpha float64
}

// BuildKernelRow computes the row-normalized kernel weights for a single
// link against every cell center, per spec.md §4.6:
//
//	A~_ij = exp(-d_ij^2 / (2 sigma_k^2)) for d_ij <= r, else 0
//	sigma_k = r/2
//	A_ij   = A~_ij / sum_j(A~_ij)
//
// Rows whose sum is zero (no cell within radius r) contribute nothing and
// are returned as all-zero.
func BuildKernelRow(link Link, grid Grid, radiusM float64) []float64 {
	sigmaK := radiusM / 2
	seg := geometry.Segment{A: link.A, B: link.B}
	row := make([]float64, grid.NumCells())
	var sum float64
	for row_ := 0; row_ < grid.Rows; row_++ {
		for col := 0; col < grid.Cols; col++ {
			c := grid.CellCenter(col, row_)
			d := geometry.PointToSegmentDistance(c, seg)
			if d > radiusM {
				continue
			}
			w := math.Exp(-(d * d) / (2 * sigmaK * sigmaK))
			row[row_*grid.Cols+col] = w
			sum += w
		}
	}
	if sum > 0 {
		for i := range row {
			row[i] /= sum
		}
	}
	return row
}

// Reconstruct builds the influence matrix for every link, solves the
// confidence-weighted adaptive-ridge normal equations, and returns the
// per-cell attenuation field (spec.md §4.6). Returns an empty map without
// solving when there are no links (spec.md §8 boundary behavior).
func Reconstruct(links []Link, grid Grid, cfg Config) (Result, error) {
	if len(links) == 0 {
		return Result{Field: []float64{}}, nil
	}

	nCells := grid.NumCells()
	nLinks := len(links)

	a := linalg.Zeros(nLinks, nCells)
	b := make([]float64, nLinks)
	w := make([]float64, nLinks)
	for i, link := range links {
		row := BuildKernelRow(link, grid, cfg.KernelRadiusM)
		for j, v := range row {
			a.Set(i, j, v)
		}
		b[i] = link.Attenuation
		cEff := linalg.Clamp(link.Confidence, 0.01, 0.99)
		w[i] = cEff / (1 - cEff)
	}

	// Whiten: Abar = W^(1/2) A, bbar = W^(1/2) b.
	abar := a.Clone()
	bbar := make([]float64, nLinks)
	for i := 0; i < nLinks; i++ {
		sw := math.Sqrt(w[i])
		for j := 0; j < nCells; j++ {
			abar.Set(i, j, abar.At(i, j)*sw)
		}
		bbar[i] = b[i] * sw
	}

	ata := abar.T().Mul(abar)
	atb := abar.T().MulVec(bbar)

	cond := linalg.ConditionNumber(ata)
	alpha := adaptiveRidge(cfg.RidgeConstant, nCells, nLinks, cond, cfg.RidgeMin, cfg.RidgeMax)

	regularized := ata.Add(linalg.Identity(nCells).Scale(alpha))

	field, ok := linalg.SolveSPD(regularized, atb)
	if !ok {
		field, ok = linalg.Pseudoinverse(regularized, atb, cfg.RankTolerance)
		if !ok {
			return Result{}, ErrIllConditioned
		}
	}
	return Result{Field: field, RidgeAlpha: alpha}, nil
}

// adaptiveRidge implements spec.md §4.6's adaptive regularization:
//
//	alpha = kappa * (n_cells/n_links) * (1 + log10(cond(A^T W A)))
//	clipped to [ridgeMin, ridgeMax]
func adaptiveRidge(kappa float64, nCells, nLinks int, cond, ridgeMin, ridgeMax float64) float64 {
	ratio := float64(nCells) / float64(nLinks)
	logTerm := 1.0
	if !math.IsInf(cond, 1) && cond > 0 {
		logTerm = 1 + math.Log10(cond)
	} else {
		logTerm = 1 + 20 // heavily ill-conditioned: push toward the ridge ceiling
	}
	alpha := kappa * ratio * logTerm
	return linalg.Clamp(alpha, ridgeMin, ridgeMax)
}

// PeakCells returns the indices of cells whose field value is at or above
// the given threshold, as wall candidates (spec.md §4.6). It only thresholds;
// the calibration orchestrator thins the result into a 1-cell skeleton via
// pkg/topology.ThinGrid before turning it into wall segments and rooms.
func PeakCells(field []float64, threshold float64) []int {
	var out []int
	for i, v := range field {
		if v >= threshold {
			out = append(out, i)
		}
	}
	return out
}
