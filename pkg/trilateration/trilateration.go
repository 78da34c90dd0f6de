// Package trilateration implements the robust weighted Gauss-Newton
// position solver (C5): Tukey biweight downweighting of outlier ranges,
// Levenberg-damped IRLS, and leave-one-out / subset outlier rejection.
//
// Grounded on pkg/linalg (for the damped normal-equation solve) and
// pkg/geometry (for the weighted centroid initialization); the algorithm
// itself follows spec.md §4.5 directly since no example repo in the pack
// carries a production trilateration solver as a library dependency.
package trilateration

import (
	"errors"
	"math"

	"github.com/closedform/senseye/pkg/geometry"
	"github.com/closedform/senseye/pkg/linalg"
)

// Sentinel errors per spec.md §4.5 and §8.
var (
	ErrInsufficientAnchors = errors.New("trilateration: fewer than 3 anchors available")
	ErrDivergence          = errors.New("trilateration: IRLS did not converge within the iteration budget")
)

// Config tunes the solver.
type Config struct {
	MaxIterations     int
	ConvergenceTol    float64
	LevenbergLambda   float64
	MinSigma          float64
	TukeyCutoffFactor float64
	InlierRhoMax      float64
}

// Anchor is a reference position with a reported range to the target.
type Anchor struct {
	Position geometry.Point
	RangeM   float64
}

// Result is a solved position plus the anchors retained as inliers.
type Result struct {
	Position      geometry.Point
	InlierIdx     []int
	Iterations    int
	FinalResidual float64
}

// noiseSigma returns the per-anchor range noise model sigma_i = max(0.35,
// 0.08*d_i + 0.2) from spec.md §4.5.
func noiseSigma(rangeM, minSigma float64) float64 {
	return math.Max(minSigma, 0.08*rangeM+0.2)
}

// Solve runs the full robust trilateration pipeline: evaluate the full
// anchor set, and for small N also evaluate leave-one-out and all size-3
// subsets, scoring each candidate by (-inlier_count, mean(min(rho_i^2,9)))
// and refitting on the best candidate's inlier set (spec.md §4.5).
func Solve(anchors []Anchor, cfg Config) (Result, error) {
	if len(anchors) < 3 {
		return Result{}, ErrInsufficientAnchors
	}

	candidates := candidateSubsets(len(anchors))
	var best Result
	bestScore := [2]float64{math.Inf(1), math.Inf(1)}
	bestFound := false
	var lastErr error

	for _, idx := range candidates {
		if len(idx) < 3 {
			continue
		}
		subset := subsetOf(anchors, idx)
		res, err := irls(subset, cfg)
		if err != nil {
			lastErr = err
			continue
		}
		// Score against the FULL anchor set (not just the fitting subset):
		// the candidate's job is to explain as many of the real anchors as
		// possible, so outliers are identified globally (spec.md §4.5).
		inlierCount, meanRhoSq := scoreFit(anchors, res.Position, cfg)
		score := [2]float64{-float64(inlierCount), meanRhoSq}
		if !bestFound || less(score, bestScore) {
			bestScore = score
			bestFound = true
			best = Result{
				Position:      res.Position,
				InlierIdx:     inlierIndices(anchors, res.Position, cfg),
				Iterations:    res.Iterations,
				FinalResidual: res.FinalResidual,
			}
		}
	}

	if !bestFound {
		if lastErr != nil {
			return Result{}, lastErr
		}
		return Result{}, ErrDivergence
	}

	// Refit on the inlier set when at least 3 inliers remain (spec.md §4.5).
	if len(best.InlierIdx) >= 3 {
		inlierAnchors := subsetOf(anchors, best.InlierIdx)
		refit, err := irls(inlierAnchors, cfg)
		if err == nil {
			best.Position = refit.Position
			best.Iterations = refit.Iterations
			best.FinalResidual = refit.FinalResidual
		}
	}
	return best, nil
}

func less(a, b [2]float64) bool {
	if a[0] != b[0] {
		return a[0] < b[0]
	}
	return a[1] < b[1]
}

// candidateSubsets returns, for small N, the full set, every leave-one-out
// subset, and every size-3 subset (spec.md §4.5: "for small N, also
// evaluate leave-one-out and all size-3 subsets"). Size-3 subsets are
// added only for N <= 6; for N of 7 or 8 it returns the full set plus
// leave-one-out, and above 8 only the full set, to bound the combinatorics.
func candidateSubsets(n int) [][]int {
	full := allIndices(n)
	subsets := [][]int{full}
	if n <= 8 {
		for i := 0; i < n; i++ {
			subsets = append(subsets, without(full, i))
		}
	}
	if n <= 6 {
		subsets = append(subsets, combinations(n, 3)...)
	}
	return subsets
}

func allIndices(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

func without(full []int, skip int) []int {
	out := make([]int, 0, len(full)-1)
	for _, v := range full {
		if v != skip {
			out = append(out, v)
		}
	}
	return out
}

func combinations(n, k int) [][]int {
	var out [][]int
	idx := make([]int, k)
	for i := range idx {
		idx[i] = i
	}
	for {
		c := make([]int, k)
		copy(c, idx)
		out = append(out, c)
		i := k - 1
		for i >= 0 && idx[i] == n-k+i {
			i--
		}
		if i < 0 {
			break
		}
		idx[i]++
		for j := i + 1; j < k; j++ {
			idx[j] = idx[j-1] + 1
		}
	}
	return out
}

func subsetOf(anchors []Anchor, idx []int) []Anchor {
	out := make([]Anchor, len(idx))
	for i, j := range idx {
		out[i] = anchors[j]
	}
	return out
}

// scoreFit counts inliers (rho_i <= InlierRhoMax) and computes
// mean(min(rho_i^2, 9)) for candidate ranking (spec.md §4.5).
func scoreFit(anchors []Anchor, pos geometry.Point, cfg Config) (inlierCount int, meanRhoSq float64) {
	var sum float64
	for _, a := range anchors {
		r := residual(pos, a)
		sigma := noiseSigma(a.RangeM, cfg.MinSigma)
		rho := math.Abs(r) / sigma
		if rho <= cfg.InlierRhoMax {
			inlierCount++
		}
		sum += math.Min(rho*rho, 9)
	}
	if len(anchors) > 0 {
		meanRhoSq = sum / float64(len(anchors))
	}
	return inlierCount, meanRhoSq
}

func residual(pos geometry.Point, a Anchor) float64 {
	return geometry.Distance(pos, a.Position) - a.RangeM
}

// irls runs Levenberg-damped iteratively-reweighted least squares with a
// Tukey biweight on a single anchor subset (spec.md §4.5).
func irls(anchors []Anchor, cfg Config) (Result, error) {
	weights := make([]float64, len(anchors))
	for i, a := range anchors {
		sigma := noiseSigma(a.RangeM, cfg.MinSigma)
		weights[i] = 1 / (sigma * sigma)
	}
	positions := make([]geometry.Point, len(anchors))
	for i, a := range anchors {
		positions[i] = a.Position
	}
	x := geometry.WeightedCentroid(positions, weights)

	var lastResidual float64
	iter := 0
	for ; iter < cfg.MaxIterations; iter++ {
		jtwj := linalg.Zeros(2, 2)
		jtwr := make([]float64, 2)
		var sumAbsResidual float64

		for i, a := range anchors {
			dhat := math.Max(geometry.Distance(x, a.Position), 1e-9)
			r := dhat - a.RangeM
			sumAbsResidual += math.Abs(r)

			sigma := noiseSigma(a.RangeM, cfg.MinSigma)
			cutoff := cfg.TukeyCutoffFactor * sigma
			omega := tukeyWeight(r, cutoff)
			w := weights[i] * omega

			jx := (x.X - a.Position.X) / dhat
			jy := (x.Y - a.Position.Y) / dhat

			jtwj.Set(0, 0, jtwj.At(0, 0)+w*jx*jx)
			jtwj.Set(0, 1, jtwj.At(0, 1)+w*jx*jy)
			jtwj.Set(1, 0, jtwj.At(1, 0)+w*jy*jx)
			jtwj.Set(1, 1, jtwj.At(1, 1)+w*jy*jy)
			jtwr[0] += w * jx * r
			jtwr[1] += w * jy * r
		}

		damped := jtwj.Add(linalg.Identity(2).Scale(cfg.LevenbergLambda))
		delta, ok := linalg.SolveSPD(damped, jtwr)
		if !ok {
			return Result{}, ErrDivergence
		}
		x.X -= delta[0]
		x.Y -= delta[1]
		lastResidual = sumAbsResidual / float64(len(anchors))

		if math.Hypot(delta[0], delta[1]) < cfg.ConvergenceTol {
			return Result{Position: x, Iterations: iter + 1, FinalResidual: lastResidual, InlierIdx: inlierIndices(anchors, x, cfg)}, nil
		}
	}
	return Result{}, ErrDivergence
}

func inlierIndices(anchors []Anchor, pos geometry.Point, cfg Config) []int {
	var idx []int
	for i, a := range anchors {
		r := residual(pos, a)
		sigma := noiseSigma(a.RangeM, cfg.MinSigma)
		if math.Abs(r)/sigma <= cfg.InlierRhoMax {
			idx = append(idx, i)
		}
	}
	return idx
}

// tukeyWeight implements the Tukey biweight: omega = (1-(|r|/c)^2)^2 when
// |r|<c, else 0 (spec.md §4.5).
func tukeyWeight(r, cutoff float64) float64 {
	if cutoff <= 0 {
		return 0
	}
	ratio := math.Abs(r) / cutoff
	if ratio >= 1 {
		return 0
	}
	t := 1 - ratio*ratio
	return t * t
}
