// Package eval is the numeric evaluation harness for C5 (robust
// trilateration) and C6 (ridge tomography) accuracy against synthetic
// scenarios, driven by cmd/senseye-eval.
//
// Grounded on the teacher's pkg/eval/harness.go: a Harness that runs a
// list of cases and accumulates pass/fail counts against a threshold,
// paired with a Reporter (pkg/eval/reporter.go) that renders the same
// EvalResult in summary, compact, JSON, or YAML form.
package eval

import (
	"time"

	"github.com/closedform/senseye/pkg/geometry"
	"github.com/closedform/senseye/pkg/tomography"
	"github.com/closedform/senseye/pkg/trilateration"
)

// TrilaterationCase is one synthetic scenario: a true position, a set of
// anchors with (possibly corrupted) ranges, and the pass threshold on
// position error.
type TrilaterationCase struct {
	Name          string
	TruePosition  geometry.Point
	Anchors       []trilateration.Anchor
	MaxErrorM     float64
}

// TrilaterationResult is one case's outcome.
type TrilaterationResult struct {
	Name       string
	ErrorM     float64
	InlierIdx  []int
	Iterations int
	Passed     bool
	Err        string
}

// RunTrilateration solves every case and scores it against MaxErrorM.
func RunTrilateration(cases []TrilaterationCase, cfg trilateration.Config) []TrilaterationResult {
	out := make([]TrilaterationResult, 0, len(cases))
	for _, c := range cases {
		res, err := trilateration.Solve(c.Anchors, cfg)
		if err != nil {
			out = append(out, TrilaterationResult{Name: c.Name, Passed: false, Err: err.Error()})
			continue
		}
		errM := geometry.Distance(res.Position, c.TruePosition)
		out = append(out, TrilaterationResult{
			Name:       c.Name,
			ErrorM:     errM,
			InlierIdx:  res.InlierIdx,
			Iterations: res.Iterations,
			Passed:     errM <= c.MaxErrorM,
		})
	}
	return out
}

// TomographyCase is one synthetic RTI scenario: a grid, a set of fused
// links, and the cell expected to hold the attenuation peak (the wall
// location).
type TomographyCase struct {
	Name           string
	Grid           tomography.Grid
	Links          []tomography.Link
	ExpectedPeak   int // flattened cell index
	MaxCellOffset  int // Manhattan distance tolerance in cell units
}

// TomographyResult is one case's outcome.
type TomographyResult struct {
	Name       string
	PeakCell   int
	CellOffset int
	RidgeAlpha float64
	Passed     bool
	Err        string
}

// RunTomography reconstructs every case's field and checks the peak
// cell lands within MaxCellOffset of ExpectedPeak.
func RunTomography(cases []TomographyCase, cfg tomography.Config) []TomographyResult {
	out := make([]TomographyResult, 0, len(cases))
	for _, c := range cases {
		res, err := tomography.Reconstruct(c.Links, c.Grid, cfg)
		if err != nil {
			out = append(out, TomographyResult{Name: c.Name, Passed: false, Err: err.Error()})
			continue
		}
		peak := argmax(res.Field)
		offset := cellOffset(peak, c.ExpectedPeak, c.Grid.Cols)
		out = append(out, TomographyResult{
			Name:       c.Name,
			PeakCell:   peak,
			CellOffset: offset,
			RidgeAlpha: res.RidgeAlpha,
			Passed:     offset <= c.MaxCellOffset,
		})
	}
	return out
}

func argmax(field []float64) int {
	best := 0
	for i, v := range field {
		if v > field[best] {
			best = i
		}
	}
	return best
}

func cellOffset(a, b, cols int) int {
	if cols <= 0 {
		return 0
	}
	ar, ac := a/cols, a%cols
	br, bc := b/cols, b%cols
	dr, dc := ar-br, ac-bc
	if dr < 0 {
		dr = -dr
	}
	if dc < 0 {
		dc = -dc
	}
	return dr + dc
}

// EvalResult aggregates every case run in one invocation.
type EvalResult struct {
	RanAt               time.Time
	Trilateration       []TrilaterationResult
	Tomography          []TomographyResult
	TotalTests          int
	PassedTests         int
	FailedTests         int
}

// Summarize folds per-case results into pass/fail counts.
func Summarize(ranAt time.Time, tri []TrilaterationResult, tomo []TomographyResult) *EvalResult {
	r := &EvalResult{RanAt: ranAt, Trilateration: tri, Tomography: tomo}
	for _, t := range tri {
		r.TotalTests++
		if t.Passed {
			r.PassedTests++
		} else {
			r.FailedTests++
		}
	}
	for _, t := range tomo {
		r.TotalTests++
		if t.Passed {
			r.PassedTests++
		} else {
			r.FailedTests++
		}
	}
	return r
}
