package trilateration

import (
	"testing"

	"github.com/closedform/senseye/pkg/geometry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaultCfg() Config {
	return Config{
		MaxIterations:     50,
		ConvergenceTol:    1e-5,
		LevenbergLambda:   1e-3,
		MinSigma:          0.35,
		TukeyCutoffFactor: 2.5,
		InlierRhoMax:      2.5,
	}
}

func TestInsufficientAnchors(t *testing.T) {
	_, err := Solve([]Anchor{
		{Position: geometry.Point{X: 0, Y: 0}, RangeM: 5},
		{Position: geometry.Point{X: 10, Y: 0}, RangeM: 5},
	}, defaultCfg())
	assert.ErrorIs(t, err, ErrInsufficientAnchors)
}

func TestSolveCleanFourAnchors(t *testing.T) {
	anchors := []Anchor{
		{Position: geometry.Point{X: 0, Y: 0}, RangeM: 5},
		{Position: geometry.Point{X: 10, Y: 0}, RangeM: 7.28},
		{Position: geometry.Point{X: 0, Y: 10}, RangeM: 6.71},
		{Position: geometry.Point{X: 10, Y: 10}, RangeM: 9.22},
	}
	res, err := Solve(anchors, defaultCfg())
	require.NoError(t, err)
	assert.InDelta(t, 3, res.Position.X, 0.2)
	assert.InDelta(t, 4, res.Position.Y, 0.2)
}

func TestSolveWithOneOutlier(t *testing.T) {
	// spec.md §8 scenario 3.
	anchors := []Anchor{
		{Position: geometry.Point{X: 0, Y: 0}, RangeM: 5},
		{Position: geometry.Point{X: 10, Y: 0}, RangeM: 7.28},
		{Position: geometry.Point{X: 0, Y: 10}, RangeM: 6.71},
		{Position: geometry.Point{X: 10, Y: 10}, RangeM: 9.22},
		{Position: geometry.Point{X: 5, Y: 5}, RangeM: 20}, // bad anchor
	}
	res, err := Solve(anchors, defaultCfg())
	require.NoError(t, err)
	assert.InDelta(t, 3, res.Position.X, 0.2)
	assert.InDelta(t, 4, res.Position.Y, 0.2)
	assert.Equal(t, 4, len(res.InlierIdx))
}

func TestSolveCollinearAnchorsNeverCrashes(t *testing.T) {
	anchors := []Anchor{
		{Position: geometry.Point{X: 0, Y: 0}, RangeM: 5},
		{Position: geometry.Point{X: 5, Y: 0}, RangeM: 1},
		{Position: geometry.Point{X: 10, Y: 0}, RangeM: 5},
	}
	// Should either return a well-defined result or ErrDivergence, never panic.
	assert.NotPanics(t, func() {
		_, _ = Solve(anchors, defaultCfg())
	})
}

func TestTukeyWeightZeroBeyondCutoff(t *testing.T) {
	assert.Equal(t, 0.0, tukeyWeight(10, 1))
	assert.True(t, tukeyWeight(0, 1) > 0.99)
}

func TestCombinationsSizeThree(t *testing.T) {
	combos := combinations(5, 3)
	assert.Equal(t, 10, len(combos))
	for _, c := range combos {
		assert.Equal(t, 3, len(c))
	}
}
