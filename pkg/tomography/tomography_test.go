package tomography

import (
	"testing"

	"github.com/closedform/senseye/pkg/geometry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaultCfg() Config {
	return Config{KernelRadiusM: 1.5, RidgeConstant: 1.0, RidgeMin: 0.05, RidgeMax: 5.0, RankTolerance: 1e-9}
}

func testGrid() Grid {
	return Grid{OriginX: 0, OriginY: 0, CellSizeM: 1.0, Cols: 10, Rows: 10}
}

func TestReconstructEmptyLinksReturnsEmpty(t *testing.T) {
	res, err := Reconstruct(nil, testGrid(), defaultCfg())
	require.NoError(t, err)
	assert.Empty(t, res.Field)
}

func TestBuildKernelRowSumsToOne(t *testing.T) {
	grid := testGrid()
	link := Link{A: geometry.Point{X: 0, Y: 0}, B: geometry.Point{X: 10, Y: 0}, Attenuation: 5, Confidence: 0.9}
	row := BuildKernelRow(link, grid, 1.5)
	var sum float64
	for _, v := range row {
		sum += v
	}
	assert.InDelta(t, 1.0, sum, 1e-9)
}

func TestReconstructUnitKernelPeakOnSegment(t *testing.T) {
	// spec.md §8 scenario 4.
	grid := testGrid()
	links := []Link{{A: geometry.Point{X: 0, Y: 0}, B: geometry.Point{X: 10, Y: 0}, Attenuation: 5, Confidence: 0.9}}
	res, err := Reconstruct(links, grid, defaultCfg())
	require.NoError(t, err)
	assert.True(t, res.RidgeAlpha >= 0.05 && res.RidgeAlpha <= 5.0)

	// Find the peak cell; its row index (y) should be 0 (y in [0,1), aligned
	// with the y=0 segment).
	peakIdx := 0
	for i, v := range res.Field {
		if v > res.Field[peakIdx] {
			peakIdx = i
		}
	}
	peakRow := peakIdx / grid.Cols
	assert.Equal(t, 0, peakRow)
}

func TestAdaptiveRidgeClipped(t *testing.T) {
	alpha := adaptiveRidge(1.0, 100, 1, 1e12, 0.05, 5.0)
	assert.Equal(t, 5.0, alpha)
	alpha2 := adaptiveRidge(1.0, 1, 100, 1, 0.05, 5.0)
	assert.True(t, alpha2 >= 0.05)
}

func TestPeakCellsThreshold(t *testing.T) {
	field := []float64{1, 9, 3, 10}
	idx := PeakCells(field, 8)
	assert.Equal(t, []int{1, 3}, idx)
}
