package calibration

import (
	"testing"

	"github.com/closedform/senseye/pkg/geometry"
	"github.com/closedform/senseye/pkg/tomography"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() Config {
	return Config{
		AcousticHopCap:       3,
		NumAcousticBands:     6,
		BandStartHz:          17000,
		BandWidthHz:          1000,
		FreeSpacePathLossN:   2.0,
		WallDecisionThreshDB: 8,
	}
}

func TestClassicalMDSRectangle(t *testing.T) {
	// spec.md §8 scenario 6.
	d := [][]float64{
		{0, 3, 4, 5},
		{3, 0, 5, 4},
		{4, 5, 0, 3},
		{5, 4, 3, 0},
	}
	points := ClassicalMDS(d)
	require.Len(t, points, 4)
	canon := CanonicalizeOrientation(points, 0, 1)

	// Node 0 at origin; node 1 on the positive X axis at distance 3.
	assert.InDelta(t, 0, canon[0].X, 0.01)
	assert.InDelta(t, 0, canon[0].Y, 0.01)
	assert.InDelta(t, 3, canon[1].X, 0.01)
	assert.InDelta(t, 0, canon[1].Y, 0.01)

	// Original pairwise distances must be preserved by the recovered layout.
	assert.InDelta(t, 4, geometry.Distance(canon[0], canon[2]), 0.01)
	assert.InDelta(t, 5, geometry.Distance(canon[0], canon[3]), 0.01)
	assert.InDelta(t, 5, geometry.Distance(canon[1], canon[2]), 0.01)
	assert.InDelta(t, 4, geometry.Distance(canon[1], canon[3]), 0.01)
	assert.InDelta(t, 3, geometry.Distance(canon[2], canon[3]), 0.01)
}

func TestAssignBandWithinRange(t *testing.T) {
	cfg := testConfig()
	band := AssignBand("node-a", cfg)
	assert.True(t, band.StartHz >= cfg.BandStartHz)
	assert.True(t, band.EndHz <= cfg.BandStartHz+float64(cfg.NumAcousticBands)*cfg.BandWidthHz)
	assert.InDelta(t, cfg.BandWidthHz, band.EndHz-band.StartHz, 1e-9)
}

func TestAssignBandDeterministic(t *testing.T) {
	cfg := testConfig()
	assert.Equal(t, AssignBand("node-a", cfg), AssignBand("node-a", cfg))
}

func TestFuseDistancesPrefersAcoustic(t *testing.T) {
	rf := map[string]float64{"a|b": 5.0}
	acoustic := map[string]float64{"a|b": 4.5}
	fused := FuseDistances(rf, acoustic)
	assert.InDelta(t, 4.5, fused["a|b"].DistanceM, 1e-9)
	assert.True(t, fused["a|b"].FromAcoustic)
}

func TestRecoverMissingAcousticBoundedHop(t *testing.T) {
	direct := map[string]float64{"a|b": 3, "b|c": 4}
	recovered := RecoverMissingAcoustic(direct, []string{"a", "b", "c"}, testConfig())
	assert.InDelta(t, 7, recovered["a|c"], 1e-9)
}

func TestUniformAngularPrior(t *testing.T) {
	d := UniformAngularPrior(3, 4)
	assert.InDelta(t, 5, d, 1e-9)
}

func TestCalibrateRejectsTooFewNodes(t *testing.T) {
	_, err := Calibrate(CalibrationInput{NodeIDs: []string{"a"}}, testConfig())
	assert.ErrorIs(t, err, ErrInsufficientNodes)
}

func TestCalibrateRejectsNoDistances(t *testing.T) {
	_, err := Calibrate(CalibrationInput{NodeIDs: []string{"a", "b"}}, testConfig())
	assert.ErrorIs(t, err, ErrAcousticFailure)
}

func TestCalibrateProducesPositionsAndBands(t *testing.T) {
	in := CalibrationInput{
		NodeIDs:            []string{"a", "b", "c", "d"},
		AnchorNodeID:       "a",
		SecondAnchorNodeID: "b",
		RFDistances: map[string]float64{
			"a|b": 3, "a|c": 4, "a|d": 5,
			"b|c": 5, "b|d": 4, "c|d": 3,
		},
		LinkAttenuations: []LinkAttenuationObservation{
			{A: geometry.Point{X: 0, Y: 0}, B: geometry.Point{X: 3, Y: 0}, AttenuationDB: 12},
		},
	}
	res, err := Calibrate(in, testConfig())
	require.NoError(t, err)
	require.NotNil(t, res.FloorPlan)

	require.Len(t, res.FloorPlan.NodePositions, 4)
	assert.InDelta(t, 0, res.FloorPlan.NodePositions["a"].X, 0.01)
	assert.InDelta(t, 0, res.FloorPlan.NodePositions["a"].Y, 0.01)
	assert.InDelta(t, 3, res.FloorPlan.NodePositions["b"].X, 0.01)
	assert.InDelta(t, 0, res.FloorPlan.NodePositions["b"].Y, 0.01)

	require.Len(t, res.FloorPlan.Walls, 1)
	assert.True(t, res.FloorPlan.Walls[0].FromCalib)

	require.Len(t, res.Bands, 4)
	assert.Equal(t, AssignBand("a", testConfig()), res.Bands["a"])

	assert.Nil(t, res.FloorPlan.WallGrid)
}

func TestCalibrateFillsGapsAndBuildsWallGrid(t *testing.T) {
	grid := tomography.Grid{OriginX: 0, OriginY: 0, CellSizeM: 1, Cols: 4, Rows: 4}
	links := []tomography.Link{
		{A: geometry.Point{X: 0, Y: 2}, B: geometry.Point{X: 4, Y: 2}, Attenuation: 10, Confidence: 0.9},
		{A: geometry.Point{X: 2, Y: 0}, B: geometry.Point{X: 2, Y: 4}, Attenuation: 1, Confidence: 0.9},
	}
	in := CalibrationInput{
		NodeIDs:      []string{"a", "b", "c"},
		AnchorNodeID: "a",
		RFDistances: map[string]float64{
			"a|b": 3,
			"a|c": 4,
			// b|c deliberately omitted: must be filled by the angular prior.
		},
		TomographyLinks:  links,
		TomographyGrid:   grid,
		TomographyConfig: tomography.Config{KernelRadiusM: 2, RidgeConstant: 0.1, RidgeMin: 0.01, RidgeMax: 10, RankTolerance: 1e-9},
	}
	cfg := testConfig()
	cfg.WallDecisionThreshDB = 5

	res, err := Calibrate(in, cfg)
	require.NoError(t, err)
	require.Len(t, res.FloorPlan.NodePositions, 3)

	require.NotNil(t, res.FloorPlan.WallGrid)
	cells, err := res.FloorPlan.WallGrid.Cells()
	require.NoError(t, err)
	assert.Len(t, cells, grid.NumCells())
}

func TestFillGapsWithAngularPrior(t *testing.T) {
	d := [][]float64{
		{0, 3, 4},
		{3, 0, 0},
		{4, 0, 0},
	}
	fillGapsWithAngularPrior(d, 0)
	assert.InDelta(t, 5, d[1][2], 1e-9)
	assert.InDelta(t, 5, d[2][1], 1e-9)
}

func TestDetectWallsFromLinksThreshold(t *testing.T) {
	obs := []LinkAttenuationObservation{
		{A: geometry.Point{X: 0, Y: 0}, B: geometry.Point{X: 10, Y: 0}, AttenuationDB: 15},
		{A: geometry.Point{X: 0, Y: 5}, B: geometry.Point{X: 10, Y: 5}, AttenuationDB: 2},
	}
	walls := DetectWallsFromLinks(obs, testConfig(), 0.5)
	assert.Len(t, walls, 1)
	assert.Equal(t, 15.0, walls[0].Score)
}
