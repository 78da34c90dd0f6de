package eval

import (
	"github.com/closedform/senseye/pkg/geometry"
	"github.com/closedform/senseye/pkg/tomography"
	"github.com/closedform/senseye/pkg/trilateration"
)

// BuiltinTrilaterationCases returns the demo C5 scenarios senseye-eval
// runs when no custom suite is given, mirroring spec.md §8 scenario 3
// (a single corrupted anchor that robust IRLS must reject).
func BuiltinTrilaterationCases() []TrilaterationCase {
	clean := []trilateration.Anchor{
		{Position: geometry.Point{X: 0, Y: 0}, RangeM: 7.07},
		{Position: geometry.Point{X: 10, Y: 0}, RangeM: 7.07},
		{Position: geometry.Point{X: 0, Y: 10}, RangeM: 7.07},
		{Position: geometry.Point{X: 10, Y: 10}, RangeM: 7.07},
	}
	withOutlier := append(append([]trilateration.Anchor{}, clean...), trilateration.Anchor{
		Position: geometry.Point{X: -20, Y: -20}, RangeM: 1,
	})

	return []TrilaterationCase{
		{Name: "clean_4_anchor", TruePosition: geometry.Point{X: 5, Y: 5}, Anchors: clean, MaxErrorM: 0.2},
		{Name: "one_bad_anchor", TruePosition: geometry.Point{X: 5, Y: 5}, Anchors: withOutlier, MaxErrorM: 0.2},
	}
}

// BuiltinTomographyCases returns the demo C6 scenario, mirroring spec.md
// §8 scenario 4 (a single horizontal link producing a flat-row peak).
func BuiltinTomographyCases() []TomographyCase {
	grid := tomography.Grid{OriginX: 0, OriginY: 0, CellSizeM: 1, Cols: 5, Rows: 3}
	links := []tomography.Link{
		{A: geometry.Point{X: 0, Y: 1.5}, B: geometry.Point{X: 5, Y: 1.5}, Attenuation: 15, Confidence: 0.9},
	}
	return []TomographyCase{
		{Name: "horizontal_wall", Grid: grid, Links: links, ExpectedPeak: 1 * grid.Cols, MaxCellOffset: grid.Cols},
	}
}
