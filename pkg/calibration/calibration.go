// Package calibration implements the calibration orchestrator: fusing RF
// and acoustic distance matrices, running MDS to recover node layout,
// assigning each node its acoustic chirp band, and emitting wall
// candidates from fused link attenuation (spec.md §4.7).
package calibration

import (
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/closedform/senseye/pkg/floorplan"
	"github.com/closedform/senseye/pkg/geometry"
	"github.com/closedform/senseye/pkg/tomography"
	"github.com/closedform/senseye/pkg/topology"
)

// Sentinel errors surfaced to the caller per spec.md §7 ("Calibration:
// InsufficientNodes, InsufficientAnchors, AcousticFailure -> return to
// caller; the node continues with prior floorplan or none").
var (
	ErrInsufficientNodes = errors.New("calibration: fewer than 2 nodes with known distances")
	ErrAcousticFailure   = errors.New("calibration: acoustic ranging failed for all pairs")
)

// Config tunes the orchestrator.
type Config struct {
	AcousticHopCap       int
	NumAcousticBands     int
	BandStartHz          float64
	BandWidthHz          float64
	FreeSpacePathLossN   float64
	WallDecisionThreshDB float64
}

// AcousticBand is the matched-filter frequency range assigned to a node.
type AcousticBand struct {
	StartHz, EndHz float64
}

// AssignBand deterministically assigns node an acoustic signature band via
// k = SHA256(node_id) mod N_c; f_start = 17000 + 1000*k (spec.md §4.7).
func AssignBand(nodeID string, cfg Config) AcousticBand {
	sum := sha256.Sum256([]byte(nodeID))
	k := binary.BigEndian.Uint64(sum[:8]) % uint64(cfg.NumAcousticBands)
	start := cfg.BandStartHz + float64(k)*cfg.BandWidthHz
	return AcousticBand{StartHz: start, EndHz: start + cfg.BandWidthHz}
}

// DistancePair is one observed or recovered distance between two nodes.
type DistancePair struct {
	A, B         string
	DistanceM    float64
	FromAcoustic bool
}

// FuseDistances merges RF-derived and acoustic distance observations,
// preferring acoustic when present, falling back to RF otherwise (spec.md
// §4.7). Both maps are keyed by "a|b" with a<b lexicographically.
func FuseDistances(rf, acoustic map[string]float64) map[string]DistancePair {
	out := make(map[string]DistancePair, len(rf)+len(acoustic))
	for key, d := range rf {
		a, b := splitKey(key)
		out[key] = DistancePair{A: a, B: b, DistanceM: d, FromAcoustic: false}
	}
	for key, d := range acoustic {
		a, b := splitKey(key)
		out[key] = DistancePair{A: a, B: b, DistanceM: d, FromAcoustic: true}
	}
	return out
}

func splitKey(key string) (string, string) {
	for i := 0; i < len(key); i++ {
		if key[i] == '|' {
			return key[:i], key[i+1:]
		}
	}
	return key, ""
}

// RecoverMissingAcoustic fills in pairs absent from direct acoustic
// measurement using a bounded-hop shortest path over the known direct
// acoustic edges (spec.md §4.7, hop cap cfg.AcousticHopCap). nodeIDs lists
// every node that should have a recovered pairwise distance.
func RecoverMissingAcoustic(direct map[string]float64, nodeIDs []string, cfg Config) map[string]float64 {
	g := topology.NewGraph()
	for key, d := range direct {
		a, b := splitKey(key)
		g.AddEdge(a, b, d)
	}
	recovered := make(map[string]float64, len(direct))
	for k, v := range direct {
		recovered[k] = v
	}
	for i := 0; i < len(nodeIDs); i++ {
		for j := i + 1; j < len(nodeIDs); j++ {
			key := pairKey(nodeIDs[i], nodeIDs[j])
			if _, ok := recovered[key]; ok {
				continue
			}
			if d, ok := g.BoundedHopShortestPath(nodeIDs[i], nodeIDs[j], cfg.AcousticHopCap); ok {
				recovered[key] = d
			}
		}
	}
	return recovered
}

// UniformAngularPrior estimates an unknown pairwise distance from each
// node's distance to a shared reference node, per spec.md §4.7:
// D_hat_ij = sqrt(D0_i^2 + D0_j^2).
func UniformAngularPrior(d0i, d0j float64) float64 {
	return math.Sqrt(d0i*d0i + d0j*d0j)
}

func pairKey(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return a + "|" + b
}

// LinkAttenuationObservation is one fused link's excess attenuation, used
// for wall-candidate emission.
type LinkAttenuationObservation struct {
	A, B          geometry.Point
	AttenuationDB float64
}

// WallCandidate is a short perpendicular segment marking a suspected wall
// at a link's midpoint (spec.md §4.7).
type WallCandidate struct {
	Segment geometry.Segment
	Score   float64
}

// DetectWallsFromLinks emits a wall candidate for every link whose fused
// attenuation exceeds the configured threshold, at the link's midpoint,
// perpendicular to the link (spec.md §4.7: "candidates are emitted both
// per-link (midpoint-perpendicular segments) and from C6's tomography
// peaks").
func DetectWallsFromLinks(obs []LinkAttenuationObservation, cfg Config, halfLenM float64) []WallCandidate {
	var out []WallCandidate
	for _, o := range obs {
		if o.AttenuationDB < cfg.WallDecisionThreshDB {
			continue
		}
		seg := geometry.Segment{A: o.A, B: o.B}
		mid := geometry.Midpoint(seg)
		perp := geometry.PerpendicularAt(mid, seg, halfLenM)
		out = append(out, WallCandidate{Segment: perp, Score: o.AttenuationDB})
	}
	return out
}

// CalibrationInput bundles the measurements the orchestrator needs for one
// run (spec.md §4.7). NodeIDs lists every node to position; AnchorNodeID is
// translated to the origin and, when SecondAnchorNodeID also names a known
// node, the layout is rotated so that node lies on the positive X axis.
type CalibrationInput struct {
	NodeIDs            []string
	AnchorNodeID       string
	SecondAnchorNodeID string
	RFDistances        map[string]float64
	AcousticDirect     map[string]float64
	LinkAttenuations   []LinkAttenuationObservation
	WallHalfLenM       float64
	TomographyLinks    []tomography.Link
	TomographyGrid     tomography.Grid
	TomographyConfig   tomography.Config
	BaselineRSSI       []floorplan.BaselineRSSI
	BuiltAt            time.Time
}

// Result is one calibration run's output: the recovered FloorPlan plus the
// acoustic signature band assigned to each node for its next chirp cycle.
type Result struct {
	FloorPlan *floorplan.FloorPlan
	Bands     map[string]AcousticBand
}

// Calibrate is the calibration orchestrator's entry point (spec.md §6:
// "calibrate() entry point: runs the calibration orchestrator, returns an
// updated FloorPlan or a CalibrationError"). It fuses RF and acoustic
// distances, recovers missing acoustic pairs by bounded-hop shortest path,
// falls back to the uniform angular prior for pairs that still have no
// distance, runs classical MDS to lay out the nodes, canonicalizes the
// orientation against the chosen anchors, emits wall candidates from fused
// link attenuation and from C6's tomography reconstruction, and assigns
// every node its next acoustic band.
func Calibrate(in CalibrationInput, cfg Config) (*Result, error) {
	if len(in.NodeIDs) < 2 {
		return nil, ErrInsufficientNodes
	}
	if len(in.RFDistances) == 0 && len(in.AcousticDirect) == 0 {
		return nil, ErrAcousticFailure
	}

	acoustic := RecoverMissingAcoustic(in.AcousticDirect, in.NodeIDs, cfg)
	fused := FuseDistances(in.RFDistances, acoustic)

	n := len(in.NodeIDs)
	idx := make(map[string]int, n)
	for i, id := range in.NodeIDs {
		idx[id] = i
	}
	d := make([][]float64, n)
	for i := range d {
		d[i] = make([]float64, n)
	}
	for _, pair := range fused {
		i, okI := idx[pair.A]
		j, okJ := idx[pair.B]
		if !okI || !okJ {
			continue
		}
		d[i][j], d[j][i] = pair.DistanceM, pair.DistanceM
	}

	anchorIdx, ok := idx[in.AnchorNodeID]
	if !ok {
		anchorIdx = 0
	}
	fillGapsWithAngularPrior(d, anchorIdx)

	points := ClassicalMDS(d)
	secondIdx := -1
	if i, ok := idx[in.SecondAnchorNodeID]; ok {
		secondIdx = i
	}
	points = CanonicalizeOrientation(points, anchorIdx, secondIdx)

	positions := make(map[string]geometry.Point, n)
	for i, id := range in.NodeIDs {
		positions[id] = points[i]
	}

	candidates := DetectWallsFromLinks(in.LinkAttenuations, cfg, in.WallHalfLenM)
	walls := make([]floorplan.Wall, len(candidates))
	for i, c := range candidates {
		walls[i] = floorplan.Wall{Segment: c.Segment, AttenDB: c.Score, FromCalib: true}
	}

	wallGrid, rooms, topo := reconstructWallGrid(in.TomographyLinks, in.TomographyGrid, in.TomographyConfig, cfg)

	bands := make(map[string]AcousticBand, n)
	for _, id := range in.NodeIDs {
		bands[id] = AssignBand(id, cfg)
	}

	fp := &floorplan.FloorPlan{
		NodePositions: positions,
		Walls:         walls,
		WallGrid:      wallGrid,
		Rooms:         rooms,
		Topology:      topo,
		BaselineRSSI:  in.BaselineRSSI,
		BuiltAt:       in.BuiltAt,
	}
	return &Result{FloorPlan: fp, Bands: bands}, nil
}

// fillGapsWithAngularPrior fills any unknown (zero) pairwise distance using
// the uniform angular prior from each node's own distance to the anchor,
// when both are known (spec.md §4.7).
func fillGapsWithAngularPrior(d [][]float64, anchorIdx int) {
	n := len(d)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if d[i][j] > 0 || i == anchorIdx || j == anchorIdx {
				continue
			}
			di, dj := d[i][anchorIdx], d[anchorIdx][j]
			if di > 0 && dj > 0 {
				d[i][j] = UniformAngularPrior(di, dj)
				d[j][i] = d[i][j]
			}
		}
	}
}

// reconstructWallGrid runs C6 over the calibration link set, thresholds and
// thins the resulting field into wall-like skeleton lines (spec.md §4.6:
// "wall candidates are cells exceeding a peak threshold with morphological
// thinning"), and partitions the surviving open cells into rooms by
// connectivity (spec.md §4.7: "Rooms emerge from connectivity partitions of
// the walled grid"). Returns nils when there are too few links to
// reconstruct anything.
func reconstructWallGrid(links []tomography.Link, grid tomography.Grid, tomoCfg tomography.Config, cfg Config) (*floorplan.WallGrid, []floorplan.Room, map[string][]string) {
	if len(links) == 0 || grid.Cols == 0 || grid.Rows == 0 {
		return nil, nil, nil
	}
	res, err := tomography.Reconstruct(links, grid, tomoCfg)
	if err != nil {
		return nil, nil, nil
	}

	peaks := tomography.PeakCells(res.Field, cfg.WallDecisionThreshDB)
	on := make([]bool, grid.NumCells())
	for _, p := range peaks {
		on[p] = true
	}
	thinned := topology.ThinGrid(grid.Cols, grid.Rows, on)

	thinnedField := make([]float64, len(res.Field))
	for i, v := range res.Field {
		if thinned[i] {
			thinnedField[i] = v
		}
	}
	wallGrid := floorplan.NewWallGrid(grid.Cols, grid.Rows, grid.OriginX, grid.OriginY, grid.CellSizeM, thinnedField)

	rooms, topo := roomsFromOpenCells(grid, thinned)
	return &wallGrid, rooms, topo
}

func cellID(col, row int) string { return fmt.Sprintf("%d_%d", col, row) }

// roomsFromOpenCells treats every cell not on the thinned wall skeleton as
// open floor, connects orthogonal open neighbors, and turns each connected
// component into a Room whose polygon is its cells' bounding box.
func roomsFromOpenCells(grid tomography.Grid, wall []bool) ([]floorplan.Room, map[string][]string) {
	g := topology.NewGraph()
	for row := 0; row < grid.Rows; row++ {
		for col := 0; col < grid.Cols; col++ {
			if wall[row*grid.Cols+col] {
				continue
			}
			id := cellID(col, row)
			if col+1 < grid.Cols && !wall[row*grid.Cols+col+1] {
				g.AddEdge(id, cellID(col+1, row), 1)
			}
			if row+1 < grid.Rows && !wall[(row+1)*grid.Cols+col] {
				g.AddEdge(id, cellID(col, row+1), 1)
			}
		}
	}

	rooms := make([]floorplan.Room, 0)
	topo := make(map[string][]string)
	for i, comp := range g.ConnectedComponents() {
		minX, minY := math.Inf(1), math.Inf(1)
		maxX, maxY := math.Inf(-1), math.Inf(-1)
		for _, id := range comp {
			var col, row int
			fmt.Sscanf(id, "%d_%d", &col, &row)
			c := grid.CellCenter(col, row)
			minX, maxX = math.Min(minX, c.X), math.Max(maxX, c.X)
			minY, maxY = math.Min(minY, c.Y), math.Max(maxY, c.Y)
		}
		roomID := fmt.Sprintf("room-%d", i)
		rooms = append(rooms, floorplan.Room{
			ID: roomID,
			Polygon: geometry.Polygon{Vertices: []geometry.Point{
				{X: minX, Y: minY}, {X: maxX, Y: minY}, {X: maxX, Y: maxY}, {X: minX, Y: maxY},
			}},
		})
		topo[roomID] = nil
	}
	return rooms, topo
}
