// Package floorplan defines the static map produced by calibration
// (spec.md §4.7, §6): node positions, walls, rooms, topology and
// baseline device RSSI fingerprints, plus a FloorPlanStore contract for
// the external collaborator that persists it.
//
// The JSON-file adapter is grounded on the teacher's
// pkg/storage/mimir_loader.go: a directory-based JSON load/save with the
// same open-decode-close shape, simplified from Mimir's multi-file graph
// export down to a single floorplan.json document.
package floorplan

import (
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/closedform/senseye/pkg/geometry"
)

// ErrNotFound is returned by a FloorPlanStore when no floorplan has been
// persisted yet.
var ErrNotFound = errors.New("floorplan: not found")

// Wall is a static obstruction segment, either operator-supplied or
// promoted from a calibration wall candidate.
type Wall struct {
	Segment   geometry.Segment `json:"segment"`
	AttenDB   float64          `json:"atten_db"`
	FromCalib bool             `json:"from_calibration"`
}

// Room is a named polygonal zone used for device-to-room assignment and
// occupancy aggregation (spec.md §3 "Zone").
type Room struct {
	ID      string           `json:"id"`
	Polygon geometry.Polygon `json:"polygon"`
}

// BaselineRSSI records the RSSI a node observed for a device at
// calibration time, used to detect the drift trigger in spec.md §4.8.
type BaselineRSSI struct {
	NodeID   string  `json:"node_id"`
	DeviceID string  `json:"device_id"`
	RSSIDBm  float64 `json:"rssi_dbm"`
}

// WallGrid is the per-cell attenuation field C6 reconstructs, persisted as
// a base64-encoded float64 array plus its dimensions (spec.md §3: "walls:
// grid of attenuation cells"; §6: "wall grid as base64-encoded float array
// plus dims"). The discrete per-link Wall segments above remain the
// midpoint-perpendicular wall candidates; WallGrid is the tomography
// reconstruction's own continuous view of the same walls.
type WallGrid struct {
	OriginX     float64 `json:"origin_x"`
	OriginY     float64 `json:"origin_y"`
	CellSizeM   float64 `json:"cell_size_m"`
	Cols        int     `json:"cols"`
	Rows        int     `json:"rows"`
	CellsBase64 string  `json:"cells_base64"`
}

// NewWallGrid encodes a solved attenuation field (length cols*rows,
// row-major) into its persisted base64 form.
func NewWallGrid(cols, rows int, originX, originY, cellSizeM float64, field []float64) WallGrid {
	buf := make([]byte, 8*len(field))
	for i, v := range field {
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(v))
	}
	return WallGrid{
		OriginX:     originX,
		OriginY:     originY,
		CellSizeM:   cellSizeM,
		Cols:        cols,
		Rows:        rows,
		CellsBase64: base64.StdEncoding.EncodeToString(buf),
	}
}

// Cells decodes the persisted field back into a row-major float64 slice of
// length Cols*Rows.
func (g WallGrid) Cells() ([]float64, error) {
	raw, err := base64.StdEncoding.DecodeString(g.CellsBase64)
	if err != nil {
		return nil, fmt.Errorf("floorplan: decoding wall grid: %w", err)
	}
	want := g.Cols * g.Rows
	if len(raw) != 8*want {
		return nil, fmt.Errorf("floorplan: wall grid length mismatch: got %d bytes, want %d", len(raw), 8*want)
	}
	out := make([]float64, want)
	for i := range out {
		out[i] = math.Float64frombits(binary.LittleEndian.Uint64(raw[i*8:]))
	}
	return out, nil
}

// FloorPlan is the static map a calibration run produces (spec.md §6).
type FloorPlan struct {
	NodePositions map[string]geometry.Point `json:"node_positions"`
	Walls         []Wall                    `json:"walls"`
	WallGrid      *WallGrid                 `json:"wall_grid,omitempty"`
	Rooms         []Room                    `json:"rooms"`
	Topology      map[string][]string       `json:"topology"`
	BaselineRSSI  []BaselineRSSI            `json:"baseline_device_rssis"`
	BuiltAt       time.Time                 `json:"built_at"`
}

// RoomPolygons indexes Rooms by ID for use with pkg/world.AssignRoom.
func (f *FloorPlan) RoomPolygons() map[string]geometry.Polygon {
	out := make(map[string]geometry.Polygon, len(f.Rooms))
	for _, r := range f.Rooms {
		out[r.ID] = r.Polygon
	}
	return out
}

// Store is the external-collaborator contract for persisting and loading
// the floorplan (spec.md §6: "FloorPlanStore ... is an explicit external
// collaborator; the core package only depends on this interface").
type Store interface {
	Load() (*FloorPlan, error)
	Save(fp *FloorPlan) error
}

// FileStore is a default JSON-file-backed Store, grounded on the
// teacher's directory-based Mimir export loader.
type FileStore struct {
	Dir string
}

// NewFileStore returns a Store that reads/writes "floorplan.json" inside
// dir.
func NewFileStore(dir string) *FileStore {
	return &FileStore{Dir: dir}
}

func (s *FileStore) path() string {
	return filepath.Join(s.Dir, "floorplan.json")
}

// Load decodes the persisted floorplan, or returns ErrNotFound if none
// exists yet.
func (s *FileStore) Load() (*FloorPlan, error) {
	f, err := os.Open(s.path())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("floorplan: opening: %w", err)
	}
	defer f.Close()

	var fp FloorPlan
	if err := json.NewDecoder(f).Decode(&fp); err != nil {
		return nil, fmt.Errorf("floorplan: decoding: %w", err)
	}
	return &fp, nil
}

// Save writes fp to disk, creating the directory if needed.
func (s *FileStore) Save(fp *FloorPlan) error {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return fmt.Errorf("floorplan: creating dir: %w", err)
	}
	tmp := s.path() + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("floorplan: creating file: %w", err)
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(fp); err != nil {
		f.Close()
		return fmt.Errorf("floorplan: encoding: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("floorplan: closing: %w", err)
	}
	return os.Rename(tmp, s.path())
}
