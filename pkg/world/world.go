// Package world assembles the fused WorldState each pipeline cycle: a
// FloorPlan snapshot plus per-zone motion intensity (exponentially
// decayed) and device positions, and evaluates recalibration triggers
// (spec.md §4.8).
//
// The exponential decay shape is grounded directly on the teacher's
// pkg/decay package, generalized from three fixed memory-tier half-lives
// to a single continuously configurable lambda.
package world

import (
	"math"
	"time"

	"github.com/closedform/senseye/pkg/belief"
	"github.com/closedform/senseye/pkg/floorplan"
	"github.com/closedform/senseye/pkg/geometry"
)

// ZoneState tracks one zone's decayed motion intensity.
type ZoneState struct {
	MotionIntensity float64
	OccupiedProb    float64
	LastUpdate      time.Time
}

// DecayMotion applies spec.md §4.8's exponential decay step:
//
//	I_t = I_{t-1} * exp(-lambda*dt)
//	I_t = max(I_t, P_motion_zone)
//
// grounded on pkg/decay's half-life-driven exponential falloff, here
// parameterized directly by lambda rather than a named tier.
func (z *ZoneState) DecayMotion(now time.Time, lambda, motionProb float64) {
	dt := now.Sub(z.LastUpdate).Seconds()
	if dt < 0 {
		dt = 0
	}
	z.MotionIntensity *= math.Exp(-lambda * dt)
	z.MotionIntensity = math.Max(z.MotionIntensity, motionProb)
	z.LastUpdate = now
}

// NodeHealth tracks per-peer liveness and error counters, surfaced in
// WorldSnapshot per spec.md §7 ("User-visible failures appear as status
// fields in WorldSnapshot ... rather than crashes").
type NodeHealth struct {
	LastSeen        time.Time
	MalformedFrames uint64
	ReconnectCount  uint64
	Excluded        bool
}

// CalibrationStatus reports the health of the last calibration run.
type CalibrationStatus struct {
	LastRunAt time.Time
	Succeeded bool
	Error     string
}

// DevicePosition is a fused device location assigned to the nearest room,
// carrying the consensus motion flag and confidence C4 produced for it
// (spec.md §2: "C4 outputs feed C5/C6 and the world state"). C4's fused
// RSSI is not carried.
type DevicePosition struct {
	DeviceID   string
	Position   geometry.Point
	RoomID     string
	Confidence float64
	Moving     bool
}

// WorldState is the pipeline's per-cycle output (spec.md §3): a FloorPlan
// plus dynamic overlay.
type WorldState struct {
	FloorPlan   *floorplan.FloorPlan
	Zones       map[string]*ZoneState
	Devices     []DevicePosition
	NodeHealth  map[string]NodeHealth
	Calibration CalibrationStatus
	MapAge      time.Duration
	GeneratedAt time.Time
}

// New returns an empty WorldState anchored to the given FloorPlan (which
// may be nil if no calibration has completed yet).
func New(fp *floorplan.FloorPlan) *WorldState {
	return &WorldState{
		FloorPlan:  fp,
		Zones:      make(map[string]*ZoneState),
		NodeHealth: make(map[string]NodeHealth),
	}
}

// UpdateZone applies the decay step and, when a fused ZoneBelief is
// available this cycle, folds in its occupancy reading.
func (w *WorldState) UpdateZone(zoneID string, now time.Time, lambda float64, fused *belief.ZoneBelief) {
	z, ok := w.Zones[zoneID]
	if !ok {
		z = &ZoneState{LastUpdate: now}
		w.Zones[zoneID] = z
	}
	motionProb := 0.0
	if fused != nil {
		motionProb = fused.MotionProb
		z.OccupiedProb = fused.OccupiedProb
	}
	z.DecayMotion(now, lambda, motionProb)
}

// AssignRoom returns the ID of the room polygon containing p; when none
// contains it, the ID of the room whose center is nearest p (spec.md §4.8:
// "Devices are assigned to the nearest room center when position estimates
// exist"). It returns "" only when rooms is empty.
func AssignRoom(p geometry.Point, rooms map[string]geometry.Polygon) string {
	bestID := ""
	bestDist := math.Inf(1)
	for id, poly := range rooms {
		if poly.Contains(p) {
			return id
		}
		d := geometry.Distance(p, poly.Center())
		if d < bestDist {
			bestDist = d
			bestID = id
		}
	}
	return bestID
}

// RecalibrationTriggerConfig tunes when recalibration is requested.
type RecalibrationTriggerConfig struct {
	RSSIDriftThreshold  float64
	MinCommonDevices    int
	RecalibrationPeriod time.Duration
}

// ShouldRecalibrate evaluates spec.md §4.8's OR'd recalibration triggers:
// no floorplan; peer set membership changed; scheduled acoustic interval
// elapsed; average device-RSSI drift exceeds threshold over >= N_min
// common devices.
func ShouldRecalibrate(
	fp *floorplan.FloorPlan,
	peerSetChanged bool,
	lastCalibration time.Time,
	now time.Time,
	avgRSSIDriftDB float64,
	commonDeviceCount int,
	cfg RecalibrationTriggerConfig,
) bool {
	if fp == nil {
		return true
	}
	if peerSetChanged {
		return true
	}
	if now.Sub(lastCalibration) >= cfg.RecalibrationPeriod {
		return true
	}
	if commonDeviceCount >= cfg.MinCommonDevices && math.Abs(avgRSSIDriftDB) > cfg.RSSIDriftThreshold {
		return true
	}
	return false
}
