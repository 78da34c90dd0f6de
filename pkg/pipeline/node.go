// Package pipeline wires the per-cycle SCAN -> FILTER -> INFER -> SHARE
// -> FUSE -> WORLD flow (spec.md §3, §5) out of the component packages.
// cmd/senseyed parses flags and config, then drives a Node built here.
//
// The single-threaded cooperative cycle (one RunCycle call does the
// entire pipeline synchronously, with gossip I/O handled by the mesh's
// own goroutines feeding buffered channels) follows spec.md §5's
// concurrency model, grounded in shape on the teacher's
// cmd/nornicdb/main.go runServe wiring style: a thin orchestration layer
// over independently testable packages rather than a framework.
package pipeline

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/closedform/senseye/pkg/belief"
	"github.com/closedform/senseye/pkg/calibration"
	"github.com/closedform/senseye/pkg/config"
	"github.com/closedform/senseye/pkg/floorplan"
	"github.com/closedform/senseye/pkg/fusion"
	"github.com/closedform/senseye/pkg/geometry"
	"github.com/closedform/senseye/pkg/gossip"
	"github.com/closedform/senseye/pkg/inference"
	"github.com/closedform/senseye/pkg/kalman"
	"github.com/closedform/senseye/pkg/measurement"
	"github.com/closedform/senseye/pkg/observe"
	"github.com/closedform/senseye/pkg/ports"
	"github.com/closedform/senseye/pkg/trilateration"
	"github.com/closedform/senseye/pkg/world"
	"github.com/closedform/senseye/pkg/worldstore"
)

// Node is one sensing node's running pipeline state.
type Node struct {
	NodeID string
	cfg    config.Config
	log    *observe.Logger

	scanner ports.Scanner
	mesh    *gossip.Mesh
	wstore  worldstore.Store
	fpStore floorplan.Store

	// peerNodeIDs distinguishes a measurement's Target being another
	// sensing node (link inference, C2's LinkObservation) from it being an
	// observed device (device inference, C2's DeviceObservation). Known up
	// front from the configured peer list rather than derived from
	// FloorPlan.NodePositions, which does not exist before a node's first
	// calibration run.
	peerNodeIDs map[string]bool

	filters map[measurement.PathKey]*kalman.Filter
	state   *world.WorldState

	lastCalibration time.Time
}

// NewNode assembles a Node from its external collaborators and config.
// peerNodeIDs lists the other sensing nodes this node measures paths to;
// any other measurement target is treated as an observed device.
func NewNode(nodeID string, cfg config.Config, scanner ports.Scanner, mesh *gossip.Mesh, wstore worldstore.Store, fpStore floorplan.Store, peerNodeIDs []string) *Node {
	fp, err := fpStore.Load()
	if err != nil {
		fp = nil
	}
	peerSet := make(map[string]bool, len(peerNodeIDs))
	for _, id := range peerNodeIDs {
		peerSet[id] = true
	}
	return &Node{
		NodeID:      nodeID,
		cfg:         cfg,
		log:         observe.New("pipeline", observe.LevelInfo),
		scanner:     scanner,
		mesh:        mesh,
		wstore:      wstore,
		fpStore:     fpStore,
		peerNodeIDs: peerSet,
		filters:     make(map[measurement.PathKey]*kalman.Filter),
		state:       world.New(fp),
	}
}

// measurementVariance returns the Kalman measurement-noise variance for
// a measurement kind (spec.md §4.1: separate RSSI vs. acoustic noise
// floors).
func (n *Node) measurementVariance(k measurement.Kind) float64 {
	if k == measurement.KindAcoustic {
		return n.cfg.Kalman.AcousticMeasVar
	}
	return n.cfg.Kalman.RSSIMeasVariance
}

func (n *Node) kalmanConfig() kalman.Config {
	return kalman.Config{
		ProcessNoiseQ:    n.cfg.Kalman.ProcessNoiseQ,
		JumpZScore:       n.cfg.Kalman.JumpZScore,
		JumpScaleFactor:  n.cfg.Kalman.JumpScaleFactor,
		MinInnovationVar: n.cfg.Kalman.MinInnovationVar,
		PathTTL:          n.cfg.Kalman.PathTTL,
		RingBufferSize:   n.cfg.Kalman.RingBufferSize,
	}
}

func (n *Node) trilaterationConfig() trilateration.Config {
	return trilateration.Config{
		MaxIterations:     n.cfg.Trilateration.MaxIterations,
		ConvergenceTol:    n.cfg.Trilateration.ConvergenceTol,
		LevenbergLambda:   n.cfg.Trilateration.LevenbergLambda,
		MinSigma:          n.cfg.Trilateration.MinSigma,
		TukeyCutoffFactor: n.cfg.Trilateration.TukeyCutoffFactor,
		InlierRhoMax:      n.cfg.Trilateration.InlierRhoMax,
	}
}

// filterFor returns the path's Kalman filter, creating it from the
// measurement's own value as the initial state if this is the first
// observation on that path (spec.md §4.1).
func (n *Node) filterFor(m measurement.Measurement) *kalman.Filter {
	key := m.Path()
	f, ok := n.filters[key]
	if ok {
		return f
	}
	f = kalman.New(n.kalmanConfig(), n.measurementVariance(m.Kind), m.Value(), m.Timestamp)
	n.filters[key] = f
	return f
}

// linkObservation reduces a path's current Kalman state into the
// evidence InferLink needs. distanceM is the inter-node distance the
// caller derived from FloorPlan positions, or 0 when it is not known.
func linkObservation(f *kalman.Filter, distanceM float64) inference.LinkObservation {
	st := f.State()
	return inference.LinkObservation{
		FilteredRSSI: st.Mean[0],
		DistanceM:    distanceM,
		RingVariance: kalman.Variance(st.RingBuffer),
		Innovation:   st.LastInnovation,
		SampleCount:  len(st.RingBuffer),
	}
}

// deviceObservation reduces a path's current Kalman state into the
// evidence InferDevice needs (spec.md §4.2, C2).
func deviceObservation(f *kalman.Filter) inference.DeviceObservation {
	st := f.State()
	return inference.DeviceObservation{
		FilteredRSSI: st.Mean[0],
		RingVariance: kalman.Variance(st.RingBuffer),
		Innovation:   st.LastInnovation,
		SampleCount:  len(st.RingBuffer),
	}
}

func (n *Node) inferenceConfig() inference.Config {
	return inference.Config{
		MotionVarianceThreshold: n.cfg.Inference.MotionVarianceThreshold,
		PathLossExponentIndoor:  n.cfg.Inference.PathLossExponentIndoor,
		PathLossExponentFree:    n.cfg.Inference.PathLossExponentFree,
		PathLossInterceptA:      n.cfg.Inference.PathLossInterceptA,
		MinDistanceM:            n.cfg.Inference.MinDistanceM,
	}
}

// RunCycle executes one full SCAN -> FILTER -> INFER -> SHARE -> FUSE ->
// WORLD pass.
func (n *Node) RunCycle(ctx context.Context, now time.Time) error {
	meas, err := n.scanner.Scan(ctx)
	if err != nil {
		n.log.Warn("scan failed, skipping cycle", map[string]any{"err": err.Error()})
		return nil
	}

	localLinks := make(map[string]belief.LinkBelief)
	localDevices := make(map[string]belief.DeviceBelief)
	for _, m := range meas {
		f := n.filterFor(m)
		f.Update(m.Value(), m.Timestamp)

		if n.peerNodeIDs[m.Target] {
			pair, perr := belief.NewUnorderedPair(m.Source, m.Target)
			if perr != nil {
				continue
			}
			distanceM := n.knownDistance(pair)
			obs := linkObservation(f, distanceM)
			localLinks[pair.String()] = inference.InferLink(obs, n.inferenceConfig(), n.cfg.Kalman.RingBufferSize)
			continue
		}

		localDevices[m.Target] = inference.InferDevice(deviceObservation(f), n.inferenceConfig(), n.cfg.Kalman.RingBufferSize)
	}

	local := belief.Belief{
		OriginNodeID: n.NodeID,
		Timestamp:    now,
		Links:        localLinks,
		Devices:      localDevices,
		Zones:        map[string]belief.ZoneBelief{},
	}
	if n.mesh != nil {
		if err := n.mesh.PublishBelief(local); err != nil {
			n.log.Warn("publishing belief failed", map[string]any{"err": err.Error()})
		}
	}

	peers := n.drainPeerBeliefs(now)
	fused := n.fuseLinks(local, peers)
	deviceSamples := n.collectDeviceSamples(local, peers)
	n.updateWorld(now, fused, deviceSamples)

	if n.wstore != nil {
		if err := n.wstore.Put(now, n.state); err != nil {
			n.log.Warn("persisting world state failed", map[string]any{"err": err.Error()})
		}
	}
	return nil
}

// knownDistance looks up a geometric distance between a link's endpoints
// from the floorplan, if one has been calibrated, returning 0 (unknown)
// otherwise.
func (n *Node) knownDistance(pair belief.UnorderedPair) float64 {
	if n.state.FloorPlan == nil {
		return 0
	}
	a, okA := n.state.FloorPlan.NodePositions[pair.A]
	b, okB := n.state.FloorPlan.NodePositions[pair.B]
	if !okA || !okB {
		return 0
	}
	dx, dy := a.X-b.X, a.Y-b.Y
	return math.Sqrt(dx*dx + dy*dy)
}

// drainPeerBeliefs collects every currently-buffered peer Belief without
// blocking, discarding stale or invalid ones (spec.md §7).
func (n *Node) drainPeerBeliefs(now time.Time) []belief.Belief {
	if n.mesh == nil {
		return nil
	}
	var out []belief.Belief
	for {
		select {
		case b := <-n.mesh.Beliefs():
			if err := b.Validate(n.cfg.Gossip.MaxHopCount); err != nil {
				continue
			}
			if b.IsStale(now, n.cfg.Fusion.BeliefStaleHorizon) {
				continue
			}
			out = append(out, b)
		default:
			return out
		}
	}
}

// fuseLinks runs consensus fusion (C4) over the local node's belief and
// every peer belief sharing a link key.
func (n *Node) fuseLinks(local belief.Belief, peers []belief.Belief) map[string]belief.LinkBelief {
	allByKey := make(map[string][]struct {
		origin string
		lb     belief.LinkBelief
	})
	for k, lb := range local.Links {
		allByKey[k] = append(allByKey[k], struct {
			origin string
			lb     belief.LinkBelief
		}{local.OriginNodeID, lb})
	}
	for _, p := range peers {
		for k, lb := range p.Links {
			allByKey[k] = append(allByKey[k], struct {
				origin string
				lb     belief.LinkBelief
			}{p.OriginNodeID, lb})
		}
	}

	eps := n.cfg.Fusion.Epsilon
	fused := make(map[string]belief.LinkBelief, len(allByKey))
	for key, entries := range allByKey {
		attenContribs := make([]fusion.Contribution, 0, len(entries))
		motionContribs := make([]fusion.Contribution, 0, len(entries))
		for _, e := range entries {
			attenContribs = append(attenContribs, fusion.Contribution{Origin: e.origin, Value: e.lb.AttenuationDB, Confidence: e.lb.Confidence})
			motionContribs = append(motionContribs, fusion.Contribution{Origin: e.origin, Value: e.lb.MotionProb, Confidence: e.lb.Confidence})
		}
		fused[key] = fusion.FuseLink(attenContribs, motionContribs, n.cfg.Fusion.DisagreementPenaltyScale, eps)
	}
	return fused
}

// deviceSample is one origin node's raw, unfused observation of a device,
// carrying the origin node's ID so its floorplan position can serve as a
// trilateration anchor independent of the C4-fused consensus estimate
// (spec.md §4.5: trilateration needs several distinct anchor/range pairs,
// which a single fused scalar distance would destroy).
type deviceSample struct {
	origin string
	belief belief.DeviceBelief
}

// collectDeviceSamples gathers every origin's (self + peers) raw device
// observations, keyed by device ID.
func (n *Node) collectDeviceSamples(local belief.Belief, peers []belief.Belief) map[string][]deviceSample {
	out := make(map[string][]deviceSample)
	for devID, db := range local.Devices {
		out[devID] = append(out[devID], deviceSample{origin: local.OriginNodeID, belief: db})
	}
	for _, p := range peers {
		for devID, db := range p.Devices {
			out[devID] = append(out[devID], deviceSample{origin: p.OriginNodeID, belief: db})
		}
	}
	return out
}

// resolveDevices runs C4 device fusion for a consensus RSSI/motion/
// confidence reading per device, and independently feeds each origin's raw
// distance estimate to C5 as a trilateration anchor (anchored at that
// origin's calibrated position) to recover a 2D position (spec.md §2: "C4
// outputs feed C5/C6 and the world state").
func (n *Node) resolveDevices(samples map[string][]deviceSample) []world.DevicePosition {
	var rooms map[string]geometry.Polygon
	if n.state.FloorPlan != nil {
		rooms = n.state.FloorPlan.RoomPolygons()
	}
	tcfg := n.trilaterationConfig()
	eps := n.cfg.Fusion.Epsilon

	out := make([]world.DevicePosition, 0, len(samples))
	for devID, entries := range samples {
		contribs := make([]fusion.DeviceContribution, 0, len(entries))
		var anchors []trilateration.Anchor
		for _, e := range entries {
			contribs = append(contribs, fusion.DeviceContribution{
				RSSIDBm:        e.belief.RSSIDBm,
				EstDistanceM:   e.belief.EstDistanceM,
				Moving:         e.belief.Moving,
				LinkConfidence: e.belief.Confidence,
			})
			if n.state.FloorPlan == nil || e.belief.EstDistanceM <= 0 {
				continue
			}
			if pos, ok := n.state.FloorPlan.NodePositions[e.origin]; ok {
				anchors = append(anchors, trilateration.Anchor{Position: pos, RangeM: e.belief.EstDistanceM})
			}
		}
		fused := fusion.FuseDevice(contribs, eps)
		dp := world.DevicePosition{DeviceID: devID, Confidence: fused.Confidence, Moving: fused.Moving}

		if len(anchors) >= 3 {
			res, err := trilateration.Solve(anchors, tcfg)
			if err != nil {
				n.log.Warn("trilateration failed", map[string]any{"device": devID, "err": err.Error()})
			} else {
				dp.Position = res.Position
				dp.RoomID = world.AssignRoom(res.Position, rooms)
			}
		}
		out = append(out, dp)
	}
	return out
}

// updateWorld folds the fused link state into a single aggregate zone
// (demo nodes without a room-level floorplan collapse all links into one
// zone; a FloorPlan with rooms lets a caller route links per room
// instead), runs the exponential motion decay step, and resolves every
// observed device's fused belief and trilaterated position.
func (n *Node) updateWorld(now time.Time, fusedLinks map[string]belief.LinkBelief, deviceSamples map[string][]deviceSample) {
	var moving, total int
	var attenSum float64
	for _, lb := range fusedLinks {
		total++
		attenSum += lb.AttenuationDB
		if lb.MotionProb >= 0.5 {
			moving++
		}
	}
	var avgAtten float64
	if total > 0 {
		avgAtten = attenSum / float64(total)
	}
	zoneBelief := inference.InferZone(inference.ZoneEvidence{
		MovingLinks:      moving,
		TotalLinks:       total,
		AvgAttenuationDB: avgAtten,
	})
	n.state.UpdateZone("default", now, n.cfg.World.MotionDecayLambda, &zoneBelief)
	n.state.Devices = n.resolveDevices(deviceSamples)
	n.state.GeneratedAt = now
}

// MaybeRecalibrate reports whether the caller should kick off the
// calibration orchestrator this cycle, and records the attempt time if
// so (spec.md §4.8).
func (n *Node) MaybeRecalibrate(now time.Time, peerSetChanged bool, avgRSSIDriftDB float64, commonDevices int) bool {
	due := world.ShouldRecalibrate(
		n.state.FloorPlan,
		peerSetChanged,
		n.lastCalibration,
		now,
		avgRSSIDriftDB,
		commonDevices,
		world.RecalibrationTriggerConfig{
			RSSIDriftThreshold:  n.cfg.World.RSSIDriftThreshold,
			MinCommonDevices:    n.cfg.World.MinCommonDevices,
			RecalibrationPeriod: n.cfg.World.RecalibrationPeriod,
		},
	)
	if due {
		n.lastCalibration = now
	}
	return due
}

// Calibrate runs the calibration orchestrator (spec.md §6's "calibrate()
// entry point") against this node's current Kalman-filtered RF distance to
// every known peer, persists the resulting FloorPlan, and updates the
// node's world state and calibration status. Returns a CalibrationError
// (spec.md §7) unchanged to the caller on failure; the node continues
// operating on its prior floorplan, if any.
func (n *Node) Calibrate(now time.Time) error {
	nodeIDs := make([]string, 0, len(n.peerNodeIDs)+1)
	nodeIDs = append(nodeIDs, n.NodeID)
	for id := range n.peerNodeIDs {
		nodeIDs = append(nodeIDs, id)
	}
	sort.Strings(nodeIDs)

	// Only this node's own direct measurements to a peer are available
	// locally; peer-to-peer distances are never scanned here.
	rf := make(map[string]float64)
	for peerID := range n.peerNodeIDs {
		pair, perr := belief.NewUnorderedPair(n.NodeID, peerID)
		if perr != nil {
			continue
		}
		key := measurement.PathKey{Source: n.NodeID, Target: peerID, Kind: measurement.KindWiFi}
		f, ok := n.filters[key]
		if !ok {
			continue
		}
		d := inference.DistanceFromRSSI(f.State().Mean[0], n.cfg.Inference.PathLossExponentFree, n.cfg.Inference.PathLossInterceptA, n.cfg.Inference.MinDistanceM)
		rf[pair.String()] = d
	}

	var second string
	for _, id := range nodeIDs {
		if id != n.NodeID {
			second = id
			break
		}
	}

	res, err := calibration.Calibrate(calibration.CalibrationInput{
		NodeIDs:            nodeIDs,
		AnchorNodeID:       n.NodeID,
		SecondAnchorNodeID: second,
		RFDistances:        rf,
		BuiltAt:            now,
	}, n.calibrationConfig())
	if err != nil {
		n.state.Calibration = world.CalibrationStatus{LastRunAt: now, Succeeded: false, Error: err.Error()}
		return err
	}

	if n.fpStore != nil {
		if serr := n.fpStore.Save(res.FloorPlan); serr != nil {
			n.log.Warn("persisting floorplan failed", map[string]any{"err": serr.Error()})
		}
	}
	n.state.FloorPlan = res.FloorPlan
	n.state.Calibration = world.CalibrationStatus{LastRunAt: now, Succeeded: true}
	n.lastCalibration = now
	return nil
}

func (n *Node) calibrationConfig() calibration.Config {
	return calibration.Config{
		AcousticHopCap:       n.cfg.Calibration.AcousticHopCap,
		NumAcousticBands:     n.cfg.Calibration.NumAcousticBands,
		BandStartHz:          n.cfg.Calibration.BandStartHz,
		BandWidthHz:          n.cfg.Calibration.BandWidthHz,
		FreeSpacePathLossN:   n.cfg.Calibration.FreeSpacePathLossN,
		WallDecisionThreshDB: n.cfg.Calibration.WallDecisionThreshDB,
	}
}

// Snapshot returns the current WorldState for inspection or export.
func (n *Node) Snapshot() *world.WorldState { return n.state }

// Stats summarizes mesh health for status reporting.
func (n *Node) Stats() (gossip.Stats, error) {
	if n.mesh == nil {
		return gossip.Stats{}, fmt.Errorf("pipeline: no mesh configured")
	}
	return n.mesh.Stats(), nil
}
