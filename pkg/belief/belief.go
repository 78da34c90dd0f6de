// Package belief defines the fused-observation data model shared by local
// inference (C2), the gossip mesh (C3) and consensus fusion (C4): the
// PathState maintained per signal path, and the LinkBelief/DeviceBelief/
// ZoneBelief/Belief types exchanged between nodes.
//
// Grounded on the teacher's pkg/storage/types.go for its doc-comment
// density and sentinel-error convention.
package belief

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for malformed or stale wire data (spec.md §7: "Malformed
// input ... drop message, increment counter").
var (
	ErrStaleSequence = errors.New("belief: sequence number not greater than last seen")
	ErrStaleBelief   = errors.New("belief: timestamp older than staleness horizon")
	ErrInvalidPair   = errors.New("belief: link pair must name two distinct peers")
)

// PathState is the Kalman-filtered state of one (source, target, kind)
// signal path (spec.md §3). It is mutated only by C1.
type PathState struct {
	Mean           [2]float64 // [rssi_or_distance, rate]
	Covariance     [2][2]float64
	LastUpdate     time.Time
	RingBuffer     []float64 // most recent filtered values, for variance-based motion detection
	RingCapacity   int
	LastInnovation float64
	InnovationVar  float64
}

// PushRing appends a filtered value to the ring buffer, evicting the
// oldest entry once RingCapacity is reached.
func (p *PathState) PushRing(v float64) {
	if p.RingCapacity <= 0 {
		p.RingCapacity = 20
	}
	p.RingBuffer = append(p.RingBuffer, v)
	if len(p.RingBuffer) > p.RingCapacity {
		p.RingBuffer = p.RingBuffer[len(p.RingBuffer)-p.RingCapacity:]
	}
}

// UnorderedPair is a key for a link between two peers, normalized so that
// (a,b) and (b,a) hash identically — spec.md §9's "edge map keyed by the
// unordered pair" design note.
type UnorderedPair struct {
	A, B string
}

// NewUnorderedPair normalizes peer ordering lexicographically.
func NewUnorderedPair(a, b string) (UnorderedPair, error) {
	if a == b {
		return UnorderedPair{}, ErrInvalidPair
	}
	if a > b {
		a, b = b, a
	}
	return UnorderedPair{A: a, B: b}, nil
}

// String renders the pair as "a|b" for map/JSON keys.
func (p UnorderedPair) String() string { return p.A + "|" + p.B }

// LinkBelief describes the believed state of a link between two peers.
type LinkBelief struct {
	AttenuationDB float64 `json:"attenuation_db"`
	MotionProb    float64 `json:"motion_prob"`
	Confidence    float64 `json:"confidence"`
}

// DeviceBelief describes the believed state of an observed (non-infrastructure) device.
type DeviceBelief struct {
	RSSIDBm      float64 `json:"rssi_dbm"`
	EstDistanceM float64 `json:"estimated_distance_m"`
	Moving       bool    `json:"moving"`
	Confidence   float64 `json:"confidence"`
}

// ZoneBelief describes the believed occupancy/motion state of a zone.
type ZoneBelief struct {
	OccupiedProb float64 `json:"occupied_prob"`
	MotionProb   float64 `json:"motion_prob"`
}

// Belief is one node's emitted snapshot of everything it currently
// believes, broadcast over the gossip mesh (spec.md §3, §6).
type Belief struct {
	OriginNodeID   string                  `json:"node_id"`
	SequenceNumber uint64                  `json:"sequence_number"`
	HopCount       int                     `json:"hop_count"`
	Timestamp      time.Time               `json:"timestamp"`
	Links          map[string]LinkBelief   `json:"links"`
	Devices        map[string]DeviceBelief `json:"devices"`
	Zones          map[string]ZoneBelief   `json:"zones"`
	AcousticRanges map[string]float64      `json:"acoustic_ranges,omitempty"`
}

// IsStale reports whether this Belief is older than horizon relative to
// now (spec.md §3: "stale if its timestamp is older than a configurable
// horizon"). Clock skew between peers is not corrected (spec.md §9 Q2);
// timestamps are compared at face value.
func (b Belief) IsStale(now time.Time, horizon time.Duration) bool {
	return now.Sub(b.Timestamp) > horizon
}

// Validate checks the structural invariants spec.md places on a Belief
// before it is allowed to participate in fusion or relay.
func (b Belief) Validate(maxHop int) error {
	if b.OriginNodeID == "" {
		return fmt.Errorf("belief: missing origin node id")
	}
	if b.HopCount < 0 || b.HopCount > maxHop {
		return fmt.Errorf("belief: hop count %d out of range [0, %d]", b.HopCount, maxHop)
	}
	return nil
}

// Key uniquely identifies a Belief for gossip dedup purposes: the
// (origin, sequence_number) pair (spec.md §3, §5, §9).
type Key struct {
	Origin   string
	Sequence uint64
}

func (b Belief) Key() Key { return Key{Origin: b.OriginNodeID, Sequence: b.SequenceNumber} }

// Encode marshals a Belief to newline-delimited-JSON-ready bytes (no
// trailing newline; the caller appends it per spec.md §6's framing rule).
func (b Belief) Encode() ([]byte, error) {
	return json.Marshal(b)
}

// Decode parses a Belief from a single JSON frame.
func Decode(data []byte) (Belief, error) {
	var b Belief
	if err := json.Unmarshal(data, &b); err != nil {
		return Belief{}, fmt.Errorf("belief: decode: %w", err)
	}
	return b, nil
}
