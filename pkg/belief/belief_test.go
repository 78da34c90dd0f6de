package belief

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewUnorderedPairNormalizes(t *testing.T) {
	p1, err := NewUnorderedPair("b", "a")
	require.NoError(t, err)
	p2, err := NewUnorderedPair("a", "b")
	require.NoError(t, err)
	assert.Equal(t, p1, p2)
}

func TestNewUnorderedPairRejectsSelfLoop(t *testing.T) {
	_, err := NewUnorderedPair("a", "a")
	assert.ErrorIs(t, err, ErrInvalidPair)
}

func TestBeliefJSONRoundTrip(t *testing.T) {
	b := Belief{
		OriginNodeID:   "node-a",
		SequenceNumber: 42,
		HopCount:       2,
		Timestamp:      time.Now().UTC().Truncate(time.Millisecond),
		Links: map[string]LinkBelief{
			"node-a|node-b": {AttenuationDB: 10, MotionProb: 0.2, Confidence: 0.9},
		},
		Devices: map[string]DeviceBelief{
			"phone-1": {RSSIDBm: -60, EstDistanceM: 3.2, Moving: true, Confidence: 0.7},
		},
		Zones: map[string]ZoneBelief{
			"zone-1": {OccupiedProb: 0.8, MotionProb: 0.5},
		},
	}
	data, err := b.Encode()
	require.NoError(t, err)
	decoded, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, b, decoded)
}

func TestBeliefIsStale(t *testing.T) {
	b := Belief{Timestamp: time.Now().Add(-10 * time.Second)}
	assert.True(t, b.IsStale(time.Now(), 5*time.Second))
	assert.False(t, b.IsStale(time.Now(), 20*time.Second))
}

func TestBeliefValidateHopBounds(t *testing.T) {
	b := Belief{OriginNodeID: "n1", HopCount: 5}
	assert.Error(t, b.Validate(3))
	b.HopCount = 3
	assert.NoError(t, b.Validate(3))
}

func TestPathStateRingBufferEviction(t *testing.T) {
	p := &PathState{RingCapacity: 3}
	p.PushRing(1)
	p.PushRing(2)
	p.PushRing(3)
	p.PushRing(4)
	assert.Equal(t, []float64{2, 3, 4}, p.RingBuffer)
}
