package inference

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRSSIDistanceRoundTrip(t *testing.T) {
	n, a := 2.5, 45.0
	for d := 0.1; d <= 100; d += 3.3 {
		r := RSSIExpected(d, n, a)
		back := DistanceFromRSSI(r, n, a, 0.1)
		assert.InDelta(t, d, back, 1e-6)
	}
}

func TestAttenuationNeverNegative(t *testing.T) {
	// Much stronger RSSI than expected should floor attenuation at 0.
	a := Attenuation(-20, 10, 2.5, 45)
	assert.Equal(t, 0.0, a)
}

func TestIsMoving(t *testing.T) {
	assert.True(t, IsMoving(5, 4))
	assert.False(t, IsMoving(3, 4))
}

func TestRFConfidenceBounded(t *testing.T) {
	c := RFConfidence(100, 20, 0)
	assert.InDelta(t, 1.0, c, 1e-9)
	c2 := RFConfidence(5, 20, 8)
	assert.True(t, c2 > 0 && c2 < 1)
}

func TestAcousticConfidenceWeighting(t *testing.T) {
	c := AcousticConfidence(20, 20, 30, 0, 30)
	assert.InDelta(t, 1.0, c, 1e-9)
	c2 := AcousticConfidence(0, 20, -10, 0, 30)
	assert.InDelta(t, 0.0, c2, 1e-9)
}

func TestInferZoneFormula(t *testing.T) {
	zb := InferZone(ZoneEvidence{MovingLinks: 2, TotalLinks: 4, AvgAttenuationDB: 10})
	assert.InDelta(t, 0.5, zb.MotionProb, 1e-9)
	assert.InDelta(t, 0.5, zb.OccupiedProb, 1e-9)
}

func TestInferZoneClampsOccupied(t *testing.T) {
	zb := InferZone(ZoneEvidence{MovingLinks: 1, TotalLinks: 1, AvgAttenuationDB: 100})
	assert.Equal(t, 1.0, zb.OccupiedProb)
}

func TestInferLinkNoDistanceZeroAttenuation(t *testing.T) {
	lb := InferLink(LinkObservation{FilteredRSSI: -60, SampleCount: 10}, Config{
		MotionVarianceThreshold: 4, PathLossExponentIndoor: 2.5, PathLossInterceptA: 45,
	}, 20)
	assert.Equal(t, 0.0, lb.AttenuationDB)
}
