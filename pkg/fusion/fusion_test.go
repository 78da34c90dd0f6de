package fusion

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPrecisionAtHalf(t *testing.T) {
	// spec.md §8: "at c_eff = 0.5, sigma^2 = 1 + eps".
	eps := 1e-6
	sigma2 := Variance(0.5, eps)
	assert.InDelta(t, 1+eps, sigma2, 1e-9)
}

func TestPrecisionMonotoneIncreasing(t *testing.T) {
	prev := Precision(0.01, 1e-6)
	for c := 0.05; c < 1.0; c += 0.05 {
		cur := Precision(c, 1e-6)
		assert.True(t, cur > prev, "precision must strictly increase in c_eff")
		prev = cur
	}
}

func TestConsensusAgreementBoost(t *testing.T) {
	// spec.md §8 scenario 2.
	contribs := []Contribution{
		{Origin: "p1", Value: 10, Confidence: 0.8},
		{Origin: "p2", Value: 11, Confidence: 0.8},
		{Origin: "p3", Value: 10, Confidence: 0.8},
	}
	mean, sumPi, disagreement := WeightedConsensus(contribs, 1e-6)
	assert.InDelta(t, 10.333, mean, 0.01)
	assert.InDelta(t, 12, sumPi, 0.5)

	cBase := sumPi / (1 + sumPi)
	assert.InDelta(t, 0.923, cBase, 0.01)

	penalty := 1 / (1 + 0.5*disagreement)
	cFused := cBase * penalty
	assert.True(t, cFused > 0.8, "fused confidence must exceed any individual confidence on agreement")

	lb := FuseLink(contribs, []Contribution{{Value: 0, Confidence: 0.8}, {Value: 0, Confidence: 0.8}, {Value: 0, Confidence: 0.8}}, 0.5, 1e-6)
	assert.InDelta(t, mean, lb.AttenuationDB, 1e-9)
	assert.True(t, lb.Confidence > 0.8)
}

func TestFusedAttenuationWithinRange(t *testing.T) {
	contribs := []Contribution{
		{Value: 5, Confidence: 0.5},
		{Value: 15, Confidence: 0.9},
		{Value: 10, Confidence: 0.7},
	}
	mean, _, _ := WeightedConsensus(contribs, 1e-6)
	assert.True(t, FusedAttenuationInRange(mean, contribs))
}

func TestFusedAttenuationAgreesWhenAllAgree(t *testing.T) {
	contribs := []Contribution{
		{Value: 7, Confidence: 0.5},
		{Value: 7, Confidence: 0.9},
	}
	mean, _, disagreement := WeightedConsensus(contribs, 1e-6)
	assert.InDelta(t, 7, mean, 1e-9)
	assert.InDelta(t, 0, disagreement, 1e-9)
}

func TestFuseDeviceRangeDownWeight(t *testing.T) {
	near := DeviceContribution{RSSIDBm: -50, EstDistanceM: 1, LinkConfidence: 0.8}
	far := DeviceContribution{RSSIDBm: -90, EstDistanceM: 50, LinkConfidence: 0.8}
	db := FuseDevice([]DeviceContribution{near, far}, 1e-6)
	// The near contribution should dominate the fused distance due to the
	// 1/max(d,1)^2 down-weight on the far one.
	assert.True(t, math.Abs(db.EstDistanceM-near.EstDistanceM) < math.Abs(db.EstDistanceM-far.EstDistanceM))
}

func TestZoneConfidenceExtremes(t *testing.T) {
	assert.InDelta(t, 0.2, ZoneConfidence(0.5, 0.5), 1e-9)
	assert.InDelta(t, 0.99, ZoneConfidence(1.0, 1.0), 1e-9)
}

func TestFuseZoneEmpty(t *testing.T) {
	zb := FuseZone(nil, 1e-6)
	assert.Equal(t, 0.0, zb.OccupiedProb)
}
