// Package fusion implements consensus fusion (C4): the single confidence
// -> precision contract shared across the sensing pipeline, and the
// inverse-variance weighted combination of local and peer beliefs for
// links, devices and zones.
//
// Grounded on the teacher's apoc/stats weighted-statistics helpers and
// pkg/linkpredict's pattern of combining several independent edge-
// confidence signals into one score.
package fusion

import (
	"math"

	"github.com/closedform/senseye/pkg/belief"
	"github.com/closedform/senseye/pkg/linalg"
)

// Precision maps a confidence c in (0,1) to precision pi(c), the single
// numerical contract every sensing component shares (spec.md §4.4):
//
//	c_eff = clamp(c, 0.01, 0.99)
//	sigma^2(c) = (1 - c_eff)/c_eff + eps
//	pi(c) = 1 / sigma^2(c)
func Precision(c, eps float64) float64 {
	cEff := linalg.Clamp(c, 0.01, 0.99)
	sigma2 := (1-cEff)/cEff + eps
	return 1 / sigma2
}

// Variance returns sigma^2(c) directly, used where a variance rather than
// a precision is more convenient.
func Variance(c, eps float64) float64 {
	cEff := linalg.Clamp(c, 0.01, 0.99)
	return (1-cEff)/cEff + eps
}

// Contribution is one origin's (self or peer) reported value for a given
// link/device/zone quantity, paired with the confidence backing it.
type Contribution struct {
	Origin     string
	Value      float64
	Confidence float64
}

// WeightedConsensus fuses a set of contributions into a precision-weighted
// mean, along with the summed precision (used as the fusion's base
// confidence) and the disagreement variance around the mean (spec.md
// §4.4). Ordering is irrelevant: the computation is commutative and
// associative, matching spec.md §5's fusion-cycle guarantee.
func WeightedConsensus(contribs []Contribution, eps float64) (mean, sumPrecision, disagreement float64) {
	if len(contribs) == 0 {
		return 0, 0, 0
	}
	xs := make([]float64, len(contribs))
	ws := make([]float64, len(contribs))
	for i, c := range contribs {
		xs[i] = c.Value
		ws[i] = Precision(c.Confidence, eps)
		sumPrecision += ws[i]
	}
	mean = linalg.WeightedMean(xs, ws)
	disagreement = linalg.WeightedVariance(xs, ws, mean)
	return mean, sumPrecision, disagreement
}

// FuseLink combines every contribution (self + peers) for one link pair
// into a fused LinkBelief, per spec.md §4.4:
//
//	c_base = sum(pi_i) / (1 + sum(pi_i))
//	v      = disagreement variance of attenuation
//	penalty = 1 / (1 + s*v)
//	c_fused = c_base * penalty
//
// Motion probability is fused the same inverse-variance way but without
// the disagreement penalty (the spec applies the penalty to attenuation
// disagreement only).
func FuseLink(attenContribs, motionContribs []Contribution, penaltyScale, eps float64) belief.LinkBelief {
	attenMean, sumPi, disagreement := WeightedConsensus(attenContribs, eps)
	motionMean, _, _ := WeightedConsensus(motionContribs, eps)

	cBase := sumPi / (1 + sumPi)
	penalty := 1 / (1 + penaltyScale*disagreement)
	cFused := cBase * penalty

	return belief.LinkBelief{
		AttenuationDB: attenMean,
		MotionProb:    motionMean,
		Confidence:    cFused,
	}
}

// FusedAttenuationInRange verifies the spec.md §8 invariant that a fused
// attenuation always lies within [min(x_i), max(x_i)] — a property of any
// weighted mean with non-negative weights, exposed here so callers and
// tests can assert it directly without recomputing the bounds.
func FusedAttenuationInRange(fused float64, contribs []Contribution) bool {
	if len(contribs) == 0 {
		return true
	}
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, c := range contribs {
		if c.Value < lo {
			lo = c.Value
		}
		if c.Value > hi {
			hi = c.Value
		}
	}
	return fused >= lo-1e-9 && fused <= hi+1e-9
}

// DeviceContribution is a peer's reported device observation, carrying the
// confidence of the *link* that produced it (spec.md §4.4: "precision pi_i
// for device contributions is derived from the contributing link's
// confidence").
type DeviceContribution struct {
	RSSIDBm        float64
	EstDistanceM   float64
	Moving         bool
	LinkConfidence float64
}

// FuseDevice combines device contributions. RSSI fuses with plain
// precision weights; distance receives an additional 1/max(d,1)^2
// down-weight so far-range, noisier estimates do not dominate (spec.md
// §4.4).
func FuseDevice(contribs []DeviceContribution, eps float64) belief.DeviceBelief {
	if len(contribs) == 0 {
		return belief.DeviceBelief{}
	}
	rssis := make([]float64, len(contribs))
	rssiW := make([]float64, len(contribs))
	dists := make([]float64, len(contribs))
	distW := make([]float64, len(contribs))
	var sumPi float64
	movingVotes := 0.0
	var voteWeight float64
	for i, c := range contribs {
		pi := Precision(c.LinkConfidence, eps)
		sumPi += pi
		rssis[i] = c.RSSIDBm
		rssiW[i] = pi
		dists[i] = c.EstDistanceM
		rangeDown := math.Max(c.EstDistanceM, 1)
		distW[i] = pi / (rangeDown * rangeDown)
		if c.Moving {
			movingVotes += pi
		}
		voteWeight += pi
	}
	moving := voteWeight > 0 && movingVotes/voteWeight >= 0.5

	return belief.DeviceBelief{
		RSSIDBm:      linalg.WeightedMean(rssis, rssiW),
		EstDistanceM: linalg.WeightedMean(dists, distW),
		Moving:       moving,
		Confidence:   sumPi / (1 + sumPi),
	}
}

// FuseZone fuses zone occupancy/motion contributions. Each contribution's
// confidence is first derived from how far its occupied/motion reading is
// from the uninformative midpoint (spec.md §4.4):
//
//	c_zone = clamp(0.2 + 0.8*2*max(|o-0.5|, |m-0.5|), 0.05, 0.99)
func FuseZone(contribs []belief.ZoneBelief, eps float64) belief.ZoneBelief {
	if len(contribs) == 0 {
		return belief.ZoneBelief{}
	}
	occContribs := make([]Contribution, len(contribs))
	motContribs := make([]Contribution, len(contribs))
	for i, zb := range contribs {
		cZone := ZoneConfidence(zb.OccupiedProb, zb.MotionProb)
		occContribs[i] = Contribution{Value: zb.OccupiedProb, Confidence: cZone}
		motContribs[i] = Contribution{Value: zb.MotionProb, Confidence: cZone}
	}
	occMean, _, _ := WeightedConsensus(occContribs, eps)
	motMean, _, _ := WeightedConsensus(motContribs, eps)
	return belief.ZoneBelief{OccupiedProb: occMean, MotionProb: motMean}
}

// ZoneConfidence implements spec.md §4.4's zone-confidence formula.
func ZoneConfidence(occupied, motion float64) float64 {
	dev := math.Max(math.Abs(occupied-0.5), math.Abs(motion-0.5))
	return linalg.Clamp(0.2+0.8*2*dev, 0.05, 0.99)
}
