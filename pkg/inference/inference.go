// Package inference converts filtered signal paths into a Belief: link
// attenuation/motion, device distance/motion, and zone occupancy/motion,
// each carrying a confidence derived from sample count, innovation, and
// (for acoustic) matched-filter SNR (spec.md §4.2, C2).
//
// Method catalog pattern (several independent scoring methods feeding one
// Belief) is grounded on the teacher's pkg/inference, which scores
// candidate relationships via several independent methods (similarity,
// co-access, temporal, transitive) before combining them.
package inference

import (
	"math"

	"github.com/closedform/senseye/pkg/belief"
)

// Config tunes local inference thresholds.
type Config struct {
	MotionVarianceThreshold float64
	PathLossExponentIndoor  float64
	PathLossExponentFree    float64
	PathLossInterceptA      float64
	MinDistanceM            float64
}

// RSSIExpected returns the log-distance path-loss model's expected RSSI at
// distance d (meters), using exponent n and intercept a (spec.md §4.2):
// RSSI_expected(d) = -(10*n*log10(d) + A).
func RSSIExpected(d, n, a float64) float64 {
	if d <= 0 {
		d = 1e-6
	}
	return -(10*n*math.Log10(d) + a)
}

// DistanceFromRSSI inverts the path-loss model, floored at minDistance
// (spec.md §4.2, §8: "RSSI<->distance round trip").
func DistanceFromRSSI(rssi, n, a, minDistance float64) float64 {
	d := math.Pow(10, (-rssi-a)/(10*n))
	if d < minDistance {
		return minDistance
	}
	return d
}

// Attenuation returns the excess attenuation implied by a filtered RSSI
// relative to the free-space/indoor expectation at distance d (spec.md
// §4.2: "attenuation = max(0, RSSI_expected(d) - RSSI_filtered)").
func Attenuation(rssiFiltered, d, n, a float64) float64 {
	return math.Max(0, RSSIExpected(d, n, a)-rssiFiltered)
}

// IsMoving reports path motion from ring-buffer variance (spec.md §4.2).
func IsMoving(ringVariance, threshold float64) bool {
	return ringVariance > threshold
}

// RFConfidence computes c_rf = c_samples * p_innov (spec.md §4.2).
func RFConfidence(sampleCount, windowSize int, innovation float64) float64 {
	cSamples := math.Min(float64(sampleCount)/float64(windowSize), 1)
	pInnov := 1 / (1 + math.Abs(innovation)/8)
	return cSamples * pInnov
}

// AcousticConfidence computes c_acoustic = 0.4*c_samples + 0.6*c_snr
// (spec.md §4.2), where c_snr is peakSNRDB affine-mapped and clipped to
// [0,1] over [snrFloorDB, snrCeilDB].
func AcousticConfidence(sampleCount, windowSize int, peakSNRDB, snrFloorDB, snrCeilDB float64) float64 {
	cSamples := math.Min(float64(sampleCount)/float64(windowSize), 1)
	cSNR := (peakSNRDB - snrFloorDB) / (snrCeilDB - snrFloorDB)
	cSNR = clamp(cSNR, 0, 1)
	return 0.4*cSamples + 0.6*cSNR
}

func clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

// LinkObservation is the per-path evidence feeding a single link's
// Belief contribution.
type LinkObservation struct {
	FilteredRSSI float64
	DistanceM    float64 // known from positions, if both endpoints have them
	RingVariance float64
	Innovation   float64
	SampleCount  int
}

// InferLink produces a LinkBelief from one path's filtered evidence. When
// no distance is known (DistanceM <= 0), attenuation cannot be computed
// and is reported as zero. Confidence is the RF confidence from sample
// count and innovation whether or not a distance is known.
func InferLink(obs LinkObservation, cfg Config, windowSize int) belief.LinkBelief {
	moving := IsMoving(obs.RingVariance, cfg.MotionVarianceThreshold)
	motionProb := 0.0
	if moving {
		motionProb = 1.0
	}
	var atten float64
	if obs.DistanceM > 0 {
		atten = Attenuation(obs.FilteredRSSI, obs.DistanceM, cfg.PathLossExponentIndoor, cfg.PathLossInterceptA)
	}
	conf := RFConfidence(obs.SampleCount, windowSize, obs.Innovation)
	return belief.LinkBelief{AttenuationDB: atten, MotionProb: motionProb, Confidence: conf}
}

// DeviceObservation is the per-device evidence for a DeviceBelief.
type DeviceObservation struct {
	FilteredRSSI float64
	RingVariance float64
	Innovation   float64
	SampleCount  int
}

// InferDevice produces a DeviceBelief from one device's filtered evidence.
func InferDevice(obs DeviceObservation, cfg Config, windowSize int) belief.DeviceBelief {
	d := DistanceFromRSSI(obs.FilteredRSSI, cfg.PathLossExponentIndoor, cfg.PathLossInterceptA, cfg.MinDistanceM)
	conf := RFConfidence(obs.SampleCount, windowSize, obs.Innovation)
	return belief.DeviceBelief{
		RSSIDBm:      obs.FilteredRSSI,
		EstDistanceM: d,
		Moving:       IsMoving(obs.RingVariance, cfg.MotionVarianceThreshold),
		Confidence:   conf,
	}
}

// ZoneEvidence aggregates the links crossing a zone for zone-level
// inference (spec.md §4.2).
type ZoneEvidence struct {
	MovingLinks      int
	TotalLinks       int
	AvgAttenuationDB float64
}

// InferZone computes P(motion|zone) and P(occupied|zone) per spec.md §4.2:
//
//	P(motion|zone)    = N_moving / N_links
//	P(occupied|zone)  = min(avg_attenuation / 20 dB, 1)
func InferZone(ev ZoneEvidence) belief.ZoneBelief {
	var motionProb float64
	if ev.TotalLinks > 0 {
		motionProb = float64(ev.MovingLinks) / float64(ev.TotalLinks)
	}
	occupiedProb := math.Min(ev.AvgAttenuationDB/20.0, 1.0)
	return belief.ZoneBelief{OccupiedProb: occupiedProb, MotionProb: motionProb}
}
