// Package kalman implements the adaptive per-path Kalman filter bank (C1):
// one 2-state (value, rate) constant-velocity filter per signal path,
// producing a smoothed estimate and innovation for consumption by local
// inference (C2).
//
// The update uses the Joseph-form covariance update for numerical
// stability, re-symmetrizes P after every step, and clips negative
// eigenvalues, per spec.md §4.1's numerical contract. Grounded on the
// teacher's apoc/math matrix helpers (here pkg/linalg) rather than any
// example's specific EKF (no pack repo carries a production Kalman
// filter as a dependency; the algorithm itself follows spec.md directly).
package kalman

import (
	"math"
	"time"

	"github.com/closedform/senseye/pkg/belief"
	"github.com/closedform/senseye/pkg/linalg"
)

// Config mirrors config.KalmanConfig without importing the config package,
// keeping this package usable standalone in tests and the eval harness.
type Config struct {
	ProcessNoiseQ    float64
	JumpZScore       float64
	JumpScaleFactor  float64
	MinInnovationVar float64
	PathTTL          time.Duration
	RingBufferSize   int
}

// Filter is one adaptive Kalman filter for a single signal path.
type Filter struct {
	cfg   Config
	state *belief.PathState
	measR float64 // measurement variance R, fixed per sensor kind at construction
}

// New creates a Filter for a path whose first measurement observes value
// z0 at t0. Spec.md §3: "Created on first observation of the path."
func New(cfg Config, measurementVariance float64, z0 float64, t0 time.Time) *Filter {
	f := &Filter{
		cfg:   cfg,
		measR: measurementVariance,
		state: &belief.PathState{
			Mean:         [2]float64{z0, 0},
			Covariance:   [2][2]float64{{measurementVariance, 0}, {0, measurementVariance}},
			LastUpdate:   t0,
			RingCapacity: cfg.RingBufferSize,
		},
	}
	f.state.PushRing(z0)
	return f
}

// State returns the current PathState, read-only from the caller's
// perspective (C1 is its exclusive mutator per spec.md §3).
func (f *Filter) State() *belief.PathState { return f.state }

// Update applies one measurement z observed at time t. Out-of-order
// measurements older than the last applied sample are discarded per
// spec.md §5's ordering guarantee, returning ok=false.
func (f *Filter) Update(z float64, t time.Time) (ok bool) {
	dt := t.Sub(f.state.LastUpdate).Seconds()
	if dt < 0 {
		return false
	}
	if dt == 0 {
		dt = 1e-6 // avoid a degenerate F/Q for two measurements at the same instant
	}

	fMat := linalg.NewDense(2, 2, []float64{1, dt, 0, 1})
	q := processNoise(f.cfg.ProcessNoiseQ, dt)

	p := linalg.NewDense(2, 2, []float64{
		f.state.Covariance[0][0], f.state.Covariance[0][1],
		f.state.Covariance[1][0], f.state.Covariance[1][1],
	})

	// Predict: x- = F x, P- = F P F^T + Q.
	xPred := fMat.MulVec(f.state.Mean[:])
	pPred := fMat.Mul(p).Mul(fMat.T()).Add(q)

	// Innovation: y = z - H x-, H = [1, 0].
	y := z - xPred[0]
	s := pPred.At(0, 0) + f.measR
	if s < f.cfg.MinInnovationVar {
		s = f.cfg.MinInnovationVar
	}

	// Adaptive jump handling: if the innovation is a large multiple of its
	// standard deviation, re-predict with an inflated process noise so the
	// filter can track an abrupt environment change without lag.
	zScore := math.Abs(y) / math.Sqrt(s)
	if zScore > f.cfg.JumpZScore {
		qEff := q.Scale(f.cfg.JumpScaleFactor)
		pPred = fMat.Mul(p).Mul(fMat.T()).Add(qEff)
		s = pPred.At(0, 0) + f.measR
		if s < f.cfg.MinInnovationVar {
			s = f.cfg.MinInnovationVar
		}
	}

	// Gain: K = P- H^T / S.
	k := []float64{pPred.At(0, 0) / s, pPred.At(1, 0) / s}

	// Update: x = x- + K y.
	xNew := [2]float64{xPred[0] + k[0]*y, xPred[1] + k[1]*y}

	// Joseph-form covariance update: P = (I-KH) P- (I-KH)^T + K R K^T.
	ikh := linalg.NewDense(2, 2, []float64{1 - k[0], 0, -k[1], 1})
	term1 := ikh.Mul(pPred).Mul(ikh.T())
	kOuterR := linalg.NewDense(2, 2, []float64{
		k[0] * f.measR * k[0], k[0] * f.measR * k[1],
		k[1] * f.measR * k[0], k[1] * f.measR * k[1],
	})
	pNew := term1.Add(kOuterR).Symmetrize()
	pNew = linalg.ClipNonNegativeEigenvalues2x2(pNew)

	f.state.Mean = xNew
	f.state.Covariance = [2][2]float64{{pNew.At(0, 0), pNew.At(0, 1)}, {pNew.At(1, 0), pNew.At(1, 1)}}
	f.state.LastUpdate = t
	f.state.LastInnovation = y
	f.state.InnovationVar = s
	f.state.PushRing(xNew[0])
	return true
}

// processNoise builds Q = q * [[dt^4/4, dt^3/2], [dt^3/2, dt^2]] per
// spec.md §4.1.
func processNoise(q, dt float64) *linalg.Dense {
	dt2 := dt * dt
	dt3 := dt2 * dt
	dt4 := dt3 * dt
	return linalg.NewDense(2, 2, []float64{
		q * dt4 / 4, q * dt3 / 2,
		q * dt3 / 2, q * dt2,
	})
}

// Expired reports whether this path has been silent beyond TTL as of now,
// per spec.md §3 ("destroyed when path is silent beyond a configurable
// TTL").
func (f *Filter) Expired(now time.Time) bool {
	return now.Sub(f.state.LastUpdate) > f.cfg.PathTTL
}

// Variance returns the sample variance of the ring buffer, used by C2's
// motion detection (spec.md §4.2: "var(W) > tau_motion implies moving").
func Variance(ring []float64) float64 {
	n := len(ring)
	if n < 2 {
		return 0
	}
	var mean float64
	for _, v := range ring {
		mean += v
	}
	mean /= float64(n)
	var acc float64
	for _, v := range ring {
		d := v - mean
		acc += d * d
	}
	return acc / float64(n-1)
}
