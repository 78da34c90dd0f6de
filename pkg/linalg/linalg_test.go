package linalg

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSolveSPDIdentity(t *testing.T) {
	a := Identity(3)
	x, ok := SolveSPD(a, []float64{1, 2, 3})
	require.True(t, ok)
	assert.InDeltaSlice(t, []float64{1, 2, 3}, x, 1e-9)
}

func TestSolveSPDRejectsNonPD(t *testing.T) {
	a := NewDense(2, 2, []float64{1, 2, 2, 1}) // not PD (det < 0)
	_, ok := SolveSPD(a, []float64{1, 1})
	assert.False(t, ok)
}

func TestPseudoinverseHandlesSingular(t *testing.T) {
	a := NewDense(2, 2, []float64{1, 1, 1, 1}) // rank-deficient
	x, ok := Pseudoinverse(a, []float64{2, 2}, 1e-9)
	require.True(t, ok)
	// minimum-norm solution to x0+x1=2 is (1,1)
	assert.InDelta(t, 1.0, x[0], 1e-6)
	assert.InDelta(t, 1.0, x[1], 1e-6)
}

func TestConditionNumberIdentity(t *testing.T) {
	assert.InDelta(t, 1.0, ConditionNumber(Identity(3)), 1e-9)
}

func TestSymmetrize(t *testing.T) {
	m := NewDense(2, 2, []float64{1, 2, 0, 1})
	s := m.Symmetrize()
	assert.InDelta(t, s.At(0, 1), s.At(1, 0), 1e-12)
}

func TestClipNonNegativeEigenvalues2x2(t *testing.T) {
	// A matrix with a small negative eigenvalue from numerical drift.
	m := NewDense(2, 2, []float64{1, 2, 2, 1}) // eigenvalues 3, -1
	out := ClipNonNegativeEigenvalues2x2(m)
	vals, _ := jacobiEigen(out)
	for _, v := range vals {
		assert.True(t, v >= -1e-9, "eigenvalue %v should be clipped non-negative", v)
	}
}

func TestWeightedMeanAgreement(t *testing.T) {
	mean := WeightedMean([]float64{10, 11, 10}, []float64{0.8, 0.8, 0.8})
	assert.InDelta(t, 10.333, mean, 1e-2)
}

func TestWeightedMeanZeroWeights(t *testing.T) {
	assert.Equal(t, 0.0, WeightedMean([]float64{1, 2}, []float64{0, 0}))
}

func TestClamp(t *testing.T) {
	assert.Equal(t, 0.01, Clamp(-5, 0.01, 0.99))
	assert.Equal(t, 0.99, Clamp(5, 0.01, 0.99))
	assert.Equal(t, 0.5, Clamp(0.5, 0.01, 0.99))
}

func TestMulVecShapeMismatchPanics(t *testing.T) {
	defer func() {
		assert.NotNil(t, recover())
	}()
	m := Zeros(2, 3)
	m.MulVec([]float64{1, 2})
}

func TestJacobiEigenSymmetricReconstructs(t *testing.T) {
	a := NewDense(2, 2, []float64{4, 1, 1, 3})
	vals, vecs := jacobiEigen(a)
	// Reconstruct V * diag(vals) * V^T and compare to a.
	recon := Zeros(2, 2)
	for i := 0; i < 2; i++ {
		for j := 0; j < 2; j++ {
			var sum float64
			for k := 0; k < 2; k++ {
				sum += vecs.At(i, k) * vals[k] * vecs.At(j, k)
			}
			recon.Set(i, j, sum)
		}
	}
	for i := range a.Data {
		assert.True(t, math.Abs(a.Data[i]-recon.Data[i]) < 1e-6)
	}
}
