// Package linalg provides the small dense-matrix primitives shared by the
// Kalman bank, consensus fusion, trilateration and tomography solvers.
//
// Every matrix here is tiny (2x2 state covariances, or at most a few
// hundred cells/anchors), so this package favors simple, allocation-light
// slice-of-slice representations over a general linear-algebra library.
//
// Example:
//
//	a := linalg.NewDense(2, 2, []float64{2, 0, 0, 2})
//	x, ok := linalg.SolveSPD(a, []float64{1, 1})
package linalg

import "math"

// Dense is a row-major dense matrix.
type Dense struct {
	Rows, Cols int
	Data       []float64
}

// NewDense builds a Dense matrix from row-major data. Panics if the data
// length does not match rows*cols, mirroring how the teacher's apoc/math
// helpers validate argument shape before computing.
func NewDense(rows, cols int, data []float64) *Dense {
	if len(data) != rows*cols {
		panic("linalg: data length does not match dimensions")
	}
	return &Dense{Rows: rows, Cols: cols, Data: data}
}

// Zeros returns a rows x cols matrix of zeros.
func Zeros(rows, cols int) *Dense {
	return &Dense{Rows: rows, Cols: cols, Data: make([]float64, rows*cols)}
}

// Identity returns the n x n identity matrix.
func Identity(n int) *Dense {
	m := Zeros(n, n)
	for i := 0; i < n; i++ {
		m.Set(i, i, 1)
	}
	return m
}

func (m *Dense) At(r, c int) float64    { return m.Data[r*m.Cols+c] }
func (m *Dense) Set(r, c int, v float64) { m.Data[r*m.Cols+c] = v }

// Clone returns a deep copy.
func (m *Dense) Clone() *Dense {
	out := make([]float64, len(m.Data))
	copy(out, m.Data)
	return &Dense{Rows: m.Rows, Cols: m.Cols, Data: out}
}

// T returns the transpose.
func (m *Dense) T() *Dense {
	out := Zeros(m.Cols, m.Rows)
	for r := 0; r < m.Rows; r++ {
		for c := 0; c < m.Cols; c++ {
			out.Set(c, r, m.At(r, c))
		}
	}
	return out
}

// Mul returns m*other. Panics on shape mismatch.
func (m *Dense) Mul(other *Dense) *Dense {
	if m.Cols != other.Rows {
		panic("linalg: shape mismatch in Mul")
	}
	out := Zeros(m.Rows, other.Cols)
	for r := 0; r < m.Rows; r++ {
		for c := 0; c < other.Cols; c++ {
			var sum float64
			for k := 0; k < m.Cols; k++ {
				sum += m.At(r, k) * other.At(k, c)
			}
			out.Set(r, c, sum)
		}
	}
	return out
}

// Add returns m+other elementwise.
func (m *Dense) Add(other *Dense) *Dense {
	out := m.Clone()
	for i := range out.Data {
		out.Data[i] += other.Data[i]
	}
	return out
}

// Sub returns m-other elementwise.
func (m *Dense) Sub(other *Dense) *Dense {
	out := m.Clone()
	for i := range out.Data {
		out.Data[i] -= other.Data[i]
	}
	return out
}

// Scale multiplies every entry by s.
func (m *Dense) Scale(s float64) *Dense {
	out := m.Clone()
	for i := range out.Data {
		out.Data[i] *= s
	}
	return out
}

// MulVec returns m*v.
func (m *Dense) MulVec(v []float64) []float64 {
	if m.Cols != len(v) {
		panic("linalg: shape mismatch in MulVec")
	}
	out := make([]float64, m.Rows)
	for r := 0; r < m.Rows; r++ {
		var sum float64
		for c := 0; c < m.Cols; c++ {
			sum += m.At(r, c) * v[c]
		}
		out[r] = sum
	}
	return out
}

// Symmetrize returns (m + m^T) / 2, used to keep covariance matrices
// numerically symmetric under finite precision (spec.md C1 contract).
func (m *Dense) Symmetrize() *Dense {
	out := Zeros(m.Rows, m.Cols)
	for r := 0; r < m.Rows; r++ {
		for c := 0; c < m.Cols; c++ {
			out.Set(r, c, (m.At(r, c)+m.At(c, r))/2)
		}
	}
	return out
}

// ClipNonNegativeEigenvalues2x2 clips any negative eigenvalue of a
// symmetric 2x2 matrix to zero and reconstructs it, preventing covariance
// collapse under finite-precision Kalman updates.
func ClipNonNegativeEigenvalues2x2(m *Dense) *Dense {
	if m.Rows != 2 || m.Cols != 2 {
		panic("linalg: ClipNonNegativeEigenvalues2x2 requires a 2x2 matrix")
	}
	a, b, c, d := m.At(0, 0), m.At(0, 1), m.At(1, 0), m.At(1, 1)
	tr := a + d
	det := a*d - b*c
	disc := math.Max(tr*tr/4-det, 0)
	sq := math.Sqrt(disc)
	l1 := tr/2 + sq
	l2 := tr/2 - sq
	if l1 >= 0 && l2 >= 0 {
		return m
	}
	l1 = math.Max(l1, 0)
	l2 = math.Max(l2, 0)
	// Eigenvectors of a symmetric 2x2 matrix; fall back to the identity
	// basis when the off-diagonal is negligible (already diagonal).
	if math.Abs(b) < 1e-12 && math.Abs(c) < 1e-12 {
		return NewDense(2, 2, []float64{l1, 0, 0, l2})
	}
	v1x, v1y := b, l1-a
	norm1 := math.Hypot(v1x, v1y)
	if norm1 < 1e-15 {
		v1x, v1y, norm1 = 1, 0, 1
	}
	v1x, v1y = v1x/norm1, v1y/norm1
	v2x, v2y := -v1y, v1x
	out := Zeros(2, 2)
	out.Set(0, 0, l1*v1x*v1x+l2*v2x*v2x)
	out.Set(0, 1, l1*v1x*v1y+l2*v2x*v2y)
	out.Set(1, 0, out.At(0, 1))
	out.Set(1, 1, l1*v1y*v1y+l2*v2y*v2y)
	return out
}

// SolveSPD solves A x = b for a symmetric positive-definite A via Cholesky
// decomposition. Returns ok=false if A is not numerically SPD, in which
// case the caller should fall back to Pseudoinverse (spec.md C6 contract:
// "Cholesky preferred; fall back to pseudoinverse on failure").
func SolveSPD(a *Dense, b []float64) (x []float64, ok bool) {
	n := a.Rows
	if a.Cols != n || len(b) != n {
		return nil, false
	}
	l := Zeros(n, n)
	for i := 0; i < n; i++ {
		for j := 0; j <= i; j++ {
			sum := a.At(i, j)
			for k := 0; k < j; k++ {
				sum -= l.At(i, k) * l.At(j, k)
			}
			if i == j {
				if sum <= 1e-12 {
					return nil, false
				}
				l.Set(i, j, math.Sqrt(sum))
			} else {
				l.Set(i, j, sum/l.At(j, j))
			}
		}
	}
	// Forward substitution L y = b.
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		sum := b[i]
		for k := 0; k < i; k++ {
			sum -= l.At(i, k) * y[k]
		}
		y[i] = sum / l.At(i, i)
	}
	// Backward substitution L^T x = y.
	x = make([]float64, n)
	for i := n - 1; i >= 0; i-- {
		sum := y[i]
		for k := i + 1; k < n; k++ {
			sum -= l.At(k, i) * x[k]
		}
		x[i] = sum / l.At(i, i)
	}
	return x, true
}

// Pseudoinverse solves A x = b via the Moore-Penrose pseudoinverse of a
// symmetric matrix A, computed through Jacobi eigendecomposition. This is
// the fallback path for ill-conditioned or rank-deficient systems (C6), and
// never panics on singular input. A rank-deficient matrix yields the
// minimum-norm solution with ok=true; ok is false only when no eigenvalue
// exceeds the rank tolerance (a numerically zero matrix).
func Pseudoinverse(a *Dense, b []float64, rankTol float64) (x []float64, ok bool) {
	n := a.Rows
	vals, vecs := jacobiEigen(a)
	maxAbs := 0.0
	for _, v := range vals {
		if math.Abs(v) > maxAbs {
			maxAbs = math.Abs(v)
		}
	}
	if maxAbs == 0 {
		return nil, false
	}
	tol := rankTol * maxAbs
	rank := 0
	x = make([]float64, n)
	for i, lam := range vals {
		if math.Abs(lam) <= tol {
			continue
		}
		rank++
		var proj float64
		for r := 0; r < n; r++ {
			proj += vecs.At(r, i) * b[r]
		}
		coeff := proj / lam
		for r := 0; r < n; r++ {
			x[r] += coeff * vecs.At(r, i)
		}
	}
	return x, rank > 0
}

// ConditionNumber estimates cond(A) for a symmetric matrix as the ratio of
// the largest to smallest-magnitude eigenvalue, used by the tomography
// solver's adaptive ridge term (spec.md C6).
func ConditionNumber(a *Dense) float64 {
	vals, _ := jacobiEigen(a)
	minAbs, maxAbs := math.Inf(1), 0.0
	for _, v := range vals {
		av := math.Abs(v)
		if av > maxAbs {
			maxAbs = av
		}
		if av < minAbs {
			minAbs = av
		}
	}
	if minAbs < 1e-12 {
		return math.Inf(1)
	}
	return maxAbs / minAbs
}

// Eigen computes the eigenvalues and eigenvectors of a symmetric matrix via
// the classical cyclic Jacobi rotation method, adequate for the small
// (tens-of-cells, or handful-of-nodes for MDS) matrices this package and
// pkg/calibration handle. Column i of the returned matrix is the
// eigenvector for vals[i]; eigenvalues are not sorted.
func Eigen(a *Dense) (vals []float64, vecs *Dense) {
	return jacobiEigen(a)
}

// jacobiEigen computes the eigenvalues and eigenvectors of a symmetric
// matrix via the classical cyclic Jacobi rotation method, adequate for the
// small (tens-of-cells) matrices this package handles.
func jacobiEigen(a *Dense) ([]float64, *Dense) {
	n := a.Rows
	m := a.Clone()
	v := Identity(n)
	for sweep := 0; sweep < 100; sweep++ {
		off := 0.0
		for r := 0; r < n; r++ {
			for c := r + 1; c < n; c++ {
				off += m.At(r, c) * m.At(r, c)
			}
		}
		if off < 1e-20 {
			break
		}
		for p := 0; p < n; p++ {
			for q := p + 1; q < n; q++ {
				apq := m.At(p, q)
				if math.Abs(apq) < 1e-15 {
					continue
				}
				app, aqq := m.At(p, p), m.At(q, q)
				phi := 0.5 * math.Atan2(2*apq, aqq-app)
				c, s := math.Cos(phi), math.Sin(phi)
				for k := 0; k < n; k++ {
					mkp, mkq := m.At(k, p), m.At(k, q)
					m.Set(k, p, c*mkp-s*mkq)
					m.Set(k, q, s*mkp+c*mkq)
				}
				for k := 0; k < n; k++ {
					mpk, mqk := m.At(p, k), m.At(q, k)
					m.Set(p, k, c*mpk-s*mqk)
					m.Set(q, k, s*mpk+c*mqk)
				}
				for k := 0; k < n; k++ {
					vkp, vkq := v.At(k, p), v.At(k, q)
					v.Set(k, p, c*vkp-s*vkq)
					v.Set(k, q, s*vkp+c*vkq)
				}
			}
		}
	}
	vals := make([]float64, n)
	for i := 0; i < n; i++ {
		vals[i] = m.At(i, i)
	}
	return vals, v
}

// WeightedMean returns sum(w_i*x_i)/sum(w_i). Returns 0 if all weights are
// zero, matching the teacher's apoc/stats guard against empty inputs.
func WeightedMean(xs, ws []float64) float64 {
	var num, den float64
	for i := range xs {
		num += ws[i] * xs[i]
		den += ws[i]
	}
	if den == 0 {
		return 0
	}
	return num / den
}

// WeightedVariance returns sum(w_i*(x_i-mean)^2)/sum(w_i) around the given
// weighted mean, used by C4's disagreement-penalty calculation.
func WeightedVariance(xs, ws []float64, mean float64) float64 {
	var num, den float64
	for i := range xs {
		d := xs[i] - mean
		num += ws[i] * d * d
		den += ws[i]
	}
	if den == 0 {
		return 0
	}
	return num / den
}

// Clamp restricts x to [lo, hi].
func Clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
