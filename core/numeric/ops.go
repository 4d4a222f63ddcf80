package numeric

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// UniformTolerance bounds the relative deviation between consecutive axis
// steps for an axis to count as uniformly spaced.
const UniformTolerance = 1e-4

// Linspace returns n float32-precision points spanning [lo, hi].
func Linspace(lo, hi float64, n int) []float64 {
	switch {
	case n <= 0:
		return nil
	case n == 1:
		return []float64{float64(float32(lo))}
	}
	out := floats.Span(make([]float64, n), lo, hi)
	for i, v := range out {
		out[i] = float64(float32(v))
	}
	return out
}

// IsUniform reports whether consecutive differences of x are equal within
// UniformTolerance relative to the first step.
func IsUniform(x []float64) bool {
	if len(x) < 3 {
		return true
	}
	d0 := x[1] - x[0]
	tol := UniformTolerance * math.Max(math.Abs(d0), 1e-12)
	for i := 2; i < len(x); i++ {
		if math.Abs((x[i]-x[i-1])-d0) > tol {
			return false
		}
	}
	return true
}

// Stack concatenates matrices along the row axis. All inputs must share the
// same column count. Empty matrices are skipped.
func Stack(ms ...*mat.Dense) (*mat.Dense, error) {
	var out *mat.Dense
	for i, m := range ms {
		if m == nil || m.IsEmpty() {
			continue
		}
		if out == nil {
			out = mat.DenseCopyOf(m)
			continue
		}
		_, oc := out.Dims()
		if _, c := m.Dims(); c != oc {
			return nil, fmt.Errorf("stack: matrix %d has %d columns, want %d", i, c, oc)
		}
		var next mat.Dense
		next.Stack(out, m)
		out = &next
	}
	if out == nil {
		return &mat.Dense{}, nil
	}
	return out, nil
}

// Augment concatenates a and b along the column (observation) axis.
func Augment(a, b *mat.Dense) (*mat.Dense, error) {
	switch {
	case a == nil || a.IsEmpty():
		if b == nil || b.IsEmpty() {
			return &mat.Dense{}, nil
		}
		return mat.DenseCopyOf(b), nil
	case b == nil || b.IsEmpty():
		return mat.DenseCopyOf(a), nil
	}
	ar, _ := a.Dims()
	br, _ := b.Dims()
	if ar != br {
		return nil, fmt.Errorf("augment: row mismatch %d != %d", ar, br)
	}
	var out mat.Dense
	out.Augment(a, b)
	return &out, nil
}

// PromoteColumn turns a 1-D vector into a column: one observation whose
// features are the entries of v.
func PromoteColumn(v []float64) *mat.Dense {
	if len(v) == 0 {
		return &mat.Dense{}
	}
	return mat.NewDense(len(v), 1, append([]float64(nil), v...))
}

// Copy deep-copies m. Nil and empty matrices yield an empty matrix.
func Copy(m mat.Matrix) *mat.Dense {
	if m == nil {
		return &mat.Dense{}
	}
	if r, c := m.Dims(); r == 0 || c == 0 {
		return &mat.Dense{}
	}
	return mat.DenseCopyOf(m)
}

// Sqrt returns the element-wise square root of m. Negative round-off is
// clamped to zero.
func Sqrt(m *mat.Dense) *mat.Dense {
	if m == nil || m.IsEmpty() {
		return &mat.Dense{}
	}
	var out mat.Dense
	out.Apply(func(_, _ int, v float64) float64 {
		if v < 0 {
			return 0
		}
		return math.Sqrt(v)
	}, m)
	return &out
}

// Mesh expands a pair of 1-D axes into a 2 x (len(a1)*len(a2)) coordinate
// matrix, row-major over (a1, a2).
func Mesh(a1, a2 []float64) *mat.Dense {
	n := len(a1) * len(a2)
	if n == 0 {
		return &mat.Dense{}
	}
	out := mat.NewDense(2, n, nil)
	k := 0
	for _, x1 := range a1 {
		for _, x2 := range a2 {
			out.Set(0, k, x1)
			out.Set(1, k, x2)
			k++
		}
	}
	return out
}

// Row copies row i of m into a new slice.
func Row(m mat.Matrix, i int) []float64 {
	_, c := m.Dims()
	return mat.Row(make([]float64, c), i, m)
}
