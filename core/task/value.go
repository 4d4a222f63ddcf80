package task

import (
	"fmt"
	"reflect"

	"gonum.org/v1/gonum/mat"

	"github.com/kilianp07/fieldcast/core/numeric"
)

// Kind tags the variant held by a Value.
type Kind uint8

const (
	KindScalar Kind = iota
	KindArray
	KindPair
	KindSeq
)

func (k Kind) String() string {
	switch k {
	case KindScalar:
		return "scalar"
	case KindArray:
		return "array"
	case KindPair:
		return "pair"
	case KindSeq:
		return "seq"
	default:
		return "unknown"
	}
}

// Value is a tagged variant: a scalar, a 2-D array, a pair of values (a
// gridded coordinate mesh when both halves are 1 x n arrays) or an ordered
// sequence of values.
type Value struct {
	kind   Kind
	scalar any
	arr    *mat.Dense
	pair   *[2]Value
	seq    []Value
}

// Scalar wraps an opaque leaf that is never transformed.
func Scalar(v any) Value { return Value{kind: KindScalar, scalar: v} }

// Array wraps a 2-D array leaf. The matrix is not copied.
func Array(m *mat.Dense) Value {
	if m == nil {
		m = &mat.Dense{}
	}
	return Value{kind: KindArray, arr: m}
}

// Pair wraps two values.
func Pair(a, b Value) Value { return Value{kind: KindPair, pair: &[2]Value{a, b}} }

// Grid builds a gridded coordinate pair from two 1-D axes.
func Grid(x1, x2 []float64) Value {
	return Pair(Array(axis(x1)), Array(axis(x2)))
}

// Seq wraps an ordered sequence of values.
func Seq(vs ...Value) Value { return Value{kind: KindSeq, seq: vs} }

func axis(v []float64) *mat.Dense {
	if len(v) == 0 {
		return &mat.Dense{}
	}
	return mat.NewDense(1, len(v), append([]float64(nil), v...))
}

func (v Value) Kind() Kind { return v.kind }

// Matrix returns the array leaf, or nil when v is not an array.
func (v Value) Matrix() *mat.Dense {
	if v.kind != KindArray {
		return nil
	}
	return v.arr
}

// Halves returns both sides of a pair.
func (v Value) Halves() (Value, Value, bool) {
	if v.kind != KindPair {
		return Value{}, Value{}, false
	}
	return v.pair[0], v.pair[1], true
}

// Items returns the elements of a sequence.
func (v Value) Items() []Value {
	if v.kind != KindSeq {
		return nil
	}
	return v.seq
}

// Raw returns the scalar payload.
func (v Value) Raw() any { return v.scalar }

// Gridded reports whether v is a pair of array axes.
func (v Value) Gridded() bool {
	a, b, ok := v.Halves()
	return ok && a.kind == KindArray && b.kind == KindArray
}

// Axes flattens a gridded pair into two 1-D coordinate vectors.
func (v Value) Axes() ([]float64, []float64, error) {
	if !v.Gridded() {
		return nil, nil, fmt.Errorf("value of kind %s is not gridded", v.kind)
	}
	return flatten(v.pair[0].arr), flatten(v.pair[1].arr), nil
}

// Points returns the coordinates of v as a d x N matrix: arrays are returned
// as-is and gridded pairs are expanded to their mesh.
func (v Value) Points() (*mat.Dense, error) {
	switch {
	case v.kind == KindArray:
		return v.arr, nil
	case v.Gridded():
		a1, a2, _ := v.Axes()
		return numeric.Mesh(a1, a2), nil
	default:
		return nil, fmt.Errorf("value of kind %s has no coordinates", v.kind)
	}
}

func flatten(m *mat.Dense) []float64 {
	if m == nil || m.IsEmpty() {
		return nil
	}
	r, c := m.Dims()
	out := make([]float64, 0, r*c)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			out = append(out, m.At(i, j))
		}
	}
	return out
}

// Visitor holds one callback per Kind. Pair and Seq callbacks receive the
// already folded children.
type Visitor[R any] struct {
	Scalar func(any) R
	Array  func(*mat.Dense) R
	Pair   func(a, b R) R
	Seq    func([]R) R
}

// Fold walks v bottom-up, dispatching on the tag.
func Fold[R any](v Value, vis Visitor[R]) R {
	switch v.kind {
	case KindArray:
		return vis.Array(v.arr)
	case KindPair:
		return vis.Pair(Fold(v.pair[0], vis), Fold(v.pair[1], vis))
	case KindSeq:
		out := make([]R, len(v.seq))
		for i, e := range v.seq {
			out[i] = Fold(e, vis)
		}
		return vis.Seq(out)
	default:
		return vis.Scalar(v.scalar)
	}
}

// Map applies f to every array leaf and rebuilds the structure. Scalars are
// passed through.
func (v Value) Map(f func(*mat.Dense) *mat.Dense) Value {
	return Fold(v, Visitor[Value]{
		Scalar: Scalar,
		Array:  func(m *mat.Dense) Value { return Array(f(m)) },
		Pair:   Pair,
		Seq:    func(vs []Value) Value { return Seq(vs...) },
	})
}

// Clone deep-copies every array leaf.
func (v Value) Clone() Value {
	return v.Map(func(m *mat.Dense) *mat.Dense { return numeric.Copy(m) })
}

// Equal reports structural and element-wise equality.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindArray:
		if v.arr.IsEmpty() || o.arr.IsEmpty() {
			return v.arr.IsEmpty() == o.arr.IsEmpty()
		}
		return mat.Equal(v.arr, o.arr)
	case KindPair:
		return v.pair[0].Equal(o.pair[0]) && v.pair[1].Equal(o.pair[1])
	case KindSeq:
		if len(v.seq) != len(o.seq) {
			return false
		}
		for i := range v.seq {
			if !v.seq[i].Equal(o.seq[i]) {
				return false
			}
		}
		return true
	default:
		return reflect.DeepEqual(v.scalar, o.scalar)
	}
}
