package task

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func newTestTask() *Task {
	return &Task{
		XC: []Value{
			Array(mat.NewDense(2, 3, []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6})),
			Grid([]float64{0, 0.5, 1}, []float64{0, 1}),
		},
		YC: []Value{
			Array(mat.NewDense(1, 3, []float64{1, 2, 3})),
			Array(mat.NewDense(1, 6, []float64{1, 1, 1, 1, 1, 1})),
		},
		XT:                []Value{Array(mat.NewDense(2, 2, []float64{0, 1, 0, 1}))},
		Time:              time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
		ContextStationIDs: [][]string{{"a", "b", "c"}},
		Meta:              map[string]any{"region": map[string]any{"name": "alps"}},
	}
}

func TestModifyIdentityKeepsData(t *testing.T) {
	tk := newTestTask()
	out := tk.Modify(func(m *mat.Dense) *mat.Dense { return m }, "")
	assert.True(t, out.Equal(tk))
	assert.NotSame(t, tk, out)
}

func TestModifyAppliesToArraysOnly(t *testing.T) {
	tk := newTestTask()
	double := func(m *mat.Dense) *mat.Dense {
		var out mat.Dense
		out.Scale(2, m)
		return &out
	}
	out := tk.Modify(double, "doubled")

	assert.Equal(t, "doubled", out.Flag)
	assert.Equal(t, 0.2, out.XC[0].Matrix().At(0, 0))
	a1, _, err := out.XC[1].Axes()
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 1, 2}, a1)
	assert.Equal(t, [][]string{{"a", "b", "c"}}, out.ContextStationIDs)
	assert.Equal(t, tk.Meta, out.Meta)

	// original untouched
	assert.Equal(t, 0.1, tk.XC[0].Matrix().At(0, 0))
	assert.Equal(t, "", tk.Flag)
}

func TestModifyDoesNotAliasOriginal(t *testing.T) {
	tk := newTestTask()
	out := tk.Modify(func(m *mat.Dense) *mat.Dense {
		m.Set(0, 0, 99)
		return m
	}, "mutating")
	assert.Equal(t, 99.0, out.YC[0].Matrix().At(0, 0))
	assert.Equal(t, 1.0, tk.YC[0].Matrix().At(0, 0))

	out.Meta["region"].(map[string]any)["name"] = "jura"
	assert.Equal(t, "alps", tk.Meta["region"].(map[string]any)["name"])
}

func TestAppendObs(t *testing.T) {
	tk := newTestTask()
	x := mat.NewDense(2, 2, []float64{0.7, 0.8, 0.9, 1.0})
	y := mat.NewDense(1, 2, []float64{4, 5})

	out, err := AppendObs(tk, x, y, 0)
	require.NoError(t, err)
	assert.Equal(t, 5, out.ContextSize(0))
	assert.Equal(t, []float64{1, 2, 3, 4, 5}, mat.Row(nil, 0, out.YC[0].Matrix()))
	assert.Equal(t, []float64{0.1, 0.2, 0.3, 0.7, 0.8}, mat.Row(nil, 0, out.XC[0].Matrix()))
	assert.Equal(t, 3, tk.ContextSize(0), "original must not change")
	assert.True(t, out.XC[1].Equal(tk.XC[1]))
}

func TestAppendPointPromotesToColumn(t *testing.T) {
	tk := newTestTask()
	out, err := AppendPoint(tk, []float64{0.5, 0.5}, []float64{7}, 0)
	require.NoError(t, err)
	xs := out.XC[0].Matrix()
	assert.Equal(t, 4, out.ContextSize(0))
	assert.Equal(t, 0.5, xs.At(0, 3))
	assert.Equal(t, 0.5, xs.At(1, 3))
	assert.Equal(t, 7.0, out.YC[0].Matrix().At(0, 3))
}

func TestAppendObsVecDense(t *testing.T) {
	tk := newTestTask()
	out, err := AppendObs(tk, mat.NewVecDense(2, []float64{1, 1}), mat.NewVecDense(1, []float64{9}), 0)
	require.NoError(t, err)
	assert.Equal(t, 9.0, out.YC[0].Matrix().At(0, 3))
}

func TestAppendObsErrors(t *testing.T) {
	tk := newTestTask()
	x := mat.NewDense(2, 1, []float64{0, 0})
	y := mat.NewDense(1, 1, []float64{0})

	for _, idx := range []int{-1, 2, 5} {
		_, err := AppendObs(tk, x, y, idx)
		var ie *SetIndexError
		require.ErrorAs(t, err, &ie)
		assert.Equal(t, idx, ie.Index)
		assert.Equal(t, 2, ie.Count)
		assert.True(t, errors.Is(err, ErrSetIndex))
	}

	_, err := AppendObs(tk, x, y, 1)
	assert.ErrorIs(t, err, ErrGriddedData)

	_, err = AppendObs(tk, mat.NewDense(3, 1, nil), y, 0)
	assert.Error(t, err)
}

func TestStringSummaries(t *testing.T) {
	tk := newTestTask()
	s := tk.String()
	assert.Contains(t, s, "X_c: [(2, 3) ((1, 3), (1, 2))]")
	assert.Contains(t, s, "Y_c: [(1, 3) (1, 6)]")
	assert.True(t, strings.HasPrefix(s, "time: 2020-01-01T00:00:00Z"))
	assert.Contains(t, tk.Summary(), "Dense/float64/(2, 3)")
}

func TestFoldCountsLeaves(t *testing.T) {
	v := Seq(Array(mat.NewDense(1, 1, nil)), Grid([]float64{1}, []float64{2}), Scalar("x"))
	n := Fold(v, Visitor[int]{
		Scalar: func(any) int { return 0 },
		Array:  func(*mat.Dense) int { return 1 },
		Pair:   func(a, b int) int { return a + b },
		Seq: func(vs []int) int {
			s := 0
			for _, v := range vs {
				s += v
			}
			return s
		},
	})
	assert.Equal(t, 3, n)
}
