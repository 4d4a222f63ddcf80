package numeric

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestLinspace(t *testing.T) {
	got := Linspace(0, 1, 5)
	assert.Equal(t, []float64{0, 0.25, 0.5, 0.75, 1}, got)
	assert.Nil(t, Linspace(0, 1, 0))
	assert.Equal(t, []float64{2}, Linspace(2, 3, 1))
}

func TestIsUniform(t *testing.T) {
	assert.True(t, IsUniform([]float64{0, 1, 2, 3}))
	assert.True(t, IsUniform([]float64{0, 1}))
	assert.True(t, IsUniform(Linspace(20, 40, 30)))
	assert.False(t, IsUniform([]float64{0, 1, 2, 3.5, 4.5}))
}

func TestStack(t *testing.T) {
	a := mat.NewDense(1, 2, []float64{1, 2})
	b := mat.NewDense(2, 2, []float64{3, 4, 5, 6})
	out, err := Stack(a, nil, b)
	require.NoError(t, err)
	r, c := out.Dims()
	assert.Equal(t, 3, r)
	assert.Equal(t, 2, c)
	assert.Equal(t, 5.0, out.At(2, 0))

	_, err = Stack(a, mat.NewDense(1, 3, nil))
	assert.Error(t, err)
}

func TestAugment(t *testing.T) {
	a := mat.NewDense(2, 1, []float64{1, 2})
	b := mat.NewDense(2, 2, []float64{3, 4, 5, 6})
	out, err := Augment(a, b)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 3, 4}, Row(out, 0))
	assert.Equal(t, []float64{2, 5, 6}, Row(out, 1))

	out, err = Augment(&mat.Dense{}, b)
	require.NoError(t, err)
	assert.True(t, mat.Equal(out, b))

	_, err = Augment(a, mat.NewDense(1, 1, nil))
	assert.Error(t, err)
}

func TestPromoteColumn(t *testing.T) {
	m := PromoteColumn([]float64{1, 2})
	r, c := m.Dims()
	assert.Equal(t, 2, r)
	assert.Equal(t, 1, c)
	assert.True(t, PromoteColumn(nil).IsEmpty())
}

func TestSqrtClampsNegative(t *testing.T) {
	out := Sqrt(mat.NewDense(1, 2, []float64{4, -1e-12}))
	assert.Equal(t, []float64{2, 0}, Row(out, 0))
}

func TestMesh(t *testing.T) {
	m := Mesh([]float64{0, 1}, []float64{10, 20, 30})
	_, c := m.Dims()
	require.Equal(t, 6, c)
	assert.Equal(t, []float64{0, 0, 0, 1, 1, 1}, Row(m, 0))
	assert.Equal(t, []float64{10, 20, 30, 10, 20, 30}, Row(m, 1))
}

func TestGonumSeedIsDeterministic(t *testing.T) {
	b := NewGonum(0)
	b.Seed(42)
	first := []float64{b.Rand().NormFloat64(), b.Rand().NormFloat64()}
	b.Seed(42)
	second := []float64{b.Rand().NormFloat64(), b.Rand().NormFloat64()}
	assert.Equal(t, first, second)
	assert.False(t, math.IsNaN(first[0]))
}
