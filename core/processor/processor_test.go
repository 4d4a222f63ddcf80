package processor

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/kilianp07/fieldcast/core/container"
)

func newProcessor(t *testing.T) *Processor {
	t.Helper()
	p, err := New(Config{
		X1Map:    [2]float64{20, 40},
		X2Map:    [2]float64{40, 60},
		TimeName: "datetime",
		X1Name:   "lat",
		X2Name:   "lon",
		Vars:     map[string]Params{"temp": {Offset: 10, Scale: 2}},
	})
	require.NoError(t, err)
	return p
}

func TestNewValidates(t *testing.T) {
	_, err := New(Config{X1Map: [2]float64{1, 1}, X2Map: [2]float64{0, 1}})
	assert.Error(t, err)
	_, err = New(Config{X1Map: [2]float64{0, 1}, X2Map: [2]float64{0, 1}, Vars: map[string]Params{"a": {}}})
	assert.Error(t, err)

	p, err := New(Config{X1Map: [2]float64{0, 1}, X2Map: [2]float64{0, 1}})
	require.NoError(t, err)
	assert.Equal(t, [2]string{"x1", "x2"}, p.RawSpatialCoordNames())
	assert.Equal(t, "time", p.RawTimeName())
}

func TestUnnormaliseValueAffine(t *testing.T) {
	p := newProcessor(t)
	for _, v := range []float64{-1.5, 0, 0.25, 3} {
		std, err := p.UnnormaliseValue("temp", v, false)
		require.NoError(t, err)
		assert.Equal(t, v*2, std)
		mean, err := p.UnnormaliseValue("temp", v, true)
		require.NoError(t, err)
		assert.Equal(t, v*2+10, mean)

		n, err := p.Normalise("temp", mean)
		require.NoError(t, err)
		assert.InDelta(t, v, n, 1e-12)
	}
	_, err := p.UnnormaliseValue("rh", 1, true)
	assert.ErrorIs(t, err, ErrUnknownVar)
}

func TestMapCoordsGrid(t *testing.T) {
	p := newProcessor(t)
	g := &container.Grid{Dims: [2]string{"lat", "lon"}, Axes: [2][]float64{{20, 30, 40}, {40, 50, 60}}}
	out, err := p.MapCoords(g)
	require.NoError(t, err)
	ng := out.(*container.Grid)
	assert.Equal(t, [2]string{"x1", "x2"}, ng.Dims)
	assert.Equal(t, []float64{0, 0.5, 1}, ng.Axes[0])
	assert.Equal(t, []float64{0, 0.5, 1}, ng.Axes[1])

	_, err = p.MapCoords(container.NewGrid([]float64{1}, []float64{1}))
	assert.ErrorIs(t, err, ErrMissingCoord)
}

func TestMapCoordsIndexAndMatrix(t *testing.T) {
	p := newProcessor(t)
	ix := container.NewIndex([2]string{"lat", "lon"}, []float64{25, 40}, []float64{45, 60})
	ix, err := ix.Append(container.Level{Name: "station", Values: []any{"a", "b"}})
	require.NoError(t, err)

	out, err := p.MapCoords(ix)
	require.NoError(t, err)
	nix := out.(*container.Index)
	assert.Equal(t, []string{"x1", "x2", "station"}, nix.Names())
	c, err := nix.Coords()
	require.NoError(t, err)
	assert.Equal(t, []float64{0.25, 1}, mat.Row(nil, 0, c))
	assert.Equal(t, []float64{0.25, 1}, mat.Row(nil, 1, c))
	// input untouched
	lvl, _ := ix.Level("lat")
	assert.Equal(t, 25.0, lvl.Values[0])

	out, err = p.MapCoords(&container.Coords{M: mat.NewDense(2, 1, []float64{30, 50})})
	require.NoError(t, err)
	c, err = out.(*container.Index).Coords()
	require.NoError(t, err)
	assert.Equal(t, []float64{0.5, 0.5}, c.RawMatrix().Data)
}

func TestUnnormaliseDataset(t *testing.T) {
	p := newProcessor(t)
	day := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	da, err := container.BuildDense([]time.Time{day}, 1, container.NewGrid([]float64{0, 1}, []float64{0, 0.5, 1}),
		container.DefaultCoordNames, []string{"temp"}, nil)
	require.NoError(t, err)
	_, err = da.SetTime(day, nil, mat.NewDense(1, 6, []float64{0, 1, 2, 3, 4, 5}))
	require.NoError(t, err)
	ds := da.ToDataset()

	mean, err := p.UnnormaliseDataset(ds, true)
	require.NoError(t, err)
	std, err := p.UnnormaliseDataset(ds, false)
	require.NoError(t, err)

	assert.Equal(t, []float32{10, 12, 14, 16, 18, 20}, mean.Var("temp").Data)
	assert.Equal(t, []float32{0, 2, 4, 6, 8, 10}, std.Var("temp").Data)
	assert.Equal(t, "lat", mean.Axes.Dim1)
	assert.Equal(t, "lon", mean.Axes.Dim2)
	assert.Equal(t, []float64{20, 40}, mean.Axes.X1)
	assert.Equal(t, []float64{40, 50, 60}, mean.Axes.X2)
	// source dataset untouched
	assert.Equal(t, float32(1), ds.Var("temp").Data[1])
	assert.Equal(t, "x1", ds.Axes.Dim1)
}

func TestUnnormaliseFrame(t *testing.T) {
	p := newProcessor(t)
	day := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	ix := container.NewIndex([2]string{"x1", "x2"}, []float64{0, 0.5}, []float64{1, 0})
	f, err := container.BuildFrame([]time.Time{day}, ix, []string{"temp"}, 0, nil)
	require.NoError(t, err)
	_, err = f.SetTime(day, 0, mat.NewDense(1, 2, []float64{1, math.NaN()}))
	require.NoError(t, err)

	out, err := p.UnnormaliseFrame(f, true)
	require.NoError(t, err)
	assert.Equal(t, []string{"datetime", "lat", "lon"}, out.Index.Names())
	assert.Equal(t, 12.0, out.Col("temp")[0])
	assert.True(t, math.IsNaN(out.Col("temp")[1]))
	lat, _ := out.Index.Level("lat")
	assert.Equal(t, []any{20.0, 30.0}, lat.Values)
	assert.Equal(t, []string{"time", "x1", "x2"}, f.Index.Names())

	_, err = p.UnnormaliseFrame(&container.Frame{Index: &container.Index{}, Columns: []string{"rh"}, Data: [][]float64{{}}}, true)
	assert.ErrorIs(t, err, ErrUnknownVar)
}

func TestUnnormaliseCoords(t *testing.T) {
	p := newProcessor(t)
	out := p.UnnormaliseCoords(mat.NewDense(2, 2, []float64{0, 1, 0.5, 0}))
	assert.Equal(t, []float64{20, 40, 50, 40}, out.RawMatrix().Data)
	assert.True(t, p.UnnormaliseCoords(nil).IsEmpty())
}
