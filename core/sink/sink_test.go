package sink

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/kilianp07/fieldcast/core/container"
	"github.com/kilianp07/fieldcast/core/factory"
	"github.com/kilianp07/fieldcast/core/predict"
)

var day = time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

func TestFromResultGrid(t *testing.T) {
	g := container.NewGrid([]float64{0, 1}, []float64{0, 0.5, 1})
	mean, err := container.BuildDense([]time.Time{day}, 1, g, container.DefaultCoordNames, []string{"temp"}, nil)
	require.NoError(t, err)
	_, err = mean.SetTime(day, nil, mat.NewDense(1, 6, []float64{0, 1, 2, 3, 4, 5}))
	require.NoError(t, err)

	samples, err := container.BuildDense([]time.Time{day}, 1, g, container.DefaultCoordNames, []string{"temp"},
		[]container.PrependCoord{{Name: container.SampleLevel, Values: []int{0, 1}}})
	require.NoError(t, err)
	_, err = samples.SetTime(day, []int{1}, mat.NewDense(1, 6, []float64{9, 9, 9, 9, 9, 9}))
	require.NoError(t, err)

	run := FromResult(&predict.Result{
		RunID:      "r1",
		Mode:       predict.ModeGrid,
		Convention: "direct",
		Mean:       &predict.Output{Grid: mean.ToDataset()},
		Samples:    &predict.Output{Grid: samples.ToDataset()},
	})
	assert.Equal(t, "r1", run.ID)
	assert.Equal(t, "grid", run.Mode)
	require.Len(t, run.Records, 12)

	r := run.Records[4]
	assert.Equal(t, StatMean, r.Stat)
	assert.Equal(t, NoSample, r.Sample)
	assert.Equal(t, map[string]float64{"x1": 1, "x2": 0.5}, r.Coords)
	assert.Equal(t, 4.0, r.Value)
	assert.True(t, r.Time.Equal(day))

	for _, s := range run.Records[6:] {
		assert.Equal(t, StatSample, s.Stat)
		assert.Equal(t, 1, s.Sample)
		assert.Equal(t, 9.0, s.Value)
	}
}

func TestFromResultFrame(t *testing.T) {
	ix := container.NewIndex([2]string{"lat", "lon"}, []float64{0, 0.5}, []float64{1, 0})
	ix, err := ix.Append(container.Level{Name: "station", Values: []any{"a", "b"}})
	require.NoError(t, err)

	std, err := container.BuildFrame([]time.Time{day}, ix, []string{"temp"}, 0, nil)
	require.NoError(t, err)
	_, err = std.SetTime(day, 0, mat.NewDense(1, 2, []float64{0.5, math.NaN()}))
	require.NoError(t, err)

	draws, err := container.BuildFrame([]time.Time{day}, ix, []string{"temp"}, 2, nil)
	require.NoError(t, err)
	_, err = draws.SetTime(day, 1, mat.NewDense(1, 2, []float64{3, 4}))
	require.NoError(t, err)

	run := FromResult(&predict.Result{
		RunID:   "r2",
		Mode:    predict.ModePoints,
		Std:     &predict.Output{Table: std},
		Samples: &predict.Output{Table: draws},
	})
	require.Len(t, run.Records, 3)
	r := run.Records[0]
	assert.Equal(t, StatStd, r.Stat)
	assert.Equal(t, "temp", r.Var)
	assert.Equal(t, map[string]float64{"lat": 0, "lon": 1}, r.Coords)
	assert.Equal(t, map[string]string{"station": "a"}, r.Labels)
	assert.Equal(t, 0.5, r.Value)
	assert.True(t, r.Time.Equal(day))

	assert.Equal(t, 1, run.Records[1].Sample)
	assert.Equal(t, 3.0, run.Records[1].Value)
	assert.Equal(t, "b", run.Records[2].Labels["station"])
}

type memSink struct {
	runs   []*Run
	err    error
	closed bool
}

func (m *memSink) Write(_ context.Context, r *Run) error {
	if m.err != nil {
		return m.err
	}
	m.runs = append(m.runs, r)
	return nil
}

func (m *memSink) Close() error { m.closed = true; return nil }

func TestMultiContinuesPastFailure(t *testing.T) {
	bad := &memSink{err: errors.New("down")}
	good := &memSink{}
	m := NewMulti(bad, good)
	err := m.Write(context.Background(), &Run{ID: "x"})
	assert.ErrorContains(t, err, "down")
	assert.Len(t, good.runs, 1)
	require.NoError(t, m.Close())
	assert.True(t, bad.closed)
	assert.True(t, good.closed)
}

func TestNewFromConfig(t *testing.T) {
	require.NoError(t, Register("mem-test", func(map[string]any) (Sink, error) { return &memSink{}, nil }))
	assert.Contains(t, Types(), "mem-test")

	s, err := New(nil)
	require.NoError(t, err)
	assert.IsType(t, Discard{}, s)

	s, err = New([]factory.ModuleConfig{{Type: "mem-test"}})
	require.NoError(t, err)
	assert.IsType(t, &memSink{}, s)

	s, err = New([]factory.ModuleConfig{{Type: "mem-test"}, {Type: "mem-test"}})
	require.NoError(t, err)
	assert.Len(t, s.(*Multi).Sinks, 2)

	_, err = New([]factory.ModuleConfig{{Type: "nope"}})
	assert.ErrorIs(t, err, factory.ErrUnknownType)
}
