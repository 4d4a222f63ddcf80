package app

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/kilianp07/fieldcast/config"
	"github.com/kilianp07/fieldcast/core/container"
	"github.com/kilianp07/fieldcast/core/factory"
	"github.com/kilianp07/fieldcast/core/predict"
	"github.com/kilianp07/fieldcast/core/sink"
	"github.com/kilianp07/fieldcast/core/task"
	"github.com/kilianp07/fieldcast/pkg/taskfile"
)

func testConfig(out string) *config.Config {
	return &config.Config{
		Schema:  config.SchemaConfig{TargetVars: [][]string{{"t2m"}}},
		Model:   factory.ModuleConfig{Type: "gp", Conf: map[string]any{"lengthscale": 0.3}},
		Predict: predict.DefaultOptions(),
		Sinks:   []factory.ModuleConfig{{Type: "jsonl", Conf: map[string]any{"path": out}}},
	}
}

func testTask() *task.Task {
	return &task.Task{
		Time: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
		XC:   []task.Value{task.Array(mat.NewDense(2, 3, []float64{0, 0.5, 1, 0, 0.5, 1}))},
		YC:   []task.Value{task.Array(mat.NewDense(1, 3, []float64{1, 2, 3}))},
		XT:   []task.Value{task.Array(mat.NewDense(2, 1, []float64{0.5, 0.5}))},
	}
}

func TestServicePredictWritesRun(t *testing.T) {
	out := filepath.Join(t.TempDir(), "run.jsonl")
	svc, err := New(testConfig(out), io.Discard)
	require.NoError(t, err)

	opts := predict.DefaultOptions()
	opts.Normalised = true
	opts.Unnormalise = false
	req := &taskfile.Request{
		Tasks:     []*task.Task{testTask()},
		Locations: container.NewGrid([]float64{0, 1}, []float64{0, 1}),
	}
	res, err := svc.Predict(context.Background(), req, opts)
	require.NoError(t, err)
	assert.Equal(t, predict.ModeGrid, res.Mode)
	assert.Equal(t, []string{"t2m"}, res.Vars)
	require.NoError(t, svc.Close())
	assert.Equal(t, 0, svc.Bus.Subscribers())

	f, err := os.Open(out)
	require.NoError(t, err)
	defer f.Close()
	var lines int
	stats := map[string]bool{}
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var rec struct {
			RunID string `json:"run_id"`
			Var   string `json:"var"`
			Stat  string `json:"stat"`
		}
		require.NoError(t, json.Unmarshal(sc.Bytes(), &rec))
		assert.Equal(t, res.RunID, rec.RunID)
		assert.Equal(t, "t2m", rec.Var)
		stats[rec.Stat] = true
		lines++
	}
	assert.Equal(t, 8, lines)
	assert.True(t, stats[sink.StatMean])
	assert.True(t, stats[sink.StatStd])
}

func TestServiceRequiresNormalisedWithoutProcessor(t *testing.T) {
	svc, err := New(testConfig(filepath.Join(t.TempDir(), "run.jsonl")), io.Discard)
	require.NoError(t, err)
	defer svc.Close()

	req := &taskfile.Request{
		Tasks:     []*task.Task{testTask()},
		Locations: container.NewGrid([]float64{0, 1}, []float64{0, 1}),
	}
	_, err = svc.Predict(context.Background(), req, predict.DefaultOptions())
	assert.ErrorIs(t, err, predict.ErrNoProcessor)
}

func TestServiceUnknownModel(t *testing.T) {
	cfg := testConfig(filepath.Join(t.TempDir(), "run.jsonl"))
	cfg.Model.Type = "nope"
	_, err := New(cfg, io.Discard)
	assert.Error(t, err)
}

func TestServicePlace(t *testing.T) {
	cfg := testConfig(filepath.Join(t.TempDir(), "run.jsonl"))
	cfg.Model = factory.ModuleConfig{Type: "idw"}
	cfg.Sinks = nil
	svc, err := New(cfg, io.Discard)
	require.NoError(t, err)
	defer svc.Close()

	tk := testTask()
	tk.XT = []task.Value{task.Array(mat.NewDense(2, 1, []float64{0.25, 0.25}))}
	candidates := mat.NewDense(2, 2, []float64{0.9, 0.25, 0.9, 0.25})
	p, err := svc.Place(context.Background(), tk, candidates, 1, 0)
	require.NoError(t, err)
	assert.Equal(t, []int{1}, p.Indices)
}
