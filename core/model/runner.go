package model

import (
	"context"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"

	"github.com/kilianp07/fieldcast/core/task"
)

// Evaluation exposes the statistics the orchestrator reads for one task.
type Evaluation interface {
	Mean() ([]*mat.Dense, error)
	Stddev() ([]*mat.Dense, error)
	Sample(n int, noiseless bool, rng *rand.Rand) ([][]*mat.Dense, error)
	ARSample(n, subsample int, rng *rand.Rand) ([]float64, error)
}

// Runner binds a model to a task. Build one with Direct or Distributional.
type Runner interface {
	Evaluate(ctx context.Context, t *task.Task) (Evaluation, error)
	// Convention names the calling convention, "direct" or "distribution".
	Convention() string
}

// Direct runs m in direct mode: every statistic is computed against the task.
func Direct(m ProbabilisticModel) Runner { return directRunner{m: m} }

// Distributional runs m once per task and reuses the resulting Distribution.
func Distributional(m DistributionModel) Runner { return distRunner{m: m} }

type directRunner struct{ m ProbabilisticModel }

func (r directRunner) Convention() string { return "direct" }

func (r directRunner) Evaluate(ctx context.Context, t *task.Task) (Evaluation, error) {
	return directEval{ctx: ctx, m: r.m, t: t}, nil
}

type directEval struct {
	ctx context.Context
	m   ProbabilisticModel
	t   *task.Task
}

func (e directEval) Mean() ([]*mat.Dense, error)   { return e.m.Mean(e.ctx, e.t) }
func (e directEval) Stddev() ([]*mat.Dense, error) { return e.m.Stddev(e.ctx, e.t) }

func (e directEval) Sample(n int, noiseless bool, rng *rand.Rand) ([][]*mat.Dense, error) {
	return e.m.Sample(e.ctx, e.t, n, noiseless, rng)
}

func (e directEval) ARSample(n, subsample int, rng *rand.Rand) ([]float64, error) {
	return e.m.ARSample(e.ctx, e.t, n, subsample, rng)
}

type distRunner struct{ m DistributionModel }

func (r distRunner) Convention() string { return "distribution" }

func (r distRunner) Evaluate(ctx context.Context, t *task.Task) (Evaluation, error) {
	d, err := r.m.Distribution(ctx, t)
	if err != nil {
		return nil, err
	}
	return distEval{ctx: ctx, m: r.m, t: t, d: d}, nil
}

type distEval struct {
	ctx context.Context
	m   DistributionModel
	t   *task.Task
	d   Distribution
}

func (e distEval) Mean() ([]*mat.Dense, error)   { return e.d.Mean() }
func (e distEval) Stddev() ([]*mat.Dense, error) { return e.d.Stddev() }

func (e distEval) Sample(n int, noiseless bool, rng *rand.Rand) ([][]*mat.Dense, error) {
	return e.d.Sample(n, noiseless, rng)
}

func (e distEval) ARSample(n, subsample int, rng *rand.Rand) ([]float64, error) {
	return e.m.ARSample(e.ctx, e.t, n, subsample, rng)
}
