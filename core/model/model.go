package model

import (
	"context"
	"errors"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"

	"github.com/kilianp07/fieldcast/core/numeric"
	"github.com/kilianp07/fieldcast/core/task"
)

// ErrNotImplemented is returned by capabilities a model does not provide.
var ErrNotImplemented = errors.New("model capability not implemented")

// Output arrays are one *mat.Dense per target set, shaped (vars, points).
// Samples are indexed [sample][target set].

// ProbabilisticModel computes statistics directly from a task. Each call may
// re-run the model.
type ProbabilisticModel interface {
	Mean(ctx context.Context, t *task.Task) ([]*mat.Dense, error)
	Variance(ctx context.Context, t *task.Task) ([]*mat.Dense, error)
	Stddev(ctx context.Context, t *task.Task) ([]*mat.Dense, error)
	// Covariance returns one (points*vars) x (points*vars) matrix per target set.
	Covariance(ctx context.Context, t *task.Task) ([]*mat.Dense, error)
	Entropy(ctx context.Context, t *task.Task) (float64, error)
	LogPDF(ctx context.Context, t *task.Task) (float64, error)
	Loss(ctx context.Context, t *task.Task) (float64, error)
	// Sample draws n joint samples. Noiseless samples leave out the
	// observation noise.
	Sample(ctx context.Context, t *task.Task, n int, noiseless bool, rng *rand.Rand) ([][]*mat.Dense, error)
	// ARSample returns n autoregressive samples flattened in
	// (sample, var, point) order across concatenated target sets.
	ARSample(ctx context.Context, t *task.Task, n, subsample int, rng *rand.Rand) ([]float64, error)
}

// Unimplemented can be embedded to provide ErrNotImplemented defaults.
type Unimplemented struct{}

func (Unimplemented) Mean(context.Context, *task.Task) ([]*mat.Dense, error) {
	return nil, ErrNotImplemented
}

func (Unimplemented) Variance(context.Context, *task.Task) ([]*mat.Dense, error) {
	return nil, ErrNotImplemented
}

func (Unimplemented) Stddev(context.Context, *task.Task) ([]*mat.Dense, error) {
	return nil, ErrNotImplemented
}

func (Unimplemented) Covariance(context.Context, *task.Task) ([]*mat.Dense, error) {
	return nil, ErrNotImplemented
}

func (Unimplemented) Entropy(context.Context, *task.Task) (float64, error) {
	return 0, ErrNotImplemented
}

func (Unimplemented) LogPDF(context.Context, *task.Task) (float64, error) {
	return 0, ErrNotImplemented
}

func (Unimplemented) Loss(context.Context, *task.Task) (float64, error) {
	return 0, ErrNotImplemented
}

func (Unimplemented) Sample(context.Context, *task.Task, int, bool, *rand.Rand) ([][]*mat.Dense, error) {
	return nil, ErrNotImplemented
}

func (Unimplemented) ARSample(context.Context, *task.Task, int, int, *rand.Rand) ([]float64, error) {
	return nil, ErrNotImplemented
}

// StddevFromVariance is the default standard deviation: sqrt(variance).
func StddevFromVariance(ctx context.Context, m interface {
	Variance(context.Context, *task.Task) ([]*mat.Dense, error)
}, t *task.Task) ([]*mat.Dense, error) {
	vs, err := m.Variance(ctx, t)
	if err != nil {
		return nil, err
	}
	out := make([]*mat.Dense, len(vs))
	for i, v := range vs {
		out[i] = numeric.Sqrt(v)
	}
	return out, nil
}

// Distribution is the reusable output of a single model forward pass.
type Distribution interface {
	Mean() ([]*mat.Dense, error)
	Stddev() ([]*mat.Dense, error)
	Sample(n int, noiseless bool, rng *rand.Rand) ([][]*mat.Dense, error)
}

// DistributionModel runs once per task and returns a Distribution.
// Autoregressive sampling needs fresh forward passes so it stays on the model.
type DistributionModel interface {
	Distribution(ctx context.Context, t *task.Task) (Distribution, error)
	ARSample(ctx context.Context, t *task.Task, n, subsample int, rng *rand.Rand) ([]float64, error)
}
