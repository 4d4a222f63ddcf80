package model

import (
	"context"
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/kilianp07/fieldcast/core/task"
)

// Entropic is the subset of ProbabilisticModel needed for information gain.
type Entropic interface {
	Entropy(ctx context.Context, t *task.Task) (float64, error)
}

// MutualInformation returns I(T|C;N) = H(T|C) - H(T|C,N): the entropy drop
// over the target set when the observations (xNew, yNew) are added to
// context set idx.
func MutualInformation(ctx context.Context, m Entropic, t *task.Task, xNew, yNew mat.Matrix, idx int) (float64, error) {
	withNew, err := task.AppendObs(t, xNew, yNew, idx)
	if err != nil {
		return 0, err
	}
	before, err := m.Entropy(ctx, t)
	if err != nil {
		return 0, fmt.Errorf("entropy before: %w", err)
	}
	after, err := m.Entropy(ctx, withNew)
	if err != nil {
		return 0, fmt.Errorf("entropy after: %w", err)
	}
	return before - after, nil
}
