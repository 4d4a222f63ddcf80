// Package active places new sensors greedily by the uncertainty they remove.
package active

import (
	"context"
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/kilianp07/fieldcast/core/logger"
	"github.com/kilianp07/fieldcast/core/model"
	"github.com/kilianp07/fieldcast/core/task"
)

var (
	// ErrNoCandidates is returned when fewer candidates than requested placements remain.
	ErrNoCandidates = errors.New("active: not enough candidates")
	// ErrInvalidCount is returned for a non-positive placement count.
	ErrInvalidCount = errors.New("active: placement count must be positive")
	// ErrNoTargets is returned when the task has no target set to score.
	ErrNoTargets = errors.New("active: task has no target sets")
	// ErrNoScore is returned when no remaining candidate has a finite score.
	ErrNoScore = errors.New("active: no candidate has a finite score")
)

// Greedy picks one candidate per step. Each candidate is scored by
// appending the model mean at that location to context set ContextSet as a
// proxy observation and averaging the resulting target standard deviation.
type Greedy struct {
	model      model.ProbabilisticModel
	contextSet int
	log        logger.Logger
}

// Placement is the outcome of Place.
type Placement struct {
	// Indices are candidate columns in selection order.
	Indices []int
	// Scores holds the mean target stddev after each selection.
	Scores []float64
	// Task has every proxy observation appended.
	Task *task.Task
}

// NewGreedy returns a Greedy placer appending to context set contextSet.
func NewGreedy(m model.ProbabilisticModel, contextSet int, log logger.Logger) (*Greedy, error) {
	if m == nil {
		return nil, fmt.Errorf("active: nil model")
	}
	if contextSet < 0 {
		return nil, &task.SetIndexError{Index: contextSet, Kind: "context"}
	}
	return &Greedy{model: m, contextSet: contextSet, log: logger.OrNop(log)}, nil
}

// Place selects n of the candidate locations (2 x M, one per column).
// t is not modified.
func (g *Greedy) Place(ctx context.Context, t *task.Task, candidates *mat.Dense, n int) (*Placement, error) {
	if n < 1 {
		return nil, ErrInvalidCount
	}
	if candidates == nil || candidates.IsEmpty() {
		return nil, ErrNoCandidates
	}
	if len(t.XT) == 0 {
		return nil, ErrNoTargets
	}
	d, m := candidates.Dims()
	if n > m {
		return nil, fmt.Errorf("%w: %d requested, %d available", ErrNoCandidates, n, m)
	}

	cur := t.Clone()
	taken := make([]bool, m)
	out := &Placement{}
	for step := 0; step < n; step++ {
		best, bestScore := -1, math.Inf(1)
		var bestTask *task.Task
		for j := 0; j < m; j++ {
			if taken[j] {
				continue
			}
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			x := mat.DenseCopyOf(candidates.Slice(0, d, j, j+1))
			next, score, err := g.score(ctx, cur, x)
			if err != nil {
				return nil, fmt.Errorf("candidate %d: %w", j, err)
			}
			if score < bestScore {
				best, bestScore, bestTask = j, score, next
			}
		}
		if best < 0 {
			return nil, fmt.Errorf("%w at step %d", ErrNoScore, step)
		}
		taken[best] = true
		cur = bestTask
		out.Indices = append(out.Indices, best)
		out.Scores = append(out.Scores, bestScore)
		g.log.Debugw("sensor placed", map[string]any{"step": step, "candidate": best, "score": bestScore})
	}
	out.Task = cur
	g.log.Infof("placed %d sensors, final mean stddev %.4g", n, out.Scores[n-1])
	return out, nil
}

// score appends the proxy observation at x and returns the new task with its
// mean target stddev.
func (g *Greedy) score(ctx context.Context, t *task.Task, x *mat.Dense) (*task.Task, float64, error) {
	at := t.Clone()
	at.XT = []task.Value{task.Array(x)}
	mean, err := g.model.Mean(ctx, at)
	if err != nil {
		return nil, 0, err
	}
	next, err := task.AppendObs(t, x, mean[0], g.contextSet)
	if err != nil {
		return nil, 0, err
	}
	std, err := g.model.Stddev(ctx, next)
	if err != nil {
		return nil, 0, err
	}
	var all []float64
	for _, s := range std {
		all = append(all, s.RawMatrix().Data...)
	}
	return next, stat.Mean(all, nil), nil
}
