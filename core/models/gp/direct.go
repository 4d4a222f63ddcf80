package gp

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distmv"

	"github.com/kilianp07/fieldcast/core/model"
	"github.com/kilianp07/fieldcast/core/task"
)

// Direct exposes a Model through the direct-mode interface, adding the
// statistics only available per task: entropy, log density and loss.
type Direct struct {
	*Model
}

var _ model.ProbabilisticModel = Direct{}

func (d Direct) dist(ctx context.Context, t *task.Task) (*Distribution, error) {
	posts, err := d.posteriors(ctx, t)
	if err != nil {
		return nil, err
	}
	return &Distribution{model: d.Model, posts: posts}, nil
}

func (d Direct) Mean(ctx context.Context, t *task.Task) ([]*mat.Dense, error) {
	dist, err := d.dist(ctx, t)
	if err != nil {
		return nil, err
	}
	return dist.Mean()
}

func (d Direct) Variance(ctx context.Context, t *task.Task) ([]*mat.Dense, error) {
	dist, err := d.dist(ctx, t)
	if err != nil {
		return nil, err
	}
	return dist.Variance()
}

func (d Direct) Stddev(ctx context.Context, t *task.Task) ([]*mat.Dense, error) {
	return model.StddevFromVariance(ctx, d, t)
}

func (d Direct) Covariance(ctx context.Context, t *task.Task) ([]*mat.Dense, error) {
	dist, err := d.dist(ctx, t)
	if err != nil {
		return nil, err
	}
	return dist.Covariance()
}

func (d Direct) Sample(ctx context.Context, t *task.Task, n int, noiseless bool, rng *rand.Rand) ([][]*mat.Dense, error) {
	dist, err := d.dist(ctx, t)
	if err != nil {
		return nil, err
	}
	return dist.Sample(n, noiseless, rng)
}

// Entropy is the joint differential entropy over every output of every
// target set.
func (d Direct) Entropy(ctx context.Context, t *task.Task) (float64, error) {
	posts, err := d.posteriors(ctx, t)
	if err != nil {
		return 0, err
	}
	var h float64
	for _, p := range posts {
		ch, err := d.factor(p.cov)
		if err != nil {
			return 0, err
		}
		m := float64(p.points())
		per := 0.5 * (m*(1+math.Log(2*math.Pi)) + ch.LogDet())
		h += float64(p.outputs()) * per
	}
	return h, nil
}

// LogPDF is the joint log density of YT under the predictive distribution.
func (d Direct) LogPDF(ctx context.Context, t *task.Task) (float64, error) {
	if len(t.YT) != len(t.XT) {
		return 0, fmt.Errorf("gp: %d target value sets for %d target sets", len(t.YT), len(t.XT))
	}
	posts, err := d.posteriors(ctx, t)
	if err != nil {
		return 0, err
	}
	var lp float64
	for k, p := range posts {
		y := t.YT[k].Matrix()
		if y == nil || y.IsEmpty() {
			return 0, fmt.Errorf("gp: target set %d has no values", k)
		}
		if r, c := y.Dims(); r != p.outputs() || c != p.points() {
			return 0, fmt.Errorf("gp: target set %d values (%d, %d), predictive (%d, %d)", k, r, c, p.outputs(), p.points())
		}
		cov := mat.NewSymDense(p.points(), nil)
		cov.CopySym(p.cov)
		for i := 0; i < p.points(); i++ {
			cov.SetSym(i, i, cov.At(i, i)+d.cfg.Noise)
		}
		for r := 0; r < p.outputs(); r++ {
			norm, ok := distmv.NewNormal(mat.Row(nil, r, p.mean), cov, nil)
			if !ok {
				return 0, ErrNotPositiveDefinite
			}
			lp += norm.LogProb(mat.Row(nil, r, y))
		}
	}
	return lp, nil
}

// Loss is the negative log density.
func (d Direct) Loss(ctx context.Context, t *task.Task) (float64, error) {
	lp, err := d.LogPDF(ctx, t)
	if err != nil {
		return 0, err
	}
	return -lp, nil
}
