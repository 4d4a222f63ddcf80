package gp

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"

	"github.com/kilianp07/fieldcast/core/numeric"
	"github.com/kilianp07/fieldcast/core/task"
)

// ARSample draws n autoregressive samples. For each sample, every
// subsample-th target point is drawn from the current posterior and appended
// to its context set, so later draws condition on earlier ones. The sample
// is the posterior mean on the full target sets after all draws, flattened
// in (sample, output, point) order across target sets.
func (m *Model) ARSample(ctx context.Context, t *task.Task, n, subsample int, rng *rand.Rand) ([]float64, error) {
	if rng == nil {
		return nil, fmt.Errorf("gp: nil random source")
	}
	if subsample < 1 {
		subsample = 1
	}
	if len(t.XC) == 0 {
		return nil, fmt.Errorf("gp: autoregressive sampling needs a context set")
	}
	base, err := ungridded(t)
	if err != nil {
		return nil, err
	}
	var flat []float64
	for s := 0; s < n; s++ {
		work := base
		for k, xt := range base.XT {
			pts, err := xt.Points()
			if err != nil {
				return nil, fmt.Errorf("gp: target set %d: %w", k, err)
			}
			d, np := pts.Dims()
			for j := 0; j < np; j += subsample {
				if err := ctx.Err(); err != nil {
					return nil, err
				}
				if work, err = m.drawPoint(work, k, pts.Slice(0, d, j, j+1).(*mat.Dense), rng); err != nil {
					return nil, err
				}
			}
		}
		posts, err := m.posteriors(ctx, work)
		if err != nil {
			return nil, err
		}
		means := make([]*mat.Dense, len(posts))
		for k, p := range posts {
			means[k] = p.mean
		}
		all, err := numeric.Stack(means...)
		if err != nil {
			return nil, err
		}
		flat = append(flat, all.RawMatrix().Data...)
	}
	return flat, nil
}

// drawPoint samples every output at x from the posterior of target set k
// and returns a task with the draw appended to its context set.
func (m *Model) drawPoint(t *task.Task, k int, x *mat.Dense, rng *rand.Rand) (*task.Task, error) {
	cx, cy, set, err := contextFor(t, k)
	if err != nil {
		return nil, err
	}
	p, err := m.condition(cx, cy, mat.DenseCopyOf(x))
	if err != nil {
		return nil, err
	}
	sd := math.Sqrt(math.Max(p.cov.At(0, 0), 0))
	y := mat.NewDense(p.outputs(), 1, nil)
	for r := 0; r < p.outputs(); r++ {
		y.Set(r, 0, p.mean.At(r, 0)+sd*rng.NormFloat64())
	}
	return task.AppendObs(t, x, y, set)
}

// ungridded returns a copy of t whose gridded context sets are expanded to
// point arrays so they accept appended observations.
func ungridded(t *task.Task) (*task.Task, error) {
	out := t.Clone()
	for i, v := range out.XC {
		if !v.Gridded() {
			continue
		}
		pts, err := v.Points()
		if err != nil {
			return nil, err
		}
		out.XC[i] = task.Array(pts)
	}
	return out, nil
}
