// Package idw is an inverse-distance-weighting baseline run in direct mode.
package idw

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/kilianp07/fieldcast/core/model"
	"github.com/kilianp07/fieldcast/core/numeric"
	"github.com/kilianp07/fieldcast/core/task"
)

// ErrNoContext is returned when a target set has no observations to weight.
var ErrNoContext = errors.New("idw: no context observations")

// Config holds the weighting parameters.
type Config struct {
	// Power is the distance exponent.
	Power float64 `json:"power"`
	// Nugget is added to every variance so the spread never collapses.
	Nugget float64 `json:"nugget"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.Power == 0 {
		c.Power = 2
	}
	if c.Nugget == 0 {
		c.Nugget = 1e-6
	}
}

// Validate checks the parameters.
func (c Config) Validate() error {
	if c.Power <= 0 || c.Nugget < 0 {
		return fmt.Errorf("idw: invalid parameters %+v", c)
	}
	return nil
}

// Model interpolates each output by inverse-distance weighting. Target set k
// uses context set k mod len(XC).
type Model struct {
	model.Unimplemented
	cfg Config
}

var _ model.ProbabilisticModel = (*Model)(nil)

// New validates cfg and returns a Model.
func New(cfg Config) (*Model, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Model{cfg: cfg}, nil
}

// weights returns the normalised weights of the context columns for the
// query point q. An exact hit takes all the weight.
func (m *Model) weights(x *mat.Dense, q []float64) []float64 {
	d, n := x.Dims()
	w := make([]float64, n)
	col := make([]float64, d)
	for i := 0; i < n; i++ {
		mat.Col(col, i, x)
		dist := floats.Distance(col, q, 2)
		if dist == 0 {
			for j := range w {
				w[j] = 0
			}
			w[i] = 1
			return w
		}
		w[i] = math.Pow(dist, -m.cfg.Power)
	}
	floats.Scale(1/floats.Sum(w), w)
	return w
}

// contextFor returns the context points and values that target set k reads.
func contextFor(t *task.Task, k int) (x, y *mat.Dense, set int, err error) {
	if len(t.XC) == 0 {
		return nil, nil, 0, ErrNoContext
	}
	set = k % len(t.XC)
	if x, err = t.XC[set].Points(); err != nil {
		return nil, nil, 0, fmt.Errorf("idw: context set %d: %w", set, err)
	}
	if x.IsEmpty() {
		return nil, nil, 0, fmt.Errorf("%w in set %d", ErrNoContext, set)
	}
	if set >= len(t.YC) || t.YC[set].Kind() != task.KindArray {
		return nil, nil, 0, fmt.Errorf("idw: context set %d has no value array", set)
	}
	return x, t.YC[set].Matrix(), set, nil
}

// interp computes the weighted mean and variance of y at every column of pts.
func (m *Model) interp(ctx context.Context, x, y, pts *mat.Dense) (mean, variance *mat.Dense, err error) {
	dy, _ := y.Dims()
	d, np := pts.Dims()
	mean = mat.NewDense(dy, np, nil)
	variance = mat.NewDense(dy, np, nil)
	q := make([]float64, d)
	var row []float64
	for j := 0; j < np; j++ {
		if j%256 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, nil, err
			}
		}
		mat.Col(q, j, pts)
		w := m.weights(x, q)
		for r := 0; r < dy; r++ {
			row = mat.Row(row, r, y)
			mu := floats.Dot(w, row)
			var v float64
			for i, yi := range row {
				v += w[i] * (yi - mu) * (yi - mu)
			}
			mean.Set(r, j, mu)
			variance.Set(r, j, v+m.cfg.Nugget)
		}
	}
	return mean, variance, nil
}

func (m *Model) moments(ctx context.Context, t *task.Task, k int) (mean, variance *mat.Dense, err error) {
	x, y, _, err := contextFor(t, k)
	if err != nil {
		return nil, nil, err
	}
	pts, err := t.XT[k].Points()
	if err != nil {
		return nil, nil, fmt.Errorf("idw: target set %d: %w", k, err)
	}
	return m.interp(ctx, x, y, pts)
}

func (m *Model) each(ctx context.Context, t *task.Task, pick func(mean, variance *mat.Dense) *mat.Dense) ([]*mat.Dense, error) {
	out := make([]*mat.Dense, len(t.XT))
	for k := range t.XT {
		mean, variance, err := m.moments(ctx, t, k)
		if err != nil {
			return nil, err
		}
		out[k] = pick(mean, variance)
	}
	return out, nil
}

// Mean returns the weighted mean per target set.
func (m *Model) Mean(ctx context.Context, t *task.Task) ([]*mat.Dense, error) {
	return m.each(ctx, t, func(mean, _ *mat.Dense) *mat.Dense { return mean })
}

// Variance returns the weighted spread plus the nugget.
func (m *Model) Variance(ctx context.Context, t *task.Task) ([]*mat.Dense, error) {
	return m.each(ctx, t, func(_, variance *mat.Dense) *mat.Dense { return variance })
}

func (m *Model) Stddev(ctx context.Context, t *task.Task) ([]*mat.Dense, error) {
	return model.StddevFromVariance(ctx, m, t)
}

// Sample draws independent normals around the mean. The spread already holds
// the nugget, so noiseless has no effect.
func (m *Model) Sample(ctx context.Context, t *task.Task, n int, _ bool, rng *rand.Rand) ([][]*mat.Dense, error) {
	if rng == nil {
		return nil, fmt.Errorf("idw: nil random source")
	}
	means, err := m.Mean(ctx, t)
	if err != nil {
		return nil, err
	}
	stds, err := m.Stddev(ctx, t)
	if err != nil {
		return nil, err
	}
	out := make([][]*mat.Dense, n)
	for s := range out {
		out[s] = make([]*mat.Dense, len(means))
		for k, mu := range means {
			var d mat.Dense
			d.Apply(func(i, j int, v float64) float64 {
				return v + stds[k].At(i, j)*rng.NormFloat64()
			}, mu)
			out[s][k] = &d
		}
	}
	return out, nil
}

// ARSample draws every subsample-th target point in turn, appending each
// draw to the context set before the next, and returns the mean over the
// full target sets per sample.
func (m *Model) ARSample(ctx context.Context, t *task.Task, n, subsample int, rng *rand.Rand) ([]float64, error) {
	if rng == nil {
		return nil, fmt.Errorf("idw: nil random source")
	}
	if len(t.XC) == 0 {
		return nil, ErrNoContext
	}
	if subsample < 1 {
		subsample = 1
	}
	base := t.Clone()
	for i, v := range base.XC {
		if v.Gridded() {
			pts, err := v.Points()
			if err != nil {
				return nil, err
			}
			base.XC[i] = task.Array(pts)
		}
	}
	var flat []float64
	for s := 0; s < n; s++ {
		work := base
		for k, xt := range base.XT {
			pts, err := xt.Points()
			if err != nil {
				return nil, err
			}
			d, np := pts.Dims()
			for j := 0; j < np; j += subsample {
				x := mat.DenseCopyOf(pts.Slice(0, d, j, j+1))
				cx, cy, set, err := contextFor(work, k)
				if err != nil {
					return nil, err
				}
				mean, variance, err := m.interp(ctx, cx, cy, x)
				if err != nil {
					return nil, err
				}
				y := numeric.Copy(mean)
				y.Apply(func(i, _ int, v float64) float64 {
					return v + math.Sqrt(variance.At(i, 0))*rng.NormFloat64()
				}, y)
				if work, err = task.AppendObs(work, x, y, set); err != nil {
					return nil, err
				}
			}
		}
		means, err := m.Mean(ctx, work)
		if err != nil {
			return nil, err
		}
		all, err := numeric.Stack(means...)
		if err != nil {
			return nil, err
		}
		flat = append(flat, all.RawMatrix().Data...)
	}
	return flat, nil
}
