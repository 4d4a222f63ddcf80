// Package gp is a Gaussian-process baseline with a squared-exponential
// kernel. Target set k is conditioned on context set k mod len(XC) and every
// Y row is an independent output sharing the same kernel.
package gp

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/kilianp07/fieldcast/core/model"
	"github.com/kilianp07/fieldcast/core/numeric"
	"github.com/kilianp07/fieldcast/core/task"
)

// ErrNotPositiveDefinite is returned when a kernel matrix cannot be factorised
// even after adding jitter.
var ErrNotPositiveDefinite = errors.New("kernel matrix not positive definite")

// Config holds the kernel hyperparameters.
type Config struct {
	Lengthscale float64 `json:"lengthscale"`
	Variance    float64 `json:"variance"`
	Noise       float64 `json:"noise"`
	// Jitter is the first diagonal increment tried when a factorisation fails.
	Jitter float64 `json:"jitter"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.Lengthscale == 0 {
		c.Lengthscale = 0.1
	}
	if c.Variance == 0 {
		c.Variance = 1
	}
	if c.Noise == 0 {
		c.Noise = 1e-4
	}
	if c.Jitter == 0 {
		c.Jitter = 1e-9
	}
}

// Validate checks the hyperparameters.
func (c Config) Validate() error {
	if c.Lengthscale <= 0 || c.Variance <= 0 || c.Noise < 0 || c.Jitter < 0 {
		return fmt.Errorf("gp: invalid hyperparameters %+v", c)
	}
	return nil
}

// Model is a distribution-mode GP.
type Model struct {
	cfg Config
}

var _ model.DistributionModel = (*Model)(nil)

// New validates cfg and returns a Model.
func New(cfg Config) (*Model, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Model{cfg: cfg}, nil
}

// kernel returns the Na x Nb covariance between the columns of a and b.
func (m *Model) kernel(a, b *mat.Dense) *mat.Dense {
	_, na := a.Dims()
	_, nb := b.Dims()
	d, _ := a.Dims()
	out := mat.NewDense(na, nb, nil)
	l2 := 2 * m.cfg.Lengthscale * m.cfg.Lengthscale
	for i := 0; i < na; i++ {
		for j := 0; j < nb; j++ {
			var sq float64
			for r := 0; r < d; r++ {
				diff := a.At(r, i) - b.At(r, j)
				sq += diff * diff
			}
			out.Set(i, j, m.cfg.Variance*math.Exp(-sq/l2))
		}
	}
	return out
}

func symmetric(k *mat.Dense, diag float64) *mat.SymDense {
	n, _ := k.Dims()
	out := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			v := 0.5 * (k.At(i, j) + k.At(j, i))
			if i == j {
				v += diag
			}
			out.SetSym(i, j, v)
		}
	}
	return out
}

// factor computes a Cholesky factorisation, adding growing jitter to the
// diagonal until it succeeds.
func (m *Model) factor(k *mat.SymDense) (*mat.Cholesky, error) {
	var ch mat.Cholesky
	if ch.Factorize(k) {
		return &ch, nil
	}
	n := k.SymmetricDim()
	jitter := m.cfg.Jitter
	if jitter == 0 {
		jitter = 1e-9
	}
	for try := 0; try < 8; try++ {
		kj := mat.NewSymDense(n, nil)
		kj.CopySym(k)
		for i := 0; i < n; i++ {
			kj.SetSym(i, i, k.At(i, i)+jitter)
		}
		if ch.Factorize(kj) {
			return &ch, nil
		}
		jitter *= 10
	}
	return nil, ErrNotPositiveDefinite
}

// posterior is the predictive distribution of one target set.
type posterior struct {
	mean  *mat.Dense    // outputs x points
	cov   *mat.SymDense // points x points, shared by every output
	chol  *mat.Cholesky // lazily factorised cov
	noisy *mat.Cholesky // lazily factorised cov + noise I
}

func (p *posterior) outputs() int {
	r, _ := p.mean.Dims()
	return r
}

func (p *posterior) points() int {
	_, c := p.mean.Dims()
	return c
}

// condition computes the posterior at xt given observations (x, y). An
// empty context yields the prior with one output.
func (m *Model) condition(x, y, xt *mat.Dense) (*posterior, error) {
	if xt.IsEmpty() {
		return nil, fmt.Errorf("gp: empty target set")
	}
	ktt := m.kernel(xt, xt)
	if x.IsEmpty() {
		_, nt := xt.Dims()
		return &posterior{mean: mat.NewDense(1, nt, nil), cov: symmetric(ktt, 0)}, nil
	}
	_, n := x.Dims()
	dy, ny := y.Dims()
	if ny != n {
		return nil, fmt.Errorf("gp: %d context locations but %d values", n, ny)
	}

	kxx := m.kernel(x, x)
	ch, err := m.factor(symmetric(kxx, m.cfg.Noise))
	if err != nil {
		return nil, err
	}
	kxt := m.kernel(x, xt)
	var a mat.Dense
	if err := ch.SolveTo(&a, kxt); err != nil {
		return nil, fmt.Errorf("gp: solve: %w", err)
	}

	centred := mat.DenseCopyOf(y)
	mu := make([]float64, dy)
	for r := 0; r < dy; r++ {
		mu[r] = stat.Mean(mat.Row(nil, r, y), nil)
		for c := 0; c < n; c++ {
			centred.Set(r, c, y.At(r, c)-mu[r])
		}
	}
	var mean mat.Dense
	mean.Mul(centred, &a)
	mean.Apply(func(r, _ int, v float64) float64 { return v + mu[r] }, &mean)

	var reduce mat.Dense
	reduce.Mul(kxt.T(), &a)
	ktt.Sub(ktt, &reduce)
	return &posterior{mean: &mean, cov: symmetric(ktt, 0)}, nil
}

// contextFor returns the coordinates and values of the context set feeding
// target set k.
func contextFor(t *task.Task, k int) (x, y *mat.Dense, set int, err error) {
	if len(t.XC) == 0 {
		return &mat.Dense{}, &mat.Dense{}, -1, nil
	}
	set = k % len(t.XC)
	if x, err = t.XC[set].Points(); err != nil {
		return nil, nil, set, fmt.Errorf("gp: context set %d: %w", set, err)
	}
	if set >= len(t.YC) || t.YC[set].Kind() != task.KindArray {
		return nil, nil, set, fmt.Errorf("gp: context set %d has no value array", set)
	}
	return x, t.YC[set].Matrix(), set, nil
}

// posteriors conditions every target set of t.
func (m *Model) posteriors(ctx context.Context, t *task.Task) ([]*posterior, error) {
	out := make([]*posterior, len(t.XT))
	for k, xt := range t.XT {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		pts, err := xt.Points()
		if err != nil {
			return nil, fmt.Errorf("gp: target set %d: %w", k, err)
		}
		x, y, _, err := contextFor(t, k)
		if err != nil {
			return nil, err
		}
		if out[k], err = m.condition(x, y, pts); err != nil {
			return nil, fmt.Errorf("target set %d: %w", k, err)
		}
	}
	return out, nil
}

// Distribution conditions the model on t once.
func (m *Model) Distribution(ctx context.Context, t *task.Task) (model.Distribution, error) {
	posts, err := m.posteriors(ctx, t)
	if err != nil {
		return nil, err
	}
	return &Distribution{model: m, posts: posts}, nil
}

// Distribution is the joint predictive over every target set of one task.
type Distribution struct {
	model *Model
	posts []*posterior
}

// Mean returns one (outputs, points) matrix per target set.
func (d *Distribution) Mean() ([]*mat.Dense, error) {
	out := make([]*mat.Dense, len(d.posts))
	for k, p := range d.posts {
		out[k] = mat.DenseCopyOf(p.mean)
	}
	return out, nil
}

// Variance returns the marginal variances, repeated for every output.
func (d *Distribution) Variance() ([]*mat.Dense, error) {
	out := make([]*mat.Dense, len(d.posts))
	for k, p := range d.posts {
		v := mat.NewDense(p.outputs(), p.points(), nil)
		for r := 0; r < p.outputs(); r++ {
			for c := 0; c < p.points(); c++ {
				v.Set(r, c, p.cov.At(c, c))
			}
		}
		out[k] = v
	}
	return out, nil
}

// Stddev is the square root of Variance.
func (d *Distribution) Stddev() ([]*mat.Dense, error) {
	vs, _ := d.Variance()
	for k, v := range vs {
		vs[k] = numeric.Sqrt(v)
	}
	return vs, nil
}

// Covariance returns a block-diagonal (outputs*points) square matrix per
// target set.
func (d *Distribution) Covariance() ([]*mat.Dense, error) {
	out := make([]*mat.Dense, len(d.posts))
	for k, p := range d.posts {
		n, m := p.outputs(), p.points()
		c := mat.NewDense(n*m, n*m, nil)
		for b := 0; b < n; b++ {
			for i := 0; i < m; i++ {
				for j := 0; j < m; j++ {
					c.Set(b*m+i, b*m+j, p.cov.At(i, j))
				}
			}
		}
		out[k] = c
	}
	return out, nil
}

// factor returns the cached Cholesky factor of the latent covariance, or of
// the covariance of noisy observations when noiseless is false.
func (d *Distribution) factor(p *posterior, noiseless bool) (*mat.Cholesky, error) {
	slot := &p.noisy
	diag := d.model.cfg.Noise
	if noiseless {
		slot, diag = &p.chol, 0
	}
	if *slot != nil {
		return *slot, nil
	}
	cov := p.cov
	if diag > 0 {
		cov = mat.NewSymDense(p.points(), nil)
		cov.CopySym(p.cov)
		for i := 0; i < p.points(); i++ {
			cov.SetSym(i, i, cov.At(i, i)+diag)
		}
	}
	ch, err := d.model.factor(cov)
	if err != nil {
		return nil, err
	}
	*slot = ch
	return ch, nil
}

// Sample draws n joint samples: mean + L z per output. Noisy samples add the
// observation noise to the diagonal before factorising.
func (d *Distribution) Sample(n int, noiseless bool, rng *rand.Rand) ([][]*mat.Dense, error) {
	if rng == nil {
		return nil, fmt.Errorf("gp: nil random source")
	}
	factors := make([]*mat.Cholesky, len(d.posts))
	for k, p := range d.posts {
		ch, err := d.factor(p, noiseless)
		if err != nil {
			return nil, err
		}
		factors[k] = ch
	}
	out := make([][]*mat.Dense, n)
	for s := range out {
		out[s] = make([]*mat.Dense, len(d.posts))
		for k, p := range d.posts {
			var l mat.TriDense
			factors[k].LTo(&l)
			m := p.points()
			draw := mat.NewDense(p.outputs(), m, nil)
			z := mat.NewVecDense(m, nil)
			var lz mat.VecDense
			for r := 0; r < p.outputs(); r++ {
				for i := 0; i < m; i++ {
					z.SetVec(i, rng.NormFloat64())
				}
				lz.MulVec(&l, z)
				for i := 0; i < m; i++ {
					draw.Set(r, i, p.mean.At(r, i)+lz.AtVec(i))
				}
			}
			out[s][k] = draw
		}
	}
	return out, nil
}
