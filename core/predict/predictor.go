package predict

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/mat"

	"github.com/kilianp07/fieldcast/core/container"
	"github.com/kilianp07/fieldcast/core/logger"
	"github.com/kilianp07/fieldcast/core/model"
	"github.com/kilianp07/fieldcast/core/numeric"
	"github.com/kilianp07/fieldcast/core/processor"
	"github.com/kilianp07/fieldcast/core/schema"
	"github.com/kilianp07/fieldcast/core/task"
	"github.com/kilianp07/fieldcast/internal/eventbus"
)

// Predictor orchestrates model evaluation over tasks. It is not safe for
// concurrent Predict calls since they share one random source.
type Predictor struct {
	runner  model.Runner
	vars    schema.VarSchema
	proc    *processor.Processor
	backend numeric.Backend
	log     logger.Logger
	rec     Recorder
	bus     *eventbus.Bus[Progress]
}

// New creates a Predictor. runner and vars are required. A nil proc disables
// raw-location mapping and unnormalisation; nil backend, log, rec and bus get
// defaults or are skipped.
func New(runner model.Runner, vars schema.VarSchema, proc *processor.Processor, backend numeric.Backend, log logger.Logger, rec Recorder, bus *eventbus.Bus[Progress]) (*Predictor, error) {
	if runner == nil || vars == nil {
		return nil, fmt.Errorf("predict: nil runner or variable schema")
	}
	if backend == nil {
		backend = numeric.NewGonum(0)
	}
	if rec == nil {
		rec = NopRecorder{}
	}
	return &Predictor{
		runner:  runner,
		vars:    vars,
		proc:    proc,
		backend: backend,
		log:     logger.OrNop(log),
		rec:     rec,
		bus:     bus,
	}, nil
}

// PredictOne is Predict for a single task.
func (p *Predictor) PredictOne(ctx context.Context, t *task.Task, locs container.Locations, opts Options) (*Result, error) {
	return p.Predict(ctx, []*task.Task{t}, locs, opts)
}

// Predict evaluates the model on every task at locs and collects the outputs.
// Caller-owned tasks are never modified.
func (p *Predictor) Predict(ctx context.Context, tasks []*task.Task, locs container.Locations, opts Options) (*Result, error) {
	if len(tasks) == 0 {
		return nil, ErrNoTasks
	}
	opts.SetDefaults()
	if err := opts.Validate(locs); err != nil {
		return nil, err
	}
	if opts.NSamples >= 1 {
		p.backend.Seed(opts.Seed)
	}

	dates := make([]time.Time, len(tasks))
	for i, t := range tasks {
		dates[i] = t.Time
	}
	vars := schema.Flatten(p.vars)

	locs, err := p.modelSpace(locs, opts)
	if err != nil {
		return nil, err
	}
	out, err := newCollector(locs, dates, vars, opts)
	if err != nil {
		return nil, err
	}

	res := &Result{
		RunID:      uuid.NewString(),
		Mode:       out.mode,
		Convention: p.runner.Convention(),
		Vars:       vars,
		Dates:      dates,
	}
	p.log.Infof("run %s: %d tasks, %d vars, mode %s, convention %s", res.RunID, len(tasks), len(vars), res.Mode, res.Convention)

	work := make([]*task.Task, len(tasks))
	for i, t := range tasks {
		work[i] = t.Clone()
	}
	for i, t := range work {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		start := time.Now()
		err := p.runTask(ctx, t, out, len(vars), opts)
		ev := Progress{
			RunID:      res.RunID,
			Index:      i,
			Total:      len(work),
			Time:       t.Time,
			Mode:       out.mode,
			Convention: res.Convention,
			Samples:    opts.NSamples,
			Duration:   time.Since(start),
			Err:        err,
		}
		p.rec.RecordTask(ev)
		if p.bus != nil {
			p.bus.Publish(ev)
		}
		if err != nil {
			p.log.Errorf("run %s: task %d (%s): %v", res.RunID, i, t.Time.Format(time.RFC3339), err)
			return nil, fmt.Errorf("task %d: %w", i, err)
		}
		p.log.Debugw("task predicted", map[string]any{"run": res.RunID, "index": i, "time": t.Time, "duration": ev.Duration.String()})
	}

	res.Mean, res.Std, res.Samples = out.outputs()
	if p.proc != nil && opts.Unnormalise {
		if err := p.unnormalise(res); err != nil {
			return nil, fmt.Errorf("unnormalise: %w", err)
		}
	}
	return res, nil
}

// modelSpace turns locs into a *container.Grid or *container.Index in
// model coordinates, with append indexes attached.
func (p *Predictor) modelSpace(locs container.Locations, opts Options) (container.Locations, error) {
	switch l := locs.(type) {
	case *container.Coords:
		if l == nil {
			return nil, ErrUnsupportedLocations
		}
		names := [2]string{processor.X1Name, processor.X2Name}
		if !opts.Normalised && p.proc != nil {
			names = p.proc.RawSpatialCoordNames()
		}
		locs = l.ToIndex(names)
	case *container.Grid, *container.Index:
		if isNilLocations(l) {
			return nil, ErrUnsupportedLocations
		}
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedLocations, locs)
	}
	if !opts.Normalised {
		if p.proc == nil {
			return nil, ErrNoProcessor
		}
		var err error
		if locs, err = p.proc.MapCoords(locs); err != nil {
			return nil, err
		}
	}
	if len(opts.AppendIndexes) > 0 {
		ix, err := locs.(*container.Index).Append(opts.AppendIndexes...)
		if err != nil {
			return nil, err
		}
		locs = ix
	}
	return locs, nil
}

func isNilLocations(l container.Locations) bool {
	switch v := l.(type) {
	case *container.Grid:
		return v == nil
	case *container.Index:
		return v == nil
	case *container.Coords:
		return v == nil
	}
	return false
}

func (p *Predictor) runTask(ctx context.Context, t *task.Task, out *collector, nVars int, opts Options) error {
	n := max(1, len(t.XT))
	t.XT = make([]task.Value, n)
	for k := range t.XT {
		t.XT[k] = out.query.Clone()
	}

	ev, err := p.runner.Evaluate(ctx, t)
	if err != nil {
		return err
	}
	mean, err := stacked(ev.Mean())
	if err != nil {
		return fmt.Errorf("mean: %w", err)
	}
	std, err := stacked(ev.Stddev())
	if err != nil {
		return fmt.Errorf("stddev: %w", err)
	}
	for _, m := range []*mat.Dense{mean, std} {
		if err := checkShape(m, nVars, out.points); err != nil {
			return err
		}
	}
	if err := out.write(t.Time, mean, std); err != nil {
		return err
	}
	if opts.NSamples < 1 {
		return nil
	}

	p.backend.Seed(opts.Seed)
	draws, err := p.draw(ev, nVars, out.points, opts)
	if err != nil {
		return err
	}
	for s, d := range draws {
		if err := out.writeSample(t.Time, s, d); err != nil {
			return err
		}
	}
	return nil
}

func (p *Predictor) draw(ev model.Evaluation, nVars, points int, opts Options) ([]*mat.Dense, error) {
	rng := p.backend.Rand()
	n := opts.NSamples
	if opts.ARSample {
		flat, err := ev.ARSample(n, opts.ARSubsampleFactor, rng)
		if err != nil {
			return nil, fmt.Errorf("ar sample: %w", err)
		}
		per := nVars * points
		if len(flat) != n*per {
			return nil, fmt.Errorf("%w: ar sample returned %d values, want %d x %d x %d", ErrOutputShape, len(flat), n, nVars, points)
		}
		out := make([]*mat.Dense, n)
		for s := range out {
			out[s] = mat.NewDense(nVars, points, flat[s*per:(s+1)*per])
		}
		return out, nil
	}
	samples, err := ev.Sample(n, opts.Noiseless, rng)
	if err != nil {
		return nil, fmt.Errorf("sample: %w", err)
	}
	if len(samples) != n {
		return nil, fmt.Errorf("%w: got %d samples, want %d", ErrOutputShape, len(samples), n)
	}
	out := make([]*mat.Dense, n)
	for s, parts := range samples {
		m, err := numeric.Stack(parts...)
		if err != nil {
			return nil, fmt.Errorf("sample %d: %w", s, err)
		}
		if err := checkShape(m, nVars, points); err != nil {
			return nil, fmt.Errorf("sample %d: %w", s, err)
		}
		out[s] = m
	}
	return out, nil
}

func stacked(parts []*mat.Dense, err error) (*mat.Dense, error) {
	if err != nil {
		return nil, err
	}
	return numeric.Stack(parts...)
}

func checkShape(m *mat.Dense, nVars, points int) error {
	if m.IsEmpty() {
		return fmt.Errorf("%w: empty output, want (%d, %d)", ErrOutputShape, nVars, points)
	}
	if r, c := m.Dims(); r != nVars || c != points {
		return fmt.Errorf("%w: got (%d, %d), want (%d, %d)", ErrOutputShape, r, c, nVars, points)
	}
	return nil
}

// unnormalise rescales the outputs in place. Means and samples are absolute
// values and get the offset; standard deviations are only rescaled.
func (p *Predictor) unnormalise(res *Result) error {
	apply := func(o *Output, addOffset bool) error {
		if o == nil {
			return nil
		}
		if o.Grid != nil {
			ds, err := p.proc.UnnormaliseDataset(o.Grid, addOffset)
			if err != nil {
				return err
			}
			o.Grid = ds
		}
		if o.Table != nil {
			f, err := p.proc.UnnormaliseFrame(o.Table, addOffset)
			if err != nil {
				return err
			}
			o.Table = f
		}
		return nil
	}
	if err := apply(res.Mean, true); err != nil {
		return err
	}
	if err := apply(res.Std, false); err != nil {
		return err
	}
	return apply(res.Samples, true)
}
