package predict

import (
	"fmt"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/kilianp07/fieldcast/core/container"
	"github.com/kilianp07/fieldcast/core/task"
)

// collector owns the pre-allocated output containers of one call.
type collector struct {
	mode   Mode
	query  task.Value
	points int

	mean, std, samples    *container.DataArray
	meanF, stdF, samplesF *container.Frame
}

func newCollector(locs container.Locations, dates []time.Time, vars []string, opts Options) (*collector, error) {
	switch l := locs.(type) {
	case *container.Grid:
		return newGridCollector(l, dates, vars, opts)
	case *container.Index:
		return newPointCollector(l, dates, vars, opts)
	}
	return nil, fmt.Errorf("%w: %T", ErrUnsupportedLocations, locs)
}

func newGridCollector(g *container.Grid, dates []time.Time, vars []string, opts Options) (*collector, error) {
	build := func(prepend []container.PrependCoord) (*container.DataArray, error) {
		return container.BuildDense(dates, opts.ResolutionFactor, g, container.DefaultCoordNames, vars, prepend)
	}
	c := &collector{mode: ModeGrid}
	var err error
	if c.mean, err = build(nil); err != nil {
		return nil, err
	}
	if c.std, err = build(nil); err != nil {
		return nil, err
	}
	if opts.NSamples > 0 {
		idx := make([]int, opts.NSamples)
		for i := range idx {
			idx[i] = i
		}
		if c.samples, err = build([]container.PrependCoord{{Name: container.SampleLevel, Values: idx}}); err != nil {
			return nil, err
		}
	}
	c.query = task.Grid(c.mean.Axes.X1, c.mean.Axes.X2)
	c.points = c.mean.Axes.Points()
	return c, nil
}

func newPointCollector(ix *container.Index, dates []time.Time, vars []string, opts Options) (*collector, error) {
	c := &collector{mode: ModePoints}
	var err error
	if c.meanF, err = container.BuildFrame(dates, ix, vars, 0, nil); err != nil {
		return nil, err
	}
	if c.stdF, err = container.BuildFrame(dates, ix, vars, 0, nil); err != nil {
		return nil, err
	}
	if opts.NSamples > 0 {
		if c.samplesF, err = container.BuildFrame(dates, ix, vars, opts.NSamples, nil); err != nil {
			return nil, err
		}
	}
	xt, err := ix.Coords()
	if err != nil {
		return nil, err
	}
	c.query = task.Array(xt)
	c.points = ix.Len()
	return c, nil
}

func (c *collector) write(t time.Time, mean, std *mat.Dense) error {
	if c.mode == ModeGrid {
		if _, err := c.mean.SetTime(t, nil, mean); err != nil {
			return err
		}
		_, err := c.std.SetTime(t, nil, std)
		return err
	}
	if _, err := c.meanF.SetTime(t, 0, mean); err != nil {
		return err
	}
	_, err := c.stdF.SetTime(t, 0, std)
	return err
}

func (c *collector) writeSample(t time.Time, s int, m *mat.Dense) error {
	var err error
	if c.mode == ModeGrid {
		_, err = c.samples.SetTime(t, []int{s}, m)
	} else {
		_, err = c.samplesF.SetTime(t, s, m)
	}
	return err
}

func (c *collector) outputs() (mean, std, samples *Output) {
	if c.mode == ModeGrid {
		mean = &Output{Grid: c.mean.ToDataset()}
		std = &Output{Grid: c.std.ToDataset()}
		if c.samples != nil {
			samples = &Output{Grid: c.samples.ToDataset()}
		}
		return mean, std, samples
	}
	mean = &Output{Table: c.meanF}
	std = &Output{Table: c.stdF}
	if c.samplesF != nil {
		samples = &Output{Table: c.samplesF}
	}
	return mean, std, samples
}
