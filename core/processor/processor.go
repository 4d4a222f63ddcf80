// Package processor maps target locations between raw and model space and
// rescales model outputs back to physical units.
package processor

import (
	"errors"
	"fmt"
	"math"
	"slices"

	"gonum.org/v1/gonum/mat"

	"github.com/kilianp07/fieldcast/core/container"
)

var (
	// ErrUnknownVar is returned when no scaling parameters exist for a variable.
	ErrUnknownVar = errors.New("no normalisation parameters for variable")
	// ErrMissingCoord is returned when locations lack a raw coordinate axis.
	ErrMissingCoord = errors.New("locations missing coordinate")
)

// Model-space names.
const (
	TimeName = "time"
	X1Name   = "x1"
	X2Name   = "x2"
)

// Params are the affine normalisation parameters of one variable.
type Params struct {
	Offset float64 `json:"offset"`
	Scale  float64 `json:"scale"`
}

// Config holds fitted normalisation parameters.
type Config struct {
	X1Map    [2]float64        `json:"x1_map"`
	X2Map    [2]float64        `json:"x2_map"`
	TimeName string            `json:"time_name"`
	X1Name   string            `json:"x1_name"`
	X2Name   string            `json:"x2_name"`
	Vars     map[string]Params `json:"vars"`
}

// SetDefaults fills unset raw names with the model-space names.
func (c *Config) SetDefaults() {
	if c.TimeName == "" {
		c.TimeName = TimeName
	}
	if c.X1Name == "" {
		c.X1Name = X1Name
	}
	if c.X2Name == "" {
		c.X2Name = X2Name
	}
}

// Validate checks the coordinate maps and scales.
func (c Config) Validate() error {
	if c.X1Map[1] <= c.X1Map[0] {
		return fmt.Errorf("x1_map must be increasing, got %v", c.X1Map)
	}
	if c.X2Map[1] <= c.X2Map[0] {
		return fmt.Errorf("x2_map must be increasing, got %v", c.X2Map)
	}
	for name, p := range c.Vars {
		if p.Scale == 0 {
			return fmt.Errorf("variable %q: scale must be non-zero", name)
		}
	}
	return nil
}

// Processor applies a fitted Config.
type Processor struct {
	cfg Config
}

// New validates cfg and returns a Processor.
func New(cfg Config) (*Processor, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Processor{cfg: cfg}, nil
}

// RawSpatialCoordNames returns the raw names of the two spatial axes.
func (p *Processor) RawSpatialCoordNames() [2]string {
	return [2]string{p.cfg.X1Name, p.cfg.X2Name}
}

// RawTimeName returns the raw name of the time axis.
func (p *Processor) RawTimeName() string { return p.cfg.TimeName }

func mapTo(v float64, m [2]float64) float64   { return (v - m[0]) / (m[1] - m[0]) }
func mapFrom(v float64, m [2]float64) float64 { return v*(m[1]-m[0]) + m[0] }

func (p *Processor) mapAxis(vs []float64, m [2]float64, f func(float64, [2]float64) float64) []float64 {
	out := make([]float64, len(vs))
	for i, v := range vs {
		out[i] = f(v, m)
	}
	return out
}

// MapCoords converts raw locations to model space. Axes and index levels
// carrying the raw spatial names are rescaled to [0, 1] over the configured
// maps and renamed x1/x2. A *Coords matrix is assumed to be (x1, x2) rows.
func (p *Processor) MapCoords(locs container.Locations) (container.Locations, error) {
	switch l := locs.(type) {
	case *container.Grid:
		a1, ok := l.Axis(p.cfg.X1Name)
		if !ok {
			return nil, fmt.Errorf("%w %q", ErrMissingCoord, p.cfg.X1Name)
		}
		a2, ok := l.Axis(p.cfg.X2Name)
		if !ok {
			return nil, fmt.Errorf("%w %q", ErrMissingCoord, p.cfg.X2Name)
		}
		return container.NewGrid(p.mapAxis(a1, p.cfg.X1Map, mapTo), p.mapAxis(a2, p.cfg.X2Map, mapTo)), nil
	case *container.Index:
		return p.mapIndex(l, mapTo, p.RawSpatialCoordNames(), [2]string{X1Name, X2Name})
	case *container.Coords:
		return p.MapCoords(l.ToIndex(p.RawSpatialCoordNames()))
	default:
		return nil, fmt.Errorf("cannot map locations of type %T", locs)
	}
}

func (p *Processor) mapIndex(ix *container.Index, f func(float64, [2]float64) float64, from, to [2]string) (*container.Index, error) {
	maps := [2][2]float64{p.cfg.X1Map, p.cfg.X2Map}
	out := ix.Clone()
	for k, name := range from {
		li := slices.IndexFunc(out.Levels, func(l container.Level) bool { return l.Name == name })
		if li < 0 {
			return nil, fmt.Errorf("%w %q", ErrMissingCoord, name)
		}
		lvl := &out.Levels[li]
		for r, v := range lvl.Values {
			x, ok := v.(float64)
			if !ok {
				return nil, fmt.Errorf("level %q row %d: %T is not float64", name, r, v)
			}
			lvl.Values[r] = f(x, maps[k])
		}
		lvl.Name = to[k]
	}
	return out, nil
}

func (p *Processor) params(varID string) (Params, error) {
	pr, ok := p.cfg.Vars[varID]
	if !ok {
		return Params{}, fmt.Errorf("%w %q", ErrUnknownVar, varID)
	}
	return pr, nil
}

// Normalise maps a raw value of varID to model space.
func (p *Processor) Normalise(varID string, v float64) (float64, error) {
	pr, err := p.params(varID)
	if err != nil {
		return 0, err
	}
	return (v - pr.Offset) / pr.Scale, nil
}

// UnnormaliseValue maps a model-space value back: v*scale, plus offset when
// addOffset is set.
func (p *Processor) UnnormaliseValue(varID string, v float64, addOffset bool) (float64, error) {
	pr, err := p.params(varID)
	if err != nil {
		return 0, err
	}
	return affine(v, pr, addOffset), nil
}

func affine(v float64, pr Params, addOffset bool) float64 {
	v *= pr.Scale
	if addOffset {
		v += pr.Offset
	}
	return v
}

// UnnormaliseDataset returns a rescaled copy of ds with its spatial axes
// mapped back to raw coordinates and raw names. NaN cells stay NaN.
func (p *Processor) UnnormaliseDataset(ds *container.Dataset, addOffset bool) (*container.Dataset, error) {
	out := ds.Clone()
	for _, f := range out.Fields {
		pr, err := p.params(f.Name)
		if err != nil {
			return nil, err
		}
		for i, v := range f.Data {
			f.Data[i] = float32(affine(float64(v), pr, addOffset))
		}
	}
	ax := out.Axes
	if ax.Dim1 == X1Name && ax.Dim2 == X2Name {
		ax.X1 = p.mapAxis(ax.X1, p.cfg.X1Map, mapFrom)
		ax.X2 = p.mapAxis(ax.X2, p.cfg.X2Map, mapFrom)
		ax.Dim1, ax.Dim2 = p.cfg.X1Name, p.cfg.X2Name
	}
	return out, nil
}

// UnnormaliseFrame returns a rescaled copy of f with x1/x2 index levels
// mapped back to raw coordinates and raw names.
func (p *Processor) UnnormaliseFrame(f *container.Frame, addOffset bool) (*container.Frame, error) {
	out := f.Clone()
	for c, name := range out.Columns {
		pr, err := p.params(name)
		if err != nil {
			return nil, err
		}
		col := out.Data[c]
		for i, v := range col {
			col[i] = affine(v, pr, addOffset)
		}
	}
	if _, ok := out.Index.Level(X1Name); ok {
		ix, err := p.mapIndex(out.Index, mapFrom, [2]string{X1Name, X2Name}, p.RawSpatialCoordNames())
		if err != nil {
			return nil, err
		}
		out.Index = ix
	}
	if p.cfg.TimeName != TimeName {
		for i := range out.Index.Levels {
			if out.Index.Levels[i].Name == container.TimeLevel {
				out.Index.Levels[i].Name = p.cfg.TimeName
			}
		}
	}
	return out, nil
}

// UnnormaliseCoords maps a 2 x N model-space matrix back to raw coordinates.
func (p *Processor) UnnormaliseCoords(m *mat.Dense) *mat.Dense {
	if m == nil || m.IsEmpty() {
		return &mat.Dense{}
	}
	maps := [2][2]float64{p.cfg.X1Map, p.cfg.X2Map}
	out := mat.DenseCopyOf(m)
	out.Apply(func(i, _ int, v float64) float64 {
		if i > 1 || math.IsNaN(v) {
			return v
		}
		return mapFrom(v, maps[i])
	}, out)
	return out
}
