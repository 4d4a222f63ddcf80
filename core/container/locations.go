package container

import (
	"fmt"
	"slices"

	"gonum.org/v1/gonum/mat"
)

// Locations is a target-location specification: a *Grid, an *Index or a
// *Coords matrix.
type Locations interface {
	locations()
}

// Grid is a regular target grid described by two named 1-D axes.
type Grid struct {
	Dims [2]string
	Axes [2][]float64
}

// NewGrid returns a grid with the standard x1/x2 axis names.
func NewGrid(x1, x2 []float64) *Grid {
	return &Grid{Dims: [2]string{"x1", "x2"}, Axes: [2][]float64{x1, x2}}
}

func (*Grid) locations() {}

// Axis returns the axis named name.
func (g *Grid) Axis(name string) ([]float64, bool) {
	for i, d := range g.Dims {
		if d == name {
			return g.Axes[i], true
		}
	}
	return nil, false
}

// Clone deep-copies g.
func (g *Grid) Clone() *Grid {
	return &Grid{Dims: g.Dims, Axes: [2][]float64{slices.Clone(g.Axes[0]), slices.Clone(g.Axes[1])}}
}

// Level is one named level of a multi-level row index.
type Level struct {
	Name   string
	Values []any
}

// Index is a multi-level row index of target points. The first two levels
// hold the spatial coordinates as float64; further levels carry metadata such
// as station identifiers.
type Index struct {
	Levels []Level
}

func (*Index) locations() {}

// NewIndex builds an index whose first two levels are the given coordinates.
func NewIndex(names [2]string, x1, x2 []float64) *Index {
	return &Index{Levels: []Level{floatLevel(names[0], x1), floatLevel(names[1], x2)}}
}

func floatLevel(name string, v []float64) Level {
	vals := make([]any, len(v))
	for i, x := range v {
		vals[i] = x
	}
	return Level{Name: name, Values: vals}
}

// Len returns the number of rows.
func (ix *Index) Len() int {
	if len(ix.Levels) == 0 {
		return 0
	}
	return len(ix.Levels[0].Values)
}

// Names returns the level names in order.
func (ix *Index) Names() []string {
	out := make([]string, len(ix.Levels))
	for i, l := range ix.Levels {
		out[i] = l.Name
	}
	return out
}

// Level returns the level named name.
func (ix *Index) Level(name string) (Level, bool) {
	for _, l := range ix.Levels {
		if l.Name == name {
			return l, true
		}
	}
	return Level{}, false
}

// Coords reads the levels named x1 and x2 as a 2 x N coordinate matrix.
// Without both names the first two levels are read.
func (ix *Index) Coords() (*mat.Dense, error) {
	if len(ix.Levels) < 2 {
		return nil, fmt.Errorf("index has %d levels, need at least 2 coordinate levels", len(ix.Levels))
	}
	lvls := [2]Level{ix.Levels[0], ix.Levels[1]}
	l1, ok1 := ix.Level(DefaultCoordNames.X1)
	l2, ok2 := ix.Level(DefaultCoordNames.X2)
	if ok1 && ok2 {
		lvls = [2]Level{l1, l2}
	}
	n := ix.Len()
	if n == 0 {
		return &mat.Dense{}, nil
	}
	out := mat.NewDense(2, n, nil)
	for r, lvl := range lvls {
		for c, v := range lvl.Values {
			f, ok := v.(float64)
			if !ok {
				return nil, fmt.Errorf("index level %q row %d: %T is not float64", lvl.Name, c, v)
			}
			out.Set(r, c, f)
		}
	}
	return out, nil
}

// Append returns a copy of ix with extra levels appended after the existing
// ones. Every extra level must have exactly Len() values.
func (ix *Index) Append(extra ...Level) (*Index, error) {
	n := ix.Len()
	for _, l := range extra {
		if len(l.Values) != n {
			return nil, fmt.Errorf("%w: level %q has %d values, target index has %d",
				ErrAppendIndexLength, l.Name, len(l.Values), n)
		}
	}
	out := ix.Clone()
	for _, l := range extra {
		out.Levels = append(out.Levels, Level{Name: l.Name, Values: slices.Clone(l.Values)})
	}
	return out, nil
}

// Clone copies the level slices. Level values are shared.
func (ix *Index) Clone() *Index {
	out := &Index{Levels: make([]Level, len(ix.Levels))}
	for i, l := range ix.Levels {
		out.Levels[i] = Level{Name: l.Name, Values: slices.Clone(l.Values)}
	}
	return out
}

// Coords is a raw 2 x N matrix of target coordinates.
type Coords struct {
	M *mat.Dense
}

func (*Coords) locations() {}

// ToIndex wraps the matrix into an Index using the given level names.
func (c *Coords) ToIndex(names [2]string) *Index {
	if c.M == nil || c.M.IsEmpty() {
		return &Index{Levels: []Level{{Name: names[0]}, {Name: names[1]}}}
	}
	return NewIndex(names, mat.Row(nil, 0, c.M), mat.Row(nil, 1, c.M))
}
