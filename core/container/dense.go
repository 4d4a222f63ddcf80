package container

import (
	"fmt"
	"math"
	"slices"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/kilianp07/fieldcast/core/numeric"
)

// DataVarDim labels the variable axis of a DataArray.
const DataVarDim = "data_var"

// CoordNames maps the canonical spatial axes to the names used on the
// reference grid and in the output.
type CoordNames struct {
	X1 string
	X2 string
}

// DefaultCoordNames uses the model-space axis names.
var DefaultCoordNames = CoordNames{X1: "x1", X2: "x2"}

// PrependCoord is an ordinal axis placed before the time axis, e.g. sample.
type PrependCoord struct {
	Name   string
	Values []int
}

// Axes describes the labelled shape shared by every variable of a dense
// container: [*prepend, time, x1, x2].
type Axes struct {
	Prepend []PrependCoord
	Times   []time.Time
	Dim1    string
	Dim2    string
	X1      []float64
	X2      []float64
}

// Dims returns the dimension names in storage order.
func (a *Axes) Dims() []string {
	out := make([]string, 0, len(a.Prepend)+3)
	for _, p := range a.Prepend {
		out = append(out, p.Name)
	}
	return append(out, "time", a.Dim1, a.Dim2)
}

// Shape returns the size of every dimension in storage order.
func (a *Axes) Shape() []int {
	out := make([]int, 0, len(a.Prepend)+3)
	for _, p := range a.Prepend {
		out = append(out, len(p.Values))
	}
	return append(out, len(a.Times), len(a.X1), len(a.X2))
}

// Size is the number of cells per variable.
func (a *Axes) Size() int {
	n := 1
	for _, s := range a.Shape() {
		n *= s
	}
	return n
}

// Points is the number of spatial cells.
func (a *Axes) Points() int { return len(a.X1) * len(a.X2) }

// TimeIndices returns every position on the time axis equal to t.
func (a *Axes) TimeIndices(t time.Time) []int {
	var out []int
	for i, at := range a.Times {
		if at.Equal(t) {
			out = append(out, i)
		}
	}
	return out
}

// Coords returns the 2 x (len(X1)*len(X2)) mesh of the spatial axes.
func (a *Axes) Coords() *mat.Dense { return numeric.Mesh(a.X1, a.X2) }

// Clone deep-copies a.
func (a *Axes) Clone() *Axes {
	out := &Axes{
		Times: slices.Clone(a.Times),
		Dim1:  a.Dim1,
		Dim2:  a.Dim2,
		X1:    slices.Clone(a.X1),
		X2:    slices.Clone(a.X2),
	}
	for _, p := range a.Prepend {
		out.Prepend = append(out.Prepend, PrependCoord{Name: p.Name, Values: slices.Clone(p.Values)})
	}
	return out
}

// offset returns the flat position of cell (prep..., ti, 0, 0) within one
// variable block.
func (a *Axes) offset(prep []int, ti int) int {
	off := 0
	for i, p := range a.Prepend {
		off = off*len(p.Values) + prep[i]
	}
	return (off*len(a.Times) + ti) * a.Points()
}

// DataArray is a dense float32 container with dims [data_var, *Axes.Dims()].
type DataArray struct {
	Vars []string
	Axes *Axes
	Data []float32
}

// BuildDense allocates a NaN-filled DataArray over the reference grid.
// resolutionFactor != 1 regenerates both axes with round(len*factor) points
// spanning the same endpoints.
func BuildDense(dates []time.Time, resolutionFactor float64, ref *Grid, names CoordNames, vars []string, prepend []PrependCoord) (*DataArray, error) {
	if err := checkDuplicates(vars); err != nil {
		return nil, err
	}
	x1, err := refAxis(ref, names.X1, resolutionFactor)
	if err != nil {
		return nil, err
	}
	x2, err := refAxis(ref, names.X2, resolutionFactor)
	if err != nil {
		return nil, err
	}
	axes := &Axes{
		Times: slices.Clone(dates),
		Dim1:  names.X1,
		Dim2:  names.X2,
		X1:    x1,
		X2:    x2,
	}
	for _, p := range prepend {
		axes.Prepend = append(axes.Prepend, PrependCoord{Name: p.Name, Values: slices.Clone(p.Values)})
	}
	data := make([]float32, len(vars)*axes.Size())
	nan := float32(math.NaN())
	for i := range data {
		data[i] = nan
	}
	return &DataArray{Vars: slices.Clone(vars), Axes: axes, Data: data}, nil
}

func refAxis(ref *Grid, name string, factor float64) ([]float64, error) {
	ax, ok := ref.Axis(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q (have %v)", ErrMissingAxis, name, ref.Dims)
	}
	if !numeric.IsUniform(ax) {
		return nil, fmt.Errorf("%w: %q", ErrNonUniformGrid, name)
	}
	if factor == 1 || len(ax) == 0 {
		return slices.Clone(ax), nil
	}
	n := int(math.Round(float64(len(ax)) * factor))
	if n < 1 {
		return nil, fmt.Errorf("resolution factor %g leaves axis %q empty", factor, name)
	}
	return numeric.Linspace(ax[0], ax[len(ax)-1], n), nil
}

func checkDuplicates(vars []string) error {
	seen := make(map[string]struct{}, len(vars))
	for _, v := range vars {
		if _, ok := seen[v]; ok {
			return fmt.Errorf("%w %q in %v", ErrDuplicateVar, v, vars)
		}
		seen[v] = struct{}{}
	}
	return nil
}

// VarIndex returns the position of name on the variable axis.
func (d *DataArray) VarIndex(name string) int { return slices.Index(d.Vars, name) }

// At returns one cell.
func (d *DataArray) At(v int, prep []int, ti, i, j int) float32 {
	return d.Data[v*d.Axes.Size()+d.Axes.offset(prep, ti)+i*len(d.Axes.X2)+j]
}

// SetTime writes m, shaped (len(Vars), Points), into every time slice equal
// to t at the given prepend position. It reports how many slices were written.
func (d *DataArray) SetTime(t time.Time, prep []int, m *mat.Dense) (int, error) {
	r, c := m.Dims()
	if r != len(d.Vars) || c != d.Axes.Points() {
		return 0, fmt.Errorf("write shape (%d, %d) does not match container (%d, %d)", r, c, len(d.Vars), d.Axes.Points())
	}
	if len(prep) != len(d.Axes.Prepend) {
		return 0, fmt.Errorf("got %d prepend indices, container has %d", len(prep), len(d.Axes.Prepend))
	}
	tis := d.Axes.TimeIndices(t)
	size := d.Axes.Size()
	for _, ti := range tis {
		base := d.Axes.offset(prep, ti)
		for v := 0; v < r; v++ {
			row := d.Data[v*size+base : v*size+base+c]
			for k := range row {
				row[k] = float32(m.At(v, k))
			}
		}
	}
	return len(tis), nil
}

// Missing counts NaN cells.
func (d *DataArray) Missing() int {
	n := 0
	for _, v := range d.Data {
		if math.IsNaN(float64(v)) {
			n++
		}
	}
	return n
}

// ToDataset splits the variable axis into one Field per variable. Fields
// share the same Axes.
func (d *DataArray) ToDataset() *Dataset {
	size := d.Axes.Size()
	ds := &Dataset{Axes: d.Axes}
	for i, name := range d.Vars {
		ds.Fields = append(ds.Fields, &Field{Name: name, Data: slices.Clone(d.Data[i*size : (i+1)*size])})
	}
	return ds
}

// Field is one variable of a Dataset.
type Field struct {
	Name string
	Data []float32
}

// Dataset is a labelled collection of variables over shared Axes.
type Dataset struct {
	Axes   *Axes
	Fields []*Field
}

// Var returns the field named name, or nil.
func (ds *Dataset) Var(name string) *Field {
	for _, f := range ds.Fields {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// Names lists the variables in order.
func (ds *Dataset) Names() []string {
	out := make([]string, len(ds.Fields))
	for i, f := range ds.Fields {
		out[i] = f.Name
	}
	return out
}

// At returns one cell of variable name.
func (ds *Dataset) At(name string, prep []int, ti, i, j int) (float32, bool) {
	f := ds.Var(name)
	if f == nil {
		return 0, false
	}
	return f.Data[ds.Axes.offset(prep, ti)+i*len(ds.Axes.X2)+j], true
}

// Clone deep-copies the dataset.
func (ds *Dataset) Clone() *Dataset {
	out := &Dataset{Axes: ds.Axes.Clone()}
	for _, f := range ds.Fields {
		out.Fields = append(out.Fields, &Field{Name: f.Name, Data: slices.Clone(f.Data)})
	}
	return out
}

// Missing counts NaN cells across all fields.
func (ds *Dataset) Missing() int {
	n := 0
	for _, f := range ds.Fields {
		for _, v := range f.Data {
			if math.IsNaN(float64(v)) {
				n++
			}
		}
	}
	return n
}
