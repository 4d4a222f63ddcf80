package container

import (
	"fmt"
	"math"
	"slices"
	"time"

	"gonum.org/v1/gonum/mat"
)

const (
	// TimeLevel names the date level of a Frame index.
	TimeLevel = "time"
	// SampleLevel names the sample level of a Frame index.
	SampleLevel = "sample"
)

// Frame is a tabular container: one row per (sample, date, target point) and
// one float64 column per variable.
type Frame struct {
	Index   *Index
	Columns []string
	// Data is column-major: Data[col][row].
	Data [][]float64

	dates    []time.Time
	samples  int
	nTargets int
}

// BuildFrame allocates a NaN-filled Frame over dates x target rows. With
// sampleCount > 0 a leading sample level is added and rows are sample-major.
// appendIndexes become extra levels after the target levels.
func BuildFrame(dates []time.Time, target *Index, vars []string, sampleCount int, appendIndexes []Level) (*Frame, error) {
	if err := checkDuplicates(vars); err != nil {
		return nil, err
	}
	if len(appendIndexes) > 0 {
		var err error
		if target, err = target.Append(appendIndexes...); err != nil {
			return nil, err
		}
	}
	n := target.Len()
	reps := 1
	if sampleCount > 0 {
		reps = sampleCount
	}
	rows := reps * len(dates) * n

	var levels []Level
	if sampleCount > 0 {
		levels = append(levels, Level{Name: SampleLevel, Values: make([]any, 0, rows)})
	}
	levels = append(levels, Level{Name: TimeLevel, Values: make([]any, 0, rows)})
	for _, l := range target.Levels {
		levels = append(levels, Level{Name: l.Name, Values: make([]any, 0, rows)})
	}
	for s := 0; s < reps; s++ {
		for _, d := range dates {
			for r := 0; r < n; r++ {
				k := 0
				if sampleCount > 0 {
					levels[0].Values = append(levels[0].Values, s)
					k = 1
				}
				levels[k].Values = append(levels[k].Values, d)
				for li, l := range target.Levels {
					levels[k+1+li].Values = append(levels[k+1+li].Values, l.Values[r])
				}
			}
		}
	}

	data := make([][]float64, len(vars))
	for i := range data {
		col := make([]float64, rows)
		for j := range col {
			col[j] = math.NaN()
		}
		data[i] = col
	}
	return &Frame{
		Index:    &Index{Levels: levels},
		Columns:  slices.Clone(vars),
		Data:     data,
		dates:    slices.Clone(dates),
		samples:  sampleCount,
		nTargets: n,
	}, nil
}

// Len returns the number of rows.
func (f *Frame) Len() int { return f.Index.Len() }

// Samples returns the size of the sample level, 0 when absent.
func (f *Frame) Samples() int { return f.samples }

// Targets returns the number of target points per date.
func (f *Frame) Targets() int { return f.nTargets }

// Col returns the column named name, or nil.
func (f *Frame) Col(name string) []float64 {
	i := slices.Index(f.Columns, name)
	if i < 0 {
		return nil
	}
	return f.Data[i]
}

// SetTime writes m, shaped (len(Columns), Targets), into the rows of every
// date equal to t for the given sample (ignored when the frame has no sample
// level). It reports how many date blocks were written.
func (f *Frame) SetTime(t time.Time, sample int, m *mat.Dense) (int, error) {
	r, c := m.Dims()
	if r != len(f.Columns) || c != f.nTargets {
		return 0, fmt.Errorf("write shape (%d, %d) does not match frame (%d, %d)", r, c, len(f.Columns), f.nTargets)
	}
	if f.samples == 0 {
		sample = 0
	} else if sample < 0 || sample >= f.samples {
		return 0, fmt.Errorf("sample %d out of range [0, %d)", sample, f.samples)
	}
	written := 0
	for di, d := range f.dates {
		if !d.Equal(t) {
			continue
		}
		base := (sample*len(f.dates) + di) * f.nTargets
		for v := 0; v < r; v++ {
			col := f.Data[v]
			for k := 0; k < c; k++ {
				col[base+k] = m.At(v, k)
			}
		}
		written++
	}
	return written, nil
}

// Missing counts NaN cells.
func (f *Frame) Missing() int {
	n := 0
	for _, col := range f.Data {
		for _, v := range col {
			if math.IsNaN(v) {
				n++
			}
		}
	}
	return n
}

// Clone deep-copies the frame.
func (f *Frame) Clone() *Frame {
	out := &Frame{
		Index:    f.Index.Clone(),
		Columns:  slices.Clone(f.Columns),
		Data:     make([][]float64, len(f.Data)),
		dates:    slices.Clone(f.dates),
		samples:  f.samples,
		nTargets: f.nTargets,
	}
	for i, col := range f.Data {
		out.Data[i] = slices.Clone(col)
	}
	return out
}

// Row returns the index values and the column values of row i.
func (f *Frame) Row(i int) ([]any, []float64) {
	idx := make([]any, len(f.Index.Levels))
	for l, lvl := range f.Index.Levels {
		idx[l] = lvl.Values[i]
	}
	vals := make([]float64, len(f.Data))
	for c, col := range f.Data {
		vals[c] = col[i]
	}
	return idx, vals
}
