package sink

import (
	"fmt"
	"math"
	"time"

	"github.com/kilianp07/fieldcast/core/container"
	"github.com/kilianp07/fieldcast/core/predict"
)

// Statistic names carried by Record.Stat.
const (
	StatMean   = "mean"
	StatStd    = "std"
	StatSample = "sample"
)

// NoSample marks records that are not a draw.
const NoSample = -1

// Record is one predicted value at one location and time.
type Record struct {
	Time   time.Time          `json:"time"`
	Var    string             `json:"var"`
	Stat   string             `json:"stat"`
	Sample int                `json:"sample"`
	Coords map[string]float64 `json:"coords"`
	Labels map[string]string  `json:"labels,omitempty"`
	Value  float64            `json:"value"`
}

// Run is a flattened prediction result ready to be persisted.
type Run struct {
	ID         string    `json:"run_id"`
	Mode       string    `json:"mode"`
	Convention string    `json:"convention"`
	Created    time.Time `json:"created"`
	Records    []Record  `json:"records"`
}

// FromResult flattens res. Missing (NaN) cells are skipped.
func FromResult(res *predict.Result) *Run {
	run := &Run{
		ID:         res.RunID,
		Mode:       res.Mode.String(),
		Convention: res.Convention,
		Created:    time.Now().UTC(),
	}
	for _, o := range []struct {
		stat string
		out  *predict.Output
	}{{StatMean, res.Mean}, {StatStd, res.Std}, {StatSample, res.Samples}} {
		if o.out == nil {
			continue
		}
		if o.out.Grid != nil {
			run.Records = appendDataset(run.Records, o.stat, o.out.Grid)
		}
		if o.out.Table != nil {
			run.Records = appendFrame(run.Records, o.stat, o.out.Table)
		}
	}
	return run
}

func appendDataset(out []Record, stat string, ds *container.Dataset) []Record {
	a := ds.Axes
	nx2 := len(a.X2)
	points := a.Points()
	nt := len(a.Times)
	if points == 0 || nt == 0 {
		return out
	}
	sampleAxis := -1
	for i, p := range a.Prepend {
		if p.Name == container.SampleLevel {
			sampleAxis = i
		}
	}
	prep := make([]int, len(a.Prepend))
	for _, f := range ds.Fields {
		for pos, v := range f.Data {
			if math.IsNaN(float64(v)) {
				continue
			}
			j := pos % nx2
			i := (pos / nx2) % len(a.X1)
			ti := (pos / points) % nt
			flat := pos / (points * nt)
			for k := len(a.Prepend) - 1; k >= 0; k-- {
				n := len(a.Prepend[k].Values)
				prep[k] = flat % n
				flat /= n
			}
			sample := NoSample
			if sampleAxis >= 0 {
				sample = a.Prepend[sampleAxis].Values[prep[sampleAxis]]
			}
			out = append(out, Record{
				Time:   a.Times[ti],
				Var:    f.Name,
				Stat:   stat,
				Sample: sample,
				Coords: map[string]float64{a.Dim1: a.X1[i], a.Dim2: a.X2[j]},
				Value:  float64(v),
			})
		}
	}
	return out
}

func appendFrame(out []Record, stat string, f *container.Frame) []Record {
	for r := 0; r < f.Len(); r++ {
		idx, vals := f.Row(r)
		base := Record{Stat: stat, Sample: NoSample, Coords: map[string]float64{}}
		for l, v := range idx {
			name := f.Index.Levels[l].Name
			switch x := v.(type) {
			case time.Time:
				base.Time = x
			case int:
				if name == container.SampleLevel {
					base.Sample = x
					continue
				}
				base.Coords[name] = float64(x)
			case float64:
				base.Coords[name] = x
			default:
				if base.Labels == nil {
					base.Labels = map[string]string{}
				}
				base.Labels[name] = fmt.Sprint(x)
			}
		}
		for c, v := range vals {
			if math.IsNaN(v) {
				continue
			}
			rec := base
			rec.Var = f.Columns[c]
			rec.Value = v
			out = append(out, rec)
		}
	}
	return out
}
