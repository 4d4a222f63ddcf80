package predict

import (
	"time"

	"github.com/kilianp07/fieldcast/core/container"
)

// Output holds one statistic. Exactly one of Grid and Table is set,
// depending on the Result mode.
type Output struct {
	Grid  *container.Dataset
	Table *container.Frame
}

// Missing counts unset cells.
func (o *Output) Missing() int {
	switch {
	case o == nil:
		return 0
	case o.Grid != nil:
		return o.Grid.Missing()
	case o.Table != nil:
		return o.Table.Missing()
	}
	return 0
}

// Result is the outcome of a Predict call. Samples is nil unless sampling
// was requested.
type Result struct {
	RunID      string
	Mode       Mode
	Convention string
	Vars       []string
	Dates      []time.Time
	Mean       *Output
	Std        *Output
	Samples    *Output
}

// Sampled reports whether the result carries samples.
func (r *Result) Sampled() bool { return r.Samples != nil }
