package task

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/kilianp07/fieldcast/core/numeric"
)

var (
	// ErrSetIndex is wrapped by SetIndexError.
	ErrSetIndex = errors.New("set index out of range")
	// ErrGriddedData is returned when appending to a gridded context set.
	ErrGriddedData = errors.New("cannot append to gridded data")
)

// SetIndexError reports a context or target set index outside [0, Count-1].
type SetIndexError struct {
	Index int
	Count int
	Kind  string
}

func (e *SetIndexError) Error() string {
	return fmt.Sprintf("%s set index %d out of range: task has %d %s sets", e.Kind, e.Index, e.Count, e.Kind)
}

func (e *SetIndexError) Unwrap() error { return ErrSetIndex }

// AppendObs returns a copy of t with xNew and yNew appended along the
// observation axis of context set idx. A *mat.VecDense is treated as a
// single observation. t is not mutated.
func AppendObs(t *Task, xNew, yNew mat.Matrix, idx int) (*Task, error) {
	if idx < 0 || idx > len(t.XC)-1 {
		return nil, &SetIndexError{Index: idx, Count: len(t.XC), Kind: "context"}
	}
	if t.XC[idx].Kind() != KindArray {
		return nil, fmt.Errorf("context set %d: %w", idx, ErrGriddedData)
	}
	if idx >= len(t.YC) || t.YC[idx].Kind() != KindArray {
		return nil, fmt.Errorf("context set %d has no ungridded Y_c entry", idx)
	}

	out := t.Clone()
	x, err := numeric.Augment(out.XC[idx].Matrix(), numeric.Copy(xNew))
	if err != nil {
		return nil, fmt.Errorf("append X_c[%d]: %w", idx, err)
	}
	y, err := numeric.Augment(out.YC[idx].Matrix(), numeric.Copy(yNew))
	if err != nil {
		return nil, fmt.Errorf("append Y_c[%d]: %w", idx, err)
	}
	out.XC[idx] = Array(x)
	out.YC[idx] = Array(y)
	return out, nil
}

// AppendPoint is AppendObs for a single observation given as 1-D slices.
// Both slices are promoted to columns before concatenation.
func AppendPoint(t *Task, x, y []float64, idx int) (*Task, error) {
	return AppendObs(t, numeric.PromoteColumn(x), numeric.PromoteColumn(y), idx)
}
