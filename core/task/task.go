package task

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/mitchellh/copystructure"
	"gonum.org/v1/gonum/mat"
)

// Task is one prediction unit: context observations, target query
// coordinates and a timestamp. Coordinate arrays are d x N with the
// observation axis last; value arrays are dy x N.
type Task struct {
	XC []Value
	YC []Value
	XT []Value
	YT []Value

	Time time.Time
	// Flag names the transform that produced this variant. Empty when unset.
	Flag string

	ContextStationIDs       [][]string
	TargetStationIDs        [][]string
	TargetStationIDsHeldout [][]string

	// Meta holds passthrough metadata such as region descriptors.
	Meta map[string]any
}

// Clone returns a deep copy. Arrays, station IDs and metadata are copied.
func (t *Task) Clone() *Task {
	out := &Task{
		XC:                      cloneValues(t.XC),
		YC:                      cloneValues(t.YC),
		XT:                      cloneValues(t.XT),
		YT:                      cloneValues(t.YT),
		Time:                    t.Time,
		Flag:                    t.Flag,
		ContextStationIDs:       cloneIDs(t.ContextStationIDs),
		TargetStationIDs:        cloneIDs(t.TargetStationIDs),
		TargetStationIDsHeldout: cloneIDs(t.TargetStationIDsHeldout),
		Meta:                    cloneMeta(t.Meta),
	}
	return out
}

// Modify returns a copy of t with f applied to every array leaf of the
// coordinate and value fields, and Flag set to flag. Station IDs and metadata
// pass through unchanged. t is not mutated.
func (t *Task) Modify(f func(*mat.Dense) *mat.Dense, flag string) *Task {
	out := t.Clone()
	for _, field := range []*[]Value{&out.XC, &out.YC, &out.XT, &out.YT} {
		for i, v := range *field {
			(*field)[i] = v.Map(f)
		}
	}
	out.Flag = flag
	return out
}

// NumContextSets returns len(XC).
func (t *Task) NumContextSets() int { return len(t.XC) }

// ContextSize returns the number of observations in context set i, or -1
// for gridded sets.
func (t *Task) ContextSize(i int) int {
	if i < 0 || i >= len(t.XC) || t.XC[i].Kind() != KindArray {
		return -1
	}
	_, c := t.XC[i].Matrix().Dims()
	return c
}

// Equal reports whether t and o hold the same data.
func (t *Task) Equal(o *Task) bool {
	if t == nil || o == nil {
		return t == o
	}
	return valuesEqual(t.XC, o.XC) && valuesEqual(t.YC, o.YC) &&
		valuesEqual(t.XT, o.XT) && valuesEqual(t.YT, o.YT) &&
		t.Time.Equal(o.Time) && t.Flag == o.Flag &&
		idsEqual(t.ContextStationIDs, o.ContextStationIDs) &&
		idsEqual(t.TargetStationIDs, o.TargetStationIDs) &&
		idsEqual(t.TargetStationIDsHeldout, o.TargetStationIDsHeldout) &&
		Scalar(t.Meta).Equal(Scalar(o.Meta))
}

// String prints the shape of every array field, one field per line.
func (t *Task) String() string {
	return t.render(shapeVisitor)
}

// Summary is like String but includes the kind of each leaf.
func (t *Task) Summary() string {
	return t.render(reprVisitor)
}

func (t *Task) render(vis Visitor[string]) string {
	var b strings.Builder
	field := func(name string, vs []Value) {
		if vs == nil {
			return
		}
		fmt.Fprintf(&b, "%s: %s\n", name, Fold(Seq(vs...), vis))
	}
	fmt.Fprintf(&b, "time: %s\n", t.Time.Format(time.RFC3339))
	if t.Flag != "" {
		fmt.Fprintf(&b, "flag: %s\n", t.Flag)
	}
	field("X_c", t.XC)
	field("Y_c", t.YC)
	field("X_t", t.XT)
	field("Y_t", t.YT)
	ids := func(name string, v [][]string) {
		if v != nil {
			fmt.Fprintf(&b, "%s: %v\n", name, v)
		}
	}
	ids("context_station_IDs", t.ContextStationIDs)
	ids("target_station_IDs", t.TargetStationIDs)
	ids("target_station_IDs_heldout", t.TargetStationIDsHeldout)
	for _, k := range slices.Sorted(maps.Keys(t.Meta)) {
		fmt.Fprintf(&b, "%s: %v\n", k, t.Meta[k])
	}
	return b.String()
}

var shapeVisitor = Visitor[string]{
	Scalar: func(v any) string { return fmt.Sprint(v) },
	Array: func(m *mat.Dense) string {
		r, c := m.Dims()
		return fmt.Sprintf("(%d, %d)", r, c)
	},
	Pair: func(a, b string) string { return "(" + a + ", " + b + ")" },
	Seq:  func(vs []string) string { return "[" + strings.Join(vs, " ") + "]" },
}

var reprVisitor = Visitor[string]{
	Scalar: func(v any) string { return fmt.Sprintf("%T/%v", v, v) },
	Array: func(m *mat.Dense) string {
		r, c := m.Dims()
		return fmt.Sprintf("Dense/float64/(%d, %d)", r, c)
	},
	Pair: shapeVisitor.Pair,
	Seq:  shapeVisitor.Seq,
}

func cloneValues(vs []Value) []Value {
	if vs == nil {
		return nil
	}
	out := make([]Value, len(vs))
	for i, v := range vs {
		out[i] = v.Clone()
	}
	return out
}

func cloneIDs(ids [][]string) [][]string {
	if ids == nil {
		return nil
	}
	out := make([][]string, len(ids))
	for i, s := range ids {
		out[i] = append([]string(nil), s...)
	}
	return out
}

// cloneMeta deep-copies the bag. Values copystructure cannot walk are shared.
func cloneMeta(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	cp, err := copystructure.Copy(m)
	if err != nil {
		return maps.Clone(m)
	}
	return cp.(map[string]any)
}

func valuesEqual(a, b []Value) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}

func idsEqual(a, b [][]string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !slices.Equal(a[i], b[i]) {
			return false
		}
	}
	return true
}
