// Package taskfile reads prediction requests: a list of tasks plus the
// target locations, encoded as JSON or YAML.
package taskfile

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"gonum.org/v1/gonum/mat"
	"gopkg.in/yaml.v3"

	"github.com/kilianp07/fieldcast/core/container"
	"github.com/kilianp07/fieldcast/core/task"
)

// ErrNoLocations is returned when a request has neither grid nor points.
var ErrNoLocations = errors.New("taskfile: no target locations")

// Axes is a gridded coordinate pair.
type Axes struct {
	X1 []float64 `json:"x1" yaml:"x1"`
	X2 []float64 `json:"x2" yaml:"x2"`
}

// Set is one context or target set. X (2 x N, rows are coordinates) and
// Grid are exclusive; Y rows are variables.
type Set struct {
	X    [][]float64 `json:"x,omitempty" yaml:"x,omitempty"`
	Grid *Axes       `json:"grid,omitempty" yaml:"grid,omitempty"`
	Y    [][]float64 `json:"y,omitempty" yaml:"y,omitempty"`
}

// TaskDoc is the serialised form of a task.
type TaskDoc struct {
	Time              time.Time      `json:"time" yaml:"time"`
	Context           []Set          `json:"context" yaml:"context"`
	Targets           []Set          `json:"targets,omitempty" yaml:"targets,omitempty"`
	ContextStationIDs [][]string     `json:"context_station_ids,omitempty" yaml:"context_station_ids,omitempty"`
	TargetStationIDs  [][]string     `json:"target_station_ids,omitempty" yaml:"target_station_ids,omitempty"`
	Meta              map[string]any `json:"meta,omitempty" yaml:"meta,omitempty"`
}

// GridDoc describes dense target locations.
type GridDoc struct {
	Dims [2]string `json:"dims" yaml:"dims"`
	X1   []float64 `json:"x1" yaml:"x1"`
	X2   []float64 `json:"x2" yaml:"x2"`
}

// PointsDoc describes off-grid target locations. Labels become extra index
// levels, sorted by name.
type PointsDoc struct {
	Names  [2]string           `json:"names" yaml:"names"`
	X1     []float64           `json:"x1" yaml:"x1"`
	X2     []float64           `json:"x2" yaml:"x2"`
	Labels map[string][]string `json:"labels,omitempty" yaml:"labels,omitempty"`
}

// Doc is a whole request file.
type Doc struct {
	Tasks  []TaskDoc  `json:"tasks" yaml:"tasks"`
	Grid   *GridDoc   `json:"grid,omitempty" yaml:"grid,omitempty"`
	Points *PointsDoc `json:"points,omitempty" yaml:"points,omitempty"`
}

// Request is a decoded Doc.
type Request struct {
	Tasks     []*task.Task
	Locations container.Locations
}

// Load reads path, choosing the decoder from its extension.
func Load(path string) (*Request, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	return Decode(f, strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), "."))
}

// Decode reads a request in the given format: json, yaml or yml.
func Decode(r io.Reader, format string) (*Request, error) {
	var doc Doc
	switch format {
	case "json":
		if err := json.NewDecoder(r).Decode(&doc); err != nil {
			return nil, fmt.Errorf("taskfile: %w", err)
		}
	case "yaml", "yml":
		if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
			return nil, fmt.Errorf("taskfile: %w", err)
		}
	default:
		return nil, fmt.Errorf("taskfile: unsupported format %q", format)
	}
	return doc.Request()
}

// Request converts the document.
func (d Doc) Request() (*Request, error) {
	req := &Request{}
	for i, td := range d.Tasks {
		t, err := td.Task()
		if err != nil {
			return nil, fmt.Errorf("task %d: %w", i, err)
		}
		req.Tasks = append(req.Tasks, t)
	}
	locs, err := d.locations()
	if err != nil {
		return nil, err
	}
	req.Locations = locs
	return req, nil
}

func (d Doc) locations() (container.Locations, error) {
	switch {
	case d.Grid != nil && d.Points != nil:
		return nil, fmt.Errorf("taskfile: grid and points are exclusive")
	case d.Grid != nil:
		g := container.NewGrid(d.Grid.X1, d.Grid.X2)
		if d.Grid.Dims != [2]string{} {
			g.Dims = d.Grid.Dims
		}
		return g, nil
	case d.Points != nil:
		p := d.Points
		if len(p.X1) != len(p.X2) {
			return nil, fmt.Errorf("taskfile: points have %d x1 and %d x2 values", len(p.X1), len(p.X2))
		}
		names := p.Names
		if names == [2]string{} {
			names = [2]string{"x1", "x2"}
		}
		ix := container.NewIndex(names, p.X1, p.X2)
		if len(p.Labels) == 0 {
			return ix, nil
		}
		var levels []container.Level
		for _, name := range slices.Sorted(maps.Keys(p.Labels)) {
			vals := make([]any, len(p.Labels[name]))
			for i, v := range p.Labels[name] {
				vals[i] = v
			}
			levels = append(levels, container.Level{Name: name, Values: vals})
		}
		return ix.Append(levels...)
	}
	return nil, ErrNoLocations
}

// Task converts the document into a task.
func (td TaskDoc) Task() (*task.Task, error) {
	t := &task.Task{
		Time:              td.Time,
		ContextStationIDs: td.ContextStationIDs,
		TargetStationIDs:  td.TargetStationIDs,
		Meta:              td.Meta,
	}
	for i, s := range td.Context {
		x, err := s.coords()
		if err != nil {
			return nil, fmt.Errorf("context %d: %w", i, err)
		}
		y, err := matrix(s.Y)
		if err != nil {
			return nil, fmt.Errorf("context %d y: %w", i, err)
		}
		t.XC = append(t.XC, x)
		t.YC = append(t.YC, task.Array(y))
	}
	for i, s := range td.Targets {
		x, err := s.coords()
		if err != nil {
			return nil, fmt.Errorf("target %d: %w", i, err)
		}
		t.XT = append(t.XT, x)
		if len(s.Y) > 0 {
			y, err := matrix(s.Y)
			if err != nil {
				return nil, fmt.Errorf("target %d y: %w", i, err)
			}
			t.YT = append(t.YT, task.Array(y))
		}
	}
	return t, nil
}

func (s Set) coords() (task.Value, error) {
	if s.Grid != nil {
		if len(s.X) > 0 {
			return task.Value{}, fmt.Errorf("x and grid are exclusive")
		}
		return task.Grid(s.Grid.X1, s.Grid.X2), nil
	}
	x, err := matrix(s.X)
	if err != nil {
		return task.Value{}, err
	}
	if r, _ := x.Dims(); r != 2 {
		return task.Value{}, fmt.Errorf("x has %d rows, want 2", r)
	}
	return task.Array(x), nil
}

func matrix(rows [][]float64) (*mat.Dense, error) {
	if len(rows) == 0 || len(rows[0]) == 0 {
		return nil, fmt.Errorf("empty matrix")
	}
	c := len(rows[0])
	data := make([]float64, 0, len(rows)*c)
	for i, r := range rows {
		if len(r) != c {
			return nil, fmt.Errorf("row %d has %d values, want %d", i, len(r), c)
		}
		data = append(data, r...)
	}
	return mat.NewDense(len(rows), c, data), nil
}
