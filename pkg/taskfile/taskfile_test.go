package taskfile

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/kilianp07/fieldcast/core/container"
)

const yamlDoc = `
tasks:
  - time: 2024-05-01T00:00:00Z
    context:
      - x: [[0, 0.5, 1], [0, 0.5, 1]]
        y: [[1, 2, 3]]
      - grid: {x1: [0, 1], x2: [0, 1]}
        y: [[0, 1, 1, 2]]
    context_station_ids: [[a, b, c]]
    meta:
      region: paris
  - time: 2024-05-02T00:00:00Z
    context:
      - x: [[0.2], [0.3]]
        y: [[5]]
grid:
  dims: [lat, lon]
  x1: [48, 49]
  x2: [2, 3, 4]
`

func TestDecodeYAML(t *testing.T) {
	req, err := Decode(strings.NewReader(yamlDoc), "yaml")
	require.NoError(t, err)
	require.Len(t, req.Tasks, 2)

	t0 := req.Tasks[0]
	assert.True(t, t0.Time.Equal(time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)))
	require.Len(t, t0.XC, 2)
	assert.False(t, t0.XC[0].Gridded())
	assert.True(t, t0.XC[1].Gridded())
	assert.True(t, mat.Equal(mat.NewDense(1, 3, []float64{1, 2, 3}), t0.YC[0].Matrix()))
	assert.Equal(t, [][]string{{"a", "b", "c"}}, t0.ContextStationIDs)
	assert.Equal(t, "paris", t0.Meta["region"])
	assert.Equal(t, 1, req.Tasks[1].ContextSize(0))

	g, ok := req.Locations.(*container.Grid)
	require.True(t, ok)
	assert.Equal(t, [2]string{"lat", "lon"}, g.Dims)
	assert.Equal(t, []float64{2, 3, 4}, g.Axes[1])
}

func TestLoadJSONPoints(t *testing.T) {
	doc := `{
  "tasks": [{"time": "2024-05-01T00:00:00Z",
             "context": [{"x": [[0], [0]], "y": [[1]]}],
             "targets": [{"x": [[0.5], [0.5]], "y": [[2]]}]}],
  "points": {"names": ["lat", "lon"], "x1": [48.1, 48.2], "x2": [2.1, 2.2],
             "labels": {"station": ["orly", "cdg"]}}
}`
	path := filepath.Join(t.TempDir(), "req.json")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	req, err := Load(path)
	require.NoError(t, err)
	require.Len(t, req.Tasks[0].XT, 1)
	require.Len(t, req.Tasks[0].YT, 1)

	ix, ok := req.Locations.(*container.Index)
	require.True(t, ok)
	assert.Equal(t, []string{"lat", "lon", "station"}, ix.Names())
	lvl, _ := ix.Level("station")
	assert.Equal(t, []any{"orly", "cdg"}, lvl.Values)
}

func TestDecodeErrors(t *testing.T) {
	cases := map[string]string{
		"no locations": `{"tasks": []}`,
		"both":         `{"tasks": [], "grid": {"x1": [0], "x2": [0]}, "points": {"x1": [0], "x2": [0]}}`,
		"ragged":       `{"tasks": [{"context": [{"x": [[0, 1], [0]], "y": [[1, 2]]}]}], "grid": {"x1": [0], "x2": [0]}}`,
		"three rows":   `{"tasks": [{"context": [{"x": [[0], [0], [0]], "y": [[1]]}]}], "grid": {"x1": [0], "x2": [0]}}`,
		"missing y":    `{"tasks": [{"context": [{"x": [[0], [0]]}]}], "grid": {"x1": [0], "x2": [0]}}`,
		"uneven pts":   `{"tasks": [], "points": {"x1": [0, 1], "x2": [0]}}`,
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Decode(strings.NewReader(doc), "json")
			assert.Error(t, err)
		})
	}
	_, err := Decode(strings.NewReader(`{"tasks": []}`), "json")
	assert.ErrorIs(t, err, ErrNoLocations)
	_, err = Decode(strings.NewReader(""), "toml")
	assert.Error(t, err)
}
