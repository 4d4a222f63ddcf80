package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/fieldcast/core/sink"
)

func sampleRun() *sink.Run {
	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	return &sink.Run{
		ID: "run-9",
		Records: []sink.Record{
			{Time: ts, Var: "temp", Stat: sink.StatMean, Sample: sink.NoSample, Coords: map[string]float64{"lon": 2.5, "lat": 48}, Value: 12.25},
			{Time: ts, Var: "temp", Stat: sink.StatSample, Sample: 3, Coords: map[string]float64{"lat": 48, "lon": 2.5},
				Labels: map[string]string{"station": "s1"}, Value: -1},
		},
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, sampleRun(), true))
	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, CSVHeader, rows[0])
	assert.Equal(t, []string{"run-9", "2024-05-01T12:00:00Z", "temp", "mean", "-1", "lat=48;lon=2.5", "", "12.25"}, rows[1])
	assert.Equal(t, "station=s1", rows[2][6])

	buf.Reset()
	require.NoError(t, WriteCSV(&buf, sampleRun(), false))
	assert.Equal(t, 2, strings.Count(buf.String(), "\n"))
}

func TestWriteJSONL(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSONL(&buf, sampleRun()))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)

	var got map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &got))
	assert.Equal(t, "run-9", got["run_id"])
	assert.Equal(t, "sample", got["stat"])
	assert.Equal(t, 3.0, got["sample"])
	assert.Equal(t, map[string]any{"station": "s1"}, got["labels"])

	require.NoError(t, json.Unmarshal([]byte(lines[0]), &got))
	assert.NotContains(t, lines[0], "labels")
}
