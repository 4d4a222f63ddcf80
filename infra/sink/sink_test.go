package sink

import (
	"bufio"
	"context"
	"encoding/csv"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/fieldcast/core/factory"
	"github.com/kilianp07/fieldcast/core/sink"
)

var ts = time.Date(2024, 5, 1, 6, 0, 0, 0, time.UTC)

func testRun(id string) *sink.Run {
	return &sink.Run{
		ID:         id,
		Mode:       "points",
		Convention: "direct",
		Created:    time.Date(2024, 5, 2, 8, 0, 0, 0, time.UTC),
		Records: []sink.Record{
			{Time: ts, Var: "temp", Stat: sink.StatMean, Sample: sink.NoSample, Coords: map[string]float64{"lat": 48.1, "lon": 2.3}, Value: 14.5},
			{Time: ts, Var: "temp", Stat: sink.StatStd, Sample: sink.NoSample, Coords: map[string]float64{"lat": 48.1, "lon": 2.3}, Value: 0.8},
			{Time: ts, Var: "temp", Stat: sink.StatSample, Sample: 0, Coords: map[string]float64{"lat": 48.1, "lon": 2.3},
				Labels: map[string]string{"station": "orly"}, Value: 15.1},
		},
	}
}

func TestFileSinkJSONL(t *testing.T) {
	p := filepath.Join(t.TempDir(), "out.jsonl")
	s, err := NewFileSink(p, FormatJSONL)
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, s.Write(ctx, testRun("a")))
	require.NoError(t, s.Write(ctx, testRun("b")))
	require.NoError(t, s.Close())

	f, err := os.Open(p)
	require.NoError(t, err)
	defer f.Close()
	n := 0
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		n++
	}
	assert.Equal(t, 6, n)
}

func TestFileSinkCSVWritesHeaderOnce(t *testing.T) {
	p := filepath.Join(t.TempDir(), "out.csv")
	s, err := NewFileSink(p, FormatCSV)
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, s.Write(ctx, testRun("a")))
	require.NoError(t, s.Write(ctx, testRun("b")))

	f, err := os.Open(p)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	assert.Len(t, rows, 7)
	assert.Equal(t, "run_id", rows[0][0])
	assert.Equal(t, "b", rows[6][0])
}

func TestFileSinkValidation(t *testing.T) {
	_, err := NewFileSink("", FormatCSV)
	assert.Error(t, err)
	_, err = NewFileSink("x", "parquet")
	assert.Error(t, err)
}

func TestRotatingSink(t *testing.T) {
	p := filepath.Join(t.TempDir(), "runs", "out.jsonl")
	s, err := NewRotatingSink(RotatingConfig{Path: p, MaxSizeMB: 1, MaxBackups: 2})
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, s.Write(ctx, testRun("a")))
	require.NoError(t, s.Rotate())
	require.NoError(t, s.Write(ctx, testRun("b")))
	require.NoError(t, s.Close())

	files, err := filepath.Glob(filepath.Join(filepath.Dir(p), "out*.jsonl"))
	require.NoError(t, err)
	assert.Len(t, files, 2)

	_, err = NewRotatingSink(RotatingConfig{})
	assert.Error(t, err)
}

func TestSQLiteStoreRoundTrip(t *testing.T) {
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	defer s.Close()
	ctx := context.Background()

	require.NoError(t, s.Write(ctx, testRun("a")))
	// rewriting a run replaces its records
	require.NoError(t, s.Write(ctx, testRun("a")))
	require.NoError(t, s.Write(ctx, testRun("b")))

	recs, err := s.Records(ctx, "a")
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, testRun("a").Records, recs)

	ids, err := s.Runs(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b"}, ids)
}

func TestInfluxSinkWritesLineProtocol(t *testing.T) {
	var body string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		body += string(data)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	s := NewInfluxSink(srv.URL, "token", "org", "bucket")
	defer s.Close()
	run := testRun("r1")
	require.NoError(t, s.Write(context.Background(), run))

	lines := strings.Split(strings.TrimSpace(body), "\n")
	require.Len(t, lines, 3)
	expected := strings.TrimSpace(write.PointToLineProtocol(RecordPoint(run.ID, run.Records[2]), time.Nanosecond))
	assert.Equal(t, expected, lines[2])
	assert.Contains(t, lines[2], "sample=0")
	assert.Contains(t, lines[2], "station=orly")
	assert.NotContains(t, lines[0], "sample=")
	assert.True(t, strings.HasPrefix(lines[0], "prediction,"))
}

func TestInfluxSinkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()
	s := NewInfluxSink(srv.URL, "token", "org", "bucket")
	defer s.Close()
	assert.Error(t, s.Write(context.Background(), testRun("r1")))
}

func TestRegisteredSinks(t *testing.T) {
	types := sink.Types()
	for _, name := range []string{"discard", "jsonl", "jsonl-rotating", "csv", "sqlite", "influx", "mqtt", "object"} {
		assert.Contains(t, types, name)
	}
	dir := t.TempDir()
	s, err := sink.New([]factory.ModuleConfig{
		{Type: "jsonl", Conf: map[string]any{"path": filepath.Join(dir, "a.jsonl")}},
		{Type: "sqlite", Conf: map[string]any{"path": filepath.Join(dir, "a.db")}},
	})
	require.NoError(t, err)
	require.NoError(t, s.Write(context.Background(), testRun("x")))
	require.NoError(t, s.Close())
	_, err = os.Stat(filepath.Join(dir, "a.jsonl"))
	assert.NoError(t, err)

	_, err = sink.New([]factory.ModuleConfig{{Type: "csv", Conf: map[string]any{}}})
	assert.Error(t, err)
}
