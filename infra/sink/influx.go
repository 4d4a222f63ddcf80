package sink

import (
	"context"
	"maps"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/kilianp07/fieldcast/core/sink"
)

// influxBatch bounds the number of points per write request.
const influxBatch = 5000

// InfluxSink writes every record as a point of measurement "prediction".
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
}

// NewInfluxSink creates a sink for the given endpoint.
func NewInfluxSink(url, token, org, bucket string) *InfluxSink {
	base := strings.TrimSuffix(url, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 10 * time.Second}))
	return &InfluxSink{client: client, writeAPI: client.WriteAPIBlocking(org, bucket)}
}

// RecordPoint converts one record of run runID into a point. Coordinates
// become fields, labels become tags.
func RecordPoint(runID string, r sink.Record) *write.Point {
	p := write.NewPointWithMeasurement("prediction").
		AddTag("run_id", runID).
		AddTag("var", r.Var).
		AddTag("stat", r.Stat).
		AddField("value", r.Value).
		SetTime(r.Time)
	if r.Sample != sink.NoSample {
		p.AddTag("sample", strconv.Itoa(r.Sample))
	}
	for _, k := range slices.Sorted(maps.Keys(r.Labels)) {
		p.AddTag(k, r.Labels[k])
	}
	for _, k := range slices.Sorted(maps.Keys(r.Coords)) {
		p.AddField(k, r.Coords[k])
	}
	return p
}

func (s *InfluxSink) Write(ctx context.Context, run *sink.Run) error {
	pts := make([]*write.Point, 0, min(len(run.Records), influxBatch))
	for _, r := range run.Records {
		pts = append(pts, RecordPoint(run.ID, r))
		if len(pts) == influxBatch {
			if err := s.writeAPI.WritePoint(ctx, pts...); err != nil {
				return err
			}
			pts = pts[:0]
		}
	}
	if len(pts) == 0 {
		return nil
	}
	return s.writeAPI.WritePoint(ctx, pts...)
}

func (s *InfluxSink) Close() error {
	s.client.Close()
	return nil
}
