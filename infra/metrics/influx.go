package metrics

import (
	"context"
	"net/http"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/kilianp07/fieldcast/core/logger"
	"github.com/kilianp07/fieldcast/core/predict"
	infralogger "github.com/kilianp07/fieldcast/infra/logger"
)

// InfluxRecorder writes one point per predicted task to InfluxDB.
type InfluxRecorder struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// NewInfluxRecorder creates a recorder for the given endpoint.
func NewInfluxRecorder(url, token, org, bucket string) *InfluxRecorder {
	base := strings.TrimSuffix(url, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxRecorder{
		client:   client,
		writeAPI: client.WriteAPIBlocking(org, bucket),
		log:      infralogger.New("influx-recorder"),
	}
}

// NewInfluxRecorderWithFallback pings InfluxDB first and returns a no-op
// recorder when the health check fails.
func NewInfluxRecorderWithFallback(url, token, org, bucket string) predict.Recorder {
	rec := NewInfluxRecorder(url, token, org, bucket)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := rec.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			rec.log.Errorf("influx health check error: %v", err)
		} else {
			rec.log.Errorf("influx health status: %s", health.Status)
		}
		rec.client.Close()
		return predict.NopRecorder{}
	}
	return rec
}

// TaskPoint converts progress into the line-protocol point written by
// RecordTask.
func TaskPoint(p predict.Progress) *write.Point {
	status := "ok"
	if p.Err != nil {
		status = "error"
	}
	return write.NewPointWithMeasurement("prediction_task").
		AddTag("run_id", p.RunID).
		AddTag("mode", p.Mode.String()).
		AddTag("convention", p.Convention).
		AddTag("status", status).
		AddField("index", p.Index).
		AddField("total", p.Total).
		AddField("samples", p.Samples).
		AddField("duration_ms", float64(p.Duration.Microseconds())/1000).
		SetTime(p.Time)
}

// RecordTask implements predict.Recorder. Write failures are logged.
func (r *InfluxRecorder) RecordTask(p predict.Progress) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.writeAPI.WritePoint(ctx, TaskPoint(p)); err != nil {
		r.log.Errorf("influx write: %v", err)
	}
}

// Close releases the client.
func (r *InfluxRecorder) Close() { r.client.Close() }
