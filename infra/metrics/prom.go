package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kilianp07/fieldcast/core/predict"
)

// PromRecorder exports prediction progress as Prometheus metrics.
type PromRecorder struct {
	tasks    *prometheus.CounterVec
	duration *prometheus.HistogramVec
	samples  prometheus.Counter
	progress prometheus.Gauge
}

// NewPromRecorder registers the prediction collectors on the default registerer.
func NewPromRecorder() (*PromRecorder, error) {
	return NewPromRecorderWithRegistry(prometheus.DefaultRegisterer)
}

// NewPromRecorderWithRegistry registers the collectors on reg. A nil
// registerer defaults to the global one. Collectors already registered are
// reused.
func NewPromRecorderWithRegistry(reg prometheus.Registerer) (*PromRecorder, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	tasks := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fieldcast_tasks_total",
		Help: "Number of predicted tasks",
	}, []string{"mode", "convention", "status"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "fieldcast_task_duration_seconds",
		Help:    "Time spent predicting one task",
		Buckets: prometheus.DefBuckets,
	}, []string{"mode", "convention"})
	samples := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "fieldcast_samples_total",
		Help: "Number of samples drawn across tasks",
	})
	progress := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "fieldcast_run_progress_ratio",
		Help: "Fraction of tasks completed in the current run",
	})

	var err error
	if tasks, err = register(reg, tasks); err != nil {
		return nil, err
	}
	if duration, err = register(reg, duration); err != nil {
		return nil, err
	}
	if samples, err = register(reg, samples); err != nil {
		return nil, err
	}
	if progress, err = register(reg, progress); err != nil {
		return nil, err
	}
	return &PromRecorder{tasks: tasks, duration: duration, samples: samples, progress: progress}, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// RecordTask implements predict.Recorder.
func (r *PromRecorder) RecordTask(p predict.Progress) {
	status := "ok"
	if p.Err != nil {
		status = "error"
	}
	mode := p.Mode.String()
	r.tasks.WithLabelValues(mode, p.Convention, status).Inc()
	r.duration.WithLabelValues(mode, p.Convention).Observe(p.Duration.Seconds())
	if p.Err == nil && p.Samples > 0 {
		r.samples.Add(float64(p.Samples))
	}
	if p.Total > 0 {
		r.progress.Set(float64(p.Index+1) / float64(p.Total))
	}
}
