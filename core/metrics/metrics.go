// Package metrics builds the predict.Recorder stack from configuration.
// Concrete recorders register themselves from infra/metrics.
package metrics

import (
	"github.com/kilianp07/fieldcast/core/factory"
	"github.com/kilianp07/fieldcast/core/predict"
)

// Recorder receives per-task prediction progress.
type Recorder = predict.Recorder

// Config defines the metrics recorders and the Prometheus endpoint.
type Config struct {
	Recorders []factory.ModuleConfig `json:"recorders"`
	// PrometheusAddr enables the /metrics HTTP endpoint when set, e.g. ":9090".
	PrometheusAddr string `json:"prometheus_addr" yaml:"prometheus_addr"`
}

var registry = factory.NewRegistry[Recorder]()

// RegisterRecorder adds a recorder factory identified by name.
func RegisterRecorder(name string, f factory.Factory[Recorder]) error {
	return registry.Register(name, f)
}

// RecorderTypes lists the registered recorder names.
func RecorderTypes() []string { return registry.Types() }

// NewRecorder creates a Recorder from cfgs. No configuration yields a no-op
// recorder and several are combined in a Multi.
func NewRecorder(cfgs []factory.ModuleConfig) (Recorder, error) {
	switch len(cfgs) {
	case 0:
		return predict.NopRecorder{}, nil
	case 1:
		return registry.Create(cfgs[0])
	}
	recs, err := registry.CreateAll(cfgs)
	if err != nil {
		return nil, err
	}
	return NewMulti(recs...), nil
}

// Multi fans progress out to several recorders.
type Multi struct {
	Recorders []Recorder
}

// NewMulti combines recs.
func NewMulti(recs ...Recorder) *Multi { return &Multi{Recorders: recs} }

// RecordTask forwards p to every recorder.
func (m *Multi) RecordTask(p predict.Progress) {
	for _, r := range m.Recorders {
		r.RecordTask(p)
	}
}

// Close closes every recorder that holds resources.
func (m *Multi) Close() {
	for _, r := range m.Recorders {
		if c, ok := r.(interface{ Close() }); ok {
			c.Close()
		}
	}
}
