package metrics

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/kilianp07/fieldcast/core/factory"
	"github.com/kilianp07/fieldcast/core/predict"
)

type countRecorder struct{ n *int }

func (c countRecorder) RecordTask(predict.Progress) { *c.n++ }

var recorded int

func init() {
	_ = RegisterRecorder("count", func(map[string]any) (Recorder, error) {
		return countRecorder{n: &recorded}, nil
	})
}

func TestConfigDecodeYAML(t *testing.T) {
	data := `recorders:
  - type: count
  - type: count
prometheus_addr: ":9090"
`
	var cfg Config
	require.NoError(t, yaml.Unmarshal([]byte(data), &cfg))
	assert.Equal(t, ":9090", cfg.PrometheusAddr)
	rec, err := NewRecorder(cfg.Recorders)
	require.NoError(t, err)
	m, ok := rec.(*Multi)
	require.True(t, ok)
	assert.Len(t, m.Recorders, 2)

	recorded = 0
	rec.RecordTask(predict.Progress{Index: 0, Total: 1})
	assert.Equal(t, 2, recorded)
}

func TestConfigDecodeJSONUnknown(t *testing.T) {
	var cfg Config
	require.NoError(t, json.Unmarshal([]byte(`{"recorders":[{"type":"missing"}]}`), &cfg))
	_, err := NewRecorder(cfg.Recorders)
	assert.ErrorIs(t, err, factory.ErrUnknownType)
}

func TestNewRecorderDefaults(t *testing.T) {
	rec, err := NewRecorder(nil)
	require.NoError(t, err)
	assert.IsType(t, predict.NopRecorder{}, rec)

	rec, err = NewRecorder([]factory.ModuleConfig{{Type: "count"}})
	require.NoError(t, err)
	assert.IsType(t, countRecorder{}, rec)
	assert.Contains(t, RecorderTypes(), "count")
}
