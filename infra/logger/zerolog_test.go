package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestZerologJSONOutput(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithConfig("predict", Config{Level: "debug", Format: "json"}, &buf)
	l.Debugw("task done", map[string]any{"index": 2})

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "predict", line["component"])
	assert.Equal(t, "task done", line["message"])
	assert.Equal(t, float64(2), line["index"])
	assert.Equal(t, "debug", line["level"])
}

func TestZerologLevelFilter(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithConfig("predict", Config{Level: "warn", Format: "json"}, &buf)
	l.Debugf("hidden %d", 1)
	l.Infof("hidden")
	l.Warnf("shown")
	l.Errorf("shown too")
	assert.Equal(t, 2, strings.Count(buf.String(), "\n"))
}

func TestZerologConsoleFromEnv(t *testing.T) {
	t.Setenv("APP_ENV", "dev")
	var buf bytes.Buffer
	l := NewWithConfig("cli", Config{}, &buf)
	l.Infof("hello %s", "world")
	assert.Contains(t, buf.String(), "hello world")
	assert.False(t, json.Valid(bytes.TrimSpace(buf.Bytes())))
}

func TestConfigValidate(t *testing.T) {
	c := Config{}
	c.SetDefaults()
	assert.NoError(t, c.Validate())
	assert.Error(t, Config{Level: "loud"}.Validate())
	assert.Error(t, Config{Level: "info", Format: "xml"}.Validate())
}

func TestNopLogger(t *testing.T) {
	var l Logger = NopLogger{}
	l.Debugf("x")
	l.Debugw("x", nil)
	l.Infof("x")
	l.Warnf("x")
	l.Errorf("x")
}
