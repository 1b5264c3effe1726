package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestZerologLoggerMethods(t *testing.T) {
	t.Setenv("APP_ENV", "dev")
	l := NewZerologLogger("test")
	if l == nil {
		t.Fatalf("nil logger")
	}
	l.Debugf("debug %d", 1)
	l.Debugw("debug", map[string]any{"k": 1})
	l.Infof("info %s", "test")
	l.Infow("info", map[string]any{"train": "101"})
	l.Warnf("warn")
	l.Errorf("error")
}

func TestZerologLoggerFieldsAndComponent(t *testing.T) {
	t.Setenv("LOG_LEVEL", "")
	var buf bytes.Buffer
	l := NewZerologLoggerWithWriter("predictor", &buf)
	l.Infow("prediction served", map[string]any{"train_id": "101", "delay": 3.5})

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "predictor", entry["component"])
	assert.Equal(t, "101", entry["train_id"])
	assert.Equal(t, "info", entry["level"])
}

func TestZerologLoggerLevelFromEnv(t *testing.T) {
	t.Setenv("LOG_LEVEL", "warn")
	var buf bytes.Buffer
	l := NewZerologLoggerWithWriter("x", &buf)
	l.Infof("hidden")
	l.Debugf("hidden")
	l.Warnf("shown")
	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Equal(t, 1, strings.Count(out, "shown"))
}

func TestZerologLoggerBadLevelDefaultsToInfo(t *testing.T) {
	t.Setenv("LOG_LEVEL", "loud")
	var buf bytes.Buffer
	l := NewZerologLoggerWithWriter("x", &buf)
	l.Debugf("debug")
	l.Infof("info")
	assert.NotContains(t, buf.String(), `"debug"`)
	assert.Contains(t, buf.String(), `"info"`)
}
