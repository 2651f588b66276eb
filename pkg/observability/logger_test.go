package observability

import (
	"bytes"
	"log"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureOutput(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	orig := log.Writer()
	log.SetOutput(&buf)
	t.Cleanup(func() { log.SetOutput(orig) })
	return &buf
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  LogLevel
	}{
		{"debug", LogLevelDebug},
		{"DEBUG", LogLevelDebug},
		{"info", LogLevelInfo},
		{"warn", LogLevelWarn},
		{"warning", LogLevelWarn},
		{"error", LogLevelError},
		{"fatal", LogLevelFatal},
		{"", LogLevelInfo},
		{"nonsense", LogLevelInfo},
		{"  error  ", LogLevelError},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.input))
		})
	}
}

func TestStandardLoggerLevelFiltering(t *testing.T) {
	buf := captureOutput(t)

	logger := NewStandardLogger("test").WithLevel(LogLevelWarn)
	logger.Debug("debug message", nil)
	logger.Info("info message", nil)
	assert.Empty(t, buf.String())

	logger.Warn("warn message", nil)
	assert.Contains(t, buf.String(), "[WARN] [test] warn message")
}

func TestStandardLoggerFieldsSorted(t *testing.T) {
	buf := captureOutput(t)

	logger := NewStandardLogger("vector")
	logger.Info("search done", map[string]interface{}{
		"results": 3,
		"company": "Acme",
	})

	out := buf.String()
	require.Contains(t, out, "[INFO] [vector] search done")
	// Keys render alphabetically so lines are stable.
	assert.Contains(t, out, "company=Acme results=3")
}

func TestStandardLoggerWith(t *testing.T) {
	buf := captureOutput(t)

	base := NewStandardLogger("pipeline")
	scoped := base.With(map[string]interface{}{"run_id": "r1"})
	scoped.Info("stage complete", map[string]interface{}{"stage": "forensic"})

	out := buf.String()
	assert.Contains(t, out, "run_id=r1")
	assert.Contains(t, out, "stage=forensic")

	// The base logger is unaffected.
	buf.Reset()
	base.Info("plain", nil)
	assert.NotContains(t, buf.String(), "run_id")
}

func TestStandardLoggerWithPrefix(t *testing.T) {
	buf := captureOutput(t)

	logger := NewStandardLogger("parent").WithPrefix("child")
	logger.Info("hello", nil)
	assert.Contains(t, buf.String(), "[child]")
	assert.NotContains(t, buf.String(), "[parent]")
}

func TestNoopLogger(t *testing.T) {
	buf := captureOutput(t)

	logger := NewNoopLogger()
	logger.Debug("a", nil)
	logger.Info("b", map[string]interface{}{"k": "v"})
	logger.Warn("c", nil)
	logger.Error("d", nil)
	logger.Fatal("e", nil) // must not exit
	assert.Same(t, logger, logger.WithPrefix("x"))
	assert.Same(t, logger, logger.With(nil))
	assert.Empty(t, buf.String())
}
