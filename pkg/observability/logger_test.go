package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"

	"github.com/platinummonkey/portal/pkg/contextkeys"
)

func decodeEntry(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	return entry
}

func TestLogger_Levels(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(InfoLevel, &buf)

	t.Run("debug not logged at info level", func(t *testing.T) {
		buf.Reset()
		logger.Debug("debug message")
		assert.Zero(t, buf.Len())
	})

	t.Run("info logged at info level", func(t *testing.T) {
		buf.Reset()
		logger.Info("info message")
		entry := decodeEntry(t, &buf)
		assert.Equal(t, "INFO", entry["level"])
		assert.Equal(t, "info message", entry["msg"])
	})

	t.Run("warn and error logged at info level", func(t *testing.T) {
		buf.Reset()
		logger.Warn("warn message")
		assert.NotZero(t, buf.Len())

		buf.Reset()
		logger.Error("error message")
		assert.NotZero(t, buf.Len())
	})
}

func TestLogger_Fields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(InfoLevel, &buf)

	logger.WithField("username", "alice").
		WithFields(map[string]interface{}{"operation": "login", "attempt": 2}).
		WithError(errors.New("boom")).
		Info("login failed")

	entry := decodeEntry(t, &buf)
	assert.Equal(t, "alice", entry["username"])
	assert.Equal(t, "login", entry["operation"])
	assert.Equal(t, float64(2), entry["attempt"])
	assert.Equal(t, "boom", entry["error"])
	assert.Equal(t, "login failed", entry["msg"])
}

func TestLogger_WithNilError(t *testing.T) {
	logger := NewLogger(InfoLevel, &bytes.Buffer{})
	assert.Same(t, logger, logger.WithError(nil))
}

func TestFromContext(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(InfoLevel, &buf)

	ctx := WithLogger(context.Background(), logger)
	ctx = contextkeys.WithRequestID(ctx, "req-123")
	ctx = contextkeys.WithUserID(ctx, "7")

	FromContext(ctx).Info("test message")

	entry := decodeEntry(t, &buf)
	assert.Equal(t, "req-123", entry["request_id"])
	assert.Equal(t, "7", entry["user_id"])
}

func TestFromContext_WithoutLogger(t *testing.T) {
	logger := FromContext(context.Background())
	require.NotNil(t, logger)
	logger.Error("goes nowhere")
}

func TestFromContext_Trace(t *testing.T) {
	var buf bytes.Buffer
	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")

	ctx := WithLogger(context.Background(), NewLogger(DebugLevel, &buf))
	ctx = trace.ContextWithSpanContext(ctx, trace.NewSpanContext(trace.SpanContextConfig{
		TraceID: traceID,
		SpanID:  spanID,
	}))

	FromContext(ctx).Debug("refreshing")

	entry := decodeEntry(t, &buf)
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", entry["trace_id"])
	assert.Equal(t, "00f067aa0ba902b7", entry["span_id"])
}

func TestInitOTel_Disabled(t *testing.T) {
	telemetry, err := InitOTel(context.Background(), OTelConfig{}, NopLogger())
	require.NoError(t, err)
	assert.Nil(t, telemetry)
	assert.NoError(t, telemetry.Shutdown(context.Background()))
}

func TestLogLevel_String(t *testing.T) {
	tests := []struct {
		level LogLevel
		want  string
	}{
		{DebugLevel, "DEBUG"},
		{InfoLevel, "INFO"},
		{WarnLevel, "WARN"},
		{ErrorLevel, "ERROR"},
		{LogLevel(9), "INFO"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.level.String())
		})
	}
}
