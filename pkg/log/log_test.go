package log_test

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"

	"github.com/wolfentensor/bittensor-substrate-interface/pkg/log"
)

func TestContextLogger(t *testing.T) {
	ctx := context.Background()

	_, isNoop := log.FromContext(ctx).(log.NoopLogger)
	assert.True(t, isNoop)

	logger := log.NewZapLogger(log.Config{})
	ctx = log.SetContextLogger(ctx, logger)
	_, isZap := log.FromContext(ctx).(*log.ZapLogger)
	assert.True(t, isZap)

	ctx = trace.ContextWithSpanContext(ctx, trace.NewSpanContext(trace.SpanContextConfig{
		TraceID: [16]byte{1},
		SpanID:  [8]byte{1},
	}))
	ctx = log.SetContextLogger(ctx, logger)
	spanLogger, isSpan := log.FromContext(ctx).(*log.SpanLogger)
	require.True(t, isSpan)

	// Re-attaching a span logger must not nest decorators.
	ctx = log.SetContextLogger(ctx, spanLogger)
	_, isSpan = log.FromContext(ctx).(*log.SpanLogger)
	assert.True(t, isSpan)

	ctx = log.SetContextLogger(context.Background(), nil)
	_, isNoop = log.FromContext(ctx).(log.NoopLogger)
	assert.True(t, isNoop)
}

func TestZapLogger(t *testing.T) {
	tws := &testWriteSyncer{}
	logger := log.NewZapLogger(log.Config{Format: "json", Level: log.LevelDebug}, tws)
	logger = logger.WithName("rpc")

	logger.Debug("frame received", "id", "7")
	tws.AssertEntry(t, log.LevelDebug, "rpc", "frame received", "id", "7")

	logger.Warn("reconnecting", "attempt", "2")
	tws.AssertEntry(t, log.LevelWarn, "rpc", "reconnecting", "attempt", "2")

	child := logger.WithName("ws").WithKV("session", "abc")
	assert.Equal(t, "rpc.ws", child.Name())
	assert.Equal(t, []any{"session", "abc"}, child.GetAllKV())
	// The parent keeps its own pairs.
	assert.Empty(t, logger.GetAllKV())

	child.Error("connection lost", "error", "eof")
	tws.AssertEntry(t, log.LevelError, "rpc.ws", "connection lost", "session", "abc", "error", "eof")
}

func TestZapLogger_LevelFilter(t *testing.T) {
	tws := &testWriteSyncer{}
	logger := log.NewZapLogger(log.Config{Format: "json", Level: log.LevelWarn}, tws)

	logger.Info("hidden")
	assert.Empty(t, tws.lastEntry)

	logger.Warn("shown")
	tws.AssertEntry(t, log.LevelWarn, "", "shown")
}

func TestNoopLogger(t *testing.T) {
	lg := log.NewNoopLogger()
	assert.Equal(t, "noop", lg.WithName("x").Name())
	assert.Empty(t, lg.WithKV("k", "v").GetAllKV())
	assert.NotPanics(t, func() { lg.Error("ignored", "k", 1) })
}

type testWriteSyncer struct {
	lastEntry []byte
}

func (tws *testWriteSyncer) Write(p []byte) (int, error) {
	tws.lastEntry = append([]byte(nil), p...)
	return len(p), nil
}

func (tws *testWriteSyncer) Sync() error { return nil }

func (tws *testWriteSyncer) AssertEntry(t *testing.T, level log.Level, name, message string, keysAndValues ...any) {
	t.Helper()

	entry := make(map[string]any)
	require.NoError(t, json.Unmarshal(tws.lastEntry, &entry), "entry: %s", string(tws.lastEntry))

	assert.Contains(t, entry, "ts")
	assert.Equal(t, string(level), entry["level"])
	assert.Equal(t, message, entry["msg"])
	if name != "" {
		assert.Equal(t, name, entry["logger"])
	}
	caller, _ := entry["caller"].(string)
	assert.True(t, strings.HasPrefix(caller, "log/log_test.go:"), "caller %q", caller)

	for i := 0; i < len(keysAndValues); i += 2 {
		assert.Equal(t, keysAndValues[i+1], entry[keysAndValues[i].(string)])
	}
}
