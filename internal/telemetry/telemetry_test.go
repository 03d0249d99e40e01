package telemetry

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range cases {
		assert.Equal(t, want, ParseLevel(in), in)
	}
}

func TestInitLoggerWritesToRotatingFile(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	dir := filepath.Join(t.TempDir(), "logs")
	logger, err := InitLogger(dir, "debug")
	require.NoError(t, err)

	logger.Info("turn completed", "path", "direct")

	data, err := os.ReadFile(filepath.Join(dir, "searchchat.log"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"turn completed"`)
	assert.Contains(t, string(data), `"path":"direct"`)
}

func TestInitTelemetryCreatesInstruments(t *testing.T) {
	dir := t.TempDir()
	inst, cleanup, err := InitTelemetry(context.Background(), dir)
	require.NoError(t, err)
	t.Cleanup(cleanup)

	require.NotNil(t, inst.Tracer)
	require.NotNil(t, inst.Meter)

	_, span := inst.Tracer.Start(context.Background(), "test_span")
	span.End()
	RecordDuration(context.Background(), inst.Meter, time.Now())
}

func TestOrNoopFillsMissingInstruments(t *testing.T) {
	inst := Instruments{}.OrNoop()
	assert.NotNil(t, inst.Tracer)
	assert.NotNil(t, inst.Meter)

	// must not panic
	ctx, span := inst.Tracer.Start(context.Background(), "noop")
	span.End()
	RecordDuration(ctx, inst.Meter, time.Now())
}
