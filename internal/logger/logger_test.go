package logger

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// TestParseLogLevel covers the flag values accepted by both binaries.
func TestParseLogLevel(t *testing.T) {
	t.Parallel()

	cases := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		" Info ":  zapcore.InfoLevel,
		"WARN":    zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
		"dpanic":  zapcore.DPanicLevel,
		"panic":   zapcore.PanicLevel,
		"fatal\n": zapcore.FatalLevel,
	}
	for s, lvl := range cases {
		got, ok := ParseLogLevel(s)
		require.True(t, ok, s)
		require.Equal(t, lvl, got, s)
	}

	got, ok := ParseLogLevel("verbose")
	require.False(t, ok)
	require.Equal(t, zapcore.InfoLevel, got)
}

// TestSetLevel_GatesLoggersOnSharedLevel checks that loggers built without an
// explicit level follow SetLevel.
func TestSetLevel_GatesLoggersOnSharedLevel(t *testing.T) {
	previous := Level()
	t.Cleanup(func() { SetLevel(previous) })

	shared := New(nil)

	SetLevel(zapcore.WarnLevel)
	require.Equal(t, zapcore.WarnLevel, Level())
	require.False(t, shared.Desugar().Core().Enabled(zapcore.InfoLevel))
	require.True(t, shared.Desugar().Core().Enabled(zapcore.WarnLevel))

	SetLevel(zapcore.DebugLevel)
	require.True(t, shared.Desugar().Core().Enabled(zapcore.DebugLevel))

	pinned := New(zapcore.ErrorLevel)
	require.False(t, pinned.Desugar().Core().Enabled(zapcore.WarnLevel))
}

// TestSync_FlushesGlobalLogger mirrors the self-update hand-off, where buffered
// entries must reach the sink before the process exits.
func TestSync_FlushesGlobalLogger(t *testing.T) {
	previous := Logger()
	t.Cleanup(func() { SetLogger(previous) })

	var sink bytes.Buffer

	buffered := &zapcore.BufferedWriteSyncer{
		WS:            zapcore.AddSync(&sink),
		Size:          64 * 1024,
		FlushInterval: time.Hour,
	}
	t.Cleanup(func() { _ = buffered.Stop() })

	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig()),
		buffered,
		zapcore.DebugLevel,
	)
	SetLogger(zap.New(core).Sugar())

	Info(context.Background(), "replacer started")
	require.Empty(t, sink.String())

	Sync()
	require.Contains(t, sink.String(), "replacer started")
}
