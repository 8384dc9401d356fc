package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// TestFromContext_FallsBackToGlobal verifies an empty context yields the global logger.
func TestFromContext_FallsBackToGlobal(t *testing.T) {
	t.Parallel()

	require.Same(t, Logger(), FromContext(context.Background()))
}

// TestWithFields_AreAttached checks names and fields reach the underlying core.
func TestWithFields_AreAttached(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.DebugLevel)
	ctx := ToContext(context.Background(), zap.New(core).Sugar())

	ctx = WithName(ctx, "replacer")
	ctx = WithKV(ctx, "app", "Foo")
	ctx = WithFields(ctx, "from", "1.0.0", "to", "1.1.0")

	InfoKV(ctx, "swap finished", "status", "ok")

	entries := logs.All()
	require.Len(t, entries, 1)
	require.Equal(t, "replacer", entries[0].LoggerName)

	fields := entries[0].ContextMap()
	require.Equal(t, "Foo", fields["app"])
	require.Equal(t, "1.0.0", fields["from"])
	require.Equal(t, "1.1.0", fields["to"])
	require.Equal(t, "ok", fields["status"])
}
