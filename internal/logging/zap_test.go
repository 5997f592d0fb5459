package logging

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestZapLogger_LevelsAndFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	log := NewZapLogger(zap.New(core))
	ctx := context.Background()

	log.Debug(ctx, "dbg", "a", 1)
	log.Info(ctx, "inf", "b", 2)
	log.Warn(ctx, "wrn", "c", 3)
	log.Error(ctx, "err", "d", 4)

	entries := logs.AllUntimed()
	require.Len(t, entries, 4)
	require.Equal(t, zapcore.DebugLevel, entries[0].Level)
	require.Equal(t, "inf", entries[1].Message)
	require.Equal(t, int64(3), entries[2].ContextMap()["c"])
	require.Equal(t, zapcore.ErrorLevel, entries[3].Level)
}

func TestZapLogger_With(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	log := NewZapLogger(zap.New(core)).With("module", "syncer")

	log.Info(context.Background(), "hello", "k", "v")

	entries := logs.AllUntimed()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	require.Equal(t, "syncer", fields["module"])
	require.Equal(t, "v", fields["k"])
}

func TestNew_BackendTypes(t *testing.T) {
	l, err := New("slog", "debug", "json", "client")
	require.NoError(t, err)
	require.IsType(t, &SlogLogger{}, l)

	l, err = New("zap", "info", "console", "client")
	require.NoError(t, err)
	require.IsType(t, &ZapLogger{}, l)

	_, err = New("logrus", "info", "json", "")
	require.Error(t, err)

	_, err = New("slog", "loud", "json", "")
	require.Error(t, err)

	_, err = New("zap", "loud", "json", "")
	require.Error(t, err)
}

func TestNewNop_DoesNotPanic(t *testing.T) {
	l := NewNop()
	l.With("a", 1).Info(context.Background(), "ignored")
}
