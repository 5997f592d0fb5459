package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func jsonLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &m))
		out = append(out, m)
	}
	return out
}

func TestSlogLogger_Levels(t *testing.T) {
	var buf bytes.Buffer
	log := NewSlogLogger(slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	ctx := context.Background()

	log.Debug(ctx, "enqueued", "partition", "messages")
	log.Info(ctx, "flushed", "delivered", 2)
	log.Warn(ctx, "retrying", "attempt", 3)
	log.Error(ctx, "gave up", "id", "m-1")

	lines := jsonLines(t, &buf)
	require.Len(t, lines, 4)

	assert.Equal(t, "DEBUG", lines[0]["level"])
	assert.Equal(t, "messages", lines[0]["partition"])
	assert.Equal(t, "INFO", lines[1]["level"])
	assert.Equal(t, float64(2), lines[1]["delivered"])
	assert.Equal(t, "WARN", lines[2]["level"])
	assert.Equal(t, "ERROR", lines[3]["level"])
	assert.Equal(t, "gave up", lines[3]["msg"])
}

func TestSlogLogger_FiltersBelowLevel(t *testing.T) {
	var buf bytes.Buffer
	log := NewSlogLogger(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn})))

	log.Debug(context.Background(), "quiet")
	log.Info(context.Background(), "quiet")
	assert.Empty(t, buf.String())

	log.Warn(context.Background(), "loud")
	assert.Contains(t, buf.String(), "msg=loud")
}

func TestSlogLogger_With(t *testing.T) {
	var buf bytes.Buffer
	base := NewSlogLogger(slog.New(slog.NewTextHandler(&buf, nil)))

	child := base.With("module", "syncer")
	child.Info(context.Background(), "pass done", "acked", 1)
	base.Info(context.Background(), "plain")

	out := buf.String()
	first, second, _ := strings.Cut(out, "\n")
	assert.Contains(t, first, "module=syncer")
	assert.Contains(t, first, "acked=1")
	assert.NotContains(t, second, "module=syncer")
}

func TestNewSlog_FormatsAndService(t *testing.T) {
	var buf bytes.Buffer
	l, err := newSlog(&buf, "info", "json", "vaxsync-client")
	require.NoError(t, err)

	l.Debug(context.Background(), "hidden")
	l.Info(context.Background(), "queued", "partition", "messages")

	lines := jsonLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "queued", lines[0]["msg"])
	assert.Equal(t, "vaxsync-client", lines[0]["service"])

	buf.Reset()
	l, err = newSlog(&buf, "debug", "text", "")
	require.NoError(t, err)
	l.Debug(context.Background(), "visible")
	assert.Contains(t, buf.String(), "msg=visible")
	assert.NotContains(t, buf.String(), "service=")
}

func TestNewSlog_BadLevel(t *testing.T) {
	_, err := newSlog(&bytes.Buffer{}, "loud", "json", "")
	require.Error(t, err)
}

func TestNew_Backends(t *testing.T) {
	for _, backend := range []string{"", "slog", "zap", "ZAP"} {
		l, err := New(backend, "info", "json", "svc")
		require.NoError(t, err, backend)
		require.NotNil(t, l)
	}

	_, err := New("logrus", "info", "json", "svc")
	require.Error(t, err)
}
