package logger

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	coreconfig "github.com/Myudi422/youtube-telegram-downloader/core/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHandler(t *testing.T, format logFormat) (*slog.Logger, func() string) {
	t.Helper()
	buf := &bytes.Buffer{}
	aw := newAsyncWriter([]io.Writer{buf}, 1024)
	handler := newStructuredHandler(handlerConfig{
		level:  slog.LevelDebug,
		writer: aw,
		format: format,
	})
	return slog.New(handler), func() string {
		require.NoError(t, aw.Close())
		return strings.TrimSpace(buf.String())
	}
}

func TestStructuredHandlerKVOrder(t *testing.T) {
	log, output := newTestHandler(t, formatKV)
	ctx := WithRID(Background(), "rid-123")
	ctx = WithUpdateMeta(ctx, 42, 7, 9)

	LogEvent(ctx, log.With("component", "dialogue"), slog.LevelInfo, "delivery.done",
		slog.String("status", "OK"),
		slog.String("kind", "audio"),
	)

	tokens := strings.Split(output(), " ")
	require.GreaterOrEqual(t, len(tokens), 6)
	expected := []string{"ts=", "level=INFO", "component=dialogue", "event=delivery.done", "status=ok", "rid=rid-123"}
	for i, prefix := range expected {
		assert.Truef(t, strings.HasPrefix(tokens[i], prefix), "token %d = %s, want prefix %s", i, tokens[i], prefix)
	}
}

func TestStructuredHandlerJSONFields(t *testing.T) {
	log, output := newTestHandler(t, formatJSON)
	ctx := WithRID(Background(), "11:22:33")
	ctx = WithUpdateMeta(ctx, 11, 33, 22)
	ctx = WithRequestID(ctx, "req-1")

	LogEvent(ctx, log.With("component", "media"), slog.LevelError, "resolve.failed",
		slog.String("err", "boom"),
		slog.String("err_code", "METADATA"),
		slog.Duration("took", 1500*time.Millisecond),
		slog.String("outcome", "weird"),
	)

	line := output()
	var payload map[string]any
	require.NoError(t, json.Unmarshal([]byte(line), &payload))
	assert.Equal(t, "ERROR", payload["level"])
	assert.Equal(t, "b.m.x", payload["rid"])
	assert.Equal(t, "11:22:33", payload["rid_full"])
	assert.Equal(t, "req-1", payload["request_id"])
	assert.EqualValues(t, 1500, payload["took_ms"])
	assert.NotContains(t, payload, "outcome")
	assert.True(t, strings.HasPrefix(line, `{"ts":`))
}

func TestStructuredHandlerGroupsAndDefaults(t *testing.T) {
	log, output := newTestHandler(t, formatKV)
	log.WithGroup("stage").Info("", slog.String("path", "/tmp/a b"))

	line := output()
	assert.Contains(t, line, "component=app")
	assert.Contains(t, line, "event=unknown")
	assert.Contains(t, line, `stage.path="/tmp/a b"`)
}

func TestCompactRID(t *testing.T) {
	assert.Equal(t, "a.b.c", CompactRID("10:11:12"))
	assert.Equal(t, "not-a-rid", CompactRID("not-a-rid"))
	assert.Equal(t, "1:x:2", CompactRID("1:x:2"))
}

func TestSanitizeLimit(t *testing.T) {
	assert.Equal(t, "abc", SanitizeLimit("a\x00b\u200bc", 10))
	assert.Equal(t, "ab", SanitizeLimit("abc", 2))
	assert.Equal(t, "", SanitizeLimit("abc", 0))
}

func TestParseDebugSample(t *testing.T) {
	cases := map[string][2]int{
		"":     {1, 50},
		"3/10": {3, 10},
		"20":   {1, 20},
		"0":    {0, 0},
		"junk": {1, 50},
	}
	for in, want := range cases {
		cfg := newLoggingConfig(in)
		n, d := parseDebugSample(cfg)
		assert.Equalf(t, want, [2]int{n, d}, "input %q", in)
	}
}

func newLoggingConfig(sample string) *coreconfig.Config {
	cfg := &coreconfig.Config{}
	cfg.Logging.DebugSample = sample
	return cfg
}

func TestRatioSampler(t *testing.T) {
	s := newRatioSampler(1, 3)
	got := []bool{s.Allow(), s.Allow(), s.Allow(), s.Allow()}
	assert.Equal(t, []bool{true, false, false, true}, got)

	s.Set(0, 0)
	assert.True(t, s.Allow())
}
