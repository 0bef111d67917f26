package logger

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coreconfig "github.com/m3rciful/assistbot/core/config"
)

func newTestHandler(t *testing.T, format logFormat) (*slog.Logger, *asyncWriter, *bytes.Buffer) {
	t.Helper()
	buf := &bytes.Buffer{}
	aw := newAsyncWriter([]io.Writer{buf}, 1024)
	h := newStructuredHandler(handlerConfig{
		level:    slog.LevelInfo,
		writer:   aw,
		format:   format,
		keyOrder: append([]string(nil), defaultKeyOrder...),
	})
	return slog.New(h), aw, buf
}

func flushLine(t *testing.T, aw *asyncWriter, buf *bytes.Buffer) string {
	t.Helper()
	require.NoError(t, aw.Flush())
	require.NoError(t, aw.Close())
	return strings.TrimSpace(buf.String())
}

func assertInOrder(t *testing.T, line string, parts ...string) {
	t.Helper()
	pos := -1
	for _, p := range parts {
		idx := strings.Index(line, p)
		require.NotEqual(t, -1, idx, "%s missing in %s", p, line)
		require.Greater(t, idx, pos, "%s out of order in %s", p, line)
		pos = idx
	}
}

func TestStructuredHandlerKVOrder(t *testing.T) {
	log, aw, buf := newTestHandler(t, formatKV)
	ctx := WithUpdateMeta(WithRID(Background(), "rid-123"), 42, 7, 9)

	LogEvent(ctx, log.With("component", "session"), slog.LevelInfo, "session.mode",
		slog.String("status", "ok"),
		slog.String("mode", "crypto"),
	)
	line := flushLine(t, aw, buf)

	tokens := strings.Split(line, " ")
	require.GreaterOrEqual(t, len(tokens), 6, line)
	for i, prefix := range []string{"ts=", "level=INFO", "component=session", "event=session.mode", "status=ok", "rid=rid-123"} {
		assert.True(t, strings.HasPrefix(tokens[i], prefix), "token %d = %s, want %s", i, tokens[i], prefix)
	}
	assert.Contains(t, line, "user_id=7")
	assert.Contains(t, line, "chat_id=9")
	assert.Contains(t, line, "mode=crypto")
}

func TestStructuredHandlerJSONOrder(t *testing.T) {
	log, aw, buf := newTestHandler(t, formatJSON)
	ctx := WithUpdateMeta(WithRID(Background(), "rid-json"), 11, 22, 33)

	LogEvent(ctx, log.With("component", "coins"), slog.LevelError, "coins.quote",
		slog.String("status", "fail"),
		slog.String("err", "boom"),
		slog.String("err_code", "RATE_LIMITED"),
	)
	line := flushLine(t, aw, buf)

	require.True(t, strings.HasPrefix(line, "{"), line)
	assertInOrder(t, line, `{"ts":`, `"level":"ERROR"`, `"component":"coins"`, `"event":"coins.quote"`, `"status":"fail"`, `"rid":"rid-json"`)
}

func TestStructuredHandlerCompactRID(t *testing.T) {
	rawRID := "123:456:789"

	log, aw, buf := newTestHandler(t, formatKV)
	LogEvent(WithRID(Background(), rawRID), log, slog.LevelInfo, "rid.test")
	line := flushLine(t, aw, buf)
	assert.Contains(t, line, "rid="+CompactRID(rawRID))
	assert.NotContains(t, line, "rid_full=")

	log, aw, buf = newTestHandler(t, formatJSON)
	LogEvent(WithRID(Background(), rawRID), log, slog.LevelInfo, "rid.test")
	line = flushLine(t, aw, buf)
	assert.Contains(t, line, `"rid":"`+CompactRID(rawRID)+`"`)
	assert.Contains(t, line, `"rid_full":"`+rawRID+`"`)
	assert.Contains(t, line, `"ts_unix_nano"`)
}

func TestStructuredHandlerDomainKeyOrder(t *testing.T) {
	log, aw, buf := newTestHandler(t, formatKV)
	LogEvent(Background(), log.With("component", "ai"), slog.LevelWarn, "ai.provider",
		slog.String("err", "timeout"),
		slog.String("status", "fail"),
		slog.String("provider", "openai"),
	)
	line := flushLine(t, aw, buf)
	assertInOrder(t, line, "status=fail", "provider=openai", "err=timeout")
}

func TestStructuredHandlerNormalizesValues(t *testing.T) {
	log, aw, buf := newTestHandler(t, formatKV)
	LogEvent(Background(), log, slog.LevelInfo, "lock.keep",
		slog.Duration("ttl", 10*time.Second),
		slog.String("cache", "bogus"),
		slog.String("outcome", "skip"),
		slog.String("empty", ""),
		slog.String("note", "two words"),
	)
	log.WithGroup("lock").Info("grouped", slog.Int("n", 1))
	line := flushLine(t, aw, buf)
	assert.Contains(t, line, "ttl_ms=10000")
	assert.Contains(t, line, "outcome=skip")
	assert.NotContains(t, line, "bogus")
	assert.NotContains(t, line, "empty=")
	assert.Contains(t, line, `note="two words"`)
	assert.Contains(t, line, "lock.n=1")
	assert.Contains(t, line, "event=grouped")
}

func TestStructuredHandlerRespectsLevel(t *testing.T) {
	log, aw, buf := newTestHandler(t, formatKV)
	log.Debug("hidden")
	assert.Empty(t, flushLine(t, aw, buf))
	assert.False(t, log.Enabled(context.Background(), slog.LevelDebug))
}

func TestAsyncWriterFlushIsOrdered(t *testing.T) {
	buf := &bytes.Buffer{}
	aw := newAsyncWriter([]io.Writer{buf}, 16)
	for i := 0; i < 100; i++ {
		require.NoError(t, aw.Write([]byte("x\n")))
	}
	require.NoError(t, aw.Flush())
	assert.Equal(t, 100, strings.Count(buf.String(), "x\n"))

	require.NoError(t, aw.Close())
	require.NoError(t, aw.Close())
	assert.ErrorIs(t, aw.Write([]byte("late\n")), errWriterClosed)
}

func TestRatioSampler(t *testing.T) {
	s := newRatioSampler(1, 4)
	var passed int
	for i := 0; i < 12; i++ {
		if s.Allow() {
			passed++
		}
	}
	assert.Equal(t, 3, passed)

	s.Set(0, 0)
	assert.True(t, s.Allow())
}

func TestParseRatio(t *testing.T) {
	for raw, want := range map[string][2]int{
		"1/50": {1, 50},
		"20":   {1, 20},
		"off":  {0, 0},
		"":     {0, 0},
		"x/y":  {0, 0},
		"-3":   {0, 0},
	} {
		keep, window := parseRatio(raw)
		assert.Equal(t, want, [2]int{keep, window}, raw)
	}
}

func TestResolveSettings(t *testing.T) {
	s := resolveSettings(nil)
	assert.Equal(t, formatJSON, s.format)
	assert.Equal(t, slog.LevelInfo, s.level)

	cfg := &coreconfig.Config{}
	cfg.Logging.Profile = "Dev"
	cfg.Logging.Level = "debug"
	cfg.Logging.KeysOrder = "event, ts"
	cfg.Logging.DebugSample = "off"
	cfg.Logging.Dir = "logs"
	cfg.Logging.BotFile = "bot.log"
	s = resolveSettings(cfg)
	assert.Equal(t, formatKV, s.format)
	assert.Equal(t, slog.LevelDebug, s.level)
	assert.Equal(t, []string{"event", "ts"}, s.keyOrder)
	assert.Zero(t, s.sampleWindow)
	assert.Equal(t, "logs/bot.log", s.filePath)
}

func TestContextMeta(t *testing.T) {
	ctx := WithHandler(WithUpdateMeta(context.Background(), 5, 6, 7), "cmd:/start")
	assert.Equal(t, 5, UpdateIDFrom(ctx))
	assert.Equal(t, int64(6), UserIDFrom(ctx))
	assert.Equal(t, int64(7), ChatIDFrom(ctx))
	assert.Equal(t, "cmd:/start", HandlerFrom(ctx))
	assert.Zero(t, ChatIDFrom(context.Background()))
	assert.Same(t, L, FromContext(context.Background()))
}

func TestRIDHelpers(t *testing.T) {
	rid := BuildRID(35, -100, 36)
	assert.Equal(t, "35:-100:36", rid)
	assert.Equal(t, "z.-2s.10", CompactRID(rid))
	assert.Equal(t, "free-form", CompactRID(" free-form "))
}

func TestSanitizeLimit(t *testing.T) {
	assert.Equal(t, "btc\tok", Sanitize("b\x00tc\u200b\tok"))
	assert.Equal(t, "пр", SanitizeLimit("привет", 2))
	assert.Equal(t, "", SanitizeLimit("x", 0))
	assert.Equal(t, "eth", SanitizeLimit("eth", 10))
}

func TestComponentLoggersReadyBeforeInit(t *testing.T) {
	for name, l := range map[string]*slog.Logger{
		"kv": KV, "coins": Coins, "ai": AI, "session": Session,
		"dialog": Dialog, "lock": Lock, "metrics": Metrics, "tg": TG,
	} {
		assert.NotNil(t, l, name)
	}
	assert.NotNil(t, Component("dialog"))
}
