package logger

import "strings"

// Level names as they appear in the level field.
const (
	LevelDebug = "DEBUG"
	LevelInfo  = "INFO"
	LevelWarn  = "WARN"
	LevelError = "ERROR"
)

func set(values ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(values))
	for _, v := range values {
		m[v] = struct{}{}
	}
	return m
}

var (
	knownStatus = set("ok", "fail", "skip", "retry", "rate_limited", "cancelled")
	// cache is only ever about the coin listing and the answer cache.
	knownCache   = set("hit", "miss", "refresh")
	knownOutcome = set("ok", "fail", "skip", "cancelled", "rate_limited", "not_found", "format", "fallback")
)

// normalizeLevel maps slog level strings ("INFO", "DEBUG-4", "warning") to level names.
func normalizeLevel(level string) string {
	if level == "" {
		return LevelInfo
	}
	base, _, _ := strings.Cut(strings.ToUpper(level), "+")
	base, _, _ = strings.Cut(base, "-")
	switch base {
	case "WARNING":
		return LevelWarn
	case LevelDebug, LevelInfo, LevelWarn, LevelError:
		return base
	}
	return strings.ToUpper(level)
}

func normalizeIn(known map[string]struct{}, v string) (string, bool) {
	v = strings.ToLower(strings.TrimSpace(v))
	if v == "" {
		return "", false
	}
	_, ok := known[v]
	return v, ok
}

func normalizeStatus(status string) (string, bool)   { return normalizeIn(knownStatus, status) }
func normalizeCache(cache string) (string, bool)     { return normalizeIn(knownCache, cache) }
func normalizeOutcome(outcome string) (string, bool) { return normalizeIn(knownOutcome, outcome) }

// defaultKeyOrder puts envelope keys first, then update identifiers, then
// the domain keys of coin lookups, provider calls and the instance lock.
var defaultKeyOrder = []string{
	"ts", "level", "component", "event", "status",
	"rid", "rid_full", "ts_unix_nano",
	"update_id", "user_id", "chat_id", "chat_type", "handler",
	"operation", "op", "cb_key", "outcome", "duration_ms",
	"mode", "layout", "cache", "key",
	"symbol", "coin_id", "provider", "model", "query_len", "answer_len",
	"payload", "lang", "username",
	"listen", "public_url", "http_code", "host", "port",
	"token", "ttl_ms", "attempts", "backoff_ms", "retryable",
	"err", "err_code", "cause",
	"count", "pending_count",
}
