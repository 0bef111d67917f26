// Package answer resolves free-form questions through an ordered chain of
// language-model providers with a per-user answer cache and a fixed fallback.
package answer

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/m3rciful/assistbot/core/kv"
	"github.com/m3rciful/assistbot/core/logger"
	"github.com/m3rciful/assistbot/core/metrics"
)

// ErrProvider wraps every failure reported by a provider.
var ErrProvider = errors.New("answer: provider failed")

// Provider is one answer-generating backend.
type Provider interface {
	Name() string
	Query(ctx context.Context, text string) (string, error)
}

// Timeouter is implemented by providers with their own call timeout.
type Timeouter interface {
	Timeout() time.Duration
}

const (
	// DefaultFallback is returned when every provider fails.
	DefaultFallback = "Sorry, I can't answer that right now. Please try again later."

	defaultCacheTTL    = time.Hour
	defaultTimeout     = 15 * time.Second
	defaultMaxRunes    = 3500
	cacheKeyQueryRunes = 50
)

// ChainOptions configures NewChain.
type ChainOptions struct {
	Providers []Provider
	Store     kv.Store
	// CacheTTL bounds cached answers; 0 -> 1h.
	CacheTTL time.Duration
	// Timeout bounds providers that do not implement Timeouter; 0 -> 15s.
	Timeout time.Duration
	// MaxAnswerRunes caps answers; 0 -> 3500.
	MaxAnswerRunes int
	Fallback       string
}

// Chain queries providers in order until one answers.
type Chain struct {
	providers []Provider
	store     kv.Store
	ttl       time.Duration
	timeout   time.Duration
	maxRunes  int
	fallback  string
}

// NewChain builds a Chain. An empty provider list is valid and always yields the fallback.
func NewChain(opts ChainOptions) (*Chain, error) {
	if opts.Store == nil {
		return nil, errors.New("answer: nil store")
	}
	for i, p := range opts.Providers {
		if p == nil {
			return nil, errors.New("answer: nil provider at index " + strconv.Itoa(i))
		}
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = defaultCacheTTL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.MaxAnswerRunes <= 0 {
		opts.MaxAnswerRunes = defaultMaxRunes
	}
	if strings.TrimSpace(opts.Fallback) == "" {
		opts.Fallback = DefaultFallback
	}
	return &Chain{
		providers: append([]Provider(nil), opts.Providers...),
		store:     opts.Store,
		ttl:       opts.CacheTTL,
		timeout:   opts.Timeout,
		maxRunes:  opts.MaxAnswerRunes,
		fallback:  opts.Fallback,
	}, nil
}

// Fallback returns the text used when no provider answers.
func (c *Chain) Fallback() string { return c.fallback }

// Answer returns a displayable answer for query. It never fails: a cached
// answer wins, then the first provider with a non-empty answer, then the fallback.
func (c *Chain) Answer(ctx context.Context, userID int64, query string) string {
	query = strings.TrimSpace(query)
	if query == "" {
		return c.fallback
	}
	key := CacheKey(userID, query)

	if cached, ok := c.cached(ctx, key); ok {
		metrics.ObserveAnswerCache(true)
		logger.AI.LogAttrs(ctx, slog.LevelDebug, "answer served from cache",
			slog.String("event", "ai.answer"),
			slog.String("cache", "hit"),
			slog.Int64("user_id", userID),
		)
		return cached
	}
	metrics.ObserveAnswerCache(false)

	for _, p := range c.providers {
		text, err := c.query(ctx, p, query)
		if err != nil {
			continue
		}
		if err := c.store.SetEX(ctx, key, text, c.ttl); err != nil {
			logger.AI.LogAttrs(ctx, slog.LevelWarn, "answer cache write failed",
				slog.String("event", "ai.cache"),
				slog.String("status", "fail"),
				slog.String("err", err.Error()),
			)
		}
		return text
	}

	logger.AI.LogAttrs(ctx, slog.LevelWarn, "all providers failed",
		slog.String("event", "ai.answer"),
		slog.String("status", "fail"),
		slog.Int64("user_id", userID),
		slog.Int("count", len(c.providers)),
	)
	return c.fallback
}

func (c *Chain) cached(ctx context.Context, key string) (string, bool) {
	v, err := c.store.Get(ctx, key)
	if err != nil {
		if !kv.IsMiss(err) {
			logger.AI.LogAttrs(ctx, slog.LevelWarn, "answer cache read failed",
				slog.String("event", "ai.cache"),
				slog.String("status", "fail"),
				slog.String("err", err.Error()),
			)
		}
		return "", false
	}
	return v, v != ""
}

// query runs one provider detached from the caller's cancellation and bounded by its timeout.
func (c *Chain) query(parent context.Context, p Provider, query string) (string, error) {
	timeout := c.timeout
	if t, ok := p.(Timeouter); ok && t.Timeout() > 0 {
		timeout = t.Timeout()
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), timeout)
	defer cancel()

	start := time.Now()
	raw, err := p.Query(ctx, query)
	took := logger.Took(start)
	text := ""
	if err == nil {
		text = c.clean(raw)
		if text == "" {
			err = errors.New("empty answer")
		}
	}
	if err != nil {
		metrics.ObserveProviderCall(p.Name(), "fail", took)
		logger.AI.LogAttrs(parent, slog.LevelWarn, "provider failed",
			slog.String("event", "ai.provider"),
			slog.String("status", "fail"),
			slog.String("provider", p.Name()),
			slog.Int64("duration_ms", took.Milliseconds()),
			slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
		)
		return "", err
	}
	metrics.ObserveProviderCall(p.Name(), "ok", took)
	logger.AI.LogAttrs(parent, slog.LevelInfo, "provider answered",
		slog.String("event", "ai.provider"),
		slog.String("status", "ok"),
		slog.String("provider", p.Name()),
		slog.Int("query_len", len([]rune(query))),
		slog.Int("answer_len", len([]rune(text))),
		slog.Int64("duration_ms", took.Milliseconds()),
	)
	return text, nil
}

func (c *Chain) clean(raw string) string {
	text := strings.TrimSpace(StripReasoning(raw))
	r := []rune(text)
	if len(r) > c.maxRunes {
		text = strings.TrimSpace(string(r[:c.maxRunes]))
	}
	return text
}

// StripReasoning drops a leading <think>...</think> block some models emit.
func StripReasoning(msg string) string {
	const closeTag = "</think>"
	if idx := strings.Index(msg, closeTag); idx != -1 {
		return strings.TrimSpace(msg[idx+len(closeTag):])
	}
	return msg
}

// CacheKey returns the answer cache key for a user and the first 50 runes of query.
func CacheKey(userID int64, query string) string {
	r := []rune(query)
	if len(r) > cacheKeyQueryRunes {
		r = r[:cacheKeyQueryRunes]
	}
	return "ai:answer:" + strconv.FormatInt(userID, 10) + ":" + string(r)
}
