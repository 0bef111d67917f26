package middleware

import (
	"log/slog"
	"sync"
	"time"

	coreconfig "github.com/m3rciful/assistbot/core/config"
	"github.com/m3rciful/assistbot/core/logger"
	tghelpers "github.com/m3rciful/assistbot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// RateLimitOptions configures RateLimitMiddleware.
type RateLimitOptions struct {
	// Interval is the minimum gap between two updates of one user.
	Interval time.Duration
	// Exclude lists update kinds (see coreconfig.Update*) that are never limited.
	Exclude []string
	// OnLimited runs for a dropped update.
	OnLimited tele.HandlerFunc
	// Now overrides the clock.
	Now func() time.Time
}

// userGate remembers when each user was last let through.
type userGate struct {
	interval time.Duration
	now      func() time.Time

	mu    sync.Mutex
	seen  map[int64]time.Time
	swept time.Time
}

// pass records the update of user and reports whether it may proceed.
func (g *userGate) pass(user int64) bool {
	ts := g.now()
	g.mu.Lock()
	defer g.mu.Unlock()
	if ts.Sub(g.swept) > 100*g.interval {
		for id, at := range g.seen {
			if ts.Sub(at) >= g.interval {
				delete(g.seen, id)
			}
		}
		g.swept = ts
	}
	if at, ok := g.seen[user]; ok && ts.Sub(at) < g.interval {
		return false
	}
	g.seen[user] = ts
	return true
}

// RateLimitMiddleware drops updates that arrive from the same user within
// opts.Interval of the previous one. Updates without a sender pass.
func RateLimitMiddleware(opts RateLimitOptions) tele.MiddlewareFunc {
	if opts.Interval <= 0 {
		return func(next tele.HandlerFunc) tele.HandlerFunc { return next }
	}
	gate := &userGate{interval: opts.Interval, now: opts.Now, seen: make(map[int64]time.Time)}
	if gate.now == nil {
		gate.now = time.Now
	}
	exempt := make(map[string]bool, len(opts.Exclude))
	for _, kind := range opts.Exclude {
		exempt[kind] = true
	}

	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			user := c.Sender()
			if user == nil || exempt[limitKind(c.Update())] || gate.pass(user.ID) {
				return next(c)
			}
			logger.Warn(tghelpers.BuildContext(c), "tg", "tg.rate_limit",
				slog.String("status", "rate_limited"),
				slog.String("outcome", "skip"),
			)
			if opts.OnLimited != nil {
				_ = opts.OnLimited(c)
			}
			return nil
		}
	}
}

func limitKind(upd tele.Update) string {
	switch {
	case upd.Callback != nil:
		return coreconfig.UpdateCallback
	case upd.Query != nil:
		return coreconfig.UpdateInlineQuery
	case upd.Message != nil:
		return coreconfig.UpdateMessage
	}
	return ""
}
