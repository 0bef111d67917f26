package dialog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/m3rciful/assistbot/bot/coins"
	"github.com/m3rciful/assistbot/core/logger"
	"github.com/m3rciful/assistbot/core/metrics"
	"github.com/m3rciful/assistbot/core/telegram/state"
)

// Reply is the single response every routed event produces.
type Reply struct {
	Text string
	// ShowMenu asks the presentation layer to attach the main menu.
	ShowMenu bool
}

// Sessions is the slice of the session store the router needs.
type Sessions interface {
	SetMode(ctx context.Context, userID int64, mode state.Mode) error
	Mode(ctx context.Context, userID int64) state.Mode
	ClearMode(ctx context.Context, userID int64)
}

// Coins resolves and quotes coins.
type Coins interface {
	Resolve(ctx context.Context, input string) (string, error)
	Quote(ctx context.Context, id string) (coins.Quote, error)
}

// Answerer produces a displayable answer and never fails.
type Answerer interface {
	Answer(ctx context.Context, userID int64, query string) string
}

// Options configures New.
type Options struct {
	Sessions Sessions
	Coins    Coins
	Answerer Answerer
	Messages Messages
}

// Router applies the transition table to incoming events.
//
// Two concurrent messages of the same user may both observe an armed mode;
// the last clear wins and both are answered.
type Router struct {
	sessions Sessions
	coins    Coins
	answerer Answerer
	msgs     Messages
}

// New builds a Router.
func New(opts Options) (*Router, error) {
	if opts.Sessions == nil || opts.Coins == nil || opts.Answerer == nil {
		return nil, errors.New("dialog: sessions, coins and answerer are required")
	}
	return &Router{
		sessions: opts.Sessions,
		coins:    opts.Coins,
		answerer: opts.Answerer,
		msgs:     opts.Messages.withDefaults(),
	}, nil
}

// Select handles a menu selection event and arms its mode.
func (r *Router) Select(ctx context.Context, userID int64, ev Event) Reply {
	return r.fire(ctx, userID, ev, "")
}

// HandleText consumes a text message according to the armed mode.
func (r *Router) HandleText(ctx context.Context, userID int64, text string) Reply {
	return r.fire(ctx, userID, Text, text)
}

// Lookup runs the crypto branch directly without touching the session.
func (r *Router) Lookup(ctx context.Context, userID int64, text string) Reply {
	return r.lookup(ctx, userID, text)
}

func (r *Router) fire(ctx context.Context, userID int64, ev Event, text string) Reply {
	current := Idle
	if ev == Text {
		current = stateOf(r.sessions.Mode(ctx, userID))
	}
	t := next(current, ev)

	logger.Dialog.LogAttrs(ctx, slog.LevelDebug, "transition",
		slog.String("event", "dialog.transition"),
		slog.Int64("user_id", userID),
		slog.String("op", ev.String()),
		slog.String("mode", current.String()+"->"+t.next.String()),
	)

	switch t.action {
	case promptCrypto, promptAI, promptKnowledge:
		if err := r.sessions.SetMode(ctx, userID, modeOf(t.next)); err != nil {
			logger.Dialog.LogAttrs(ctx, slog.LevelWarn, "mode select failed",
				slog.String("event", "dialog.select"),
				slog.String("status", "fail"),
				slog.Int64("user_id", userID),
				slog.String("err", err.Error()),
			)
			return Reply{Text: r.msgs.Unavailable, ShowMenu: true}
		}
		return Reply{Text: r.prompt(t.action)}
	case lookupCoin:
		r.sessions.ClearMode(ctx, userID)
		return r.lookup(ctx, userID, text)
	case askProviders:
		r.sessions.ClearMode(ctx, userID)
		return Reply{Text: r.answerer.Answer(ctx, userID, text), ShowMenu: true}
	default:
		return Reply{Text: r.msgs.ChooseOption, ShowMenu: true}
	}
}

func (r *Router) prompt(a action) string {
	switch a {
	case promptCrypto:
		return r.msgs.PromptCrypto
	case promptKnowledge:
		return r.msgs.PromptKnowledge
	default:
		return r.msgs.PromptAI
	}
}

func (r *Router) lookup(ctx context.Context, userID int64, text string) Reply {
	input := strings.TrimSpace(text)
	id, err := r.coins.Resolve(ctx, input)
	if err == nil {
		var q coins.Quote
		q, err = r.coins.Quote(ctx, id)
		if err == nil {
			metrics.ObserveCoinLookup("ok")
			return Reply{Text: FormatQuote(q), ShowMenu: true}
		}
	}

	result := "not_found"
	reply := Reply{ShowMenu: true}
	switch {
	case errors.Is(err, coins.ErrRateLimited):
		result = "rate_limited"
		reply.Text = r.msgs.RateLimited
	case errors.Is(err, coins.ErrFormat):
		result = "format"
		reply.Text = fmt.Sprintf(r.msgs.FormatError, id)
	default:
		reply.Text = fmt.Sprintf(r.msgs.NotFound, logger.SanitizeLimit(input, 32), strings.Join(r.msgs.HintSymbols, ", "))
	}
	metrics.ObserveCoinLookup(result)
	logger.Dialog.LogAttrs(ctx, slog.LevelInfo, "crypto lookup unanswered",
		slog.String("event", "dialog.lookup"),
		slog.String("outcome", result),
		slog.Int64("user_id", userID),
		slog.String("symbol", logger.SanitizeLimit(input, 32)),
		slog.String("err", err.Error()),
	)
	return reply
}
