package router

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/m3rciful/assistbot/core/logger"
	tghelpers "github.com/m3rciful/assistbot/core/telegram/helpers"
	"github.com/m3rciful/assistbot/core/telegram/middleware"
	"github.com/m3rciful/assistbot/core/telegram/sender"

	tele "gopkg.in/telebot.v4"
)

// summary describes how one routed update ended.
type summary struct {
	handler string
	start   time.Time
	status  string
	outcome string
	extras  []slog.Attr
}

// run executes fn and logs exactly one handler.handled line for it.
func (s summary) run(c tele.Context, fn func() error) error {
	tghelpers.WithHandler(c, s.handler)
	var err error
	if fn != nil {
		err = fn()
	}
	s.log(c, err)
	return err
}

func (s summary) log(c tele.Context, err error) {
	ctx := tghelpers.WithHandler(c, s.handler)
	msgs, kb := tghelpers.Replies(c)

	status, outcome := s.status, s.outcome
	if err != nil {
		status, outcome = orDefault(status, "fail"), orDefault(outcome, "fail")
	} else {
		status, outcome = orDefault(status, "ok"), orDefault(outcome, "ok")
	}

	attrs := []slog.Attr{
		slog.String("status", status),
		slog.String("handler", s.handler),
		slog.String("outcome", outcome),
		slog.Int("messages", msgs),
		slog.Bool("kb", kb),
		slog.Int64("duration_ms", logger.Took(s.start).Milliseconds()),
	}
	level := slog.LevelInfo
	if err != nil {
		level = slog.LevelWarn
		attrs = append(attrs,
			slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
			slog.String("err_code", errorCode(err)),
		)
	}
	logger.LogEvent(ctx, logger.TG, level, "handler.handled", append(attrs, s.extras...)...)
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func handlerName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	name = strings.TrimPrefix(name, "/")
	if name == "" {
		return "unknown"
	}
	return strings.ReplaceAll(name, " ", "_")
}

// errorCode maps handler errors to a short upper-case code for log filtering.
func errorCode(err error) string {
	var tgErr *tele.Error
	var flood tele.FloodError
	switch {
	case errors.Is(err, middleware.ErrPanic):
		return "PANIC"
	case errors.Is(err, sender.ErrQueueFull):
		return "QUEUE_FULL"
	case errors.Is(err, sender.ErrQueueClosed):
		return "QUEUE_CLOSED"
	case errors.Is(err, context.DeadlineExceeded):
		return "TIMEOUT"
	case errors.Is(err, context.Canceled):
		return "CANCELLED"
	case errors.As(err, &flood):
		return "TG_FLOOD"
	case errors.As(err, &tgErr):
		return fmt.Sprintf("TG_%d", tgErr.Code)
	}
	name := strings.TrimPrefix(fmt.Sprintf("%T", err), "*")
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		name = name[i+1:]
	}
	return strings.ToUpper(name)
}

func bind(c tele.Context, h tele.HandlerFunc) func() error {
	if h == nil {
		return nil
	}
	return func() error { return h(c) }
}

// wrap applies the per-route middleware: panic recovery outside, update context inside.
func wrap(h tele.HandlerFunc) tele.HandlerFunc {
	return middleware.RecoverMiddleware(middleware.LoggerMiddleware(h))
}
