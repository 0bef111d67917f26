package middleware

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/m3rciful/assistbot/core/logger"
	tghelpers "github.com/m3rciful/assistbot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// ErrPanic marks an error produced from a recovered handler panic.
var ErrPanic = errors.New("handler panic")

// RecoverMiddleware converts a handler panic into an ErrPanic error, so the
// bot error hook sends the usual failure reply and the poller keeps running.
func RecoverMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) (err error) {
		defer func() {
			r := recover()
			if r == nil {
				return
			}
			err = fmt.Errorf("%w: %v", ErrPanic, r)
			ctx := tghelpers.BuildContext(c)
			logger.LogEvent(ctx, logger.TG, slog.LevelError, "tg.panic",
				slog.String("status", "fail"),
				slog.String("handler", logger.HandlerFrom(ctx)),
				slog.String("err", logger.SanitizeLimit(fmt.Sprint(r), 256)),
				slog.String("stack", string(debug.Stack())),
			)
		}()
		return next(c)
	}
}
