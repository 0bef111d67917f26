package middleware

import (
	"log/slog"

	"github.com/m3rciful/assistbot/core/logger"
	"github.com/m3rciful/assistbot/core/telegram/callbacks"
	tghelpers "github.com/m3rciful/assistbot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

const receivedKey = "update_received"

// LoggerMiddleware builds the update context and logs one sampled
// update.received line. It is applied globally and again on each route, so
// only the first pass over an update does any work.
func LoggerMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		if c.Get(receivedKey) != nil {
			return next(c)
		}
		c.Set(receivedKey, true)

		ctx := tghelpers.BuildContext(c)
		if logger.ShouldSampleDebug() {
			logger.LogEvent(ctx, logger.TG, slog.LevelDebug, "update.received", receivedAttrs(c)...)
		}
		return next(c)
	}
}

func receivedAttrs(c tele.Context) []slog.Attr {
	attrs := []slog.Attr{
		slog.String("status", "ok"),
		slog.String("op", UpdateKind(c.Update())),
	}
	if chat := c.Chat(); chat != nil {
		attrs = append(attrs, slog.String("chat_type", string(chat.Type)))
	}
	if user := c.Sender(); user != nil {
		if user.Username != "" {
			attrs = append(attrs, slog.String("username", logger.SanitizeLimit(user.Username, 64)))
		}
		if user.LanguageCode != "" {
			attrs = append(attrs, slog.String("lang", user.LanguageCode))
		}
	}
	upd := c.Update()
	switch {
	case upd.Callback != nil:
		attrs = append(attrs,
			slog.String("cb_key", logger.SanitizeLimit(callbacks.Key(c), 128)),
			slog.String("payload", logger.SanitizeLimit(callbacks.Payload(c), 256)),
		)
	case upd.Message != nil:
		// only the size of user text is logged
		attrs = append(attrs, slog.Int("query_len", len([]rune(c.Text()))))
	}
	return attrs
}
