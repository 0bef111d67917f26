package middleware

import (
	"github.com/m3rciful/assistbot/core/metrics"
	tghelpers "github.com/m3rciful/assistbot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// MessageMetricsMiddleware reports each update's kind and outcome, and the
// replies its handler queued through the helpers package.
func MessageMetricsMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		tghelpers.ResetReplies(c)
		err := next(c)

		outcome := "ok"
		if err != nil {
			outcome = "fail"
		}
		metrics.ObserveUpdate(UpdateKind(c.Update()), outcome)
		metrics.ObserveMessages(tghelpers.Replies(c))
		return err
	}
}

// UpdateKind classifies an update for metric labels and rate limit exclusions.
func UpdateKind(upd tele.Update) string {
	msg := upd.Message
	switch {
	case upd.Callback != nil:
		return "callback"
	case msg == nil:
		return "other"
	case msg.Text == "":
		return "message"
	case msg.Text[0] == '/':
		return "command"
	default:
		return "text"
	}
}
