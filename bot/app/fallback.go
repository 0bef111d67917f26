package app

import (
	"log/slog"

	"github.com/m3rciful/assistbot/core/logger"
	tghelpers "github.com/m3rciful/assistbot/core/telegram/helpers"
	"github.com/m3rciful/assistbot/core/telegram/ui"

	tele "gopkg.in/telebot.v4"
)

// Fallbacks returns the replies for updates that match no route.
// Unknown text and stale buttons bring the menu back.
func (a *App) Fallbacks() ui.Fallbacks {
	return ui.Fallbacks{
		Command:  ui.Reply(a.texts.UnknownCommand),
		Text:     a.menuReply(a.texts.UnknownText),
		Media:    ui.Reply(a.texts.NotText),
		Callback: a.menuReply(a.texts.Unsupported),
	}
}

func (a *App) menuReply(text string) tele.HandlerFunc {
	return func(c tele.Context) error {
		return a.sendMenu(tghelpers.BuildContext(c), c, text)
	}
}

func (a *App) onRateLimited(c tele.Context) error {
	if c.Callback() != nil {
		return tghelpers.Notify(c, a.texts.SlowDown)
	}
	return nil
}

// onError answers the user once for any handler error that reached telebot.
func (a *App) onError(err error, c tele.Context) {
	if c == nil {
		logger.TG.Error("bot error",
			slog.String("event", "tg.error"),
			slog.String("err", err.Error()),
		)
		return
	}
	ctx := tghelpers.BuildContext(c)
	logger.TG.LogAttrs(ctx, slog.LevelError, "handler error",
		slog.String("event", "tg.error"),
		slog.String("status", "fail"),
		slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
	)
	if c.Chat() == nil {
		return
	}
	if sendErr := c.Send(a.texts.Failure); sendErr != nil {
		logger.TG.LogAttrs(ctx, slog.LevelWarn, "error reply failed",
			slog.String("event", "tg.error"),
			slog.String("err", sendErr.Error()),
		)
	}
}

func withDefaultTexts(t Texts) Texts {
	d := DefaultTexts()
	fill := func(dst *string, def string) {
		if *dst == "" {
			*dst = def
		}
	}
	fill(&t.Welcome, d.Welcome)
	fill(&t.Help, d.Help)
	fill(&t.ChooseLayout, d.ChooseLayout)
	fill(&t.LayoutChanged, d.LayoutChanged)
	fill(&t.Cancelled, d.Cancelled)
	fill(&t.Tomorrow, d.Tomorrow)
	fill(&t.UnknownCommand, d.UnknownCommand)
	fill(&t.UnknownText, d.UnknownText)
	fill(&t.NotText, d.NotText)
	fill(&t.Unsupported, d.Unsupported)
	fill(&t.SlowDown, d.SlowDown)
	fill(&t.Failure, d.Failure)
	return t
}
