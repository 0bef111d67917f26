package router

import (
	"log/slog"
	"time"

	tg "github.com/m3rciful/assistbot/core/telegram"
	"github.com/m3rciful/assistbot/core/telegram/callbacks"
	"github.com/m3rciful/assistbot/core/telegram/ui"

	tele "gopkg.in/telebot.v4"
)

// CallbackRoute dispatches inline button presses by callback key.
// Unknown keys go to the registry not-found handler, then to fb.Callback.
// The callback is acknowledged before the handler runs so the button stops spinning.
func CallbackRoute(reg *tg.Registry, fb ui.Fallbacks) tg.Route {
	handler := func(c tele.Context) error {
		if c.Callback() == nil {
			return nil
		}
		key := callbacks.Key(c)
		s := summary{
			handler: "callback." + handlerName(key),
			start:   time.Now(),
			extras:  []slog.Attr{slog.String("cb_key", key)},
		}
		_ = c.Respond()

		h, ok := reg.GetCallback(key)
		if !ok || h == nil {
			h = reg.CallbackNotFound()
			if h == nil {
				h = fb.Callback
			}
			s.outcome = "skip"
			s.extras = append(s.extras, slog.String("reason", "not_found"))
		}
		return s.run(c, bind(c, h))
	}
	return tg.Route{
		Endpoint: tele.OnCallback,
		Handler:  wrap(handler),
	}
}
