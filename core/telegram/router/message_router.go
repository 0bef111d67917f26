package router

import (
	"strings"
	"time"

	tg "github.com/m3rciful/assistbot/core/telegram"
	"github.com/m3rciful/assistbot/core/telegram/ui"

	tele "gopkg.in/telebot.v4"
)

// mediaEndpoints are the non-text message kinds answered by fb.Media.
var mediaEndpoints = []string{
	tele.OnDocument,
	tele.OnPhoto,
	tele.OnVideo,
	tele.OnAnimation,
	tele.OnVoice,
	tele.OnVideoNote,
	tele.OnAudio,
	tele.OnSticker,
	tele.OnLocation,
	tele.OnContact,
}

// TextRoutes builds the text route and one route per media kind.
//
// Slash text is resolved through the registry, aliases included, so "/PRICE@bot btc"
// reaches /crypto. Unmatched slash text goes to fb.Command. Other text goes to the
// registry text fallback, or fb.Text when none is set.
func TextRoutes(reg *tg.Registry, fb ui.Fallbacks) []tg.Route {
	text := func(c tele.Context) error {
		start := time.Now()
		msg := strings.TrimSpace(c.Text())

		if strings.HasPrefix(msg, "/") {
			if reg != nil {
				if key, cmd, ok := reg.LookupCommand(msg); ok && cmd.Handler != nil {
					return summary{handler: handlerName(key), start: start}.run(c, bind(c, cmd.Handler))
				}
			}
			if fb.Command != nil {
				return summary{handler: "unknown_command", start: start, outcome: "not_found"}.run(c, bind(c, fb.Command))
			}
		}

		var h tele.HandlerFunc
		if reg != nil {
			h = reg.TextFallback()
		}
		if h != nil {
			return summary{handler: "text", start: start}.run(c, bind(c, h))
		}
		if fb.Text == nil {
			return summary{handler: "unknown_text", start: start, status: "skip"}.run(c, nil)
		}
		return summary{handler: "unknown_text", start: start}.run(c, bind(c, fb.Text))
	}

	media := func(c tele.Context) error {
		s := summary{handler: "unexpected_media", start: time.Now()}
		if fb.Media == nil {
			s.status = "skip"
		}
		return s.run(c, bind(c, fb.Media))
	}

	routes := make([]tg.Route, 0, len(mediaEndpoints)+1)
	routes = append(routes, tg.Route{Endpoint: tele.OnText, Handler: wrap(text)})
	mediaHandler := wrap(media)
	for _, ep := range mediaEndpoints {
		routes = append(routes, tg.Route{Endpoint: ep, Handler: mediaHandler})
	}
	return routes
}
