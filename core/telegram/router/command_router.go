package router

import (
	"log/slog"
	"maps"
	"slices"
	"time"

	"github.com/m3rciful/assistbot/core/logger"
	tg "github.com/m3rciful/assistbot/core/telegram"

	tele "gopkg.in/telebot.v4"
)

// CommandRoutes returns one route per command and per alias, sorted by
// command name. An alias shares the handler and log name of its command.
func CommandRoutes(reg *tg.Registry) []tg.Route {
	if reg == nil {
		return nil
	}
	cmds := reg.Commands()
	var routes []tg.Route
	for _, name := range slices.Sorted(maps.Keys(cmds)) {
		def := cmds[name]
		h := wrap(summarized(handlerName(name), def.Handler))
		routes = append(routes, tg.Route{Endpoint: name, Handler: h})
		for _, alias := range def.Aliases {
			routes = append(routes, tg.Route{Endpoint: alias, Handler: h})
		}
	}

	logger.LogEvent(logger.Background(), logger.TWire, slog.LevelInfo, "complete",
		slog.Int("count", len(routes)),
		slog.Int("commands", len(cmds)),
		slog.Int("callbacks", len(reg.ListCallbacks())),
	)
	return routes
}

func summarized(name string, h tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		return summary{handler: name, start: time.Now()}.run(c, bind(c, h))
	}
}
