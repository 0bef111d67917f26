package telegram

import (
	"net"
	"strconv"
	"time"

	coreconfig "github.com/m3rciful/assistbot/core/config"

	tele "gopkg.in/telebot.v4"
)

const defaultLongPoll = 10 * time.Second

// allowedUpdates limits delivery to what the bot routes.
var allowedUpdates = []string{"message", "callback_query"}

// BuildPoller derives the update source from the telegram and webhook
// sections of a normalized config.
func BuildPoller(cfg *coreconfig.Config) tele.Poller {
	if cfg.Telegram.RunMode == coreconfig.RunModeWebhook {
		return &tele.Webhook{
			Listen:         net.JoinHostPort(cfg.Webhook.Listen, strconv.Itoa(cfg.Webhook.Port)),
			AllowedUpdates: allowedUpdates,
			Endpoint:       &tele.WebhookEndpoint{PublicURL: cfg.Webhook.URL},
		}
	}
	wait := time.Duration(cfg.Telegram.LongPollTimeoutSeconds) * time.Second
	if wait <= 0 {
		wait = defaultLongPoll
	}
	return &tele.LongPoller{Timeout: wait, AllowedUpdates: allowedUpdates}
}

// longPollTimeout is the getUpdates wait of p, zero for webhooks.
func longPollTimeout(p tele.Poller) time.Duration {
	if lp, ok := p.(*tele.LongPoller); ok {
		return lp.Timeout
	}
	return 0
}
