// Package ui declares the replies used when an update matches no route.
package ui

import (
	tghelpers "github.com/m3rciful/assistbot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// Fallbacks answers updates that reach no registered handler.
// A nil field means the update is only logged.
type Fallbacks struct {
	// Command answers slash text with no registered command or alias.
	Command tele.HandlerFunc
	// Text answers plain text when the registry has no text fallback.
	Text tele.HandlerFunc
	// Media answers documents, photos, voice and other non-text messages.
	Media tele.HandlerFunc
	// Callback answers callback data with no registered handler.
	Callback tele.HandlerFunc
}

// Reply returns a handler that queues text as the answer.
func Reply(text string) tele.HandlerFunc {
	return func(c tele.Context) error {
		return tghelpers.SendText(c, text)
	}
}
