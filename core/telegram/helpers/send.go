package helpers

import (
	"errors"
	"log/slog"
	"strings"
	"sync/atomic"
	"unicode/utf8"

	"github.com/m3rciful/assistbot/core/logger"
	"github.com/m3rciful/assistbot/core/telegram/sender"

	tele "gopkg.in/telebot.v4"
)

// MaxMessageRunes is the Bot API limit on the text of one message.
const MaxMessageRunes = 4096

var dispatcher atomic.Pointer[sender.Dispatcher]

// SetDispatcher wires the asynchronous sender used by the send helpers.
// Nil makes them call the Bot API inline.
func SetDispatcher(d *sender.Dispatcher) {
	dispatcher.Store(d)
}

// outbound describes one Bot API call made on behalf of a handler.
type outbound struct {
	action   string
	endpoint string
	keyboard bool
	run      func() error
}

// queue counts the reply and hands it to the dispatcher. A full or closed
// queue degrades to an inline call so the user still gets an answer.
func queue(c tele.Context, o outbound) error {
	MarkReply(c, o.keyboard)
	d := dispatcher.Load()
	if d == nil {
		return o.run()
	}
	ctx := BuildContext(c)
	err := d.Enqueue(ctx, o.action, o.endpoint, o.run)
	if errors.Is(err, sender.ErrQueueFull) || errors.Is(err, sender.ErrQueueClosed) {
		logger.Warn(ctx, "tg.sender", "queue.fallback",
			slog.String("op", o.action),
			slog.String("handler", o.endpoint),
			slog.String("err", err.Error()),
		)
		return o.run()
	}
	return err
}

// SendText sends text to the current chat, split into several messages
// when it exceeds MaxMessageRunes.
func SendText(c tele.Context, text string) error {
	return SendWithMarkup(c, text, nil)
}

// SendWithMarkup sends text with markup attached to the last part.
func SendWithMarkup(c tele.Context, text string, markup *tele.ReplyMarkup) error {
	parts := SplitMessage(text, MaxMessageRunes)
	for i, part := range parts {
		opts := &tele.SendOptions{DisableWebPagePreview: true}
		action := "send.text"
		if i == len(parts)-1 && markup != nil {
			opts.ReplyMarkup = markup
			action = "send.markup"
		}
		err := queue(c, outbound{
			action:   action,
			endpoint: "sendMessage",
			keyboard: opts.ReplyMarkup != nil,
			run:      func() error { return c.Send(part, opts) },
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// EditOrSendText replaces the message a callback came from, or sends a new one.
func EditOrSendText(c tele.Context, text string, markup *tele.ReplyMarkup) error {
	return queue(c, outbound{
		action:   "edit.text",
		endpoint: "editMessageText",
		keyboard: markup != nil,
		run: func() error {
			return c.EditOrSend(text, &tele.SendOptions{ReplyMarkup: markup, DisableWebPagePreview: true})
		},
	})
}

// Notify answers a callback query with a short toast; empty text just clears the spinner.
func Notify(c tele.Context, text string) error {
	if c.Callback() == nil {
		return nil
	}
	return c.Respond(&tele.CallbackResponse{Text: text})
}

// SplitMessage cuts text into parts of at most limit runes, preferring to
// break after a newline, then after a space. Empty text yields one empty part.
func SplitMessage(text string, limit int) []string {
	if limit <= 0 || utf8.RuneCountInString(text) <= limit {
		return []string{text}
	}
	var parts []string
	for utf8.RuneCountInString(text) > limit {
		cut := runeOffset(text, limit)
		if i := strings.LastIndexByte(text[:cut], '\n'); i > 0 {
			cut = i + 1
		} else if i := strings.LastIndexByte(text[:cut], ' '); i > 0 {
			cut = i + 1
		}
		parts = append(parts, text[:cut])
		text = text[cut:]
	}
	if text != "" {
		parts = append(parts, text)
	}
	return parts
}

// runeOffset is the byte offset of the n-th rune of s.
func runeOffset(s string, n int) int {
	for i := range s {
		if n == 0 {
			return i
		}
		n--
	}
	return len(s)
}
