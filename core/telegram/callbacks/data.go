// Package callbacks decodes inline button callback data.
//
// Buttons built with tele.ReplyMarkup.Data carry "\f<unique>|<payload>".
// Raw "unique|payload" without the form feed is accepted too.
package callbacks

import (
	"strings"

	tele "gopkg.in/telebot.v4"
)

const (
	marker    = "\f"
	separator = "|"
)

// Split returns the callback key and payload of raw callback data.
// The payload is everything after the first separator.
func Split(data string) (key, payload string) {
	key, payload, _ = strings.Cut(strings.TrimPrefix(data, marker), separator)
	return strings.TrimSpace(key), payload
}

// Key returns the callback key of the update in c, or "" for non-callbacks.
func Key(c tele.Context) string {
	key, _ := parts(c.Callback())
	return key
}

// Payload returns the payload of the callback in c.
func Payload(c tele.Context) string {
	_, payload := parts(c.Callback())
	return payload
}

// parts prefers cb.Unique: once telebot has matched a unique endpoint,
// Data holds the bare payload.
func parts(cb *tele.Callback) (string, string) {
	switch {
	case cb == nil:
		return "", ""
	case cb.Unique != "":
		return cb.Unique, cb.Data
	default:
		return Split(cb.Data)
	}
}
