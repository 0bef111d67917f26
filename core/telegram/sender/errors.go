package sender

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/m3rciful/assistbot/core/telegram/netutil"

	tele "gopkg.in/telebot.v4"
)

var (
	// ErrQueueClosed is returned by Enqueue after Close.
	ErrQueueClosed = errors.New("telegram sender: queue closed")
	// ErrQueueFull is returned when the shard of the chat has no room left.
	ErrQueueFull = errors.New("telegram sender: queue full")
)

// APIStatus extracts the HTTP-like status of a Bot API error, or 0.
func APIStatus(err error) int {
	var (
		apiErr   *tele.Error
		floodErr tele.FloodError
		groupErr tele.GroupError
	)
	switch {
	case err == nil:
		return 0
	case errors.As(err, &apiErr):
		return apiErr.Code
	case errors.As(err, &floodErr):
		return http.StatusTooManyRequests
	case errors.As(err, &groupErr):
		return http.StatusBadRequest
	}
	// unwrapped errors render as "telegram: <description> (<code>)"
	msg := err.Error()
	open, end := strings.LastIndexByte(msg, '('), strings.LastIndexByte(msg, ')')
	if open < 0 || end <= open+1 {
		return 0
	}
	code, convErr := strconv.Atoi(strings.TrimSpace(msg[open+1 : end]))
	if convErr != nil {
		return 0
	}
	return code
}

// classify names a failed send for the err_code field.
func classify(err error) string {
	if err == nil {
		return ""
	}
	if kind := netutil.Kind(err); kind != "" {
		return kind
	}
	switch status := APIStatus(err); {
	case status == http.StatusTooManyRequests:
		return "flood"
	case status >= 500:
		return "http_5xx"
	case status >= 400:
		return "http_4xx"
	}
	return "unknown"
}
