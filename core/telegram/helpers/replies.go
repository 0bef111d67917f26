package helpers

import tele "gopkg.in/telebot.v4"

const (
	repliesKey  = "replies"
	keyboardKey = "kb"
)

// ResetReplies zeroes the reply counters of the current update.
func ResetReplies(c tele.Context) {
	c.Set(repliesKey, 0)
	c.Set(keyboardKey, false)
}

// MarkReply counts one reply queued for the current update.
// It runs on the handler goroutine, before the dispatcher sends anything.
func MarkReply(c tele.Context, keyboard bool) {
	n, _ := c.Get(repliesKey).(int)
	c.Set(repliesKey, n+1)
	if keyboard {
		c.Set(keyboardKey, true)
	}
}

// Replies returns how many replies were queued and whether any carried a keyboard.
func Replies(c tele.Context) (int, bool) {
	n, _ := c.Get(repliesKey).(int)
	kb, _ := c.Get(keyboardKey).(bool)
	return n, kb
}
