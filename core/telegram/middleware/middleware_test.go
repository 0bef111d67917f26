package middleware

import (
	"errors"
	"testing"
	"time"

	"github.com/m3rciful/assistbot/core/logger"
	tghelpers "github.com/m3rciful/assistbot/core/telegram/helpers"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"
)

type fakeContext struct {
	tele.Context
	update tele.Update
	values map[string]any
}

func messageFrom(userID int64, text string) *fakeContext {
	return &fakeContext{update: tele.Update{ID: int(userID), Message: &tele.Message{
		Text:   text,
		Sender: &tele.User{ID: userID},
		Chat:   &tele.Chat{ID: userID},
	}}}
}

func (c *fakeContext) Update() tele.Update { return c.update }
func (c *fakeContext) Text() string        { return c.update.Message.Text }
func (c *fakeContext) Sender() *tele.User  { return c.update.Message.Sender }
func (c *fakeContext) Chat() *tele.Chat    { return c.update.Message.Chat }
func (c *fakeContext) Get(key string) any  { return c.values[key] }
func (c *fakeContext) Set(key string, val any) {
	if c.values == nil {
		c.values = map[string]any{}
	}
	c.values[key] = val
}
func (c *fakeContext) Send(any, ...any) error { return nil }

func TestUpdateKind(t *testing.T) {
	assert.Equal(t, "callback", UpdateKind(tele.Update{Callback: &tele.Callback{}}))
	assert.Equal(t, "command", UpdateKind(tele.Update{Message: &tele.Message{Text: "/start"}}))
	assert.Equal(t, "text", UpdateKind(tele.Update{Message: &tele.Message{Text: "btc"}}))
	assert.Equal(t, "message", UpdateKind(tele.Update{Message: &tele.Message{}}))
	assert.Equal(t, "other", UpdateKind(tele.Update{}))
}

func TestRecoverMiddlewareTurnsPanicIntoError(t *testing.T) {
	h := RecoverMiddleware(func(tele.Context) error { panic("kaboom") })
	err := h(messageFrom(1, "x"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPanic)
	assert.Contains(t, err.Error(), "kaboom")

	plain := errors.New("plain")
	assert.ErrorIs(t, RecoverMiddleware(func(tele.Context) error { return plain })(messageFrom(1, "x")), plain)
}

func TestRateLimitMiddleware(t *testing.T) {
	now := time.Unix(1000, 0)
	var limited int
	mw := RateLimitMiddleware(RateLimitOptions{
		Interval:  time.Second,
		Now:       func() time.Time { return now },
		OnLimited: func(tele.Context) error { limited++; return nil },
	})
	var handled int
	h := mw(func(tele.Context) error { handled++; return nil })

	require.NoError(t, h(messageFrom(1, "a")))
	require.NoError(t, h(messageFrom(1, "b")))
	require.NoError(t, h(messageFrom(2, "c")))
	now = now.Add(1100 * time.Millisecond)
	require.NoError(t, h(messageFrom(1, "d")))

	assert.Equal(t, 3, handled)
	assert.Equal(t, 1, limited)
}

func TestRateLimitExclusions(t *testing.T) {
	mw := RateLimitMiddleware(RateLimitOptions{
		Interval: time.Hour,
		Exclude:  []string{"message"},
	})
	var handled int
	h := mw(func(tele.Context) error { handled++; return nil })
	for i := 0; i < 3; i++ {
		require.NoError(t, h(messageFrom(1, "x")))
	}
	assert.Equal(t, 3, handled)
}

func TestRateLimitDisabled(t *testing.T) {
	var handled int
	h := RateLimitMiddleware(RateLimitOptions{})(func(tele.Context) error { handled++; return nil })
	for i := 0; i < 3; i++ {
		require.NoError(t, h(messageFrom(1, "x")))
	}
	assert.Equal(t, 3, handled)
}

func TestMessageMetricsCountsQueuedReplies(t *testing.T) {
	c := messageFrom(1, "x")
	h := MessageMetricsMiddleware(func(c tele.Context) error {
		require.NoError(t, tghelpers.SendText(c, "one"))
		return tghelpers.SendWithMarkup(c, "two", &tele.ReplyMarkup{})
	})
	require.NoError(t, h(c))
	msgs, kb := tghelpers.Replies(c)
	assert.Equal(t, 2, msgs)
	assert.True(t, kb)

	require.NoError(t, MessageMetricsMiddleware(func(tele.Context) error { return nil })(c))
	msgs, kb = tghelpers.Replies(c)
	assert.Zero(t, msgs)
	assert.False(t, kb)
}

func TestLoggerMiddlewareRunsOncePerUpdate(t *testing.T) {
	c := messageFrom(7, "hello")
	var calls int
	h := LoggerMiddleware(LoggerMiddleware(func(c tele.Context) error {
		calls++
		ctx, ok := tghelpers.ContextFrom(c)
		require.True(t, ok)
		assert.Equal(t, int64(7), logger.UserIDFrom(ctx))
		return nil
	}))
	require.NoError(t, h(c))
	assert.Equal(t, 1, calls)
	assert.Equal(t, true, c.Get(receivedKey))
}
