package router

import (
	"context"
	"errors"
	"fmt"
	"testing"

	tg "github.com/m3rciful/assistbot/core/telegram"
	"github.com/m3rciful/assistbot/core/telegram/commands"
	"github.com/m3rciful/assistbot/core/telegram/middleware"
	"github.com/m3rciful/assistbot/core/telegram/sender"
	"github.com/m3rciful/assistbot/core/telegram/ui"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"
)

type fakeContext struct {
	tele.Context
	update tele.Update
	values map[string]any
}

func textContext(text string) *fakeContext {
	return &fakeContext{update: tele.Update{ID: 10, Message: &tele.Message{
		Text:   text,
		Sender: &tele.User{ID: 1},
		Chat:   &tele.Chat{ID: 1, Type: tele.ChatPrivate},
	}}}
}

func callbackContext(data string) *fakeContext {
	return &fakeContext{update: tele.Update{ID: 11, Callback: &tele.Callback{
		Data:   data,
		Sender: &tele.User{ID: 1},
	}}}
}

func (c *fakeContext) Update() tele.Update      { return c.update }
func (c *fakeContext) Callback() *tele.Callback { return c.update.Callback }
func (c *fakeContext) Respond(...*tele.CallbackResponse) error {
	return nil
}

func (c *fakeContext) Text() string {
	if c.update.Message == nil {
		return ""
	}
	return c.update.Message.Text
}

func (c *fakeContext) Sender() *tele.User {
	if c.update.Callback != nil {
		return c.update.Callback.Sender
	}
	return c.update.Message.Sender
}

func (c *fakeContext) Chat() *tele.Chat {
	if c.update.Message == nil {
		return nil
	}
	return c.update.Message.Chat
}

func (c *fakeContext) Get(key string) any { return c.values[key] }

func (c *fakeContext) Set(key string, val any) {
	if c.values == nil {
		c.values = map[string]any{}
	}
	c.values[key] = val
}

func handlerFor(routes []tg.Route, endpoint any) tele.HandlerFunc {
	for _, r := range routes {
		if r.Endpoint == endpoint {
			return r.Handler
		}
	}
	return nil
}

func TestTextRoutes(t *testing.T) {
	var hits []string
	record := func(name string) tele.HandlerFunc {
		return func(tele.Context) error { hits = append(hits, name); return nil }
	}

	reg := tg.NewRegistry()
	require.NoError(t, reg.RegisterCommand("/crypto", commands.Command{Handler: record("crypto"), Description: "d", Aliases: []string{"price"}}))
	reg.SetTextFallback(record("dialog"))

	routes := TextRoutes(reg, ui.Fallbacks{
		Command: record("unknown_command"),
		Media:   record("media"),
	})
	text := handlerFor(routes, tele.OnText)
	require.NotNil(t, text)

	for _, in := range []string{"/PRICE btc", "/nope", "hello", "/"} {
		require.NoError(t, text(textContext(in)))
	}
	require.NoError(t, handlerFor(routes, tele.OnDocument)(textContext("")))
	require.NoError(t, handlerFor(routes, tele.OnVoice)(textContext("")))

	assert.Equal(t, []string{"crypto", "unknown_command", "dialog", "unknown_command", "media", "media"}, hits)
}

func TestTextRoutesWithoutFallbacks(t *testing.T) {
	routes := TextRoutes(tg.NewRegistry(), ui.Fallbacks{})
	assert.NoError(t, handlerFor(routes, tele.OnText)(textContext("hello")))
	assert.NoError(t, handlerFor(routes, tele.OnDocument)(textContext("")))
	assert.NoError(t, handlerFor(routes, tele.OnText)(textContext("/nope")))
}

func TestCallbackRoute(t *testing.T) {
	var got []string
	reg := tg.NewRegistry()
	require.NoError(t, reg.RegisterCallback("layout", func(tele.Context) error {
		got = append(got, "layout")
		return nil
	}))
	reg.SetCallbackNotFound(func(tele.Context) error {
		got = append(got, "missing")
		return nil
	})

	h := CallbackRoute(reg, ui.Fallbacks{}).Handler
	require.NoError(t, h(callbackContext("\flayout|grid")))
	require.NoError(t, h(callbackContext("\fgone")))
	assert.Equal(t, []string{"layout", "missing"}, got)
}

func TestCallbackRouteUsesFallback(t *testing.T) {
	var got []string
	fb := ui.Fallbacks{Callback: func(tele.Context) error {
		got = append(got, "fallback")
		return nil
	}}
	h := CallbackRoute(tg.NewRegistry(), fb).Handler
	require.NoError(t, h(callbackContext("\fstale")))
	assert.Equal(t, []string{"fallback"}, got)
}

func TestErrorCode(t *testing.T) {
	assert.Equal(t, "PANIC", errorCode(fmt.Errorf("%w: boom", middleware.ErrPanic)))
	assert.Equal(t, "QUEUE_FULL", errorCode(sender.ErrQueueFull))
	assert.Equal(t, "TIMEOUT", errorCode(fmt.Errorf("quote: %w", context.DeadlineExceeded)))
	assert.Equal(t, "TG_400", errorCode(&tele.Error{Code: 400, Description: "bad"}))
	assert.Equal(t, "ERRORSTRING", errorCode(errors.New("plain")))
}

func TestHandlerName(t *testing.T) {
	assert.Equal(t, "crypto", handlerName("/Crypto"))
	assert.Equal(t, "unknown", handlerName(" / "))
	assert.Equal(t, "menu_layout", handlerName("menu layout"))
}

func TestCommandRoutesCoverAliases(t *testing.T) {
	boom := errors.New("boom")
	reg := tg.NewRegistry()
	require.NoError(t, reg.RegisterCommand("/crypto", commands.Command{
		Handler:     func(tele.Context) error { return boom },
		Description: "d",
		Aliases:     []string{"price", "/p"},
	}))

	routes := CommandRoutes(reg)
	require.Len(t, routes, 3)
	for _, ep := range []string{"/crypto", "/price", "/p"} {
		h := handlerFor(routes, ep)
		require.NotNil(t, h, ep)
		assert.ErrorIs(t, h(textContext(ep)), boom)
	}
	assert.Nil(t, CommandRoutes(nil))
}
