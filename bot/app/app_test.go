package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/m3rciful/assistbot/bot/dialog"
	"github.com/m3rciful/assistbot/bot/lock"
	coreconfig "github.com/m3rciful/assistbot/core/config"
	"github.com/m3rciful/assistbot/core/kv"
	tg "github.com/m3rciful/assistbot/core/telegram"
	"github.com/m3rciful/assistbot/core/telegram/state"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"
)

const (
	listingJSON = `[{"id":"bitcoin","symbol":"btc","name":"Bitcoin"},{"id":"ethereum","symbol":"eth","name":"Ethereum"}]`
	bitcoinJSON = `{"id":"bitcoin","symbol":"btc","name":"Bitcoin","market_data":{
		"current_price":{"usd":64321.5},"price_change_percentage_24h":-1.23,"market_cap":{"usd":1265000000000}}}`
)

type sentMessage struct {
	text   string
	markup *tele.ReplyMarkup
	edit   bool
}

// fakeContext implements the parts of tele.Context the handlers touch.
type fakeContext struct {
	tele.Context
	update  tele.Update
	values  map[string]any
	sent    []sentMessage
	toasts  []string
	sendErr error
}

func newTextContext(userID int64, text string) *fakeContext {
	return &fakeContext{update: tele.Update{ID: 1, Message: &tele.Message{
		Text:   text,
		Sender: &tele.User{ID: userID},
		Chat:   &tele.Chat{ID: userID},
	}}}
}

func newCallbackContext(userID int64, unique, payload string) *fakeContext {
	data := "\f" + unique
	if payload != "" {
		data += "|" + payload
	}
	return &fakeContext{update: tele.Update{ID: 2, Callback: &tele.Callback{
		Data:    data,
		Sender:  &tele.User{ID: userID},
		Message: &tele.Message{Chat: &tele.Chat{ID: userID}},
	}}}
}

func (c *fakeContext) Update() tele.Update      { return c.update }
func (c *fakeContext) Message() *tele.Message   { return c.update.Message }
func (c *fakeContext) Callback() *tele.Callback { return c.update.Callback }
func (c *fakeContext) Text() string {
	if c.update.Message != nil {
		return c.update.Message.Text
	}
	return ""
}

func (c *fakeContext) Sender() *tele.User {
	if c.update.Callback != nil {
		return c.update.Callback.Sender
	}
	if c.update.Message != nil {
		return c.update.Message.Sender
	}
	return nil
}

func (c *fakeContext) Chat() *tele.Chat {
	if c.update.Callback != nil && c.update.Callback.Message != nil {
		return c.update.Callback.Message.Chat
	}
	if c.update.Message != nil {
		return c.update.Message.Chat
	}
	return nil
}

func (c *fakeContext) Get(key string) any {
	return c.values[key]
}

func (c *fakeContext) Set(key string, val any) {
	if c.values == nil {
		c.values = map[string]any{}
	}
	c.values[key] = val
}

func (c *fakeContext) Send(what any, opts ...any) error {
	return c.record(what, false, opts)
}

func (c *fakeContext) EditOrSend(what any, opts ...any) error {
	return c.record(what, true, opts)
}

func (c *fakeContext) Respond(resp ...*tele.CallbackResponse) error {
	for _, r := range resp {
		if r != nil {
			c.toasts = append(c.toasts, r.Text)
		}
	}
	return nil
}

func (c *fakeContext) record(what any, edit bool, opts []any) error {
	if c.sendErr != nil {
		return c.sendErr
	}
	msg := sentMessage{text: fmt.Sprint(what), edit: edit}
	for _, o := range opts {
		if so, ok := o.(*tele.SendOptions); ok && so != nil {
			msg.markup = so.ReplyMarkup
		}
	}
	c.sent = append(c.sent, msg)
	return nil
}

func (c *fakeContext) last(t *testing.T) sentMessage {
	t.Helper()
	require.NotEmpty(t, c.sent)
	return c.sent[len(c.sent)-1]
}

type fixture struct {
	app       *App
	store     *kv.Memory
	cfg       *coreconfig.Config
	quotes    atomic.Int32
	providers atomic.Int32
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{store: kv.NewMemory()}

	market := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/coins/list":
			_, _ = w.Write([]byte(listingJSON))
		case r.URL.Path == "/coins/bitcoin":
			f.quotes.Add(1)
			_, _ = w.Write([]byte(bitcoinJSON))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(market.Close)

	llm := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.providers.Add(1)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{"message": map[string]string{"role": "assistant", "content": "<think>sum</think>4"}}},
		})
	}))
	t.Cleanup(llm.Close)

	f.cfg = &coreconfig.Config{
		Telegram: coreconfig.TelegramConfig{Token: "123:test"},
		Redis:    coreconfig.RedisConfig{URL: "memory://"},
		Coins:    coreconfig.CoinsConfig{BaseURL: market.URL, Aliases: map[string]string{"BTC": "bitcoin"}},
		AI: coreconfig.AIConfig{Providers: []coreconfig.ProviderConfig{
			{Name: "primary", Kind: coreconfig.ProviderOpenAI, Endpoint: llm.URL, Model: "test"},
		}},
		Metrics: coreconfig.MetricsConfig{Listen: "127.0.0.1:0"},
	}
	require.NoError(t, coreconfig.Normalize(f.cfg))

	var err error
	f.app, err = New(Options{
		Config: f.cfg,
		Store:  f.store,
		Now:    func() time.Time { return time.Date(2024, time.December, 31, 12, 0, 0, 0, time.UTC) },
	})
	require.NoError(t, err)
	return f
}

func rowSizes(m *tele.ReplyMarkup) []int {
	sizes := make([]int, len(m.InlineKeyboard))
	for i, row := range m.InlineKeyboard {
		sizes[i] = len(row)
	}
	return sizes
}

func TestStartShowsMenuInStoredLayout(t *testing.T) {
	f := newFixture(t)
	c := newTextContext(7, "/start")
	require.NoError(t, f.app.handleStart(c))
	msg := c.last(t)
	assert.Equal(t, DefaultTexts().Welcome, msg.text)
	assert.Equal(t, []int{2, 2, 1}, rowSizes(msg.markup))

	require.NoError(t, f.app.handleLayout(newCallbackContext(7, cbLayout, "hybrid")))
	c = newTextContext(7, "/start")
	require.NoError(t, f.app.handleStart(c))
	assert.Equal(t, []int{1, 2, 2}, rowSizes(c.last(t).markup))
}

func TestCryptoButtonThenSymbol(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cb := newCallbackContext(9, cbCrypto, "")
	require.NoError(t, f.app.selectHandler(dialog.SelectCrypto)(cb))
	prompt := cb.last(t)
	assert.Contains(t, prompt.text, "crypto symbol")
	require.NotNil(t, prompt.markup)
	assert.Equal(t, cbCancel, prompt.markup.InlineKeyboard[0][0].Unique)
	assert.Equal(t, state.ModeCrypto, f.app.sessions.Mode(ctx, 9))

	msg := newTextContext(9, "btc")
	require.NoError(t, f.app.handleText(msg))
	reply := msg.last(t)
	assert.Contains(t, reply.text, "Bitcoin (BTC)")
	assert.Contains(t, reply.text, "64,321.50")
	assert.Equal(t, []int{2, 2, 1}, rowSizes(reply.markup))
	assert.Equal(t, state.ModeNone, f.app.sessions.Mode(ctx, 9))
	assert.Equal(t, int32(1), f.quotes.Load())
}

func TestCryptoCommand(t *testing.T) {
	f := newFixture(t)

	c := newTextContext(3, "/crypto notacoin")
	require.NoError(t, f.app.handleCrypto(c))
	assert.Contains(t, c.last(t).text, "Crypto data not available")

	c = newTextContext(3, "/crypto BTC")
	require.NoError(t, f.app.handleCrypto(c))
	assert.Contains(t, c.last(t).text, "Bitcoin (BTC)")
	assert.Equal(t, state.ModeNone, f.app.sessions.Mode(context.Background(), 3))

	c = newTextContext(3, "/crypto")
	require.NoError(t, f.app.handleCrypto(c))
	assert.Equal(t, state.ModeCrypto, f.app.sessions.Mode(context.Background(), 3))
}

func TestAIButtonUsesProviderAndCache(t *testing.T) {
	f := newFixture(t)

	for i := 0; i < 2; i++ {
		require.NoError(t, f.app.selectHandler(dialog.SelectAI)(newCallbackContext(5, cbAI, "")))
		c := newTextContext(5, "what is 2+2?")
		require.NoError(t, f.app.handleText(c))
		assert.Equal(t, "4", c.last(t).text)
	}
	assert.Equal(t, int32(1), f.providers.Load())
}

func TestIdleTextAsksForOption(t *testing.T) {
	f := newFixture(t)
	c := newTextContext(4, "hello")
	require.NoError(t, f.app.handleText(c))
	assert.Contains(t, c.last(t).text, "choose an option")
	assert.Zero(t, f.providers.Load())
}

func TestCancelClearsMode(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.app.selectHandler(dialog.SelectAI)(newCallbackContext(6, cbAI, "")))
	require.Equal(t, state.ModeAI, f.app.sessions.Mode(ctx, 6))

	c := newCallbackContext(6, cbCancel, "cancel")
	require.NoError(t, f.app.handleCancel(c))
	assert.Equal(t, state.ModeNone, f.app.sessions.Mode(ctx, 6))
	assert.Equal(t, DefaultTexts().Cancelled, c.last(t).text)
}

func TestDateHelp(t *testing.T) {
	f := newFixture(t)
	c := newCallbackContext(8, cbDate, "")
	require.NoError(t, f.app.handleDate(c))
	assert.Equal(t, "Tomorrow is 2025-01-01.", c.last(t).text)
}

func TestLayoutPicker(t *testing.T) {
	f := newFixture(t)

	c := newCallbackContext(2, cbLayout, "")
	require.NoError(t, f.app.handleLayout(c))
	picker := c.last(t)
	assert.True(t, picker.edit)
	assert.Equal(t, []int{1, 1, 1}, rowSizes(picker.markup))
	assert.True(t, strings.HasPrefix(picker.markup.InlineKeyboard[0][0].Text, "✅"))

	c = newCallbackContext(2, cbLayout, "list")
	require.NoError(t, f.app.handleLayout(c))
	assert.Equal(t, []int{1, 1, 1, 1, 1}, rowSizes(c.last(t).markup))
	assert.Equal(t, state.LayoutList, f.app.sessions.MenuLayout(context.Background(), 2))

	c = newCallbackContext(2, cbLayout, "diagonal")
	require.NoError(t, f.app.handleLayout(c))
	assert.Empty(t, c.sent)
	assert.Equal(t, []string{DefaultTexts().Unsupported}, c.toasts)
}

func TestHelpListsVisibleCommands(t *testing.T) {
	f := newFixture(t)
	c := newTextContext(1, "/help")
	require.NoError(t, f.app.handleHelp(c))
	text := c.last(t).text
	for _, cmd := range []string{"/start", "/help", "/menu", "/crypto", "/cancel"} {
		assert.Contains(t, text, cmd)
	}
}

func TestOnErrorRepliesOnce(t *testing.T) {
	f := newFixture(t)
	c := newTextContext(1, "x")
	f.app.onError(errors.New("boom"), c)
	require.Len(t, c.sent, 1)
	assert.Equal(t, "An error occurred. Please try again later.", c.sent[0].text)

	f.app.onError(errors.New("no context"), nil)
}

func TestRunOptionsWiring(t *testing.T) {
	f := newFixture(t)
	opts, err := f.app.TelegramRunOptions()
	require.NoError(t, err)

	names := make([]string, 0, len(opts.Workers))
	for _, w := range opts.Workers {
		names = append(names, w.Name)
	}
	assert.Equal(t, []string{"instance_lock", "metrics"}, names)
	assert.NotNil(t, opts.OnError)
	assert.NotEmpty(t, opts.Routes)
	assert.NotEmpty(t, opts.Middlewares)

	endpoints := map[any]bool{}
	for _, r := range opts.Routes {
		endpoints[r.Endpoint] = true
	}
	for _, e := range []any{"/start", "/crypto", "/price", tele.OnText, tele.OnCallback, tele.OnDocument} {
		assert.True(t, endpoints[e], "%v", e)
	}
	assert.Equal(t, []string{cbAI, cbCancel, cbCrypto, cbDate, cbKnowledge, cbLayout}, f.app.Registry().ListCallbacks())
}

func TestLeaseLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.app.onStart(ctx, tg.Runtime{}))
	owner, err := f.store.Get(ctx, f.cfg.Lock.Key)
	require.NoError(t, err)
	assert.Equal(t, f.app.lease.Token(), owner)

	other := lock.New(f.store, lock.Options{Key: f.cfg.Lock.Key, TTL: time.Second})
	assert.ErrorIs(t, other.MustAcquire(ctx), lock.ErrConflict)

	require.NoError(t, f.app.onStop(ctx, tg.Runtime{}))
	_, err = f.store.Get(ctx, f.cfg.Lock.Key)
	assert.True(t, kv.IsMiss(err))
}

func TestLockDisabled(t *testing.T) {
	f := newFixture(t)
	f.cfg.Lock.Disabled = true
	a, err := New(Options{Config: f.cfg, Store: f.store})
	require.NoError(t, err)
	assert.Nil(t, a.lease)
	require.NoError(t, a.onStart(context.Background(), tg.Runtime{}))

	opts, err := a.TelegramRunOptions()
	require.NoError(t, err)
	require.Len(t, opts.Workers, 1)
	assert.Equal(t, "metrics", opts.Workers[0].Name)
}

func TestWarmSeeder(t *testing.T) {
	f := newFixture(t)
	assert.Empty(t, f.app.Seeders())

	f.cfg.Coins.WarmOnStart = true
	seeders := f.app.Seeders()
	require.Len(t, seeders, 1)
	assert.Equal(t, "coins.warm", seeders[0].Name)
	require.NoError(t, seeders[0].Run(context.Background(), f.store))
	_, err := f.store.Get(context.Background(), "coins:listing")
	assert.NoError(t, err)
}
