package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"sort"
	"strings"
	"sync"

	"github.com/m3rciful/assistbot/core/logger"
	"github.com/m3rciful/assistbot/core/telegram/commands"

	tele "gopkg.in/telebot.v4"
)

var (
	// ErrInvalidRoute is returned for a registration with no name, handler or description.
	ErrInvalidRoute = errors.New("telegram: invalid registration")
	// ErrDuplicateRoute is returned when a command, alias or callback key is taken.
	ErrDuplicateRoute = errors.New("telegram: already registered")
)

// Registry maps slash commands, their aliases and callback keys to handlers.
// Command names and aliases are stored lower-case with a leading slash.
type Registry struct {
	mu               sync.RWMutex
	commands         map[string]commands.Command
	aliases          map[string]string
	callbacks        map[string]tele.HandlerFunc
	callbackNotFound tele.HandlerFunc
	textFallback     tele.HandlerFunc
}

// NewRegistry returns an empty registry whose unknown-callback handler
// just shows an "Unsupported action" toast.
func NewRegistry() *Registry {
	return &Registry{
		commands:  make(map[string]commands.Command),
		aliases:   make(map[string]string),
		callbacks: make(map[string]tele.HandlerFunc),
		callbackNotFound: func(c tele.Context) error {
			_ = c.Respond(&tele.CallbackResponse{Text: "Unsupported action"})
			return nil
		},
	}
}

// commandKey turns "/Price@assist_bot btc" or "price" into "/price".
func commandKey(raw string) string {
	if fields := strings.Fields(raw); len(fields) > 0 {
		raw = fields[0]
	} else {
		return ""
	}
	if at := strings.IndexByte(raw, '@'); at > 0 {
		raw = raw[:at]
	}
	raw = strings.ToLower(raw)
	if raw == "/" {
		return ""
	}
	if !strings.HasPrefix(raw, "/") {
		raw = "/" + raw
	}
	return raw
}

// RegisterCommand adds cmd under name, which must start with a slash.
// Aliases may be given with or without the slash.
func (r *Registry) RegisterCommand(name string, cmd commands.Command) error {
	if name == "" || name[0] != '/' || !cmd.Valid() {
		r.warn("register.command.skip", slog.String("key", name), slog.String("cause", "invalid"))
		return fmt.Errorf("%w: command %q", ErrInvalidRoute, name)
	}
	key := commandKey(name)

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.takenLocked(key) {
		r.warn("register.command.duplicate", slog.String("key", key))
		return fmt.Errorf("%w: command %s", ErrDuplicateRoute, key)
	}
	aliases := make([]string, 0, len(cmd.Aliases))
	for _, a := range cmd.Aliases {
		ak := commandKey(a)
		if ak == "" {
			continue
		}
		if ak == key || r.takenLocked(ak) {
			r.warn("register.command.duplicate", slog.String("key", ak))
			return fmt.Errorf("%w: alias %s", ErrDuplicateRoute, ak)
		}
		aliases = append(aliases, ak)
	}
	cmd.Aliases = aliases
	r.commands[key] = cmd
	for _, ak := range aliases {
		r.aliases[ak] = key
	}
	return nil
}

func (r *Registry) takenLocked(key string) bool {
	_, cmd := r.commands[key]
	_, alias := r.aliases[key]
	return cmd || alias
}

// LookupCommand resolves text such as "/price@bot eth" to the canonical
// command key. Arguments and a bot mention are ignored.
func (r *Registry) LookupCommand(text string) (string, commands.Command, bool) {
	key := commandKey(text)
	if key == "" {
		return "", commands.Command{}, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if canonical, ok := r.aliases[key]; ok {
		key = canonical
	}
	cmd, ok := r.commands[key]
	if !ok {
		return "", commands.Command{}, false
	}
	return key, cmd, true
}

// ListCommands returns commands sorted by name for the Telegram menu.
// Hidden commands are left out when visibleOnly is set.
func (r *Registry) ListCommands(visibleOnly bool) []tele.Command {
	r.mu.RLock()
	defer r.mu.RUnlock()
	list := make([]tele.Command, 0, len(r.commands))
	for key, cmd := range r.commands {
		if !visibleOnly {
			list = append(list, tele.Command{Text: key, Description: cmd.Description})
		} else if entry, ok := cmd.MenuEntry(key); ok {
			list = append(list, entry)
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Text < list[j].Text })
	return list
}

// Commands returns a copy of the registered commands keyed by name.
func (r *Registry) Commands() map[string]commands.Command {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return maps.Clone(r.commands)
}

// RegisterCallback maps a callback key to its handler.
func (r *Registry) RegisterCallback(key string, handler tele.HandlerFunc) error {
	if key == "" || handler == nil {
		r.warn("register.callback.skip", slog.String("cb_key", key), slog.Bool("handler_nil", handler == nil))
		return fmt.Errorf("%w: callback %q", ErrInvalidRoute, key)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.callbacks[key]; exists {
		r.warn("register.callback.duplicate", slog.String("cb_key", key))
		return fmt.Errorf("%w: callback %s", ErrDuplicateRoute, key)
	}
	r.callbacks[key] = handler
	return nil
}

// GetCallback returns the handler registered for key.
func (r *Registry) GetCallback(key string) (tele.HandlerFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.callbacks[key]
	return h, ok
}

// ListCallbacks returns the registered callback keys, sorted.
func (r *Registry) ListCallbacks() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]string, 0, len(r.callbacks))
	for k := range r.callbacks {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// SetCallbackNotFound replaces the unknown-callback handler. Nil is ignored.
func (r *Registry) SetCallbackNotFound(h tele.HandlerFunc) {
	if h == nil {
		return
	}
	r.mu.Lock()
	r.callbackNotFound = h
	r.mu.Unlock()
}

// CallbackNotFound returns the unknown-callback handler.
func (r *Registry) CallbackNotFound() tele.HandlerFunc {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.callbackNotFound
}

// SetTextFallback sets the handler for text that is not a command.
func (r *Registry) SetTextFallback(h tele.HandlerFunc) {
	r.mu.Lock()
	r.textFallback = h
	r.mu.Unlock()
}

// TextFallback returns the handler for text that is not a command.
func (r *Registry) TextFallback() tele.HandlerFunc {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.textFallback
}

func (r *Registry) warn(event string, attrs ...slog.Attr) {
	logger.LogEvent(context.Background(), logger.TWire, slog.LevelWarn, event, attrs...)
}

// InitBotCommands publishes the visible commands to the Telegram command menu.
func InitBotCommands(bot *tele.Bot, reg *Registry) {
	list := reg.ListCommands(true)
	if err := bot.SetCommands(list); err != nil {
		logger.LogEvent(context.Background(), logger.TWire, slog.LevelError, "register.commands.set_failed",
			slog.String("status", "fail"),
			slog.Int("count", len(list)),
			slog.String("err", err.Error()),
		)
	}
}
