// Package app wires the assistant bot: commands, menu callbacks and the dialog
// router on top of the shared Telegram runtime.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/m3rciful/assistbot/bot/answer"
	"github.com/m3rciful/assistbot/bot/coins"
	"github.com/m3rciful/assistbot/bot/dialog"
	"github.com/m3rciful/assistbot/bot/lock"
	"github.com/m3rciful/assistbot/core/bootstrap"
	coreconfig "github.com/m3rciful/assistbot/core/config"
	"github.com/m3rciful/assistbot/core/kv"
	"github.com/m3rciful/assistbot/core/logger"
	"github.com/m3rciful/assistbot/core/metrics"
	tg "github.com/m3rciful/assistbot/core/telegram"
	"github.com/m3rciful/assistbot/core/telegram/router"
	"github.com/m3rciful/assistbot/core/telegram/state"
)

// Options configures New.
type Options struct {
	Config *coreconfig.Config
	Store  kv.Store
	// HTTPClient is used for market data; nil uses a client with the configured timeout.
	HTTPClient *http.Client
	// Now overrides the clock of the date helper.
	Now   func() time.Time
	Texts Texts
}

// App holds the wired bot components.
type App struct {
	cfg      *coreconfig.Config
	store    kv.Store
	sessions *state.Store
	resolver *coins.Resolver
	chain    *answer.Chain
	dialog   *dialog.Router
	lease    *lock.Lock
	registry *tg.Registry
	texts    Texts
	now      func() time.Time
}

// New builds the application from configuration and an open store.
func New(opts Options) (*App, error) {
	if opts.Config == nil {
		return nil, errors.New("app: nil config")
	}
	if opts.Store == nil {
		return nil, errors.New("app: nil store")
	}
	cfg := opts.Config

	sessions := state.NewStore(opts.Store)

	resolver, err := coins.New(coins.Options{
		Source: coins.NewClient(coins.ClientOptions{
			BaseURL:      cfg.Coins.BaseURL,
			APIKey:       cfg.Coins.APIKey,
			APIKeyHeader: cfg.Coins.APIKeyHeader,
			Timeout:      cfg.Coins.Timeout(),
			HTTPClient:   opts.HTTPClient,
		}),
		Store:      opts.Store,
		Aliases:    cfg.Coins.Aliases,
		ListingTTL: cfg.Coins.ListingTTL(),
	})
	if err != nil {
		return nil, fmt.Errorf("app: coins: %w", err)
	}

	providers, err := answer.FromConfig(cfg.AI.Providers)
	if err != nil {
		return nil, fmt.Errorf("app: providers: %w", err)
	}
	chain, err := answer.NewChain(answer.ChainOptions{
		Providers:      providers,
		Store:          opts.Store,
		CacheTTL:       cfg.AI.CacheTTL(),
		MaxAnswerRunes: cfg.AI.MaxAnswerRunes,
		Fallback:       cfg.AI.Fallback,
	})
	if err != nil {
		return nil, fmt.Errorf("app: answer chain: %w", err)
	}

	msgs := dialog.DefaultMessages()
	if len(cfg.Menu.HintSymbols) > 0 {
		msgs.HintSymbols = cfg.Menu.HintSymbols
	}
	dr, err := dialog.New(dialog.Options{
		Sessions: sessions,
		Coins:    resolver,
		Answerer: chain,
		Messages: msgs,
	})
	if err != nil {
		return nil, fmt.Errorf("app: dialog: %w", err)
	}

	a := &App{
		cfg:      cfg,
		store:    opts.Store,
		sessions: sessions,
		resolver: resolver,
		chain:    chain,
		dialog:   dr,
		registry: tg.NewRegistry(),
		texts:    withDefaultTexts(opts.Texts),
		now:      opts.Now,
	}
	if a.now == nil {
		a.now = time.Now
	}
	if !cfg.Lock.Disabled {
		a.lease = lock.New(opts.Store, lock.Options{Key: cfg.Lock.Key, TTL: cfg.Lock.TTL()})
	}
	if err := a.register(); err != nil {
		return nil, err
	}
	return a, nil
}

// Registry exposes the command and callback registry.
func (a *App) Registry() *tg.Registry { return a.registry }

// Seeders returns the startup hooks run by the bootstrap pipeline.
func (a *App) Seeders() []bootstrap.Seeder {
	if !a.cfg.Coins.WarmOnStart {
		return nil
	}
	return []bootstrap.Seeder{{Name: "coins.warm", Run: func(ctx context.Context, _ kv.Store) error {
		return a.resolver.Warm(ctx)
	}}}
}

// TelegramRunOptions assembles routes, middlewares, workers and lifecycle hooks.
func (a *App) TelegramRunOptions() (tg.RunOptions, error) {
	fb := a.Fallbacks()

	routes := router.CommandRoutes(a.registry)
	routes = append(routes, router.CallbackRoute(a.registry, fb))
	routes = append(routes, router.TextRoutes(a.registry, fb)...)

	var workers []tg.Worker
	if a.lease != nil {
		workers = append(workers, tg.Worker{Name: "instance_lock", Run: a.lease.Keep})
	}
	if addr := a.cfg.Metrics.Listen; addr != "" {
		workers = append(workers, tg.Worker{Name: "metrics", Run: func(ctx context.Context) error {
			return metrics.Serve(ctx, addr)
		}})
	}

	return tg.RunOptions{
		Config:      a.cfg,
		Registry:    a.registry,
		Middlewares: tg.DefaultMiddlewares(a.cfg, a.onRateLimited),
		Routes:      routes,
		Workers:     workers,
		OnError:     a.onError,
		OnStart:     a.onStart,
		OnStop:      a.onStop,
	}, nil
}

func (a *App) onStart(ctx context.Context, _ tg.Runtime) error {
	if a.lease == nil {
		logger.Lock.LogAttrs(ctx, slog.LevelWarn, "instance lock disabled",
			slog.String("event", "lock.acquire"),
			slog.String("outcome", "skip"),
		)
		return nil
	}
	return a.lease.MustAcquire(ctx)
}

func (a *App) onStop(ctx context.Context, _ tg.Runtime) error {
	if a.lease != nil {
		a.lease.Release(ctx)
	}
	return a.store.Close()
}
