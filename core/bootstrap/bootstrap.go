// Package bootstrap prepares shared infrastructure before the bot starts.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	coreconfig "github.com/m3rciful/assistbot/core/config"
	"github.com/m3rciful/assistbot/core/kv"
	"github.com/m3rciful/assistbot/core/logger"
)

// Options control the generic bootstrap pipeline shared between bots.
type Options struct {
	Config *coreconfig.Config

	LoggerInit func(*coreconfig.Config) error
	OpenStore  func(ctx context.Context, url string, opTimeout time.Duration) (kv.Store, error)
}

// Result exposes infrastructure initialized by the bootstrap pipeline.
type Result struct {
	Store kv.Store
}

// Run initializes the logger and opens the key/value store.
func Run(ctx context.Context, opts Options) (*Result, error) {
	if opts.Config == nil {
		return nil, fmt.Errorf("bootstrap: nil config provided")
	}

	loggerInit := opts.LoggerInit
	if loggerInit == nil {
		loggerInit = logger.InitLogger
	}
	if err := loggerInit(opts.Config); err != nil {
		return nil, fmt.Errorf("bootstrap: logger init failed: %w", err)
	}

	open := opts.OpenStore
	if open == nil {
		open = kv.Open
	}
	start := time.Now()
	store, err := open(ctx, opts.Config.Redis.URL, opts.Config.Redis.OpTimeout())
	if err != nil {
		return nil, fmt.Errorf("bootstrap: store initialization failed: %w", err)
	}
	logger.KV.LogAttrs(ctx, slog.LevelInfo, "store ready",
		slog.String("event", "kv.open"),
		slog.String("status", "ok"),
		slog.Int64("duration_ms", logger.Took(start).Milliseconds()),
	)

	return &Result{Store: store}, nil
}

// Seed runs every seeder against store in order. Seeding is best effort:
// a failure is logged and joined into the result, later seeders still run.
func Seed(ctx context.Context, store kv.Store, seeders []Seeder) error {
	var errs []error
	for _, s := range seeders {
		if s.Run == nil {
			continue
		}
		start := time.Now()
		err := s.Run(ctx, store)
		attrs := []slog.Attr{
			slog.String("op", s.label()),
			slog.Int64("duration_ms", logger.Took(start).Milliseconds()),
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("bootstrap: seed %s: %w", s.label(), err))
			logger.Warn(ctx, "app", "seed", append(attrs, slog.String("status", "fail"), slog.String("err", err.Error()))...)
			continue
		}
		logger.Info(ctx, "app", "seed", append(attrs, slog.String("status", "ok"))...)
	}
	return errors.Join(errs...)
}
