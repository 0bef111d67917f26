// Package cmd runs a bot process: load config, bootstrap, serve until a signal.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/m3rciful/assistbot/core/buildinfo"
	coreconfig "github.com/m3rciful/assistbot/core/config"
	"github.com/m3rciful/assistbot/core/logger"
	coretelegram "github.com/m3rciful/assistbot/core/telegram"
)

// DefaultConfigEnv names the variable consulted when no config path is given.
const DefaultConfigEnv = "CONFIG_PATH"

var errNoConfigPath = errors.New("cmd: no config path")

// TelegramApp builds the options RunTelegram is started with.
type TelegramApp interface {
	TelegramRunOptions() (coretelegram.RunOptions, error)
}

// Options describe how to load configuration, bootstrap the app, and run the bot.
type Options struct {
	ConfigPath        string
	ConfigEnvVar      string
	DefaultConfigPath string

	LoadConfig func(path string) (*coreconfig.Config, error)
	Bootstrap  func(ctx context.Context, cfg *coreconfig.Config) (TelegramApp, error)

	ShutdownLogger func() error
	RunTelegram    func(ctx context.Context, opts coretelegram.RunOptions) error
	// Signals overrides the shutdown signals; nil -> SIGINT and SIGTERM.
	Signals []os.Signal
}

// ResolveConfigPath picks the config file: flag first, then the envVar
// variable (DefaultConfigEnv when empty), then fallback.
func ResolveConfigPath(flag, envVar, fallback string) (string, error) {
	if flag != "" {
		return flag, nil
	}
	if envVar == "" {
		envVar = DefaultConfigEnv
	}
	if p := os.Getenv(envVar); p != "" {
		return p, nil
	}
	if fallback != "" {
		return fallback, nil
	}
	return "", fmt.Errorf("%w: set --config or %s", errNoConfigPath, envVar)
}

// Run loads configuration, bootstraps the app and serves updates until a
// shutdown signal arrives or the runtime fails.
func Run(opts Options) error {
	if opts.Bootstrap == nil {
		return errors.New("cmd: Bootstrap is required")
	}
	load := opts.LoadConfig
	if load == nil {
		load = coreconfig.Load
	}
	path, err := ResolveConfigPath(opts.ConfigPath, opts.ConfigEnvVar, opts.DefaultConfigPath)
	if err != nil {
		return err
	}
	// the structured logger is configured by Bootstrap
	log.Printf("loading config: %s", path)
	cfg, err := load(path)
	if err != nil {
		return fmt.Errorf("cmd: load config: %w", err)
	}

	signals := opts.Signals
	if len(signals) == 0 {
		signals = []os.Signal{os.Interrupt, syscall.SIGTERM}
	}
	ctx, stop := signal.NotifyContext(context.Background(), signals...)
	defer stop()

	startedAt := time.Now()
	application, err := opts.Bootstrap(ctx, cfg)
	if err != nil {
		return fmt.Errorf("cmd: bootstrap: %w", err)
	}
	shutdownLogger := opts.ShutdownLogger
	if shutdownLogger == nil {
		shutdownLogger = logger.Shutdown
	}
	defer func() {
		if err := shutdownLogger(); err != nil {
			log.Printf("logger shutdown: %v", err)
		}
	}()

	runOpts, err := application.TelegramRunOptions()
	if err != nil {
		return fmt.Errorf("cmd: telegram options: %w", err)
	}
	runOpts = withLifecycleLogs(runOpts, startedAt)

	serve := opts.RunTelegram
	if serve == nil {
		serve = coretelegram.RunTelegram
	}
	return serve(ctx, runOpts)
}

// withLifecycleLogs chains ready and shutdown log lines onto the app hooks.
func withLifecycleLogs(opts coretelegram.RunOptions, startedAt time.Time) coretelegram.RunOptions {
	onStart, onStop := opts.OnStart, opts.OnStop
	opts.OnStart = func(ctx context.Context, rt coretelegram.Runtime) error {
		if onStart != nil {
			if err := onStart(ctx, rt); err != nil {
				return err
			}
		}
		logger.Info(ctx, "app", "ready",
			slog.String("status", "ok"),
			slog.String("build_version", buildinfo.Version),
			slog.String("build_commit", buildinfo.Commit),
			slog.Int64("duration_ms", logger.Took(startedAt).Milliseconds()),
		)
		return nil
	}
	opts.OnStop = func(ctx context.Context, rt coretelegram.Runtime) error {
		logger.Info(ctx, "app", "shutdown")
		if onStop != nil {
			return onStop(ctx, rt)
		}
		return nil
	}
	return opts
}
