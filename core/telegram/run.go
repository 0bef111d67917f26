package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	coreconfig "github.com/m3rciful/assistbot/core/config"
	"github.com/m3rciful/assistbot/core/logger"
	tghelpers "github.com/m3rciful/assistbot/core/telegram/helpers"
	tgsender "github.com/m3rciful/assistbot/core/telegram/sender"

	"golang.org/x/sync/errgroup"
	tele "gopkg.in/telebot.v4"
)

// Middleware is a named global middleware installed with bot.Use.
type Middleware struct {
	Name string
	Use  func(next tele.HandlerFunc) tele.HandlerFunc
}

// Route binds a handler to a telebot endpoint (a string such as
// tele.OnText, or a *tele.Btn).
type Route struct {
	Endpoint any
	Handler  tele.HandlerFunc
}

// Worker is a background loop that lives as long as the bot.
// A non-nil error from Run stops the bot and is returned by RunTelegram.
type Worker struct {
	Name string
	Run  func(ctx context.Context) error
}

// RunOptions controls RunTelegram.
type RunOptions struct {
	Config   *coreconfig.Config
	Registry *Registry

	// Dispatcher sends replies; nil builds one from DispatcherOptions.
	// It becomes the helpers package dispatcher for the life of the bot.
	Dispatcher        *tgsender.Dispatcher
	DispatcherOptions tgsender.Options

	Middlewares []Middleware
	Routes      []Route
	Workers     []Worker

	// OnError handles errors returned by handlers; nil keeps telebot's default.
	OnError func(err error, c tele.Context)

	// Poller overrides the poller derived from Config.
	Poller tele.Poller
	// APIURL overrides the Bot API endpoint.
	APIURL string
	// Offline skips every Bot API call made at startup.
	Offline bool

	OnStart func(ctx context.Context, rt Runtime) error
	OnStop  func(ctx context.Context, rt Runtime) error
}

// Runtime is what lifecycle hooks get to see.
type Runtime struct {
	Bot        *tele.Bot
	Dispatcher *tgsender.Dispatcher
	Registry   *Registry
}

// RunTelegram builds the bot, installs middlewares and routes, and serves
// updates until ctx is done or a worker fails. OnStop runs in both cases.
func RunTelegram(ctx context.Context, opts RunOptions) error {
	if opts.Config == nil {
		return errors.New("telegram: nil config")
	}
	if opts.Registry == nil {
		opts.Registry = NewRegistry()
	}
	if opts.Poller == nil {
		opts.Poller = BuildPoller(opts.Config)
	}

	start := time.Now()
	bot, err := tele.NewBot(tele.Settings{
		URL:     opts.APIURL,
		Token:   opts.Config.Telegram.Token,
		Poller:  opts.Poller,
		Client:  BuildHTTPClient(longPollTimeout(opts.Poller)),
		OnError: opts.OnError,
		Offline: opts.Offline,
	})
	if err != nil {
		return fmt.Errorf("telegram: new bot: %w", err)
	}
	logMode(ctx, opts.Poller, logger.Took(start))

	dispatcher := opts.Dispatcher
	if dispatcher == nil {
		dispatcher = tgsender.NewDispatcher(opts.DispatcherOptions)
	}
	tghelpers.SetDispatcher(dispatcher)
	defer func() {
		dispatcher.Close()
		tghelpers.SetDispatcher(nil)
	}()
	rt := Runtime{Bot: bot, Dispatcher: dispatcher, Registry: opts.Registry}

	install(bot, opts)
	// OnStart can veto the run, so it precedes the startup Bot API calls.
	if opts.OnStart != nil {
		if err := opts.OnStart(ctx, rt); err != nil {
			return err
		}
	}
	if !opts.Offline {
		if _, polling := opts.Poller.(*tele.LongPoller); polling {
			clearWebhook(ctx, bot)
		}
		InitBotCommands(bot, opts.Registry)
	}
	runErr := serve(ctx, bot, opts.Workers)
	if opts.OnStop != nil {
		if err := opts.OnStop(context.WithoutCancel(ctx), rt); runErr == nil {
			runErr = err
		}
	}
	return runErr
}

func install(bot *tele.Bot, opts RunOptions) {
	for _, mw := range opts.Middlewares {
		if mw.Use != nil {
			bot.Use(mw.Use)
		}
	}
	for _, r := range opts.Routes {
		if r.Endpoint != nil && r.Handler != nil {
			bot.Handle(r.Endpoint, r.Handler)
		}
	}
}

func logMode(ctx context.Context, p tele.Poller, took time.Duration) {
	attrs := []slog.Attr{slog.Int64("duration_ms", took.Milliseconds())}
	if wh, ok := p.(*tele.Webhook); ok {
		attrs = append(attrs,
			slog.String("mode", coreconfig.RunModeWebhook),
			slog.String("listen", wh.Listen),
			slog.String("public_url", wh.Endpoint.PublicURL),
		)
	} else {
		attrs = append(attrs,
			slog.String("mode", coreconfig.RunModeLongpoll),
			slog.Int64("timeout_ms", longPollTimeout(p).Milliseconds()),
		)
	}
	logger.LogEvent(ctx, logger.TG, slog.LevelInfo, "mode", attrs...)
}

// clearWebhook removes a webhook left by an earlier webhook deployment;
// getUpdates is refused while one is set. Pending updates are kept.
func clearWebhook(ctx context.Context, bot *tele.Bot) {
	if err := bot.RemoveWebhook(false); err != nil {
		logger.LogEvent(ctx, logger.TG, slog.LevelWarn, "delete_webhook",
			slog.String("status", "fail"),
			slog.String("err", err.Error()),
		)
		return
	}
	logger.LogEvent(ctx, logger.TG, slog.LevelInfo, "delete_webhook", slog.String("status", "ok"))
}

// serve runs the poller and every worker until ctx ends or one worker fails.
func serve(ctx context.Context, bot *tele.Bot, workers []Worker) error {
	g, gctx := errgroup.WithContext(ctx)
	polling := make(chan struct{})
	g.Go(func() error {
		defer close(polling)
		bot.Start()
		return nil
	})
	g.Go(func() error {
		select {
		case <-gctx.Done():
			bot.Stop()
		case <-polling:
		}
		return nil
	})

	for _, w := range workers {
		if w.Run == nil {
			continue
		}
		g.Go(func() error {
			err := w.Run(gctx)
			if err == nil || errors.Is(err, context.Canceled) {
				return nil
			}
			logger.LogEvent(gctx, logger.TG, slog.LevelError, "worker_stop",
				slog.String("status", "fail"),
				slog.String("handler", w.Name),
				slog.String("err", err.Error()),
			)
			return fmt.Errorf("telegram: worker %s: %w", w.Name, err)
		})
	}
	return g.Wait()
}
