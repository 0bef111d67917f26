package cmd

import (
	"context"
	"errors"
	"testing"
	"time"

	coreconfig "github.com/m3rciful/assistbot/core/config"
	coretelegram "github.com/m3rciful/assistbot/core/telegram"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubApp struct {
	opts coretelegram.RunOptions
	err  error
}

func (s stubApp) TelegramRunOptions() (coretelegram.RunOptions, error) { return s.opts, s.err }

func TestRunWiresLifecycleHooks(t *testing.T) {
	var (
		loadedPath string
		order      []string
	)
	cfg := &coreconfig.Config{}
	err := Run(Options{
		ConfigPath: "/etc/assistbot.yaml",
		LoadConfig: func(path string) (*coreconfig.Config, error) {
			loadedPath = path
			return cfg, nil
		},
		Bootstrap: func(_ context.Context, got *coreconfig.Config) (TelegramApp, error) {
			assert.Same(t, cfg, got)
			return stubApp{opts: coretelegram.RunOptions{
				OnStart: func(context.Context, coretelegram.Runtime) error { order = append(order, "start"); return nil },
				OnStop:  func(context.Context, coretelegram.Runtime) error { order = append(order, "stop"); return nil },
			}}, nil
		},
		ShutdownLogger: func() error { order = append(order, "logger"); return nil },
		RunTelegram: func(ctx context.Context, opts coretelegram.RunOptions) error {
			require.NoError(t, opts.OnStart(ctx, coretelegram.Runtime{}))
			return opts.OnStop(ctx, coretelegram.Runtime{})
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "/etc/assistbot.yaml", loadedPath)
	assert.Equal(t, []string{"start", "stop", "logger"}, order)
}

func TestResolveConfigPath(t *testing.T) {
	t.Setenv("ASSISTBOT_CONFIG", "/from/env.yaml")
	path, err := ResolveConfigPath("/from/flag.yaml", "ASSISTBOT_CONFIG", "default.yaml")
	require.NoError(t, err)
	assert.Equal(t, "/from/flag.yaml", path)

	path, err = ResolveConfigPath("", "ASSISTBOT_CONFIG", "default.yaml")
	require.NoError(t, err)
	assert.Equal(t, "/from/env.yaml", path)

	path, err = ResolveConfigPath("", "UNSET_ASSISTBOT_CONFIG", "default.yaml")
	require.NoError(t, err)
	assert.Equal(t, "default.yaml", path)

	_, err = ResolveConfigPath("", "UNSET_ASSISTBOT_CONFIG", "")
	assert.ErrorIs(t, err, errNoConfigPath)
}

func TestLifecycleLogsKeepHookErrors(t *testing.T) {
	boom := errors.New("boom")
	opts := withLifecycleLogs(coretelegram.RunOptions{
		OnStart: func(context.Context, coretelegram.Runtime) error { return boom },
	}, time.Now())
	assert.ErrorIs(t, opts.OnStart(context.Background(), coretelegram.Runtime{}), boom)
	assert.NoError(t, opts.OnStop(context.Background(), coretelegram.Runtime{}))
}

func TestRunPropagatesFailures(t *testing.T) {
	boom := errors.New("boom")
	load := func(string) (*coreconfig.Config, error) { return &coreconfig.Config{}, nil }

	assert.Error(t, Run(Options{ConfigPath: "x", LoadConfig: load}))

	err := Run(Options{
		ConfigPath: "x",
		LoadConfig: func(string) (*coreconfig.Config, error) { return nil, boom },
		Bootstrap:  func(context.Context, *coreconfig.Config) (TelegramApp, error) { return stubApp{}, nil },
	})
	assert.ErrorIs(t, err, boom)

	err = Run(Options{
		ConfigPath: "x",
		LoadConfig: load,
		Bootstrap:  func(context.Context, *coreconfig.Config) (TelegramApp, error) { return nil, boom },
	})
	assert.ErrorIs(t, err, boom)

	err = Run(Options{
		ConfigPath:     "x",
		LoadConfig:     load,
		Bootstrap:      func(context.Context, *coreconfig.Config) (TelegramApp, error) { return stubApp{err: boom}, nil },
		ShutdownLogger: func() error { return nil },
	})
	assert.ErrorIs(t, err, boom)
}
