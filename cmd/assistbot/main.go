package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/m3rciful/assistbot/bot/app"
	"github.com/m3rciful/assistbot/core/bootstrap"
	"github.com/m3rciful/assistbot/core/buildinfo"
	corecmd "github.com/m3rciful/assistbot/core/cmd"
	coreconfig "github.com/m3rciful/assistbot/core/config"
)

const defaultConfigPath = "config/config.yaml"

func main() {
	if err := rootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCommand() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "assistbot",
		Short:         "Telegram assistant for crypto prices and AI answers",
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(configPath)
		},
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to the YAML config (default $CONFIG_PATH or "+defaultConfigPath+")")

	root.AddCommand(&cobra.Command{
		Use:   "check-config",
		Short: "Load and validate the configuration, then exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, err := corecmd.ResolveConfigPath(configPath, corecmd.DefaultConfigEnv, defaultConfigPath)
			if err != nil {
				return err
			}
			cfg, err := coreconfig.Load(path)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "config ok: run_mode=%s store=%s providers=%d lock=%t\n",
				cfg.Telegram.RunMode, storeScheme(cfg.Redis.URL), len(cfg.AI.Providers), !cfg.Lock.Disabled)
			return nil
		},
	})
	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), buildinfo.String())
		},
	})
	return root
}

func run(configPath string) error {
	return corecmd.Run(corecmd.Options{
		ConfigPath:        configPath,
		ConfigEnvVar:      corecmd.DefaultConfigEnv,
		DefaultConfigPath: defaultConfigPath,
		Bootstrap: func(ctx context.Context, cfg *coreconfig.Config) (corecmd.TelegramApp, error) {
			res, err := bootstrap.Run(ctx, bootstrap.Options{Config: cfg})
			if err != nil {
				return nil, err
			}
			a, err := app.New(app.Options{Config: cfg, Store: res.Store})
			if err != nil {
				_ = res.Store.Close()
				return nil, err
			}
			// warm-up failures only cost a slower first lookup
			_ = bootstrap.Seed(ctx, res.Store, a.Seeders())
			return a, nil
		},
	})
}

// storeScheme hides credentials that may be embedded in the store URL.
func storeScheme(url string) string {
	if scheme, _, ok := strings.Cut(url, "://"); ok {
		return scheme
	}
	return "unknown"
}
