package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/m3rciful/keybot/core/bootstrap"
	"github.com/m3rciful/keybot/core/buildinfo"
	corecmd "github.com/m3rciful/keybot/core/cmd"
	"github.com/m3rciful/keybot/core/database"
	"github.com/m3rciful/keybot/core/logger"
	"github.com/m3rciful/keybot/internal/bot"
	"github.com/m3rciful/keybot/internal/config"
)

const defaultConfigPath = "config.yaml"

func newRootCmd() *cobra.Command {
	var configPath string

	rootCmd := &cobra.Command{
		Use:           "keybot",
		Short:         "Telegram bot handing out VPN access keys",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "",
		"path to the YAML config (default $"+corecmd.DefaultConfigEnvVar+" or "+defaultConfigPath+")")

	rootCmd.AddCommand(
		newServeCmd(&configPath),
		newMigrateCmd(&configPath),
		newVersionCmd(),
	)
	return rootCmd
}

func newServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the bot until interrupted",
		RunE: func(_ *cobra.Command, _ []string) error {
			return corecmd.Run(corecmd.Options{
				ConfigPath:        *configPath,
				DefaultConfigPath: defaultConfigPath,
				LoadConfig: func(path string) (corecmd.ConfigCarrier, error) {
					cfg, err := config.Load(path)
					if err != nil {
						return nil, err
					}
					return cfg, nil
				},
				Bootstrap: bootstrapApp,
			})
		},
	}
}

func bootstrapApp(ctx context.Context, carrier corecmd.ConfigCarrier) (corecmd.TelegramApp, error) {
	cfg, ok := carrier.(*config.Config)
	if !ok {
		return nil, fmt.Errorf("unexpected config type %T", carrier)
	}

	var dbCfg *database.Config
	if cfg.Store.Driver == config.StoreDriverPostgres {
		dbCfg = &cfg.Database
	}
	infra, err := bootstrap.Run(bootstrap.Options{Config: cfg.CoreConfig(), Database: dbCfg})
	if err != nil {
		return nil, err
	}

	app, err := bot.New(ctx, cfg, infra.DB)
	if err != nil {
		_ = infra.Close()
		return nil, err
	}
	app.OnClose(infra.Close)
	return app, nil
}

func newMigrateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations and exit",
		RunE: func(_ *cobra.Command, _ []string) error {
			path, err := corecmd.ResolveConfigPath(*configPath, corecmd.DefaultConfigEnvVar, defaultConfigPath)
			if err != nil {
				return err
			}
			cfg, err := config.Load(path)
			if err != nil {
				return err
			}
			if cfg.Store.Driver != config.StoreDriverPostgres {
				return fmt.Errorf("migrate: store.driver %q has no schema", cfg.Store.Driver)
			}
			if err := logger.InitLogger(cfg.CoreConfig()); err != nil {
				return err
			}
			defer func() { _ = logger.Shutdown() }()
			return database.RunMigrations(cfg.Database)
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "keybot %s (commit %s, built %s)\n",
				buildinfo.Version, buildinfo.Commit, buildinfo.Date)
			return err
		},
	}
}
