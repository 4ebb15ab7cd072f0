package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/elfen20/clone-cave-data-sub003/internal/config"
	"github.com/elfen20/clone-cave-data-sub003/internal/logging"
	"github.com/elfen20/clone-cave-data-sub003/internal/observability"
	"github.com/elfen20/clone-cave-data-sub003/internal/storage"
)

var (
	configFile string
	dialect    string
	dsn        string
	logLevel   string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "datacli",
		Short: "Database-agnostic data access CLI",
		Long:  "Inspect schemas, run statements and serve metrics over the configured database backend",
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Path to config file (JSON or YAML)")
	rootCmd.PersistentFlags().StringVar(&dialect, "dialect", "", "Backend dialect (mysql, mssql, postgres, mem)")
	rootCmd.PersistentFlags().StringVar(&dsn, "dsn", "", "Connection string")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")

	rootCmd.AddCommand(
		pingCmd(),
		tablesCmd(),
		schemaCmd(),
		countCmd(),
		queryCmd(),
		execCmd(),
		serveMetricsCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	cfg := config.DefaultConfig()
	if configFile != "" {
		loaded, err := config.LoadFromFile(configFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	config.LoadFromEnv(cfg)
	if dialect != "" {
		cfg.Database.Dialect = dialect
	}
	if dsn != "" {
		cfg.Database.DSN = dsn
	}
	if logLevel != "" {
		cfg.Server.LogLevel = logLevel
	}
	return cfg, nil
}

func openStorage(ctx context.Context) (*storage.Storage, *config.Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	logging.SetLevelFromString(cfg.Server.LogLevel)
	if err := observability.Init(ctx, observability.Config{
		Enabled:     cfg.Tracing.Exporter != "" && cfg.Tracing.Exporter != "none",
		Exporter:    cfg.Tracing.Exporter,
		Endpoint:    cfg.Tracing.Endpoint,
		ServiceName: "datacli",
		SampleRate:  cfg.Tracing.SampleRatio,
	}); err != nil {
		return nil, nil, err
	}
	s, err := storage.Open(cfg, logging.Op())
	if err != nil {
		return nil, nil, err
	}
	return s, cfg, nil
}
