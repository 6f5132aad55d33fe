package main

import (
	"fmt"
	"io"
	"os"

	"github.com/goodtune/workdigest/internal/aggregate"
	"github.com/goodtune/workdigest/internal/config"
	"github.com/goodtune/workdigest/internal/storage"
	"github.com/goodtune/workdigest/internal/storage/bolt"
	"github.com/goodtune/workdigest/internal/storage/file"
	"github.com/goodtune/workdigest/internal/storage/redis"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	version    = "dev"
	configPath string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "workdigest",
	Short: "workdigest - daily digest of desktop activity logs",
	Long: `workdigest turns a day's desktop activity samples (window titles, process
names, extracted keywords, URLs and files) into a bounded daily summary of
time blocks, per-application usage and keyword rankings.`,
	Version:      version,
	SilenceUsage: true,
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultPath(), "Path to configuration file")
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// app bundles what every command needs.
type app struct {
	cfg    *config.Config
	logger zerolog.Logger
	store  storage.Store
}

// loadApp loads configuration, sets up logging to out and opens the store.
func loadApp(out io.Writer) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := setupLogger(cfg.Logging, out)
	log.Logger = logger

	store, err := openStore(cfg.Storage, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	logger.Debug().
		Str("type", cfg.Storage.Type).
		Str("path", cfg.Storage.Path).
		Msg("Storage initialized")

	return &app{cfg: cfg, logger: logger, store: store}, nil
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		a.logger.Error().Err(err).Msg("Failed to close storage")
	}
}

func (a *app) aggregator() (*aggregate.Service, error) {
	cfg, err := aggregate.ConfigFrom(a.cfg.Aggregation)
	if err != nil {
		return nil, err
	}
	return aggregate.NewService(a.store, cfg, nil, a.logger), nil
}

// resolveDate returns date, or today in the configured timezone when empty.
func (a *app) resolveDate(date string) (string, error) {
	if date == "" {
		svc, err := a.aggregator()
		if err != nil {
			return "", err
		}
		return svc.Today(), nil
	}
	if err := storage.ValidateDate(date); err != nil {
		return "", err
	}
	return date, nil
}

func openStore(cfg config.StorageConfig, logger zerolog.Logger) (storage.Store, error) {
	switch cfg.Type {
	case "", "file":
		return file.Open(cfg.Path, logger)
	case "bolt":
		return bolt.Open(cfg.Path, logger)
	case "redis":
		return redis.Open(cfg.Redis, logger)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Type)
	}
}

// setupLogger configures the logger based on configuration
func setupLogger(cfg config.LoggingConfig, out io.Writer) zerolog.Logger {
	// Set log level
	level := zerolog.InfoLevel
	switch cfg.Level {
	case "debug":
		level = zerolog.DebugLevel
	case "info":
		level = zerolog.InfoLevel
	case "warn":
		level = zerolog.WarnLevel
	case "error":
		level = zerolog.ErrorLevel
	}

	zerolog.SetGlobalLevel(level)

	// Set output format
	if cfg.Format == "text" {
		return zerolog.New(zerolog.ConsoleWriter{Out: out}).With().Timestamp().Logger()
	}

	// Default to JSON
	return zerolog.New(out).With().Timestamp().Logger()
}
