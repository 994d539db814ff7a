package main

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/boddenberg/electritrack-bfa-go/internal/bootstrap"
	"github.com/boddenberg/electritrack-bfa-go/internal/config"
	"github.com/boddenberg/electritrack-bfa-go/internal/infra/observability"
	"github.com/boddenberg/electritrack-bfa-go/internal/infra/resilience"
	"github.com/boddenberg/electritrack-bfa-go/internal/infra/store"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	cfgFile  string
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:   "electritrackctl",
	Short: "Operate on ElectriTrack data without the web dashboard",
	Long: `electritrackctl reads and seeds the ElectriTrack store directly.
It uses the same configuration as the BFA (environment, .env and CONFIG_FILE).`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "YAML config file (default is $CONFIG_FILE)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level")
}

// env is everything a command needs to talk to the store.
type env struct {
	cfg      *config.Config
	logger   *zap.Logger
	backends *bootstrap.Backends
	repo     *store.Repository
}

func (e *env) Close() {
	e.backends.Close()
	e.logger.Sync()
}

// openEnv loads configuration and opens the configured backends.
func openEnv(ctx context.Context) (*env, error) {
	_ = config.LoadDotEnv(".env")

	path := cfgFile
	if path == "" {
		path = os.Getenv("CONFIG_FILE")
	}
	cfg, err := config.LoadWithFile(path)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	logger := observability.NewLogger(logLevel, "electritrackctl")
	rcfg := resilience.Config{
		MaxRetries:     cfg.MaxRetries,
		InitialBackoff: cfg.InitialBackoff,
		MaxConcurrency: cfg.MaxConcurrency,
	}
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}

	backends, err := bootstrap.Open(ctx, cfg, httpClient, resilience.NewCircuitBreaker("store"), rcfg, logger)
	if err != nil {
		return nil, err
	}
	return &env{
		cfg:      cfg,
		logger:   logger,
		backends: backends,
		repo:     store.New(backends.KV, logger),
	}, nil
}
