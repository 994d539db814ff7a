package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/boddenberg/electritrack-bfa-go/internal/domain"
	"github.com/boddenberg/electritrack-bfa-go/internal/infra/cache"
	"github.com/boddenberg/electritrack-bfa-go/internal/infra/observability"
	"github.com/boddenberg/electritrack-bfa-go/internal/infra/publisher"
	"github.com/boddenberg/electritrack-bfa-go/internal/service"

	"github.com/spf13/cobra"
)

var (
	exportUID   string
	exportEmail string
	exportDir   string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write a user's consumption CSV",
	Long: `Computes the user's current dashboard and writes the same CSV the
dashboard export button produces. Computing the dashboard records usage
checkpoints exactly as a dashboard visit would.`,
	RunE: runExport,
}

func init() {
	exportCmd.Flags().StringVar(&exportUID, "uid", "", "user id (required)")
	exportCmd.Flags().StringVar(&exportEmail, "email", "", "email written into the export")
	exportCmd.Flags().StringVarP(&exportDir, "out", "o", ".", "output directory")
	exportCmd.MarkFlagRequired("uid")
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	e, err := openEnv(ctx)
	if err != nil {
		return err
	}
	defer e.Close()

	metrics := observability.NewMetrics()
	appCache := cache.New[any](e.cfg.CacheTTL)
	defer appCache.Stop()
	fired := cache.New[bool](24 * time.Hour)
	defer fired.Stop()

	profiles := service.NewProfileService(e.repo, e.backends.Identity, appCache, metrics, e.logger)
	dashboard := service.NewDashboardService(service.DashboardDeps{
		Profiles:  profiles,
		Devices:   e.repo,
		Usage:     e.repo,
		Alerts:    e.repo,
		Publisher: publisher.NewLog(e.logger),
		Cache:     appCache,
		Fired:     fired,
		Location:  e.cfg.Location(),
	}, metrics, e.logger)

	out, err := service.NewExportService(dashboard, e.logger).
		Export(ctx, &domain.User{ID: exportUID, Email: exportEmail})
	if err != nil {
		return fmt.Errorf("exporting: %w", err)
	}

	path := filepath.Join(exportDir, out.Filename)
	if err := os.WriteFile(path, out.Data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
	return nil
}
