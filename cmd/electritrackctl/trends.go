package main

import (
	"fmt"

	"github.com/boddenberg/electritrack-bfa-go/internal/infra/observability"
	"github.com/boddenberg/electritrack-bfa-go/internal/service"

	"github.com/spf13/cobra"
)

var (
	trendsUID     string
	trendsHistory bool
)

var trendsCmd = &cobra.Command{
	Use:   "trends",
	Short: "Show a user's last seven days of usage",
	RunE:  runTrends,
}

func init() {
	trendsCmd.Flags().StringVar(&trendsUID, "uid", "", "user id (required)")
	trendsCmd.Flags().BoolVar(&trendsHistory, "history", false, "also list stored usage history")
	trendsCmd.MarkFlagRequired("uid")
	rootCmd.AddCommand(trendsCmd)
}

func runTrends(cmd *cobra.Command, args []string) error {
	e, err := openEnv(cmd.Context())
	if err != nil {
		return err
	}
	defer e.Close()

	svc := service.NewTrendsService(e.repo, e.repo, e.cfg.Location(), observability.NewMetrics(), e.logger)
	report := svc.Report(cmd.Context(), trendsUID)
	w := cmd.OutOrStdout()

	if report.Degraded {
		fmt.Fprintln(w, "warning: usage data could not be read, showing zeros")
	}
	fmt.Fprintln(w, "----------------------------------------")
	fmt.Fprintf(w, "%-6s  %-12s  %10s\n", "Day", "Date", "kWh")
	fmt.Fprintln(w, "----------------------------------------")
	for _, d := range report.Days {
		fmt.Fprintf(w, "%-6s  %-12s  %10.2f\n", d.Label, d.Date, d.Usage)
	}
	fmt.Fprintln(w, "----------------------------------------")
	fmt.Fprintf(w, "Average: %s  Peak: %s  Low: %s  Total: %s\n",
		report.Stats.AverageLabel, report.Stats.PeakLabel, report.Stats.LowLabel, report.Stats.TotalLabel)

	if !trendsHistory {
		return nil
	}
	entries := svc.History(cmd.Context(), trendsUID)
	fmt.Fprintf(w, "\nHistory (%d records):\n", len(entries))
	for _, h := range entries {
		fmt.Fprintf(w, "%-12s  %10s kWh  ₱%s\n", h.Date, h.Usage, h.Cost)
	}
	return nil
}
