package main

import (
	"fmt"

	"github.com/boddenberg/electritrack-bfa-go/internal/domain"
	"github.com/boddenberg/electritrack-bfa-go/internal/meter"

	"github.com/spf13/cobra"
)

var resolvePhone string

var resolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "Show which device a profile phone number resolves to",
	RunE:  runResolve,
}

func init() {
	resolveCmd.Flags().StringVar(&resolvePhone, "phone", "", "profile phone number")
	rootCmd.AddCommand(resolveCmd)
}

func runResolve(cmd *cobra.Command, args []string) error {
	e, err := openEnv(cmd.Context())
	if err != nil {
		return err
	}
	defer e.Close()

	devices, err := e.repo.ListDevices(cmd.Context())
	if err != nil {
		return fmt.Errorf("listing devices: %w", err)
	}

	res := meter.ResolveDevice(resolvePhone, devices)
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "State: %s\n", res.State)
	if res.Message != "" {
		fmt.Fprintf(w, "Message: %s\n", res.Message)
	}
	if res.State == domain.ResolutionConnected {
		d := res.Device
		fmt.Fprintf(w, "Device: %s (%s)\n", d.ID, d.Name)
		fmt.Fprintf(w, "Reading: %s kWh at %s/kWh\n", meter.Fixed(d.KWh, 2), meter.Fixed(d.Price, 2))
	}
	for _, id := range res.Ambiguous {
		fmt.Fprintf(w, "Also matches: %s\n", id)
	}
	return nil
}
