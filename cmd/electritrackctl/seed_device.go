package main

import (
	"fmt"

	"github.com/boddenberg/electritrack-bfa-go/internal/service"

	"github.com/spf13/cobra"
)

var (
	seedContact string
	seedKWh     float64
	seedPrice   float64
	seedName    string
	seedAddress string
)

var seedDeviceCmd = &cobra.Command{
	Use:   "seed-device <device-id>",
	Short: "Create or overwrite a device registry record",
	Args:  cobra.ExactArgs(1),
	RunE:  runSeedDevice,
}

func init() {
	seedDeviceCmd.Flags().StringVar(&seedContact, "contact", "", "contact number the device is registered to (required)")
	seedDeviceCmd.Flags().Float64Var(&seedKWh, "kwh", 0, "cumulative meter reading")
	seedDeviceCmd.Flags().Float64Var(&seedPrice, "price", 0, "price per kWh (default rate when unset)")
	seedDeviceCmd.Flags().StringVar(&seedName, "name", "", "device name")
	seedDeviceCmd.Flags().StringVar(&seedAddress, "address", "", "installation address")
	seedDeviceCmd.MarkFlagRequired("contact")
	rootCmd.AddCommand(seedDeviceCmd)
}

func runSeedDevice(cmd *cobra.Command, args []string) error {
	e, err := openEnv(cmd.Context())
	if err != nil {
		return err
	}
	defer e.Close()

	raw := map[string]any{"Contact Number": seedContact, "kwh": seedKWh}
	if seedPrice > 0 {
		raw["Price"] = seedPrice
	}
	if seedName != "" {
		raw["Name"] = seedName
	}
	if seedAddress != "" {
		raw["Address"] = seedAddress
	}

	svc := service.NewDevToolsService(e.repo, e.repo, e.cfg.Location(), e.logger)
	resp, err := svc.PutDevice(cmd.Context(), args[0], raw)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), resp.Message)
	return nil
}
