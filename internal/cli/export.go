package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"riskwatch/internal/app"
)

var (
	exportMerchant string
	exportInterval string
	exportLookback int
	exportSimNow   string
	exportRaw      bool
	exportPNGPath  string
	exportCSVPath  string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export evaluation windows as CSV and/or PNG chart",
	RunE: func(cmd *cobra.Command, args []string) error {
		if exportMerchant == "" {
			return fmt.Errorf("--merchant is required")
		}

		opts := app.ExportOptions{
			QueryOptions: app.QueryOptions{
				Merchant:      exportMerchant,
				Interval:      exportInterval,
				LookbackHours: exportLookback,
				SimNow:        exportSimNow,
				IncludeRaw:    exportRaw,
			},
			PNGPath: exportPNGPath,
			CSVPath: exportCSVPath,
		}

		return getApp().Export(cmd.Context(), opts)
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportMerchant, "merchant", "", "Merchant key to export")
	exportCmd.Flags().StringVar(&exportInterval, "interval", "", "Bucket granularity: 30m, 1h, or 1d (defaults to config)")
	exportCmd.Flags().IntVar(&exportLookback, "lookback", 0, "Lookback hours (defaults to config)")
	exportCmd.Flags().StringVar(&exportSimNow, "sim-now", "", "Simulated current time (RFC3339 or epoch seconds)")
	exportCmd.Flags().BoolVar(&exportRaw, "raw", false, "Include the unsmoothed total overlay")
	exportCmd.Flags().StringVar(&exportPNGPath, "png", "", "Path to write PNG chart")
	exportCmd.Flags().StringVar(&exportCSVPath, "csv", "", "Path to write CSV data")
}
