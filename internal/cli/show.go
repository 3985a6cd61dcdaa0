package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"riskwatch/internal/app"
)

var (
	showMerchant string
	showInterval string
	showLookback int
	showForward  bool
	showSimNow   string
	showLimit    int
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Display recent evaluation windows for a merchant",
	RunE: func(cmd *cobra.Command, args []string) error {
		if showMerchant == "" {
			return fmt.Errorf("--merchant is required")
		}
		if showLimit <= 0 {
			return fmt.Errorf("--limit must be greater than zero")
		}

		opts := app.ShowOptions{
			QueryOptions: app.QueryOptions{
				Merchant:      showMerchant,
				Interval:      showInterval,
				LookbackHours: showLookback,
				Forward:       showForward,
				SimNow:        showSimNow,
			},
			Limit: showLimit,
		}

		return getApp().Show(cmd.Context(), opts)
	},
}

func init() {
	showCmd.Flags().StringVar(&showMerchant, "merchant", "", "Merchant key to query")
	showCmd.Flags().StringVar(&showInterval, "interval", "", "Bucket granularity: 30m, 1h, or 1d (defaults to config)")
	showCmd.Flags().IntVar(&showLookback, "lookback", 0, "Lookback hours (defaults to config)")
	showCmd.Flags().BoolVar(&showForward, "forward", false, "Anchor the window start at the current effective now")
	showCmd.Flags().StringVar(&showSimNow, "sim-now", "", "Simulated current time (RFC3339 or epoch seconds)")
	showCmd.Flags().IntVar(&showLimit, "limit", 20, "Number of rows to display")
}
