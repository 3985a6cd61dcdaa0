package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"riskwatch/internal/app"
)

var (
	reparseMerchant string
	reparseInterval string
	reparseLookback int
	reparseSimNow   string
	reparseWait     time.Duration
)

var reparseCmd = &cobra.Command{
	Use:   "reparse",
	Short: "Explicitly trigger backend re-materialization for a merchant",
	RunE: func(cmd *cobra.Command, args []string) error {
		if reparseMerchant == "" {
			return fmt.Errorf("--merchant is required")
		}

		opts := app.ReparseOptions{
			QueryOptions: app.QueryOptions{
				Merchant:      reparseMerchant,
				Interval:      reparseInterval,
				LookbackHours: reparseLookback,
				SimNow:        reparseSimNow,
			},
			WaitBefore: reparseWait,
		}

		return getApp().Reparse(cmd.Context(), opts)
	},
}

func init() {
	reparseCmd.Flags().StringVar(&reparseMerchant, "merchant", "", "Merchant key to reparse")
	reparseCmd.Flags().StringVar(&reparseInterval, "interval", "", "Bucket granularity: 30m, 1h, or 1d (defaults to config)")
	reparseCmd.Flags().IntVar(&reparseLookback, "lookback", 0, "Lookback hours (defaults to config)")
	reparseCmd.Flags().StringVar(&reparseSimNow, "sim-now", "", "Simulated current time (RFC3339 or epoch seconds)")
	reparseCmd.Flags().DurationVar(&reparseWait, "wait", 1500*time.Millisecond, "Delay before the follow-up fetch")
}
