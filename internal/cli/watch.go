package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"riskwatch/internal/app"
)

var (
	watchMerchant string
	watchInterval string
	watchLookback int
	watchForward  bool
	watchSimNow   string
	watchRaw      bool
	watchEvery    time.Duration
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Continuously refresh risk windows for a merchant",
	RunE: func(cmd *cobra.Command, args []string) error {
		if watchMerchant == "" {
			return fmt.Errorf("--merchant is required")
		}

		opts := app.WatchOptions{
			QueryOptions: app.QueryOptions{
				Merchant:      watchMerchant,
				Interval:      watchInterval,
				LookbackHours: watchLookback,
				Forward:       watchForward,
				SimNow:        watchSimNow,
				IncludeRaw:    watchRaw,
			},
			RefreshEvery: watchEvery,
		}

		return getApp().Watch(cmd.Context(), opts)
	},
}

func init() {
	watchCmd.Flags().StringVar(&watchMerchant, "merchant", "", "Merchant key to monitor")
	watchCmd.Flags().StringVar(&watchInterval, "interval", "", "Bucket granularity: 30m, 1h, or 1d (defaults to config)")
	watchCmd.Flags().IntVar(&watchLookback, "lookback", 0, "Lookback hours (defaults to config)")
	watchCmd.Flags().BoolVar(&watchForward, "forward", false, "Anchor the window start at the current effective now")
	watchCmd.Flags().StringVar(&watchSimNow, "sim-now", "", "Simulated current time (RFC3339 or epoch seconds)")
	watchCmd.Flags().BoolVar(&watchRaw, "raw", false, "Include the unsmoothed total overlay")
	watchCmd.Flags().DurationVar(&watchEvery, "refresh-every", 0, "Refresh cadence (defaults to config)")
}
