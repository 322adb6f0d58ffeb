package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"earnings-insight/internal/app"
)

var (
	barsLimit int
)

var barsCmd = &cobra.Command{
	Use:   "bars SYMBOL",
	Short: "Display daily bars stored in postgres",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if barsLimit <= 0 {
			return fmt.Errorf("--limit must be greater than zero")
		}

		opts := app.BarsOptions{
			Symbol: args[0],
			Limit:  barsLimit,
		}

		return getApp().Bars(cmd.Context(), opts)
	},
}

func init() {
	barsCmd.Flags().IntVar(&barsLimit, "limit", 20, "Number of bars to display")
}
