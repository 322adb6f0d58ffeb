package cli

import (
	"github.com/spf13/cobra"

	"earnings-insight/internal/app"
)

var (
	exportEvents  int
	exportPNGPath string
	exportCSVPath string
)

var exportCmd = &cobra.Command{
	Use:   "export SYMBOL",
	Short: "Export an earnings reaction analysis as CSV and/or PNG chart",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := validateEventsFlag(exportEvents); err != nil {
			return err
		}

		opts := app.ExportOptions{
			Symbol:  args[0],
			Events:  exportEvents,
			PNGPath: exportPNGPath,
			CSVPath: exportCSVPath,
		}

		return getApp().Export(cmd.Context(), opts)
	},
}

func init() {
	exportCmd.Flags().IntVarP(&exportEvents, "events", "n", 0, "Number of past reports to analyze, 4-37 (defaults to config)")
	exportCmd.Flags().StringVar(&exportPNGPath, "png", "", "Path to write PNG chart")
	exportCmd.Flags().StringVar(&exportCSVPath, "csv", "", "Path to write CSV data")
}
