package cli

import (
	"github.com/spf13/cobra"

	"earnings-insight/internal/app"
	"earnings-insight/internal/config"
)

var (
	analyzeEvents int
	analyzeFormat string
)

var analyzeCmd = &cobra.Command{
	Use:     "analyze SYMBOL",
	Short:   "Show gap, close and max moves around past earnings reports",
	Example: "  earningsinsight analyze AAPL --events 12",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := validateEventsFlag(analyzeEvents); err != nil {
			return err
		}

		opts := app.AnalyzeOptions{
			Symbol: args[0],
			Events: analyzeEvents,
			Format: analyzeFormat,
		}

		return getApp().Analyze(cmd.Context(), opts)
	},
}

func init() {
	analyzeCmd.Flags().IntVarP(&analyzeEvents, "events", "n", 0, "Number of past reports to analyze, 4-37 (defaults to config)")
	analyzeCmd.Flags().StringVar(&analyzeFormat, "format", app.FormatTable, "Output format: table or json")
}

// validateEventsFlag accepts zero as "use the configured default".
func validateEventsFlag(n int) error {
	if n == 0 {
		return nil
	}
	return config.ValidateEvents(n)
}
