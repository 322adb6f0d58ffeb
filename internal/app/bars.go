package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"earnings-insight/internal/earnings"
	"earnings-insight/internal/storage"
)

// Bars prints the most recent stored bars of a symbol.
func (a *App) Bars(ctx context.Context, opts BarsOptions) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot show bars")
	}
	defer closeStore()

	bars, err := store.ListRecentBars(ctx, opts.Symbol, opts.Limit)
	if err != nil {
		return err
	}
	return renderBars(a.Out, bars)
}

func renderBars(w io.Writer, bars []storage.BarRecord) error {
	if len(bars) == 0 {
		fmt.Fprintln(w, "no bars found")
		return nil
	}

	writer := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Date\tOpen\tHigh\tLow\tClose\tSource\tUpdated (UTC)")
	for _, bar := range bars {
		fmt.Fprintf(
			writer,
			"%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			bar.Date.Format(earnings.DateLayout),
			bar.Open.StringFixed(2),
			bar.High.StringFixed(2),
			bar.Low.StringFixed(2),
			bar.Close.StringFixed(2),
			bar.Source,
			bar.UpdatedAt.UTC().Format(time.RFC3339),
		)
	}
	return writer.Flush()
}
