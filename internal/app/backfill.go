package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"earnings-insight/internal/storage"
)

// Backfill loads daily bars for a symbol from Yahoo into the daily_bars table.
func (a *App) Backfill(ctx context.Context, opts BackfillOptions) error {
	symbol := strings.ToUpper(strings.TrimSpace(opts.Symbol))
	if symbol == "" {
		return errors.New("symbol required")
	}
	from, to := opts.From.UTC(), opts.To.UTC()
	if !from.Before(to) {
		return errors.New("backfill range is empty, check --from/--to")
	}

	bars, err := a.newYahoo().FetchBars(ctx, symbol, from, to)
	if err != nil {
		return fmt.Errorf("fetch bars: %w", err)
	}

	records := make([]storage.BarRecord, 0, len(bars))
	invalid := 0
	for _, bar := range bars {
		rec := storage.NewBarRecord(symbol, "yahoo", bar)
		if err := rec.Validate(); err != nil {
			invalid++
			a.Logger.Warn().Err(err).Msg("skip inconsistent bar")
			continue
		}
		records = append(records, rec)
	}

	if opts.DryRun {
		a.Logger.Warn().Msg("backfill dry-run: nothing written to the database")
		fmt.Fprintf(a.Out, "%s: %d bars fetched, %d valid, %d skipped\n", symbol, len(bars), len(records), invalid)
		return nil
	}

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database.dsn not configured; cannot backfill")
	}
	defer closeStore()

	if err := store.EnsureSchema(ctx); err != nil {
		return err
	}

	unlock, acquired, err := store.TryAdvisoryLock(ctx, storage.LockKey(symbol))
	if err != nil {
		return err
	}
	if !acquired {
		return fmt.Errorf("another backfill for %s is running", symbol)
	}
	defer unlock()

	written, err := store.UpsertBars(ctx, records)
	if err != nil {
		return err
	}
	total, err := store.CountBars(ctx, symbol)
	if err != nil {
		return err
	}

	a.Logger.Info().
		Str("symbol", symbol).
		Int("fetched", len(bars)).
		Int("written", written).
		Int("skipped", invalid).
		Int64("stored", total).
		Msg("backfill complete")
	return nil
}
