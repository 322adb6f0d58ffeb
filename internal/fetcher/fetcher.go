package fetcher

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"earnings-insight/internal/earnings"
)

// Quote is the latest traded price with the previous session close.
type Quote struct {
	Last          decimal.Decimal
	PreviousClose decimal.Decimal
}

// QuoteFetcher retrieves the live quote for a symbol.
type QuoteFetcher interface {
	FetchQuote(ctx context.Context, symbol string) (Quote, error)
}

// BarFetcher retrieves chronological daily bars with from <= date < to.
type BarFetcher interface {
	FetchBars(ctx context.Context, symbol string, from, to time.Time) ([]earnings.DailyBar, error)
}
