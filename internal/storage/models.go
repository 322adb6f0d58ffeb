package storage

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"earnings-insight/internal/earnings"
)

// BarRecord is a persisted daily bar for one symbol.
type BarRecord struct {
	Symbol    string
	Date      time.Time
	Open      decimal.Decimal
	High      decimal.Decimal
	Low       decimal.Decimal
	Close     decimal.Decimal
	Source    string
	UpdatedAt time.Time
}

// Bar converts the record to the engine's bar type.
func (r BarRecord) Bar() earnings.DailyBar {
	return earnings.DailyBar{Date: r.Date, Open: r.Open, High: r.High, Low: r.Low, Close: r.Close}
}

// NewBarRecord tags a fetched bar with its symbol and origin.
func NewBarRecord(symbol, source string, bar earnings.DailyBar) BarRecord {
	return BarRecord{
		Symbol: symbol,
		Date:   earnings.CivilDate(bar.Date),
		Open:   bar.Open,
		High:   bar.High,
		Low:    bar.Low,
		Close:  bar.Close,
		Source: source,
	}
}

// Validate rejects bars whose high/low do not bound open and close.
func (r BarRecord) Validate() error {
	if r.Symbol == "" {
		return fmt.Errorf("bar on %s has no symbol", r.Date.Format(earnings.DateLayout))
	}
	if r.High.LessThan(r.Low) {
		return fmt.Errorf("bar %s %s: high %s below low %s", r.Symbol, r.Date.Format(earnings.DateLayout), r.High, r.Low)
	}
	for _, v := range []decimal.Decimal{r.Open, r.Close} {
		if v.GreaterThan(r.High) || v.LessThan(r.Low) {
			return fmt.Errorf("bar %s %s: price %s outside [%s, %s]", r.Symbol, r.Date.Format(earnings.DateLayout), v, r.Low, r.High)
		}
	}
	return nil
}
