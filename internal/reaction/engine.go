package reaction

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"earnings-insight/internal/earnings"
)

var (
	// ErrNoBars indicates the price window came back empty.
	ErrNoBars = errors.New("reaction: no price bars in window")
	// ErrOutOfWindow indicates the baseline or reaction session lies outside the fetched bars.
	ErrOutOfWindow = errors.New("reaction: session offset outside price window")
	// ErrZeroBaseline indicates the pre-event close is zero.
	ErrZeroBaseline = errors.New("reaction: pre-event close is zero")
)

var hundred = decimal.NewFromInt(100)

// Record holds the price reaction to a single earnings event.
type Record struct {
	EventDate time.Time
	Timing    earnings.Timing

	PreClose  decimal.Decimal
	PostOpen  decimal.Decimal
	PostHigh  decimal.Decimal
	PostLow   decimal.Decimal
	PostClose decimal.Decimal

	GapPct   decimal.Decimal
	ClosePct decimal.Decimal
	MaxPct   decimal.Decimal

	EPSEstimate decimal.NullDecimal
	EPSActual   decimal.NullDecimal
	SurprisePct decimal.NullDecimal
}

// Compute derives the reaction record for event from a chronological daily series.
// An error means the event is not computable and should be dropped.
func Compute(event earnings.Event, bars []earnings.DailyBar) (Record, error) {
	if len(bars) == 0 {
		return Record{}, ErrNoBars
	}

	idx := NearestIndex(bars, event.Date)
	preIdx := idx + event.PreOffset
	postIdx := idx + event.PostOffset
	if preIdx < 0 || postIdx >= len(bars) || postIdx < 0 || preIdx >= len(bars) {
		return Record{}, ErrOutOfWindow
	}

	pre := bars[preIdx].Close
	if pre.IsZero() {
		return Record{}, ErrZeroBaseline
	}
	post := bars[postIdx]

	rec := Record{
		EventDate:   event.Date,
		Timing:      event.Timing,
		PreClose:    pre,
		PostOpen:    post.Open,
		PostHigh:    post.High,
		PostLow:     post.Low,
		PostClose:   post.Close,
		GapPct:      pctChange(pre, post.Open),
		ClosePct:    pctChange(pre, post.Close),
		MaxPct:      pctChange(pre, extreme(pre, post.High, post.Low)),
		EPSEstimate: event.EPSEstimate,
		EPSActual:   event.EPSActual,
		SurprisePct: Surprise(event.EPSEstimate, event.EPSActual),
	}
	return rec, nil
}

// NearestIndex returns the index of the bar closest in calendar days to date.
// Equidistant sessions resolve to the later one. bars must be non-empty.
func NearestIndex(bars []earnings.DailyBar, date time.Time) int {
	best := 0
	bestDist := -1
	for i, bar := range bars {
		dist := earnings.DaysBetween(bar.Date, date)
		if dist < 0 {
			dist = -dist
		}
		if bestDist < 0 || dist <= bestDist {
			best, bestDist = i, dist
		}
	}
	return best
}

// Surprise returns (actual - estimate) / |estimate| * 100, or an invalid value when either
// figure is missing or the estimate is zero.
func Surprise(estimate, actual decimal.NullDecimal) decimal.NullDecimal {
	if !estimate.Valid || !actual.Valid || estimate.Decimal.IsZero() {
		return decimal.NullDecimal{}
	}
	diff := actual.Decimal.Sub(estimate.Decimal)
	return decimal.NewNullDecimal(diff.Mul(hundred).Div(estimate.Decimal.Abs()))
}

// extreme picks whichever of high or low deviates more from base; low wins ties.
func extreme(base, high, low decimal.Decimal) decimal.Decimal {
	if high.Sub(base).Abs().GreaterThan(low.Sub(base).Abs()) {
		return high
	}
	return low
}

func pctChange(base, value decimal.Decimal) decimal.Decimal {
	return value.Sub(base).Mul(hundred).Div(base)
}
