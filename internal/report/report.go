package report

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"earnings-insight/internal/earnings"
	"earnings-insight/internal/reaction"
)

// Status is the overall outcome of an analysis request.
type Status int

const (
	StatusOK Status = iota
	StatusInsufficientData
	StatusSourceUnavailable
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusInsufficientData:
		return "insufficient_data"
	case StatusSourceUnavailable:
		return "source_unavailable"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

var hundred = decimal.NewFromInt(100)

// Quote is the live price context shown next to the historical table.
type Quote struct {
	Price         decimal.Decimal
	PreviousClose decimal.Decimal
	ChangePct     decimal.Decimal
	Available     bool
}

// NewQuote derives the day-over-day change from the last price and previous close.
func NewQuote(last, previousClose decimal.Decimal) Quote {
	q := Quote{Price: last, PreviousClose: previousClose, Available: true}
	if !previousClose.IsZero() {
		q.ChangePct = last.Sub(previousClose).Mul(hundred).Div(previousClose)
	}
	return q
}

// ZeroQuote is substituted when the live quote could not be retrieved.
func ZeroQuote() Quote {
	return Quote{}
}

// NextEvent describes the next scheduled report.
type NextEvent struct {
	Date   time.Time
	Timing earnings.Timing
}

func (n NextEvent) String() string {
	return fmt.Sprintf("%s (%s)", n.Date.Format(earnings.DateLayout), n.Timing)
}

// Summary holds the averages of absolute moves across all records.
type Summary struct {
	MeanAbsGapPct decimal.Decimal
	MeanAbsMaxPct decimal.Decimal
}

// AnalysisResult is the complete answer to one analysis request.
type AnalysisResult struct {
	Symbol      string
	Status      Status
	Message     string
	Source      string
	Records     []reaction.Record
	Quote       Quote
	Next        *NextEvent
	Summary     *Summary
	Stats       reaction.Stats
	GeneratedAt time.Time
}

// Aggregate packages resolved records with the live context. With no records the result
// carries StatusInsufficientData and no summary.
func Aggregate(symbol string, records []reaction.Record, quote Quote, next *earnings.Event, source string, stats reaction.Stats, now time.Time) AnalysisResult {
	res := AnalysisResult{
		Symbol:      symbol,
		Status:      StatusOK,
		Source:      source,
		Records:     records,
		Quote:       quote,
		Stats:       stats,
		GeneratedAt: now,
	}
	if next != nil {
		res.Next = &NextEvent{Date: next.Date, Timing: next.Timing}
	}

	summary, ok := Summarize(records)
	if !ok {
		res.Status = StatusInsufficientData
		res.Message = "not enough price data to measure any earnings reaction"
		return res
	}
	res.Summary = &summary
	return res
}

// Unavailable reports that no earnings source could be used.
func Unavailable(symbol string, quote Quote, cause error, now time.Time) AnalysisResult {
	msg := "no earnings dates found"
	if cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, cause)
	}
	return AnalysisResult{
		Symbol:      symbol,
		Status:      StatusSourceUnavailable,
		Message:     msg,
		Quote:       quote,
		GeneratedAt: now,
	}
}

// Summarize returns the mean absolute gap and max move. ok is false for an empty slice.
func Summarize(records []reaction.Record) (Summary, bool) {
	if len(records) == 0 {
		return Summary{}, false
	}
	gap := decimal.Zero
	move := decimal.Zero
	for _, r := range records {
		gap = gap.Add(r.GapPct.Abs())
		move = move.Add(r.MaxPct.Abs())
	}
	n := decimal.NewFromInt(int64(len(records)))
	return Summary{MeanAbsGapPct: gap.Div(n), MeanAbsMaxPct: move.Div(n)}, true
}
