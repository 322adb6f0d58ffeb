package reaction

import (
	"errors"

	"earnings-insight/internal/earnings"
)

// Drop reasons reported in Stats.
const (
	ReasonNoBars       = "no_bars"
	ReasonOutOfWindow  = "out_of_window"
	ReasonZeroBaseline = "zero_baseline"
	ReasonFetchFailed  = "fetch_failed"
)

// Outcome is the result of resolving one event: either a record or the reason it was dropped.
type Outcome struct {
	Event  earnings.Event
	Record Record
	Err    error
}

// Resolved reports whether the outcome produced a record.
func (o Outcome) Resolved() bool {
	return o.Err == nil
}

// Resolve computes the outcome for event over bars.
func Resolve(event earnings.Event, bars []earnings.DailyBar) Outcome {
	rec, err := Compute(event, bars)
	return Outcome{Event: event, Record: rec, Err: err}
}

// Failed wraps a price retrieval failure as a dropped outcome.
func Failed(event earnings.Event, err error) Outcome {
	return Outcome{Event: event, Err: err}
}

// Stats counts how many events resolved versus dropped, keyed by reason.
type Stats struct {
	Requested int
	Resolved  int
	Dropped   int
	Reasons   map[string]int
}

// Batch folds outcomes in event order.
type Batch struct {
	records []Record
	stats   Stats
}

// NewBatch creates an empty batch.
func NewBatch() *Batch {
	return &Batch{stats: Stats{Reasons: make(map[string]int)}}
}

// Fold adds one outcome. Dropped outcomes only count towards the stats.
func (b *Batch) Fold(o Outcome) {
	b.stats.Requested++
	if o.Resolved() {
		b.stats.Resolved++
		b.records = append(b.records, o.Record)
		return
	}
	b.stats.Dropped++
	b.stats.Reasons[reasonOf(o.Err)]++
}

// Records returns the resolved records in fold order.
func (b *Batch) Records() []Record {
	out := make([]Record, len(b.records))
	copy(out, b.records)
	return out
}

// Stats returns a snapshot of the counters.
func (b *Batch) Stats() Stats {
	reasons := make(map[string]int, len(b.stats.Reasons))
	for k, v := range b.stats.Reasons {
		reasons[k] = v
	}
	s := b.stats
	s.Reasons = reasons
	return s
}

func reasonOf(err error) string {
	switch {
	case errors.Is(err, ErrNoBars):
		return ReasonNoBars
	case errors.Is(err, ErrOutOfWindow):
		return ReasonOutOfWindow
	case errors.Is(err, ErrZeroBaseline):
		return ReasonZeroBaseline
	default:
		return ReasonFetchFailed
	}
}
