package earnings

import (
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the civil date format used by providers and CLI flags.
const DateLayout = "2006-01-02"

// Timing tells whether a report was released before the open or after the close.
type Timing int

const (
	Unknown Timing = iota
	BeforeOpen
	AfterClose
)

// String returns the short market label (BMO/AMC).
func (t Timing) String() string {
	switch t {
	case BeforeOpen:
		return "BMO"
	case AfterClose:
		return "AMC"
	default:
		return "UNKNOWN"
	}
}

// Event is a provider-agnostic earnings report.
type Event struct {
	Symbol     string
	Date       time.Time
	ReportedAt time.Time
	Timing     Timing
	PreOffset  int
	PostOffset int

	EPSEstimate decimal.NullDecimal
	EPSActual   decimal.NullDecimal
}

// NewEvent builds an event whose offsets follow from timing.
func NewEvent(symbol string, reportedAt time.Time, timing Timing) Event {
	pre, post := OffsetsFor(timing)
	return Event{
		Symbol:     symbol,
		Date:       CivilDate(reportedAt),
		ReportedAt: reportedAt,
		Timing:     timing,
		PreOffset:  pre,
		PostOffset: post,
	}
}

// WithEPS returns a copy of e carrying the given EPS figures.
func (e Event) WithEPS(estimate, actual decimal.NullDecimal) Event {
	e.EPSEstimate = estimate
	e.EPSActual = actual
	return e
}

// DailyBar is one trading session of OHLC prices.
type DailyBar struct {
	Date  time.Time
	Open  decimal.Decimal
	High  decimal.Decimal
	Low   decimal.Decimal
	Close decimal.Decimal
}

// CivilDate strips the time of day, keeping the calendar date as seen in t's location.
func CivilDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysBetween returns the signed number of calendar days from a to b.
func DaysBetween(a, b time.Time) int {
	return int(CivilDate(b).Sub(CivilDate(a)).Hours() / 24)
}
