package fetcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"earnings-insight/internal/earnings"
)

const calendarPage = `<html><body><table>
<thead><tr><th>Symbol</th><th>Company</th><th>Earnings Date</th><th>EPS Estimate</th><th>Reported EPS</th><th>Surprise (%)</th></tr></thead>
<tbody>
<tr><td>AAPL</td><td>Apple Inc.</td><td>Jan 30, 2025, 4 PM EST</td><td>2.35</td><td>-</td><td>-</td></tr>
<tr><td>AAPL</td><td>Apple Inc.</td><td>Oct 31, 2024, 4 PM EDT</td><td>1.60</td><td>1.64</td><td>+2.5</td></tr>
<tr><td>AAPL</td><td>Apple Inc.</td><td>Aug 1, 2024 at 8:30 AM EDT</td><td>1.35</td><td>1.40</td><td>+3.7</td></tr>
<tr><td>AAPL</td><td>Apple Inc.</td><td>soon</td><td>-</td><td>-</td><td>-</td></tr>
</tbody></table></body></html>`

func TestParseCalendarHTML(t *testing.T) {
	events, err := parseCalendarHTML(strings.NewReader(calendarPage), "AAPL", noopLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(events))
	}

	if events[0].Timing != earnings.AfterClose || events[0].EPSActual.Valid {
		t.Fatalf("unexpected upcoming event %+v", events[0])
	}
	if events[2].Timing != earnings.BeforeOpen {
		t.Fatalf("expected BMO, got %s", events[2].Timing)
	}
	if !events[1].EPSActual.Decimal.Equal(decimal.RequireFromString("1.64")) {
		t.Fatalf("unexpected actual %s", events[1].EPSActual.Decimal)
	}
	want := time.Date(2024, 10, 31, 0, 0, 0, 0, time.UTC)
	if !events[1].Date.Equal(want) {
		t.Fatalf("expected %s, got %s", want, events[1].Date)
	}
}

func TestParseCalendarHTMLMissingTable(t *testing.T) {
	if _, err := parseCalendarHTML(strings.NewReader("<html><body>nothing</body></html>"), "AAPL", noopLogger()); err == nil {
		t.Fatal("expected error without table")
	}
}

const spanZonePage = `<html><body><table>
<thead><tr><th>Symbol</th><th>Earnings Date</th><th>EPS Estimate</th><th>Reported EPS</th></tr></thead>
<tbody>
<tr><td>AAPL</td><td>Oct 30, 2025, 4 PM<span>EDT</span></td><td>1.77</td><td>1.85</td></tr>
<tr><td>AAPL</td><td>Jul 31, 2025, 8:30 AM<span>EDT</span></td><td>1.43</td><td>1.57</td></tr>
</tbody></table></body></html>`

func TestParseCalendarHTMLZoneInOwnElement(t *testing.T) {
	events, err := parseCalendarHTML(strings.NewReader(spanZonePage), "AAPL", noopLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].Timing != earnings.AfterClose || events[1].Timing != earnings.BeforeOpen {
		t.Fatalf("unexpected timings %s, %s", events[0].Timing, events[1].Timing)
	}
	want := time.Date(2025, 10, 30, 0, 0, 0, 0, time.UTC)
	if !events[0].Date.Equal(want) {
		t.Fatalf("expected %s, got %s", want, events[0].Date)
	}
}

func TestParseCalendarTimeZoneSuffixes(t *testing.T) {
	for _, in := range []string{
		"Oct 30, 2025, 4 PM EDT",
		"Oct 30, 2025, 4 PMEDT",
		"Oct 30, 2025, 4PMEDT",
		"Oct 30, 2025, 4 PM",
	} {
		ts, err := parseCalendarTime(in)
		if err != nil {
			t.Fatalf("%q: %v", in, err)
		}
		if ts.Hour() != 16 {
			t.Fatalf("%q: expected hour 16, got %d", in, ts.Hour())
		}
	}
	if _, err := parseCalendarTime("soon"); err == nil {
		t.Fatal("expected error for unrecognised date")
	}
}

func TestParseCalendarTimeHourBoundary(t *testing.T) {
	cases := []struct {
		in   string
		want earnings.Timing
	}{
		{"Oct 31, 2024, 3 PM EDT", earnings.AfterClose},
		{"Oct 31, 2024, 2:59 PM EDT", earnings.BeforeOpen},
		{"Oct 31, 2024", earnings.BeforeOpen},
	}
	for _, tc := range cases {
		ts, err := parseCalendarTime(tc.in)
		if err != nil {
			t.Fatalf("%s: %v", tc.in, err)
		}
		if got := earnings.ClassifyHour(ts.Hour()); got != tc.want {
			t.Fatalf("%s: expected %s, got %s", tc.in, tc.want, got)
		}
	}
}

func TestYahooCalendarEvents(t *testing.T) {
	var gotSymbol string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSymbol = r.URL.Query().Get("symbol")
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(calendarPage))
	}))
	defer srv.Close()

	y := NewYahooCalendar(YahooCalendarOptions{BaseURL: srv.URL}, noopLogger())
	events, err := y.Events(context.Background(), "AAPL", 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotSymbol != "AAPL" {
		t.Fatalf("unexpected symbol %q", gotSymbol)
	}
	if len(events) != 2 {
		t.Fatalf("expected limit to apply, got %d", len(events))
	}
}

func TestYahooCalendarHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	y := NewYahooCalendar(YahooCalendarOptions{BaseURL: srv.URL}, noopLogger())
	if _, err := y.Events(context.Background(), "ZZZZ", 8); err == nil {
		t.Fatal("expected error for 404")
	}
}
