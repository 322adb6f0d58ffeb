package fetcher

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"earnings-insight/internal/earnings"
)

func TestFMPEvents(t *testing.T) {
	var gotKey, gotLimit string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v3/historical/earning_calendar/AAPL" {
			http.NotFound(w, r)
			return
		}
		gotKey = r.URL.Query().Get("apikey")
		gotLimit = r.URL.Query().Get("limit")
		_, _ = w.Write([]byte(`[
			{"symbol":"AAPL","date":"2025-01-30","time":"amc","eps":null,"epsEstimated":2.35},
			{"symbol":"AAPL","date":"2024-10-31","time":"amc","eps":1.64,"epsEstimated":1.6},
			{"symbol":"AAPL","date":"2024-08-01","time":"bmo","eps":1.4,"epsEstimated":1.35},
			{"symbol":"AAPL","date":"2024-05-02","time":"--","eps":1.53,"epsEstimated":1.5},
			{"symbol":"AAPL","date":"not-a-date","time":"amc"}
		]`))
	}))
	defer srv.Close()

	f := NewFMP(FMPOptions{BaseURL: srv.URL, APIKey: "secret"}, noopLogger())
	events, err := f.Events(context.Background(), "AAPL", 12)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotKey != "secret" || gotLimit != "12" {
		t.Fatalf("unexpected query apikey=%s limit=%s", gotKey, gotLimit)
	}
	if len(events) != 4 {
		t.Fatalf("expected 4 events, got %d", len(events))
	}

	if events[0].Timing != earnings.AfterClose || events[0].EPSActual.Valid {
		t.Fatalf("unexpected upcoming event %+v", events[0])
	}
	if !events[0].EPSEstimate.Decimal.Equal(decimal.RequireFromString("2.35")) {
		t.Fatalf("unexpected estimate %s", events[0].EPSEstimate.Decimal)
	}
	if events[2].Timing != earnings.BeforeOpen || events[2].PreOffset != -1 || events[2].PostOffset != 0 {
		t.Fatalf("unexpected bmo event %+v", events[2])
	}
	if events[3].Timing != earnings.Unknown || events[3].PostOffset != 1 {
		t.Fatalf("unexpected unknown event %+v", events[3])
	}
	want := time.Date(2024, 10, 31, 0, 0, 0, 0, time.UTC)
	if !events[1].Date.Equal(want) {
		t.Fatalf("expected date %s, got %s", want, events[1].Date)
	}
}

func TestFMPClockTime(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[
			{"date":"2024-10-31","time":"16:30"},
			{"date":"2024-08-01","time":"08:00:00"},
			{"date":"2024-05-02","time":"02:00"}
		]`))
	}))
	defer srv.Close()

	events, err := NewFMP(FMPOptions{BaseURL: srv.URL, APIKey: "k"}, noopLogger()).Events(context.Background(), "MSFT", 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := []earnings.Timing{events[0].Timing, events[1].Timing, events[2].Timing}
	want := []earnings.Timing{earnings.AfterClose, earnings.BeforeOpen, earnings.Unknown}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("event %d: expected %s, got %s", i, want[i], got[i])
		}
	}
	if events[0].ReportedAt.In(newYork).Hour() != 16 {
		t.Fatalf("expected clock time to be kept, got %s", events[0].ReportedAt)
	}
}

func TestFMPErrorMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"Error Message":"Invalid API KEY."}`))
	}))
	defer srv.Close()

	_, err := NewFMP(FMPOptions{BaseURL: srv.URL, APIKey: "bad"}, noopLogger()).Events(context.Background(), "AAPL", 8)
	if err == nil || !strings.Contains(err.Error(), "Invalid API KEY") {
		t.Fatalf("expected api error, got %v", err)
	}
}

func TestFMPHTTPStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := NewFMP(FMPOptions{BaseURL: srv.URL, APIKey: "k"}, noopLogger()).Events(context.Background(), "AAPL", 8)
	if err == nil || !strings.Contains(err.Error(), "429") {
		t.Fatalf("expected status error, got %v", err)
	}
}

func TestFMPTransportErrorHidesKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	base := srv.URL
	srv.Close()

	_, err := NewFMP(FMPOptions{BaseURL: base, APIKey: "SECRET123"}, noopLogger()).Events(context.Background(), "AAPL", 8)
	if err == nil {
		t.Fatal("expected transport error")
	}
	if strings.Contains(err.Error(), "SECRET123") || strings.Contains(err.Error(), "apikey") {
		t.Fatalf("error leaks api key: %v", err)
	}
}

func TestFMPCancelledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewFMP(FMPOptions{BaseURL: srv.URL, APIKey: "SECRET123"}, noopLogger()).Events(ctx, "AAPL", 8)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if strings.Contains(err.Error(), "SECRET123") {
		t.Fatalf("error leaks api key: %v", err)
	}
}

func TestFMPMissingKey(t *testing.T) {
	if _, err := NewFMP(FMPOptions{}, noopLogger()).Events(context.Background(), "AAPL", 8); err == nil {
		t.Fatal("expected error without api key")
	}
}
