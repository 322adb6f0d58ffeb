package fetcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"earnings-insight/internal/calendar"
	"earnings-insight/internal/earnings"
)

const (
	fmpCalendarPath = "/api/v3/historical/earning_calendar/"
	defaultFMPBase  = "https://financialmodelingprep.com"
)

// FMPOptions parameterise the Financial Modeling Prep calendar client.
type FMPOptions struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// FMP is the primary earnings calendar source.
type FMP struct {
	opts    FMPOptions
	logger  zerolog.Logger
	client  *http.Client
	baseURL string
}

// NewFMP constructs the calendar client.
func NewFMP(opts FMPOptions, logger zerolog.Logger) *FMP {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultFMPBase
	}
	return &FMP{
		opts:    opts,
		logger:  logger.With().Str("component", "fmp_calendar").Logger(),
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
	}
}

// Name identifies the source in results and logs.
func (f *FMP) Name() string { return "fmp" }

// Events returns the symbol's historical and scheduled reports, most recent first.
func (f *FMP) Events(ctx context.Context, symbol string, limit int) ([]earnings.Event, error) {
	if f.opts.APIKey == "" {
		return nil, errors.New("fmp api key not configured")
	}
	if strings.TrimSpace(symbol) == "" {
		return nil, errors.New("symbol required")
	}

	params := url.Values{}
	params.Set("limit", strconv.Itoa(limit))
	params.Set("apikey", f.opts.APIKey)
	endpoint := f.baseURL + fmpCalendarPath + url.PathEscape(symbol) + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("fmp request: %w", redactURL(err))
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fmp request: %w", redactURL(err))
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, parseFMPError(resp.StatusCode, payload)
	}

	var rows []fmpRow
	if err := json.Unmarshal(payload, &rows); err != nil {
		// Errors arrive as an object with status 200.
		return nil, parseFMPError(resp.StatusCode, payload)
	}

	events := make([]earnings.Event, 0, len(rows))
	for _, row := range rows {
		ev, err := row.event(symbol)
		if err != nil {
			f.logger.Debug().Err(err).Str("symbol", symbol).Str("date", row.Date).Msg("skip calendar row")
			continue
		}
		events = append(events, ev)
	}

	f.logger.Debug().Str("symbol", symbol).Int("rows", len(rows)).Int("events", len(events)).Msg("calendar fetched")
	return events, nil
}

// redactURL drops the request URL, which carries the api key, from transport errors.
func redactURL(err error) error {
	var uerr *url.Error
	if errors.As(err, &uerr) {
		return uerr.Err
	}
	return err
}

type fmpRow struct {
	Symbol           string   `json:"symbol"`
	Date             string   `json:"date"`
	Time             string   `json:"time"`
	EPS              *float64 `json:"eps"`
	EPSEstimated     *float64 `json:"epsEstimated"`
	FiscalDateEnding string   `json:"fiscalDateEnding"`
}

func (r fmpRow) event(symbol string) (earnings.Event, error) {
	day, err := time.ParseInLocation(earnings.DateLayout, strings.TrimSpace(r.Date), newYork)
	if err != nil {
		return earnings.Event{}, fmt.Errorf("parse date: %w", err)
	}

	reportedAt := day
	timing := earnings.ClassifyLabel(r.Time)
	if clock, ok := parseClock(r.Time); ok {
		reportedAt = day.Add(clock)
		timing = earnings.ClassifySessionHour(int(clock.Hours()))
	}

	ev := earnings.NewEvent(symbol, reportedAt, timing)
	return ev.WithEPS(nullDecimal(r.EPSEstimated), nullDecimal(r.EPS)), nil
}

// parseClock accepts "HH:MM" or "HH:MM:SS" and returns the offset into the day.
func parseClock(s string) (time.Duration, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{"15:04:05", "15:04"} {
		if t, err := time.Parse(layout, s); err == nil {
			return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, true
		}
	}
	return 0, false
}

func nullDecimal(v *float64) decimal.NullDecimal {
	if v == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(decimal.NewFromFloat(*v))
}

func parseFMPError(status int, payload []byte) error {
	var body struct {
		Message string `json:"Error Message"`
	}
	if err := json.Unmarshal(payload, &body); err == nil && body.Message != "" {
		return fmt.Errorf("fmp api error (%d): %s", status, body.Message)
	}
	if len(payload) > 0 {
		return fmt.Errorf("fmp api error (%d): %s", status, truncate(strings.TrimSpace(string(payload)), 200))
	}
	return fmt.Errorf("fmp api error (%d)", status)
}

var _ calendar.Source = (*FMP)(nil)
