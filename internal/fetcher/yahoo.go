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
	"unicode/utf8"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"earnings-insight/internal/earnings"
)

const (
	yahooChartPath   = "/v8/finance/chart/"
	defaultYahooBase = "https://query1.finance.yahoo.com"
	defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36"
)

// YahooOptions parameterise the Yahoo chart client.
type YahooOptions struct {
	BaseURL   string
	Timeout   time.Duration
	UserAgent string
	// RateLimit is the number of requests per second; zero disables limiting.
	RateLimit float64
}

// Yahoo reads live quotes and daily bars from the Yahoo Finance chart API.
type Yahoo struct {
	opts    YahooOptions
	logger  zerolog.Logger
	client  *http.Client
	limiter *rate.Limiter
	baseURL string
}

// NewYahoo constructs a Yahoo chart client.
func NewYahoo(opts YahooOptions, logger zerolog.Logger) *Yahoo {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultYahooBase
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if opts.RateLimit > 0 {
		burst := int(opts.RateLimit)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}

	return &Yahoo{
		opts:    opts,
		logger:  logger.With().Str("component", "yahoo_chart").Logger(),
		client:  &http.Client{Timeout: timeout},
		limiter: limiter,
		baseURL: baseURL,
	}
}

// FetchQuote returns the regular market price and previous close.
func (y *Yahoo) FetchQuote(ctx context.Context, symbol string) (Quote, error) {
	params := url.Values{}
	params.Set("range", "1d")
	params.Set("interval", "1d")

	res, err := y.chart(ctx, symbol, params)
	if err != nil {
		return Quote{}, err
	}

	last := res.Meta.RegularMarketPrice
	if last == nil {
		return Quote{}, fmt.Errorf("yahoo quote for %s: missing regularMarketPrice", symbol)
	}
	prev := res.Meta.PreviousClose
	if prev == nil {
		prev = res.Meta.ChartPreviousClose
	}
	if prev == nil {
		return Quote{}, fmt.Errorf("yahoo quote for %s: missing previous close", symbol)
	}

	return Quote{
		Last:          decimal.NewFromFloat(*last),
		PreviousClose: decimal.NewFromFloat(*prev),
	}, nil
}

// FetchBars returns unadjusted daily bars for from <= date < to.
func (y *Yahoo) FetchBars(ctx context.Context, symbol string, from, to time.Time) ([]earnings.DailyBar, error) {
	if !from.Before(to) {
		return nil, errors.New("from must be before to")
	}

	params := url.Values{}
	params.Set("period1", strconv.FormatInt(from.Unix(), 10))
	params.Set("period2", strconv.FormatInt(to.Unix(), 10))
	params.Set("interval", "1d")
	params.Set("includePrePost", "false")

	res, err := y.chart(ctx, symbol, params)
	if err != nil {
		return nil, err
	}

	bars, err := res.bars()
	if err != nil {
		return nil, fmt.Errorf("yahoo bars for %s: %w", symbol, err)
	}

	first, last := earnings.CivilDate(from), earnings.CivilDate(to)
	out := bars[:0]
	for _, b := range bars {
		if b.Date.Before(first) || !b.Date.Before(last) {
			continue
		}
		out = append(out, b)
	}

	y.logger.Debug().Str("symbol", symbol).Int("bars", len(out)).
		Time("from", from).Time("to", to).Msg("daily bars fetched")
	return out, nil
}

func (y *Yahoo) chart(ctx context.Context, symbol string, params url.Values) (*chartResult, error) {
	if strings.TrimSpace(symbol) == "" {
		return nil, errors.New("symbol required")
	}
	if err := y.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("yahoo rate limiter: %w", err)
	}

	endpoint := y.baseURL + yahooChartPath + url.PathEscape(symbol) + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if ua := strings.TrimSpace(y.opts.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	} else {
		req.Header.Set("User-Agent", defaultUserAgent)
	}

	resp, err := y.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var body chartResponse
	if resp.StatusCode != http.StatusOK {
		return nil, parseChartError(resp.StatusCode, payload)
	}
	if err := json.Unmarshal(payload, &body); err != nil {
		return nil, fmt.Errorf("decode yahoo chart: %w", err)
	}
	if body.Chart.Error != nil {
		return nil, fmt.Errorf("yahoo api error: %s", body.Chart.Error.message())
	}
	if len(body.Chart.Result) == 0 {
		return nil, fmt.Errorf("yahoo chart for %s returned no result", symbol)
	}
	return &body.Chart.Result[0], nil
}

type chartResponse struct {
	Chart struct {
		Result []chartResult `json:"result"`
		Error  *chartError   `json:"error"`
	} `json:"chart"`
}

type chartResult struct {
	Meta struct {
		Symbol               string   `json:"symbol"`
		RegularMarketPrice   *float64 `json:"regularMarketPrice"`
		PreviousClose        *float64 `json:"previousClose"`
		ChartPreviousClose   *float64 `json:"chartPreviousClose"`
		ExchangeTimezoneName string   `json:"exchangeTimezoneName"`
		GMTOffset            int      `json:"gmtoffset"`
	} `json:"meta"`
	Timestamp  []int64 `json:"timestamp"`
	Indicators struct {
		Quote []struct {
			Open  []*float64 `json:"open"`
			High  []*float64 `json:"high"`
			Low   []*float64 `json:"low"`
			Close []*float64 `json:"close"`
		} `json:"quote"`
	} `json:"indicators"`
}

type chartError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

func (e *chartError) message() string {
	if e.Description != "" {
		return e.Description
	}
	return e.Code
}

func (r *chartResult) location() *time.Location {
	if r.Meta.ExchangeTimezoneName != "" {
		if loc, err := time.LoadLocation(r.Meta.ExchangeTimezoneName); err == nil {
			return loc
		}
	}
	return time.FixedZone("exchange", r.Meta.GMTOffset)
}

// bars converts the columnar chart payload into bars dated by exchange-local session.
// Sessions with any missing OHLC value are skipped.
func (r *chartResult) bars() ([]earnings.DailyBar, error) {
	if len(r.Timestamp) == 0 {
		return nil, nil
	}
	if len(r.Indicators.Quote) == 0 {
		return nil, errors.New("missing quote indicators")
	}
	q := r.Indicators.Quote[0]
	n := len(r.Timestamp)
	if len(q.Open) != n || len(q.High) != n || len(q.Low) != n || len(q.Close) != n {
		return nil, errors.New("indicator length mismatch")
	}

	loc := r.location()
	bars := make([]earnings.DailyBar, 0, n)
	for i, ts := range r.Timestamp {
		if q.Open[i] == nil || q.High[i] == nil || q.Low[i] == nil || q.Close[i] == nil {
			continue
		}
		bars = append(bars, earnings.DailyBar{
			Date:  earnings.CivilDate(time.Unix(ts, 0).In(loc)),
			Open:  decimal.NewFromFloat(*q.Open[i]),
			High:  decimal.NewFromFloat(*q.High[i]),
			Low:   decimal.NewFromFloat(*q.Low[i]),
			Close: decimal.NewFromFloat(*q.Close[i]),
		})
	}
	return bars, nil
}

func parseChartError(status int, payload []byte) error {
	var body chartResponse
	if err := json.Unmarshal(payload, &body); err == nil && body.Chart.Error != nil {
		return fmt.Errorf("yahoo api error (%d): %s", status, body.Chart.Error.message())
	}
	if len(payload) > 0 {
		return fmt.Errorf("yahoo api error (%d): %s", status, truncate(strings.TrimSpace(string(payload)), 200))
	}
	return fmt.Errorf("yahoo api error (%d)", status)
}

// truncate shortens s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}

var (
	_ QuoteFetcher = (*Yahoo)(nil)
	_ BarFetcher   = (*Yahoo)(nil)
)
