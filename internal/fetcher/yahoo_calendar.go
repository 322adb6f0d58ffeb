package fetcher

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"earnings-insight/internal/calendar"
	"earnings-insight/internal/earnings"
)

const yahooCalendarPath = "/calendar/earnings"

const defaultYahooWeb = "https://finance.yahoo.com"

var newYork = func() *time.Location {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		panic("load America/New_York: " + err.Error())
	}
	return loc
}()

// YahooCalendarOptions parameterise the Yahoo earnings calendar scraper.
type YahooCalendarOptions struct {
	BaseURL   string
	Timeout   time.Duration
	UserAgent string
}

// YahooCalendar scrapes the public Yahoo earnings calendar page. It is the fallback source.
type YahooCalendar struct {
	opts    YahooCalendarOptions
	logger  zerolog.Logger
	baseURL string
}

// NewYahooCalendar constructs the scraper.
func NewYahooCalendar(opts YahooCalendarOptions, logger zerolog.Logger) *YahooCalendar {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if strings.TrimSpace(opts.UserAgent) == "" {
		opts.UserAgent = defaultUserAgent
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultYahooWeb
	}
	return &YahooCalendar{
		opts:    opts,
		logger:  logger.With().Str("component", "yahoo_calendar").Logger(),
		baseURL: baseURL,
	}
}

// Name identifies the source in results and logs.
func (y *YahooCalendar) Name() string { return "yahoo" }

// Events scrapes up to limit calendar rows for symbol.
func (y *YahooCalendar) Events(ctx context.Context, symbol string, limit int) ([]earnings.Event, error) {
	if strings.TrimSpace(symbol) == "" {
		return nil, errors.New("symbol required")
	}

	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("offset", "0")
	params.Set("size", strconv.Itoa(limit))
	target := y.baseURL + yahooCalendarPath + "?" + params.Encode()

	c := colly.NewCollector(
		colly.UserAgent(y.opts.UserAgent),
		colly.AllowURLRevisit(),
		colly.Async(false),
	)
	c.Context = ctx
	c.SetRequestTimeout(y.opts.Timeout)

	var (
		events   []earnings.Event
		parseErr error
	)
	c.OnRequest(func(r *colly.Request) {
		r.Headers.Set("Accept", "text/html")
	})
	c.OnResponse(func(r *colly.Response) {
		events, parseErr = parseCalendarHTML(bytes.NewReader(r.Body), symbol, y.logger)
	})
	c.OnError(func(r *colly.Response, err error) {
		y.logger.Debug().Err(err).Int("status", r.StatusCode).Str("url", r.Request.URL.String()).Msg("calendar request failed")
	})

	if err := c.Visit(target); err != nil {
		return nil, fmt.Errorf("yahoo calendar for %s: %w", symbol, err)
	}
	c.Wait()

	if parseErr != nil {
		return nil, fmt.Errorf("yahoo calendar for %s: %w", symbol, parseErr)
	}
	if len(events) > limit && limit > 0 {
		events = events[:limit]
	}

	y.logger.Debug().Str("symbol", symbol).Int("events", len(events)).Msg("calendar scraped")
	return events, nil
}

// parseCalendarHTML reads the earnings table. Columns are located by header text so
// reordering on the page does not break extraction.
func parseCalendarHTML(r io.Reader, symbol string, logger zerolog.Logger) ([]earnings.Event, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	table := doc.Find("table").First()
	if table.Length() == 0 {
		return nil, errors.New("earnings table not found")
	}

	cols := map[string]int{}
	table.Find("thead th").Each(func(i int, th *goquery.Selection) {
		cols[strings.ToLower(strings.TrimSpace(th.Text()))] = i
	})
	dateCol, ok := cols["earnings date"]
	if !ok {
		return nil, errors.New("earnings date column not found")
	}
	estCol, hasEst := cols["eps estimate"]
	actCol, hasAct := cols["reported eps"]

	var events []earnings.Event
	table.Find("tbody tr").Each(func(_ int, tr *goquery.Selection) {
		cells := tr.Find("td")
		cell := func(i int) string {
			return strings.TrimSpace(cells.Eq(i).Text())
		}

		reportedAt, err := parseCalendarTime(cell(dateCol))
		if err != nil {
			logger.Debug().Err(err).Str("symbol", symbol).Msg("skip calendar row")
			return
		}
		ev := earnings.NewEvent(symbol, reportedAt, earnings.ClassifyHour(reportedAt.Hour()))

		var est, act decimal.NullDecimal
		if hasEst {
			est = parseEPSCell(cell(estCol))
		}
		if hasAct {
			act = parseEPSCell(cell(actCol))
		}
		events = append(events, ev.WithEPS(est, act))
	})
	return events, nil
}

var calendarLayouts = []string{
	"Jan 2, 2006, 3 PM",
	"Jan 2, 2006, 3:04 PM",
	"Jan 2, 2006 at 3 PM",
	"Jan 2, 2006 at 3:04 PM",
	"Jan 2, 2006",
}

// calendarZone matches a meridiem followed by a zone abbreviation, with or without a
// separating space ("4 PM EDT", "4 PMEDT", "4PMEST").
var calendarZone = regexp.MustCompile(`(\d)\s*([AP]M)\s*[A-Za-z]*$`)

// parseCalendarTime reads values like "Oct 30, 2025, 4 PM EDT" as New York time.
func parseCalendarTime(s string) (time.Time, error) {
	s = calendarZone.ReplaceAllString(strings.TrimSpace(s), "$1 $2")
	if i := strings.LastIndexByte(s, ' '); i > 0 {
		switch s[i+1:] {
		case "EDT", "EST", "ET":
			s = s[:i]
		}
	}
	for _, layout := range calendarLayouts {
		if t, err := time.ParseInLocation(layout, s, newYork); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised calendar date %q", s)
}

func parseEPSCell(s string) decimal.NullDecimal {
	s = strings.TrimSpace(strings.TrimPrefix(s, "+"))
	if s == "" || s == "-" || s == "--" {
		return decimal.NullDecimal{}
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(d)
}

var _ calendar.Source = (*YahooCalendar)(nil)
