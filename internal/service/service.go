package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"earnings-insight/internal/calendar"
	"earnings-insight/internal/config"
	"earnings-insight/internal/earnings"
	"earnings-insight/internal/fetcher"
	"earnings-insight/internal/reaction"
	"earnings-insight/internal/report"
	"earnings-insight/internal/trace"
)

// EventSource is the calendar lookup the service depends on.
type EventSource interface {
	Fetch(ctx context.Context, symbol string, maxCount int, now time.Time) (calendar.EventSet, error)
}

// Options tune the per-request work.
type Options struct {
	// WindowDays is the number of calendar days fetched on each side of an event date.
	WindowDays int
	// Now overrides the clock, mainly for tests.
	Now func() time.Time
}

// Service orchestrates calendar lookup, per-event price reactions and aggregation.
type Service struct {
	events EventSource
	quotes fetcher.QuoteFetcher
	bars   fetcher.BarFetcher
	logger zerolog.Logger

	window int
	now    func() time.Time
}

// New constructs the analysis service.
func New(opts Options, events EventSource, quotes fetcher.QuoteFetcher, bars fetcher.BarFetcher, logger zerolog.Logger) *Service {
	window := opts.WindowDays
	if window <= 0 {
		window = 7
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		events: events,
		quotes: quotes,
		bars:   bars,
		logger: logger.With().Str("component", "service").Logger(),
		window: window,
		now:    now,
	}
}

// Analyze measures the price reaction to up to count past earnings reports of symbol.
// Provider failures are reported through the result status; the returned error is set
// only for invalid input or a cancelled context.
func (s *Service) Analyze(ctx context.Context, symbol string, count int) (report.AnalysisResult, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return report.AnalysisResult{}, errors.New("symbol required")
	}
	if err := config.ValidateEvents(count); err != nil {
		return report.AnalysisResult{}, err
	}

	runID := uuid.NewString()
	ctx, span := trace.StartSpan(ctx, "analysis.Analyze")
	defer span.End()
	span.SetAttributes(
		attribute.String("symbol", symbol),
		attribute.Int("events.requested", count),
		attribute.String("run_id", runID),
	)

	logger := s.logger.With().Str("run_id", runID).Str("symbol", symbol).Logger()
	now := s.now().UTC()

	quote := s.quote(ctx, logger, symbol)

	set, err := s.calendar(ctx, symbol, count, now)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return report.AnalysisResult{}, ctxErr
		}
		span.SetStatus(codes.Error, "no earnings source")
		logger.Info().Err(err).Msg("earnings calendar unavailable")
		return report.Unavailable(symbol, quote, err, now), nil
	}

	batch := reaction.NewBatch()
	for _, ev := range set.Past {
		if err := ctx.Err(); err != nil {
			return report.AnalysisResult{}, err
		}
		outcome := s.resolve(ctx, ev)
		if !outcome.Resolved() {
			logger.Debug().Err(outcome.Err).Str("date", ev.Date.Format(earnings.DateLayout)).Msg("event dropped")
		}
		batch.Fold(outcome)
	}

	stats := batch.Stats()
	span.SetAttributes(
		attribute.String("source", set.Source),
		attribute.Int("events.resolved", stats.Resolved),
		attribute.Int("events.dropped", stats.Dropped),
	)

	res := report.Aggregate(symbol, batch.Records(), quote, set.Next, set.Source, stats, now)
	logger.Info().
		Str("source", set.Source).
		Str("status", res.Status.String()).
		Int("resolved", stats.Resolved).
		Int("dropped", stats.Dropped).
		Msg("analysis complete")
	return res, nil
}

func (s *Service) quote(ctx context.Context, logger zerolog.Logger, symbol string) report.Quote {
	if s.quotes == nil {
		return report.ZeroQuote()
	}
	q, err := s.quotes.FetchQuote(ctx, symbol)
	if err != nil {
		logger.Warn().Err(err).Msg("live quote unavailable")
		return report.ZeroQuote()
	}
	return report.NewQuote(q.Last, q.PreviousClose)
}

func (s *Service) calendar(ctx context.Context, symbol string, count int, now time.Time) (calendar.EventSet, error) {
	ctx, span := trace.StartSpan(ctx, "analysis.Calendar")
	defer span.End()

	if s.events == nil {
		return calendar.EventSet{}, calendar.ErrSourceUnavailable
	}
	set, err := s.events.Fetch(ctx, symbol, count, now)
	if err != nil {
		span.RecordError(err)
		return calendar.EventSet{}, err
	}
	span.SetAttributes(attribute.String("source", set.Source), attribute.Int("events.past", len(set.Past)))
	return set, nil
}

// resolve fetches the bars around one event and computes its reaction.
func (s *Service) resolve(ctx context.Context, ev earnings.Event) reaction.Outcome {
	ctx, span := trace.StartSpan(ctx, "analysis.Event")
	defer span.End()
	span.SetAttributes(
		attribute.String("date", ev.Date.Format(earnings.DateLayout)),
		attribute.String("timing", ev.Timing.String()),
	)

	if s.bars == nil {
		return reaction.Failed(ev, errors.New("no bar source configured"))
	}

	from, to := Window(ev.Date, s.window)
	bars, err := s.bars.FetchBars(ctx, ev.Symbol, from, to)
	if err != nil {
		span.RecordError(err)
		return reaction.Failed(ev, fmt.Errorf("fetch bars: %w", err))
	}

	outcome := reaction.Resolve(ev, bars)
	span.SetAttributes(attribute.Bool("resolved", outcome.Resolved()))
	return outcome
}

// Window returns the half-open bar range [date-days, date+days).
func Window(date time.Time, days int) (from, to time.Time) {
	d := earnings.CivilDate(date)
	return d.AddDate(0, 0, -days), d.AddDate(0, 0, days)
}
