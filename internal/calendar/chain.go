package calendar

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"earnings-insight/internal/earnings"
)

var (
	// ErrSourceUnavailable is returned when no source in the chain produced usable events.
	ErrSourceUnavailable = errors.New("calendar: no earnings source available")
	// ErrNoEvents marks a source that answered but had nothing usable.
	ErrNoEvents = errors.New("calendar: source returned no events")
)

// Source produces classified earnings events for a symbol, most recent first.
// Events may include future, not yet reported dates.
type Source interface {
	Name() string
	Events(ctx context.Context, symbol string, limit int) ([]earnings.Event, error)
}

// EventSet is the outcome of a successful chain lookup.
type EventSet struct {
	Source string
	Past   []earnings.Event
	Next   *earnings.Event
}

// ChainOptions configure which sources participate in a lookup.
type ChainOptions struct {
	// PrimaryKey is the credential of the primary source; the primary is skipped when empty.
	PrimaryKey string
	// FetchLimit bounds how many raw entries each source is asked for.
	FetchLimit int
}

// Chain tries sources in priority order until one yields events.
type Chain struct {
	sources    []Source
	fetchLimit int
	logger     zerolog.Logger
}

// NewChain assembles a chain. primary joins the chain only when opts.PrimaryKey is set;
// fallbacks are always tried, in the order given.
func NewChain(opts ChainOptions, primary Source, fallbacks []Source, logger zerolog.Logger) *Chain {
	sources := make([]Source, 0, len(fallbacks)+1)
	if primary != nil && opts.PrimaryKey != "" {
		sources = append(sources, primary)
	}
	for _, src := range fallbacks {
		if src != nil {
			sources = append(sources, src)
		}
	}
	return &Chain{
		sources:    sources,
		fetchLimit: opts.FetchLimit,
		logger:     logger.With().Str("component", "calendar_chain").Logger(),
	}
}

// Sources lists the names of the participating sources in order.
func (c *Chain) Sources() []string {
	names := make([]string, len(c.sources))
	for i, src := range c.sources {
		names[i] = src.Name()
	}
	return names
}

// Fetch returns up to maxCount events reported before now, plus the next upcoming event.
// Each source is asked at most once.
func (c *Chain) Fetch(ctx context.Context, symbol string, maxCount int, now time.Time) (EventSet, error) {
	if len(c.sources) == 0 {
		return EventSet{}, fmt.Errorf("%w: chain is empty", ErrSourceUnavailable)
	}

	limit := c.fetchLimit
	if limit < maxCount {
		limit = maxCount
	}

	var lastErr error
	for i, src := range c.sources {
		if err := ctx.Err(); err != nil {
			return EventSet{}, err
		}

		events, err := src.Events(ctx, symbol, limit)
		if err == nil && len(events) == 0 {
			err = ErrNoEvents
		}
		if err == nil {
			set := Split(events, maxCount, now)
			set.Source = src.Name()
			if len(set.Past) == 0 && set.Next == nil {
				err = ErrNoEvents
			} else {
				c.logger.Debug().Str("symbol", symbol).Str("source", src.Name()).
					Int("past", len(set.Past)).Msg("earnings calendar resolved")
				return set, nil
			}
		}

		lastErr = err
		ev := c.logger.Warn()
		if i == len(c.sources)-1 {
			ev = c.logger.Error()
		}
		ev.Err(err).Str("symbol", symbol).Str("source", src.Name()).Msg("earnings source failed")
	}

	return EventSet{}, fmt.Errorf("%w: %w", ErrSourceUnavailable, lastErr)
}

// Split keeps the first maxCount events reported strictly before now, preserving source
// order, and picks the earliest event at or after now as the next one.
func Split(events []earnings.Event, maxCount int, now time.Time) EventSet {
	var set EventSet
	for i := range events {
		ev := events[i]
		if ev.ReportedAt.Before(now) {
			if len(set.Past) < maxCount {
				set.Past = append(set.Past, ev)
			}
			continue
		}
		if set.Next == nil || ev.ReportedAt.Before(set.Next.ReportedAt) {
			next := ev
			set.Next = &next
		}
	}
	return set
}
