package app

import (
	"context"
	"errors"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"

	"earnings-insight/internal/calendar"
	"earnings-insight/internal/config"
	"earnings-insight/internal/fetcher"
	"earnings-insight/internal/service"
	"earnings-insight/internal/storage"
	"earnings-insight/internal/trace"
	"earnings-insight/internal/version"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
	Out    io.Writer

	shutdownTracing trace.ShutdownFunc
}

// NewApp constructs a new application handle and installs tracing when enabled.
func NewApp(cfg *config.Config, logger zerolog.Logger) (*App, error) {
	shutdown, err := trace.Init(cfg.Tracing, version.Version, nil)
	if err != nil {
		return nil, err
	}
	return &App{
		Config:          cfg,
		Logger:          logger.With().Str("component", "app").Logger(),
		Out:             os.Stdout,
		shutdownTracing: shutdown,
	}, nil
}

// Close flushes pending spans.
func (a *App) Close() {
	if a.shutdownTracing == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := a.shutdownTracing(ctx); err != nil {
		a.Logger.Warn().Err(err).Msg("tracing shutdown failed")
	}
}

func (a *App) newYahoo() *fetcher.Yahoo {
	return fetcher.NewYahoo(fetcher.YahooOptions{
		BaseURL:   a.Config.Yahoo.BaseURL,
		Timeout:   a.Config.Yahoo.Timeout,
		UserAgent: a.Config.Yahoo.UserAgent,
		RateLimit: a.Config.Yahoo.RateLimit,
	}, a.Logger)
}

func (a *App) newChain() *calendar.Chain {
	primary := fetcher.NewFMP(fetcher.FMPOptions{
		BaseURL: a.Config.FMP.BaseURL,
		APIKey:  a.Config.FMP.APIKey,
		Timeout: a.Config.FMP.Timeout,
	}, a.Logger)

	fallback := fetcher.NewYahooCalendar(fetcher.YahooCalendarOptions{
		BaseURL:   a.Config.Yahoo.CalendarURL,
		Timeout:   a.Config.Yahoo.Timeout,
		UserAgent: a.Config.Yahoo.UserAgent,
	}, a.Logger)

	return calendar.NewChain(calendar.ChainOptions{
		PrimaryKey: a.Config.FMP.APIKey,
		FetchLimit: a.Config.Analysis.FetchLimit,
	}, primary, []calendar.Source{fallback}, a.Logger)
}

// newService wires the analysis service. The returned closer releases the bar store
// when prices are read from Postgres.
func (a *App) newService(ctx context.Context) (*service.Service, func(), error) {
	yahoo := a.newYahoo()

	var bars fetcher.BarFetcher = yahoo
	closer := func() {}
	if a.Config.Prices.Source == config.PriceSourcePostgres {
		store, closeStore, err := a.openStore(ctx)
		if err != nil {
			return nil, nil, err
		}
		if store == nil {
			return nil, nil, errors.New("database.dsn not configured; cannot read bars from postgres")
		}
		bars = store
		closer = closeStore
	}

	svc := service.New(service.Options{WindowDays: a.Config.Analysis.WindowDays}, a.newChain(), yahoo, bars, a.Logger)
	return svc, closer, nil
}

func (a *App) openStore(ctx context.Context) (*storage.Store, func(), error) {
	if a.Config.Database.DSN == "" {
		return nil, nil, nil
	}

	pool, err := storage.NewPool(ctx, a.Config.Database)
	if err != nil {
		return nil, nil, err
	}

	store := storage.NewStore(pool)
	closer := func() {
		store.Close()
	}
	return store, closer, nil
}

// Output formats for analyze.
const (
	FormatTable = "table"
	FormatJSON  = "json"
)

// AnalyzeOptions configure the analyze command.
type AnalyzeOptions struct {
	Symbol string
	Events int
	Format string
}

// ExportOptions hold parameters for exporting an analysis.
type ExportOptions struct {
	Symbol  string
	Events  int
	PNGPath string
	CSVPath string
}

// BarsOptions configure the bars command.
type BarsOptions struct {
	Symbol string
	Limit  int
}

// BackfillOptions configure the backfill job.
type BackfillOptions struct {
	Symbol string
	From   time.Time
	To     time.Time
	DryRun bool
}
