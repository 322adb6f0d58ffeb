package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"earnings-insight/internal/earnings"
	"earnings-insight/internal/fetcher"
)

var (
	// ErrNotConfigured indicates the storage pool was not initialised.
	ErrNotConfigured = errors.New("storage: pool not configured")
)

const (
	createSchemaSQL = `CREATE TABLE IF NOT EXISTS daily_bars (
        symbol     TEXT        NOT NULL,
        bar_date   DATE        NOT NULL,
        open       NUMERIC     NOT NULL,
        high       NUMERIC     NOT NULL,
        low        NUMERIC     NOT NULL,
        close      NUMERIC     NOT NULL,
        source     TEXT        NOT NULL,
        updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
        PRIMARY KEY (symbol, bar_date)
    );`

	upsertBarSQL = `INSERT INTO daily_bars (
        symbol,
        bar_date,
        open,
        high,
        low,
        close,
        source
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7
    )
    ON CONFLICT (symbol, bar_date) DO UPDATE
    SET
        open       = EXCLUDED.open,
        high       = EXCLUDED.high,
        low        = EXCLUDED.low,
        close      = EXCLUDED.close,
        source     = EXCLUDED.source,
        updated_at = now();`

	listBarsBetweenSQL = `SELECT
        symbol,
        bar_date,
        open::text,
        high::text,
        low::text,
        close::text,
        source,
        updated_at
    FROM daily_bars
    WHERE symbol = $1
      AND bar_date >= $2
      AND bar_date < $3
    ORDER BY bar_date;`

	listRecentBarsSQL = `SELECT
        symbol,
        bar_date,
        open::text,
        high::text,
        low::text,
        close::text,
        source,
        updated_at
    FROM daily_bars
    WHERE symbol = $1
    ORDER BY bar_date DESC
    LIMIT $2;`

	countBarsSQL = `SELECT COUNT(*) FROM daily_bars WHERE symbol = $1;`

	tryAdvisoryLockSQL = `SELECT pg_try_advisory_lock($1);`
	advisoryUnlockSQL  = `SELECT pg_advisory_unlock($1);`
)

// BarStore defines operations for daily bar persistence.
type BarStore interface {
	EnsureSchema(ctx context.Context) error
	UpsertBars(ctx context.Context, bars []BarRecord) (int, error)
	ListBarsBetween(ctx context.Context, symbol string, from, to time.Time) ([]BarRecord, error)
	ListRecentBars(ctx context.Context, symbol string, limit int) ([]BarRecord, error)
	CountBars(ctx context.Context, symbol string) (int64, error)
}

// AdvisoryLocker exposes advisory lock helpers.
type AdvisoryLocker interface {
	TryAdvisoryLock(ctx context.Context, key int64) (unlock func(), acquired bool, err error)
}

// Store is the PostgreSQL-backed bar warehouse.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wires a pgx pool into a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// LockKey derives a stable advisory lock key for a symbol's backfill.
func LockKey(symbol string) int64 {
	// FNV-1a, truncated to a positive int64.
	var h uint64 = 14695981039346656037
	for _, c := range []byte(strings.ToUpper(symbol)) {
		h ^= uint64(c)
		h *= 1099511628211
	}
	return int64(h >> 1)
}

// TryAdvisoryLock attempts to acquire a postgres advisory lock and returns a release func.
func (s *Store) TryAdvisoryLock(ctx context.Context, key int64) (func(), bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, false, err
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("acquire connection: %w", err)
	}

	var acquired bool
	if err := conn.QueryRow(ctx, tryAdvisoryLockSQL, key).Scan(&acquired); err != nil {
		conn.Release()
		return nil, false, fmt.Errorf("try advisory lock: %w", err)
	}
	if !acquired {
		conn.Release()
		return nil, false, nil
	}

	unlock := func() {
		ctxUnlock, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_, _ = conn.Exec(ctxUnlock, advisoryUnlockSQL, key)
		conn.Release()
	}
	return unlock, true, nil
}

func (s *Store) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// EnsureSchema creates the daily_bars table when missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if _, err := pool.Exec(ctx, createSchemaSQL); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// UpsertBars writes bars in one batch and returns how many rows were affected.
func (s *Store) UpsertBars(ctx context.Context, bars []BarRecord) (int, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, err
	}
	if len(bars) == 0 {
		return 0, nil
	}

	batch := &pgx.Batch{}
	for _, bar := range bars {
		if err := bar.Validate(); err != nil {
			return 0, err
		}
		batch.Queue(upsertBarSQL,
			strings.ToUpper(bar.Symbol),
			earnings.CivilDate(bar.Date),
			bar.Open.String(),
			bar.High.String(),
			bar.Low.String(),
			bar.Close.String(),
			bar.Source,
		)
	}

	results := pool.SendBatch(ctx, batch)
	defer results.Close()

	affected := 0
	for range bars {
		tag, execErr := results.Exec()
		if execErr != nil {
			return affected, fmt.Errorf("upsert bar: %w", execErr)
		}
		affected += int(tag.RowsAffected())
	}
	return affected, nil
}

// ListBarsBetween lists a symbol's bars with from <= date < to in ascending order.
func (s *Store) ListBarsBetween(ctx context.Context, symbol string, from, to time.Time) ([]BarRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listBarsBetweenSQL, strings.ToUpper(symbol), earnings.CivilDate(from), earnings.CivilDate(to))
	if queryErr != nil {
		return nil, fmt.Errorf("list bars between: %w", queryErr)
	}
	defer rows.Close()

	bars := make([]BarRecord, 0)
	for rows.Next() {
		bar, scanErr := scanBar(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		bars = append(bars, bar)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return bars, nil
}

// ListRecentBars lists the latest bars of a symbol ordered by descending date.
func (s *Store) ListRecentBars(ctx context.Context, symbol string, limit int) ([]BarRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRecentBarsSQL, strings.ToUpper(symbol), limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent bars: %w", queryErr)
	}
	defer rows.Close()

	bars := make([]BarRecord, 0, limit)
	for rows.Next() {
		bar, scanErr := scanBar(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		bars = append(bars, bar)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return bars, nil
}

// CountBars counts stored bars for a symbol.
func (s *Store) CountBars(ctx context.Context, symbol string) (int64, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, err
	}
	var count int64
	if scanErr := pool.QueryRow(ctx, countBarsSQL, strings.ToUpper(symbol)).Scan(&count); scanErr != nil {
		return 0, fmt.Errorf("count bars: %w", scanErr)
	}
	return count, nil
}

// FetchBars serves stored bars to the reaction engine.
func (s *Store) FetchBars(ctx context.Context, symbol string, from, to time.Time) ([]earnings.DailyBar, error) {
	records, err := s.ListBarsBetween(ctx, symbol, from, to)
	if err != nil {
		return nil, err
	}
	bars := make([]earnings.DailyBar, len(records))
	for i, rec := range records {
		bars[i] = rec.Bar()
	}
	return bars, nil
}

func scanBar(row pgx.Row) (BarRecord, error) {
	var (
		rec                      BarRecord
		open, high, low, closing string
	)
	if err := row.Scan(&rec.Symbol, &rec.Date, &open, &high, &low, &closing, &rec.Source, &rec.UpdatedAt); err != nil {
		return BarRecord{}, fmt.Errorf("scan bar: %w", err)
	}

	var err error
	if rec.Open, err = decimal.NewFromString(open); err != nil {
		return BarRecord{}, fmt.Errorf("parse open: %w", err)
	}
	if rec.High, err = decimal.NewFromString(high); err != nil {
		return BarRecord{}, fmt.Errorf("parse high: %w", err)
	}
	if rec.Low, err = decimal.NewFromString(low); err != nil {
		return BarRecord{}, fmt.Errorf("parse low: %w", err)
	}
	if rec.Close, err = decimal.NewFromString(closing); err != nil {
		return BarRecord{}, fmt.Errorf("parse close: %w", err)
	}
	rec.Date = earnings.CivilDate(rec.Date)
	return rec, nil
}

var (
	_ BarStore           = (*Store)(nil)
	_ AdvisoryLocker     = (*Store)(nil)
	_ fetcher.BarFetcher = (*Store)(nil)
)
