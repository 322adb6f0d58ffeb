package app

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"earnings-insight/internal/config"
	"earnings-insight/internal/earnings"
	"earnings-insight/internal/reaction"
	"earnings-insight/internal/report"
	"earnings-insight/internal/storage"
)

var generated = time.Date(2024, 11, 15, 15, 0, 0, 0, time.UTC)

func sampleRecords() []reaction.Record {
	return []reaction.Record{
		{
			EventDate:   time.Date(2024, 10, 31, 0, 0, 0, 0, time.UTC),
			Timing:      earnings.AfterClose,
			PreClose:    decimal.NewFromInt(100),
			PostOpen:    decimal.NewFromInt(104),
			PostHigh:    decimal.NewFromInt(110),
			PostLow:     decimal.NewFromInt(95),
			PostClose:   decimal.NewFromInt(108),
			GapPct:      decimal.NewFromInt(4),
			ClosePct:    decimal.NewFromInt(8),
			MaxPct:      decimal.NewFromInt(10),
			EPSEstimate: decimal.NewNullDecimal(decimal.RequireFromString("1.00")),
			EPSActual:   decimal.NewNullDecimal(decimal.RequireFromString("1.10")),
			SurprisePct: decimal.NewNullDecimal(decimal.NewFromInt(10)),
		},
		{
			EventDate: time.Date(2024, 8, 1, 0, 0, 0, 0, time.UTC),
			Timing:    earnings.BeforeOpen,
			PreClose:  decimal.NewFromInt(50),
			PostOpen:  decimal.NewFromInt(48),
			PostHigh:  decimal.NewFromInt(52),
			PostLow:   decimal.NewFromInt(47),
			PostClose: decimal.NewFromInt(51),
			GapPct:    decimal.NewFromInt(-4),
			ClosePct:  decimal.NewFromInt(2),
			MaxPct:    decimal.NewFromInt(-6),
		},
	}
}

func okResult() report.AnalysisResult {
	next := earnings.NewEvent("ACME", time.Date(2025, 1, 30, 21, 0, 0, 0, time.UTC), earnings.AfterClose)
	stats := reaction.Stats{Requested: 3, Resolved: 2, Dropped: 1, Reasons: map[string]int{reaction.ReasonOutOfWindow: 1}}
	quote := report.NewQuote(decimal.NewFromInt(55), decimal.NewFromInt(50))
	return report.Aggregate("ACME", sampleRecords(), quote, &next, "fmp", stats, generated)
}

func TestRenderTable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, renderTable(&buf, okResult(), true))
	out := buf.String()

	assert.Contains(t, out, "ACME  $55.00 (+10.00%)  market open")
	assert.Contains(t, out, "source: fmp")
	assert.Contains(t, out, "2024-10-31")
	assert.Contains(t, out, "AMC")
	assert.Contains(t, out, "-6.00%")
	assert.Contains(t, out, "+10.00%")
	assert.Contains(t, out, "average |gap|: 4.00%")
	assert.Contains(t, out, "average |max move|: 8.00%")
	assert.Contains(t, out, "skipped 1 of 3 events")
	assert.Contains(t, out, "next earnings: 2025-01-30 (AMC)")
}

func TestRenderTableStatuses(t *testing.T) {
	var buf bytes.Buffer
	res := report.Unavailable("ZZZZ", report.ZeroQuote(), nil, generated)
	require.NoError(t, renderTable(&buf, res, false))
	assert.Contains(t, buf.String(), "price unavailable  market closed")
	assert.Contains(t, buf.String(), "info: no earnings dates found")

	buf.Reset()
	res = report.Aggregate("ACME", nil, report.ZeroQuote(), nil, "yahoo", reaction.Stats{}, generated)
	require.NoError(t, renderTable(&buf, res, false))
	assert.Contains(t, buf.String(), "warning: ")
	assert.NotContains(t, buf.String(), "Gap%")
}

func TestRenderJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, renderJSON(&buf, okResult()))

	var decoded jsonResult
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "ok", decoded.Status)
	assert.Equal(t, "fmp", decoded.Source)
	require.Len(t, decoded.Records, 2)
	assert.Equal(t, "-6.0000", decoded.Records[1].MaxPct)
	assert.Nil(t, decoded.Records[1].SurprisePct)
	require.NotNil(t, decoded.Records[0].SurprisePct)
	assert.Equal(t, "10.0000", *decoded.Records[0].SurprisePct)
	assert.Equal(t, 1, decoded.DropReasons[reaction.ReasonOutOfWindow])
}

func TestFormatPct(t *testing.T) {
	assert.Equal(t, "+2.00%", formatPct(decimal.NewFromInt(2)))
	assert.Equal(t, "-4.00%", formatPct(decimal.NewFromInt(-4)))
	assert.Equal(t, "0.00%", formatPct(decimal.Zero))
	assert.Equal(t, "0.00%", formatPct(decimal.RequireFromString("0.001")))
}

func TestWriteRecordsCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "acme.csv")
	require.NoError(t, writeRecordsCSV(path, sampleRecords()))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)

	require.Len(t, rows, 3)
	assert.Equal(t, "gap_pct", rows[0][7])
	assert.Equal(t, "2024-10-31", rows[1][0])
	assert.Equal(t, "10.0000", rows[1][9])
	assert.Equal(t, "", rows[2][12])
}

func TestWriteRecordsPNG(t *testing.T) {
	path := filepath.Join(t.TempDir(), "acme.png")
	require.NoError(t, writeRecordsPNG(path, "ACME", sampleRecords(), 800, 400))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("\x89PNG")))
}

type failingCloser struct{ err error }

func (c failingCloser) Close() error { return c.err }

func TestCloseFileReportsCloseError(t *testing.T) {
	var err error
	closeFile(failingCloser{err: os.ErrClosed}, &err)
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrClosed)

	earlier := errors.New("render failed")
	err = earlier
	closeFile(failingCloser{err: os.ErrClosed}, &err)
	assert.Equal(t, earlier, err)

	err = nil
	closeFile(failingCloser{}, &err)
	assert.NoError(t, err)
}

func TestRenderBars(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, renderBars(&buf, nil))
	assert.Contains(t, buf.String(), "no bars found")

	buf.Reset()
	bars := []storage.BarRecord{{
		Symbol: "ACME", Date: time.Date(2024, 10, 31, 0, 0, 0, 0, time.UTC),
		Open: decimal.NewFromInt(1), High: decimal.NewFromInt(2), Low: decimal.NewFromInt(1), Close: decimal.NewFromInt(2),
		Source: "yahoo", UpdatedAt: generated,
	}}
	require.NoError(t, renderBars(&buf, bars))
	assert.Contains(t, buf.String(), "2024-10-31")
	assert.Contains(t, buf.String(), "yahoo")
}

func TestExportRequiresTarget(t *testing.T) {
	a := &App{Config: &config.Config{}, Logger: zerolog.Nop(), Out: &bytes.Buffer{}}
	err := a.Export(context.Background(), ExportOptions{Symbol: "ACME"})
	assert.Error(t, err)
}

func TestBarsRequiresDatabase(t *testing.T) {
	a := &App{Config: &config.Config{}, Logger: zerolog.Nop(), Out: &bytes.Buffer{}}
	err := a.Bars(context.Background(), BarsOptions{Symbol: "ACME", Limit: 5})
	assert.Error(t, err)
}

func TestBackfillRejectsEmptyRange(t *testing.T) {
	a := &App{Config: &config.Config{}, Logger: zerolog.Nop(), Out: &bytes.Buffer{}}
	day := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	err := a.Backfill(context.Background(), BackfillOptions{Symbol: "ACME", From: day, To: day})
	assert.Error(t, err)
}
