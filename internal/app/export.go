package app

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"
	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"earnings-insight/internal/earnings"
	"earnings-insight/internal/reaction"
	"earnings-insight/internal/report"
)

// Export runs an analysis and writes its records as CSV and/or a PNG chart.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.CSVPath == "" {
		opts.CSVPath = a.Config.Export.CSVPath
	}
	if opts.PNGPath == "" {
		opts.PNGPath = a.Config.Export.ChartPath
	}
	if opts.CSVPath == "" && opts.PNGPath == "" {
		return errors.New("at least one of --csv or --png must be provided")
	}

	res, err := a.analyze(ctx, opts.Symbol, opts.Events)
	if err != nil {
		return err
	}
	if res.Status != report.StatusOK {
		a.Logger.Warn().Str("symbol", res.Symbol).Str("status", res.Status.String()).Msg(res.Message)
		return nil
	}

	a.Logger.Info().Str("symbol", res.Symbol).Int("records", len(res.Records)).Msg("exporting analysis")

	if opts.CSVPath != "" {
		if err := writeRecordsCSV(opts.CSVPath, res.Records); err != nil {
			return err
		}
	}

	if opts.PNGPath != "" {
		if len(res.Records) < 2 {
			a.Logger.Warn().Int("records", len(res.Records)).Msg("chart needs at least two events; skipping png")
			return nil
		}
		if err := writeRecordsPNG(opts.PNGPath, res.Symbol, res.Records, a.Config.Export.ChartWidth, a.Config.Export.ChartHeight); err != nil {
			return err
		}
	}

	return nil
}

func writeRecordsCSV(path string, records []reaction.Record) (err error) {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer closeFile(file, &err)

	writer := csv.NewWriter(file)

	header := []string{"date", "timing", "pre_close", "post_open", "post_high", "post_low", "post_close", "gap_pct", "close_pct", "max_pct", "eps_estimate", "eps_actual", "surprise_pct"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, rec := range records {
		row := []string{
			rec.EventDate.Format(earnings.DateLayout),
			rec.Timing.String(),
			rec.PreClose.String(),
			rec.PostOpen.String(),
			rec.PostHigh.String(),
			rec.PostLow.String(),
			rec.PostClose.String(),
			rec.GapPct.StringFixed(4),
			rec.ClosePct.StringFixed(4),
			rec.MaxPct.StringFixed(4),
			nullString(rec.EPSEstimate),
			nullString(rec.EPSActual),
			nullString(rec.SurprisePct),
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

// writeRecordsPNG plots gap, close and max moves per event date, oldest first.
func writeRecordsPNG(path, symbol string, records []reaction.Record, width, height int) (err error) {
	if err := ensureDir(path); err != nil {
		return err
	}

	n := len(records)
	x := make([]time.Time, n)
	gap := make([]float64, n)
	closing := make([]float64, n)
	move := make([]float64, n)
	for i, rec := range records {
		j := n - 1 - i
		x[j] = rec.EventDate
		gap[j] = rec.GapPct.InexactFloat64()
		closing[j] = rec.ClosePct.InexactFloat64()
		move[j] = rec.MaxPct.InexactFloat64()
	}

	pctFormatter := func(v interface{}) string {
		return chart.FloatValueFormatterWithFormat(v, "%.1f%%")
	}
	dateFormatter := chart.TimeValueFormatterWithFormat(earnings.DateLayout)
	dots := func(c drawing.Color) chart.Style {
		return chart.Style{StrokeColor: c, DotColor: c, DotWidth: 4, StrokeWidth: 1.5}
	}

	graph := chart.Chart{
		Title:  symbol + " earnings reactions",
		Width:  width,
		Height: height,
		Background: chart.Style{
			Padding: chart.Box{Top: 40, Left: 20, Right: 20, Bottom: 20},
		},
		XAxis: chart.XAxis{
			ValueFormatter: dateFormatter,
		},
		YAxis: chart.YAxis{
			Name:           "Move vs pre close (%)",
			ValueFormatter: pctFormatter,
		},
		Series: []chart.Series{
			chart.TimeSeries{Name: "Gap %", XValues: x, YValues: gap, Style: dots(chart.ColorBlue)},
			chart.TimeSeries{Name: "Close %", XValues: x, YValues: closing, Style: dots(chart.ColorGreen)},
			chart.TimeSeries{Name: "Max %", XValues: x, YValues: move, Style: dots(chart.ColorRed)},
		},
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer closeFile(file, &err)

	return graph.Render(chart.PNG, file)
}

// closeFile reports a failed close unless an earlier error is already set.
func closeFile(c io.Closer, err *error) {
	if cerr := c.Close(); cerr != nil && *err == nil {
		*err = fmt.Errorf("close export file: %w", cerr)
	}
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

func nullString(v decimal.NullDecimal) string {
	if !v.Valid {
		return ""
	}
	return v.Decimal.String()
}
