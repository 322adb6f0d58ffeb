package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"

	"earnings-insight/internal/earnings"
	"earnings-insight/internal/report"
)

// Analyze runs one analysis and prints it to the configured output.
func (a *App) Analyze(ctx context.Context, opts AnalyzeOptions) error {
	res, err := a.analyze(ctx, opts.Symbol, opts.Events)
	if err != nil {
		return err
	}

	switch strings.ToLower(opts.Format) {
	case "", FormatTable:
		return renderTable(a.Out, res, report.MarketOpen(time.Now()))
	case FormatJSON:
		return renderJSON(a.Out, res)
	default:
		return fmt.Errorf("unknown format %q", opts.Format)
	}
}

func (a *App) analyze(ctx context.Context, symbol string, events int) (report.AnalysisResult, error) {
	svc, closer, err := a.newService(ctx)
	if err != nil {
		return report.AnalysisResult{}, err
	}
	defer closer()

	return svc.Analyze(ctx, symbol, a.Config.ResolveEvents(events))
}

func renderTable(w io.Writer, res report.AnalysisResult, marketOpen bool) error {
	session := "closed"
	if marketOpen {
		session = "open"
	}
	if res.Quote.Available {
		fmt.Fprintf(w, "%s  %s (%s)  market %s\n", res.Symbol, formatPrice(res.Quote.Price), formatPct(res.Quote.ChangePct), session)
	} else {
		fmt.Fprintf(w, "%s  price unavailable  market %s\n", res.Symbol, session)
	}

	switch res.Status {
	case report.StatusSourceUnavailable:
		fmt.Fprintf(w, "info: %s\n", res.Message)
		return nil
	case report.StatusInsufficientData:
		fmt.Fprintf(w, "warning: %s\n", res.Message)
		writeNext(w, res)
		return nil
	}

	fmt.Fprintf(w, "source: %s\n\n", res.Source)

	writer := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Date\tTiming\tPre Close\tOpen\tHigh\tLow\tClose\tGap%\tClose%\tMax%\tEPS Est\tEPS Act\tSurprise%")
	for _, rec := range res.Records {
		fmt.Fprintf(
			writer,
			"%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			rec.EventDate.Format(earnings.DateLayout),
			rec.Timing,
			formatPrice(rec.PreClose),
			formatPrice(rec.PostOpen),
			formatPrice(rec.PostHigh),
			formatPrice(rec.PostLow),
			formatPrice(rec.PostClose),
			formatPct(rec.GapPct),
			formatPct(rec.ClosePct),
			formatPct(rec.MaxPct),
			formatNull(rec.EPSEstimate, formatEPS),
			formatNull(rec.EPSActual, formatEPS),
			formatNull(rec.SurprisePct, formatPct),
		)
	}
	if err := writer.Flush(); err != nil {
		return err
	}

	if res.Summary != nil {
		fmt.Fprintf(w, "\naverage |gap|: %s%%\n", res.Summary.MeanAbsGapPct.StringFixed(2))
		fmt.Fprintf(w, "average |max move|: %s%%\n", res.Summary.MeanAbsMaxPct.StringFixed(2))
	}
	if res.Stats.Dropped > 0 {
		fmt.Fprintf(w, "skipped %d of %d events without price coverage\n", res.Stats.Dropped, res.Stats.Requested)
	}
	writeNext(w, res)
	return nil
}

func writeNext(w io.Writer, res report.AnalysisResult) {
	if res.Next != nil {
		fmt.Fprintf(w, "next earnings: %s\n", res.Next)
	}
}

type jsonRecord struct {
	Date        string  `json:"date"`
	Timing      string  `json:"timing"`
	PreClose    string  `json:"pre_close"`
	PostOpen    string  `json:"post_open"`
	PostHigh    string  `json:"post_high"`
	PostLow     string  `json:"post_low"`
	PostClose   string  `json:"post_close"`
	GapPct      string  `json:"gap_pct"`
	ClosePct    string  `json:"close_pct"`
	MaxPct      string  `json:"max_pct"`
	EPSEstimate *string `json:"eps_estimate"`
	EPSActual   *string `json:"eps_actual"`
	SurprisePct *string `json:"surprise_pct"`
}

type jsonResult struct {
	Symbol        string         `json:"symbol"`
	Status        string         `json:"status"`
	Message       string         `json:"message,omitempty"`
	Source        string         `json:"source,omitempty"`
	Price         *string        `json:"price"`
	ChangePct     *string        `json:"change_pct"`
	NextEvent     string         `json:"next_event,omitempty"`
	MeanAbsGapPct *string        `json:"mean_abs_gap_pct,omitempty"`
	MeanAbsMaxPct *string        `json:"mean_abs_max_pct,omitempty"`
	Resolved      int            `json:"resolved"`
	Dropped       int            `json:"dropped"`
	DropReasons   map[string]int `json:"drop_reasons,omitempty"`
	Records       []jsonRecord   `json:"records"`
	GeneratedAt   time.Time      `json:"generated_at"`
}

func renderJSON(w io.Writer, res report.AnalysisResult) error {
	out := jsonResult{
		Symbol:      res.Symbol,
		Status:      res.Status.String(),
		Message:     res.Message,
		Source:      res.Source,
		Resolved:    res.Stats.Resolved,
		Dropped:     res.Stats.Dropped,
		DropReasons: res.Stats.Reasons,
		Records:     make([]jsonRecord, 0, len(res.Records)),
		GeneratedAt: res.GeneratedAt,
	}
	if res.Quote.Available {
		out.Price = strPtr(res.Quote.Price.StringFixed(2))
		out.ChangePct = strPtr(res.Quote.ChangePct.StringFixed(2))
	}
	if res.Next != nil {
		out.NextEvent = res.Next.String()
	}
	if res.Summary != nil {
		out.MeanAbsGapPct = strPtr(res.Summary.MeanAbsGapPct.StringFixed(4))
		out.MeanAbsMaxPct = strPtr(res.Summary.MeanAbsMaxPct.StringFixed(4))
	}
	for _, rec := range res.Records {
		out.Records = append(out.Records, jsonRecord{
			Date:        rec.EventDate.Format(earnings.DateLayout),
			Timing:      rec.Timing.String(),
			PreClose:    rec.PreClose.String(),
			PostOpen:    rec.PostOpen.String(),
			PostHigh:    rec.PostHigh.String(),
			PostLow:     rec.PostLow.String(),
			PostClose:   rec.PostClose.String(),
			GapPct:      rec.GapPct.StringFixed(4),
			ClosePct:    rec.ClosePct.StringFixed(4),
			MaxPct:      rec.MaxPct.StringFixed(4),
			EPSEstimate: nullPtr(rec.EPSEstimate, 2),
			EPSActual:   nullPtr(rec.EPSActual, 2),
			SurprisePct: nullPtr(rec.SurprisePct, 4),
		})
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func formatPct(d decimal.Decimal) string {
	s := d.StringFixed(2)
	if d.IsPositive() && s != "0.00" {
		s = "+" + s
	}
	return s + "%"
}

func formatPrice(d decimal.Decimal) string {
	return "$" + d.StringFixed(2)
}

func formatEPS(d decimal.Decimal) string {
	return d.StringFixed(2)
}

func formatNull(v decimal.NullDecimal, format func(decimal.Decimal) string) string {
	if !v.Valid {
		return "-"
	}
	return format(v.Decimal)
}

func nullPtr(v decimal.NullDecimal, places int32) *string {
	if !v.Valid {
		return nil
	}
	return strPtr(v.Decimal.StringFixed(places))
}

func strPtr(s string) *string {
	return &s
}
