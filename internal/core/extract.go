package core

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/JonMunkholm/planos/internal/source"
)

// DefaultDateLayout renders dates as dd.mm.yyyy.
const DefaultDateLayout = "02.01.2006"

type extractOptions struct {
	numbers    NumberFormat
	dateLayout string
	logger     *slog.Logger
	rules      []Rule
}

// ExtractOption configures Extract.
type ExtractOption func(*extractOptions)

// WithNumberFormat sets the separators used to parse numeric strings.
func WithNumberFormat(nf NumberFormat) ExtractOption {
	return func(o *extractOptions) { o.numbers = nf }
}

// WithDateLayout sets the Go time layout used for the record date.
func WithDateLayout(layout string) ExtractOption {
	return func(o *extractOptions) {
		if layout != "" {
			o.dateLayout = layout
		}
	}
}

// WithLogger sets the logger for decision-point events.
func WithLogger(l *slog.Logger) ExtractOption {
	return func(o *extractOptions) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithRules replaces the default rule table.
func WithRules(rules []Rule) ExtractOption {
	return func(o *extractOptions) { o.rules = rules }
}

// Extract applies every rule, in order, to the two datasets and returns the
// records together with per-rule statistics.
//
// Malformed cells never fail the run: a bad amount drops the row and a bad
// date leaves the record's date empty. A run that matches nothing returns
// OutcomeEmpty with a nil error. The only errors are an invalid rule table
// and context cancellation, which is checked between rules.
func Extract(ctx context.Context, cash, benefits *source.Dataset, opts ...ExtractOption) (*Result, error) {
	o := extractOptions{
		numbers:    DefaultNumberFormat,
		dateLayout: DefaultDateLayout,
		logger:     slog.Default(),
		rules:      defaultRules,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if err := validateRules(o.rules); err != nil {
		return nil, fmt.Errorf("extract: %w", err)
	}

	in := Inputs{CashRegister: cash, Benefits: benefits}
	res := &Result{
		Records: []Record{},
		Stats:   NewStatistics(o.rules),
	}

	for _, rule := range o.rules {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		res.Records = o.applyRule(rule, in.dataset(rule.Dataset), res.Records, res.Stats)
	}

	res.Outcome = OutcomeOK
	if len(res.Records) == 0 {
		res.Outcome = OutcomeEmpty
	}

	o.logger.Info("extraction complete",
		slog.Int("records", len(res.Records)),
		slog.Int64("total", res.Stats.GrandTotal().TotalAmount),
		slog.String("outcome", string(res.Outcome)),
	)
	return res, nil
}

// applyRule appends the records one rule produces from ds.
func (o *extractOptions) applyRule(rule Rule, ds *source.Dataset, out []Record, stats *Statistics) []Record {
	log := o.logger.With(slog.String("concept", string(rule.Concept)))

	if !ds.HasColumn(rule.ValueColumn) {
		log.Info("rule skipped",
			slog.String("dataset", string(rule.Dataset)),
			slog.String("column", rule.ValueColumn),
		)
		return out
	}

	for i, row := range ds.Rows {
		raw := row[rule.ValueColumn]
		amount, reason := o.amount(raw)
		if reason == ReasonNone && !stats.fits(rule.Concept, amount) {
			reason = ReasonOverflow
		}
		switch reason {
		case ReasonNone:
		case ReasonBlank, ReasonNotPositive:
			continue
		default:
			log.Debug("row filtered", slog.Int("row", i), slog.String("reason", string(reason)), slog.Any("value", raw))
			continue
		}

		rec := Record{
			EmployeeID: CellString(row[rule.IDColumn]),
			Date:       o.formatDate(log, i, row[rule.DateColumn]),
			Concept:    rule.Concept,
			Amount:     amount,
		}
		out = append(out, rec)
		stats.add(rule.Concept, amount)
	}

	log.Debug("rule applied", slog.Int("records", stats.Count(rule.Concept)))
	return out
}

// FilterReason says why a row produced no record for a rule.
type FilterReason string

const (
	ReasonNone        FilterReason = ""
	ReasonBlank       FilterReason = "blank"
	ReasonNotNumeric  FilterReason = "not numeric"
	ReasonNotPositive FilterReason = "not positive"
	ReasonBelowOne    FilterReason = "amount below one"
	ReasonOverflow    FilterReason = "amount overflow"
)

// amount coerces a value cell to the record amount. A non-empty reason
// means the row is dropped.
func (o *extractOptions) amount(raw any) (int64, FilterReason) {
	if raw == nil {
		return 0, ReasonBlank
	}
	n, ok := ParseAmount(raw, o.numbers)
	if !ok {
		if s, isStr := raw.(string); isStr && CleanCell(s) == "" {
			return 0, ReasonBlank
		}
		return 0, ReasonNotNumeric
	}
	if n.Int.Sign() <= 0 {
		return 0, ReasonNotPositive
	}
	v, err := TruncateAmount(n)
	if err != nil {
		return 0, ReasonOverflow
	}
	if v <= 0 {
		return 0, ReasonBelowOne
	}
	return v, ReasonNone
}

// formatDate returns the formatted date, or "" when the cell is blank or
// cannot be parsed.
func (o *extractOptions) formatDate(log *slog.Logger, row int, v any) string {
	date, ok := o.dateString(v)
	if !ok {
		log.Debug("date unparseable", slog.Int("row", row), slog.Any("value", v))
	}
	return date
}

// dateString formats a date cell with the configured layout. ok is false
// only for a non-blank cell that is not a date.
func (o *extractOptions) dateString(v any) (date string, ok bool) {
	if v == nil {
		return "", true
	}
	if s, isStr := v.(string); isStr && CleanCell(s) == "" {
		return "", true
	}
	t, parsed := ParseDate(v)
	if !parsed {
		return "", false
	}
	return t.Format(o.dateLayout), true
}
