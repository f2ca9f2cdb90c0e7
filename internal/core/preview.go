package core

// preview.go reports what a run would produce without writing anything.
//
// For every rule it checks which of its columns the input carries and sorts
// each row into the record it would yield or the reason it would be dropped.
// Unparseable dates are counted separately since they do not drop the row.

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/JonMunkholm/planos/internal/source"
)

// maxPreviewSamples caps the records returned in Preview.Sample.
const maxPreviewSamples = 10

// DatasetInfo describes one parsed input.
type DatasetInfo struct {
	Name    string   `json:"name"`
	Sheet   string   `json:"sheet,omitempty"`
	Rows    int      `json:"rows"`
	Headers []string `json:"headers"`
}

// RuleCheck is the dry-run outcome of one rule.
type RuleCheck struct {
	Concept        Concept              `json:"concept"`
	Label          string               `json:"label"`
	Dataset        DatasetKind          `json:"dataset"`
	ValueColumn    string               `json:"valueColumn"`
	Skipped        bool                 `json:"skipped"`                  // Value column absent
	MissingColumns []string             `json:"missingColumns,omitempty"` // Any of id, date or value column absent
	Rows           int                  `json:"rows"`
	Qualifying     int                  `json:"qualifying"`
	Total          int64                `json:"total"`
	Filtered       map[FilterReason]int `json:"filtered"`
	BadDates       int                  `json:"badDates"` // Qualifying rows whose date cell could not be parsed
}

// Preview is the dry-run report of a run.
type Preview struct {
	RunID    string        `json:"runId,omitempty"`
	Inputs   []DatasetInfo `json:"inputs"`
	Rules    []RuleCheck   `json:"rules"`
	Sample   []Record      `json:"sample"`
	Records  int           `json:"records"`
	Outcome  Outcome       `json:"outcome"`
	Duration time.Duration `json:"durationNs"`
}

// Check returns the Preview of extracting from cash and benefits with opts.
// It applies exactly the filtering Extract applies, so Preview.Records
// equals len(Result.Records) for the same inputs.
func Check(ctx context.Context, cash, benefits *source.Dataset, opts ...ExtractOption) (*Preview, error) {
	start := time.Now()

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
		return nil, fmt.Errorf("check: %w", err)
	}

	in := Inputs{CashRegister: cash, Benefits: benefits}
	p := &Preview{
		Inputs: []DatasetInfo{datasetInfo(cash), datasetInfo(benefits)},
		Rules:  make([]RuleCheck, 0, len(o.rules)),
		Sample: []Record{},
	}

	stats := NewStatistics(o.rules)
	for _, rule := range o.rules {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		check := o.checkRule(rule, in.dataset(rule.Dataset), stats, p)
		p.Records += check.Qualifying
		p.Rules = append(p.Rules, check)
	}

	p.Outcome = OutcomeOK
	if p.Records == 0 {
		p.Outcome = OutcomeEmpty
	}
	p.Duration = time.Since(start)
	return p, nil
}

func (o *extractOptions) checkRule(rule Rule, ds *source.Dataset, stats *Statistics, p *Preview) RuleCheck {
	check := RuleCheck{
		Concept:     rule.Concept,
		Label:       rule.Label,
		Dataset:     rule.Dataset,
		ValueColumn: rule.ValueColumn,
		Filtered:    map[FilterReason]int{},
	}
	for _, col := range []string{rule.IDColumn, rule.DateColumn, rule.ValueColumn} {
		if col != "" && !ds.HasColumn(col) {
			check.MissingColumns = append(check.MissingColumns, col)
		}
	}
	if !ds.HasColumn(rule.ValueColumn) {
		check.Skipped = true
		return check
	}

	check.Rows = ds.Len()
	for _, row := range ds.Rows {
		amount, reason := o.amount(row[rule.ValueColumn])
		if reason == ReasonNone && !stats.fits(rule.Concept, amount) {
			reason = ReasonOverflow
		}
		if reason != ReasonNone {
			check.Filtered[reason]++
			continue
		}
		stats.add(rule.Concept, amount)
		check.Qualifying++
		check.Total += amount

		date, ok := o.dateString(row[rule.DateColumn])
		if !ok {
			check.BadDates++
		}
		if len(p.Sample) < maxPreviewSamples {
			p.Sample = append(p.Sample, Record{
				EmployeeID: CellString(row[rule.IDColumn]),
				Date:       date,
				Concept:    rule.Concept,
				Amount:     amount,
			})
		}
	}
	return check
}

func datasetInfo(ds *source.Dataset) DatasetInfo {
	if ds == nil {
		return DatasetInfo{Headers: []string{}}
	}
	return DatasetInfo{
		Name:    ds.Name,
		Sheet:   ds.Sheet,
		Rows:    ds.Len(),
		Headers: ds.Headers,
	}
}
