package core

import (
	"github.com/JonMunkholm/planos/internal/source"
)

// Concept is an SAP payroll posting code.
type Concept string

const (
	ConceptCashShortfall    Concept = "Z498" // Cash-drawer shortfall to deduct
	ConceptBenefitDeduction Concept = "Z609" // Benefits amount to deduct
	ConceptBenefitPayment   Concept = "Y602" // Benefits amount to pay
	ConceptPeople           Concept = "Y608" // People-program amount
)

// DatasetKind identifies which input file a rule reads from.
type DatasetKind string

const (
	DatasetCashRegister DatasetKind = "cash_register"
	DatasetBenefits     DatasetKind = "benefits"
)

// Rule maps one value column of one dataset to a concept code.
type Rule struct {
	Dataset     DatasetKind `json:"dataset"`
	ValueColumn string      `json:"valueColumn"` // Amount column; the rule is skipped when absent
	DateColumn  string      `json:"dateColumn"`  // Termination date column
	IDColumn    string      `json:"idColumn"`    // Employee SAP number column
	Concept     Concept     `json:"concept"`
	Label       string      `json:"label"` // Display name used in summaries
}

// Record is one line of the flat file.
type Record struct {
	EmployeeID string  `json:"sap"`
	Date       string  `json:"fecha"` // Formatted with the configured layout, or empty
	Concept    Concept `json:"concepto"`
	Amount     int64   `json:"valor"` // Always > 0
}

// Outcome distinguishes a run that matched rows from one that matched none.
// Neither is an error.
type Outcome string

const (
	OutcomeOK    Outcome = "ok"
	OutcomeEmpty Outcome = "empty"
)

// Result is the output of one extraction run.
type Result struct {
	RunID   string      `json:"runId,omitempty"`
	Records []Record    `json:"records"`
	Stats   *Statistics `json:"stats"`
	Outcome Outcome     `json:"outcome"`
}

// Empty reports whether the run produced no records.
func (r *Result) Empty() bool {
	return r == nil || r.Outcome == OutcomeEmpty
}

// Inputs holds the two parsed datasets a run consumes. Either may be nil,
// in which case every rule reading it is skipped.
type Inputs struct {
	CashRegister *source.Dataset
	Benefits     *source.Dataset
}

// dataset returns the input a rule reads.
func (in Inputs) dataset(kind DatasetKind) *source.Dataset {
	switch kind {
	case DatasetCashRegister:
		return in.CashRegister
	case DatasetBenefits:
		return in.Benefits
	default:
		return nil
	}
}
