package core

import (
	"fmt"
	"slices"
)

// Column headers of the two input exports. They are matched byte-for-byte:
// the benefits SAP header really ends in a space.
const (
	ColCashID     = "SAP"
	ColCashDate   = "Fecha Terminación. (Digite)"
	ColCashAmount = "DESCUADRES DE CAJA PARA DESCONTAR"

	ColBenefitsID     = "N° Sap "
	ColBenefitsDate   = "Terminación"
	ColBenefitsDeduct = "Descontar"
	ColBenefitsPay    = "Pagar"
	ColBenefitsPeople = "PEOPLE"
)

// defaultRules is the fixed rule table. Its order is the output order.
var defaultRules = []Rule{
	{
		Dataset:     DatasetCashRegister,
		ValueColumn: ColCashAmount,
		DateColumn:  ColCashDate,
		IDColumn:    ColCashID,
		Concept:     ConceptCashShortfall,
		Label:       "CAJA",
	},
	{
		Dataset:     DatasetBenefits,
		ValueColumn: ColBenefitsDeduct,
		DateColumn:  ColBenefitsDate,
		IDColumn:    ColBenefitsID,
		Concept:     ConceptBenefitDeduction,
		Label:       "BIG PASS - Descontar",
	},
	{
		Dataset:     DatasetBenefits,
		ValueColumn: ColBenefitsPay,
		DateColumn:  ColBenefitsDate,
		IDColumn:    ColBenefitsID,
		Concept:     ConceptBenefitPayment,
		Label:       "BIG PASS - Pagar",
	},
	{
		Dataset:     DatasetBenefits,
		ValueColumn: ColBenefitsPeople,
		DateColumn:  ColBenefitsDate,
		IDColumn:    ColBenefitsID,
		Concept:     ConceptPeople,
		Label:       "BIG PASS - People",
	},
}

// DefaultRules returns a copy of the fixed rule table in application order.
func DefaultRules() []Rule {
	return slices.Clone(defaultRules)
}

// RuleFor returns the default rule for a concept code.
func RuleFor(c Concept) (Rule, bool) {
	for _, r := range defaultRules {
		if r.Concept == c {
			return r, true
		}
	}
	return Rule{}, false
}

// Label returns the display name of a concept, or the code itself when unknown.
func (c Concept) Label() string {
	if r, ok := RuleFor(c); ok {
		return r.Label
	}
	return string(c)
}

// validateRules checks a custom rule table before use.
// Concepts must be unique because statistics are keyed by concept.
func validateRules(rules []Rule) error {
	if len(rules) == 0 {
		return fmt.Errorf("rule table is empty")
	}
	seen := make(map[Concept]bool, len(rules))
	for i, r := range rules {
		if r.Concept == "" || r.ValueColumn == "" {
			return fmt.Errorf("rule %d: concept and value column are required", i)
		}
		if r.Dataset != DatasetCashRegister && r.Dataset != DatasetBenefits {
			return fmt.Errorf("rule %d (%s): unknown dataset %q", i, r.Concept, r.Dataset)
		}
		if seen[r.Concept] {
			return fmt.Errorf("rule %d: duplicate concept %s", i, r.Concept)
		}
		seen[r.Concept] = true
	}
	return nil
}
