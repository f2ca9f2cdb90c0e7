package core

import (
	"encoding/json"
	"math"
)

// RuleStats is the per-rule accumulator.
type RuleStats struct {
	Concept     Concept `json:"concept"`
	Label       string  `json:"label"`
	RecordCount int     `json:"recordCount"`
	TotalAmount int64   `json:"totalAmount"`
}

// Average returns TotalAmount / RecordCount, or 0 when no records exist.
func (s RuleStats) Average() float64 {
	if s.RecordCount == 0 {
		return 0
	}
	return float64(s.TotalAmount) / float64(s.RecordCount)
}

// Statistics holds one entry per rule, in rule order. Every rule has an
// entry, including rules that were skipped or matched nothing.
type Statistics struct {
	entries []RuleStats
	index   map[Concept]int
	grand   int64
}

// NewStatistics returns zeroed statistics for the given rules.
func NewStatistics(rules []Rule) *Statistics {
	s := &Statistics{
		entries: make([]RuleStats, len(rules)),
		index:   make(map[Concept]int, len(rules)),
	}
	for i, r := range rules {
		s.entries[i] = RuleStats{Concept: r.Concept, Label: r.Label}
		s.index[r.Concept] = i
	}
	return s
}

// fits reports whether amount can be added to the concept total and to the
// grand total without overflowing int64.
func (s *Statistics) fits(c Concept, amount int64) bool {
	i, ok := s.index[c]
	if !ok {
		return true
	}
	return s.entries[i].TotalAmount <= math.MaxInt64-amount && s.grand <= math.MaxInt64-amount
}

// add counts one record. Callers check fits first.
func (s *Statistics) add(c Concept, amount int64) {
	i, ok := s.index[c]
	if !ok {
		return
	}
	s.entries[i].RecordCount++
	s.entries[i].TotalAmount += amount
	s.grand += amount
}

func (s *Statistics) get(c Concept) RuleStats {
	if s == nil {
		return RuleStats{Concept: c}
	}
	if i, ok := s.index[c]; ok {
		return s.entries[i]
	}
	return RuleStats{Concept: c}
}

// Count returns the number of records produced for a concept.
func (s *Statistics) Count(c Concept) int { return s.get(c).RecordCount }

// Total returns the sum of amounts produced for a concept.
func (s *Statistics) Total(c Concept) int64 { return s.get(c).TotalAmount }

// Average returns the mean amount for a concept, or 0 when it has no records.
func (s *Statistics) Average(c Concept) float64 { return s.get(c).Average() }

// Entries returns a copy of the per-rule entries in rule order.
func (s *Statistics) Entries() []RuleStats {
	if s == nil {
		return nil
	}
	out := make([]RuleStats, len(s.entries))
	copy(out, s.entries)
	return out
}

// GrandTotal sums every entry. Its Concept is empty and its Label is "TOTAL".
func (s *Statistics) GrandTotal() RuleStats {
	total := RuleStats{Label: "TOTAL"}
	if s == nil {
		return total
	}
	for _, e := range s.entries {
		total.RecordCount += e.RecordCount
		total.TotalAmount += e.TotalAmount
	}
	return total
}

// MarshalJSON renders the entries and the grand total.
func (s *Statistics) MarshalJSON() ([]byte, error) {
	type entry struct {
		RuleStats
		Average float64 `json:"average"`
	}
	out := struct {
		Rules []entry `json:"rules"`
		Total entry   `json:"total"`
	}{Rules: []entry{}}

	for _, e := range s.Entries() {
		out.Rules = append(out.Rules, entry{e, e.Average()})
	}
	gt := s.GrandTotal()
	out.Total = entry{gt, gt.Average()}

	return json.Marshal(out)
}
