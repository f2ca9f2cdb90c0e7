package core

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts runs and produced records. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	runs    *prometheus.CounterVec
	records *prometheus.CounterVec
	amount  *prometheus.CounterVec
}

// Run outcome labels. OutcomeOK and OutcomeEmpty are used as is.
const outcomeError = "error"

// NewMetrics creates the counters and registers them with reg.
// A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "planos",
			Name:      "runs_total",
			Help:      "Extraction runs by outcome.",
		}, []string{"outcome"}),
		records: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "planos",
			Name:      "records_total",
			Help:      "Flat-file records produced by concept code.",
		}, []string{"concept"}),
		amount: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "planos",
			Name:      "amount_total",
			Help:      "Sum of record amounts by concept code.",
		}, []string{"concept"}),
	}
	if reg != nil {
		reg.MustRegister(m.runs, m.records, m.amount)
	}
	return m
}

func (m *Metrics) observe(res *Result, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.runs.WithLabelValues(outcomeError).Inc()
		return
	}
	m.runs.WithLabelValues(string(res.Outcome)).Inc()
	for _, e := range res.Stats.Entries() {
		if e.RecordCount == 0 {
			continue
		}
		m.records.WithLabelValues(string(e.Concept)).Add(float64(e.RecordCount))
		m.amount.WithLabelValues(string(e.Concept)).Add(float64(e.TotalAmount))
	}
}
