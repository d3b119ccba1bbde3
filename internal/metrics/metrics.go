// Package metrics содержит Prometheus-метрики выдачи номеров и выставления документов.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Emission results.
const (
	ResultAuthorized = "authorized"
	ResultError      = "error"
	ResultRejected   = "rejected"
	ResultNoop       = "noop"
)

// Metrics собирает счётчики биллинга. Нулевой указатель допустим и ничего не делает.
type Metrics struct {
	allocations      *prometheus.CounterVec
	allocationErrors prometheus.Counter
	emissions        *prometheus.CounterVec
	transitions      *prometheus.CounterVec
}

// New регистрирует метрики в registerer или в регистратор по умолчанию, если он nil.
func New(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	allocations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "billing_sequence_allocations_total",
		Help: "Document numbers allocated per series.",
	}, []string{"series"})
	allocationErrors := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "billing_sequence_allocation_errors_total",
		Help: "Document number allocations that could not be committed.",
	})
	emissions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "billing_emissions_total",
		Help: "Fiscal document issue attempts by result.",
	}, []string{"result"})
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "billing_document_transition_total",
		Help: "Fiscal document status transitions.",
	}, []string{"from", "to"})

	registerer.MustRegister(allocations, allocationErrors, emissions, transitions)

	return &Metrics{
		allocations:      allocations,
		allocationErrors: allocationErrors,
		emissions:        emissions,
		transitions:      transitions,
	}
}

// SequenceAllocated учитывает выданный номер серии.
func (m *Metrics) SequenceAllocated(series string) {
	if m == nil {
		return
	}
	m.allocations.WithLabelValues(series).Inc()
}

// SequenceFailed учитывает неудачную выдачу номера.
func (m *Metrics) SequenceFailed() {
	if m == nil {
		return
	}
	m.allocationErrors.Inc()
}

// Emission учитывает результат попытки выставления.
func (m *Metrics) Emission(result string) {
	if m == nil {
		return
	}
	m.emissions.WithLabelValues(result).Inc()
}

// Transition учитывает смену статуса документа.
func (m *Metrics) Transition(from, to string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(from, to).Inc()
}
