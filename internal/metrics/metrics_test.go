package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetricsCounters(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.SequenceAllocated("1")
	m.SequenceAllocated("1")
	m.SequenceFailed()
	m.Emission(ResultAuthorized)
	m.Transition("pending", "processing")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.allocations.WithLabelValues("1")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.allocationErrors))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.emissions.WithLabelValues(ResultAuthorized)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.transitions.WithLabelValues("pending", "processing")))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.SequenceAllocated("1")
		m.SequenceFailed()
		m.Emission(ResultError)
		m.Transition("processing", "error")
	})
}
