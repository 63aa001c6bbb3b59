package partitions

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels of the cell counter.
const (
	OutcomeEvaluated = "evaluated"
	OutcomeUnusable  = "unusable"
	OutcomeFailed    = "failed"
)

// Metrics counts traversed cells by outcome and tracks the bytes held by the
// evaluation contexts of running workers.
type Metrics struct {
	Cells    *prometheus.CounterVec
	Resident prometheus.Gauge
}

// NewMetrics creates the traversal metrics and registers them with reg, which
// may be nil. Metrics already registered by an earlier call are reused.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		Cells: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fevalues",
			Name:      "cells_total",
			Help:      "Cells visited by partition traversal, by outcome.",
		}, []string{"outcome"}),
		Resident: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "fevalues",
			Name:      "resident_bytes",
			Help:      "Bytes held by the stores of running evaluation contexts.",
		}),
	}
	if reg == nil {
		return m, nil
	}
	var err error
	if m.Cells, err = register(reg, m.Cells); err != nil {
		return nil, err
	}
	if m.Resident, err = register(reg, m.Resident); err != nil {
		return nil, err
	}
	return m, nil
}

func register[T prometheus.Collector](reg prometheus.Registerer, c T) (T, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

func (m *Metrics) count(outcome string) {
	if m != nil {
		m.Cells.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) resident(delta int) {
	if m != nil {
		m.Resident.Add(float64(delta))
	}
}
