package services

import (
	"errors"

	"github.com/boleyla/panel/internal/common"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts account operations by outcome.
type Metrics struct {
	ops *prometheus.CounterVec
}

// NewMetrics creates the counters and registers them with reg when reg is
// not nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "panel",
			Name:      "account_operations_total",
			Help:      "Account lifecycle and reporting operations by outcome.",
		}, []string{"op", "outcome"}),
	}
	if reg != nil {
		reg.MustRegister(m.ops)
	}
	return m
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, common.ErrorNotFound):
		return "not_found"
	case errors.Is(err, common.ErrorInvalidArgument):
		return "invalid_argument"
	default:
		return "error"
	}
}

func (m *Metrics) observe(op string, err error) {
	if m == nil {
		return
	}
	m.ops.WithLabelValues(op, outcome(err)).Inc()
}
