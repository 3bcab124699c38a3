package syncer

import (
	"github.com/boleyla/panel/internal/server/models"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics describes sync runs. A nil *Metrics records nothing.
type Metrics struct {
	runs        *prometheus.CounterVec
	items       *prometheus.CounterVec
	duration    prometheus.Histogram
	lastSuccess prometheus.Gauge
}

// NewMetrics creates the run metrics and registers them with reg when reg
// is not nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "panel",
			Subsystem: "sync",
			Name:      "runs_total",
			Help:      "Sync runs by terminal status.",
		}, []string{"status"}),
		items: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "panel",
			Subsystem: "sync",
			Name:      "items_total",
			Help:      "Rendered profiles by outcome.",
		}, []string{"outcome"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "panel",
			Subsystem: "sync",
			Name:      "duration_seconds",
			Help:      "Wall time of sync runs.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
		}),
		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "panel",
			Subsystem: "sync",
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last run that published an artifact.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.runs, m.items, m.duration, m.lastSuccess)
	}
	return m
}

func (m *Metrics) observe(res *models.SyncResult) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(string(res.Status)).Inc()
	for _, it := range res.Items {
		outcome := "ok"
		if !it.OK {
			outcome = it.Code
		}
		m.items.WithLabelValues(outcome).Inc()
	}
	m.duration.Observe(res.FinishedAt.Sub(res.StartedAt).Seconds())
	if res.Status == models.SyncSucceeded || res.Status == models.SyncPartial {
		m.lastSuccess.Set(float64(res.FinishedAt.Unix()))
	}
}
