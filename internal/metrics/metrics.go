package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups the collectors the notification center reports.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	FetchTotal *prometheus.CounterVec

	// MutationTotal counts resolved optimistic mutations by op and outcome
	// (committed, rolled_back, not_found).
	MutationTotal *prometheus.CounterVec

	GatewayDuration *prometheus.HistogramVec

	RequestCount    *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		FetchTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "notifcenter_fetch_total",
				Help: "Number of notification fetches by outcome",
			},
			[]string{"outcome"},
		),
		MutationTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "notifcenter_mutations_total",
				Help: "Number of optimistic mutations by operation and outcome",
			},
			[]string{"op", "outcome"},
		),
		GatewayDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "notifcenter_gateway_duration_seconds",
				Help:    "Latency of remote gateway calls",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"op", "status"},
		),
		RequestCount: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "notifcenter_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"path", "method", "status"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "notifcenter_http_request_duration_seconds",
				Help:    "Histogram of response durations",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"path", "method"},
		),
	}

	reg.MustRegister(
		m.FetchTotal,
		m.MutationTotal,
		m.GatewayDuration,
		m.RequestCount,
		m.RequestDuration,
	)
	return m
}

func (m *Metrics) ObserveFetch(outcome string) {
	if m == nil {
		return
	}
	m.FetchTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveMutation(op, outcome string) {
	if m == nil {
		return
	}
	m.MutationTotal.WithLabelValues(op, outcome).Inc()
}

func (m *Metrics) ObserveGateway(op, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.GatewayDuration.WithLabelValues(op, status).Observe(d.Seconds())
}

func (m *Metrics) ObserveRequest(path, method, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.RequestCount.WithLabelValues(path, method, status).Inc()
	m.RequestDuration.WithLabelValues(path, method).Observe(d.Seconds())
}
