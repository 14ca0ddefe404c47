// Package metrics exposes Prometheus counters for dispatch outcomes and
// token refreshes.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	DispatchTotal           *prometheus.CounterVec
	DispatchRecipientsTotal *prometheus.CounterVec
	TokenRefreshTotal       *prometheus.CounterVec

	registry *prometheus.Registry
}

func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		DispatchTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "smsapp_dispatch_total",
				Help: "Total dispatch calls by terminal status",
			},
			[]string{"status"},
		),
		DispatchRecipientsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "smsapp_dispatch_recipients_total",
				Help: "Total recipients covered by dispatch calls, by status",
			},
			[]string{"status"},
		),
		TokenRefreshTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "smsapp_token_refresh_total",
				Help: "Total token refresh attempts by result",
			},
			[]string{"result"},
		),
		registry: reg,
	}

	reg.MustRegister(m.DispatchTotal, m.DispatchRecipientsTotal, m.TokenRefreshTotal)
	return m
}

// ObserveDispatch records one dispatch call and its recipient count.
func (m *Metrics) ObserveDispatch(status string, recipients int) {
	m.DispatchTotal.WithLabelValues(status).Inc()
	m.DispatchRecipientsTotal.WithLabelValues(status).Add(float64(recipients))
}

func (m *Metrics) ObserveTokenRefresh(ok bool) {
	result := "success"
	if !ok {
		result = "failure"
	}
	m.TokenRefreshTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
