// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Packet Project Contributors

package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Session check results.
const (
	SessionAuthenticated   = "authenticated"
	SessionUnauthenticated = "unauthenticated"
)

// Metrics holds the Packet application metrics. A nil *Metrics records nothing.
type Metrics struct {
	AuthRequestsTotal  *prometheus.CounterVec
	SessionChecksTotal *prometheus.CounterVec
	RequestDuration    *prometheus.HistogramVec
}

// NewMetrics creates the application metrics and registers them on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		AuthRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "packet_auth_requests_total",
				Help: "Register and login attempts by operation and outcome code",
			},
			[]string{"operation", "outcome"},
		),
		SessionChecksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "packet_session_checks_total",
				Help: "Session cookie checks by result",
			},
			[]string{"result"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "packet_http_request_duration_seconds",
				Help:    "HTTP request latency by route",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route"},
		),
	}

	reg.MustRegister(m.AuthRequestsTotal, m.SessionChecksTotal, m.RequestDuration)
	return m
}

// RecordAuth counts one register or login attempt. outcome is "ok" or a failure code.
func (m *Metrics) RecordAuth(operation, outcome string) {
	if m == nil {
		return
	}
	m.AuthRequestsTotal.WithLabelValues(operation, outcome).Inc()
}

// RecordSessionCheck counts one session guard evaluation.
func (m *Metrics) RecordSessionCheck(authenticated bool) {
	if m == nil {
		return
	}
	result := SessionUnauthenticated
	if authenticated {
		result = SessionAuthenticated
	}
	m.SessionChecksTotal.WithLabelValues(result).Inc()
}

// ObserveRequest records the latency of a request to route.
func (m *Metrics) ObserveRequest(route string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.RequestDuration.WithLabelValues(route).Observe(elapsed.Seconds())
}
