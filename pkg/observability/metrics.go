// Package observability provides Prometheus metrics and HTTP middleware
// for monitoring the appgate request pipeline.
package observability

import "github.com/prometheus/client_golang/prometheus"

// LookupBuckets defines histogram buckets suited for session backend
// latencies, ranging from 1ms to 5s.
var LookupBuckets = []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5}

var (
	// RequestsTotal counts all HTTP requests by method and status class.
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "appgate_requests_total",
			Help: "Total requests",
		},
		[]string{"method", "status"},
	)

	// RequestDuration records HTTP request duration in seconds by method.
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "appgate_request_duration_seconds",
			Help:    "Request duration",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	// RequestsInFlight tracks requests currently being served.
	RequestsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "appgate_requests_in_flight",
			Help: "Requests in flight",
		},
	)

	// AuthDecisionsTotal counts authorization contexts attached to requests,
	// by kind (master, client, user).
	AuthDecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "appgate_auth_decisions_total",
			Help: "Auth decisions",
		},
		[]string{"kind"},
	)

	// AuthRejectionsTotal counts requests rejected by the auth stage, by reason.
	AuthRejectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "appgate_auth_rejections_total",
			Help: "Auth rejections",
		},
		[]string{"reason"},
	)

	// SessionLookupsTotal counts session token exchanges by outcome
	// (ok, empty, domain_error, error).
	SessionLookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "appgate_session_lookups_total",
			Help: "Session lookups",
		},
		[]string{"outcome"},
	)

	// SessionLookupDuration records session backend latency in seconds.
	SessionLookupDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "appgate_session_lookup_duration_seconds",
			Help:    "Session lookup latency",
			Buckets: LookupBuckets,
		},
	)

	// RegistryApps reports the number of applications in the active
	// registry snapshot.
	RegistryApps = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "appgate_registry_apps",
			Help: "Registered applications",
		},
	)

	// RegistryReloadsTotal counts registry reloads by outcome (ok, error).
	RegistryReloadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "appgate_registry_reloads_total",
			Help: "Registry reloads",
		},
		[]string{"outcome"},
	)
)

func init() {
	prometheus.MustRegister(
		RequestsTotal,
		RequestDuration,
		RequestsInFlight,
		AuthDecisionsTotal,
		AuthRejectionsTotal,
		SessionLookupsTotal,
		SessionLookupDuration,
		RegistryApps,
		RegistryReloadsTotal,
	)
}
