// Package metrics holds the Prometheus collectors of the session service.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "sessionkeeper"

// Label values shared by the coordinator and the HTTP layer.
const (
	ResultOK           = "ok"
	ResultCached       = "cached"
	ResultUnauthorized = "unauthorized"
	ResultRejected     = "rejected"
	ResultError        = "error"

	RotationCreated  = "created"
	RotationReused   = "reused"
	RotationReplaced = "replaced_expired"
	RotationForced   = "forced"
	RotationConflict = "conflict"

	CacheHit   = "hit"
	CacheMiss  = "miss"
	CacheError = "error"
)

type Metrics struct {
	registry *prometheus.Registry

	Logins        *prometheus.CounterVec
	Refreshes     *prometheus.CounterVec
	Logouts       *prometheus.CounterVec
	Rotations     *prometheus.CounterVec
	CacheLookups  *prometheus.CounterVec
	StoreRetries  prometheus.Counter
	AuditExported prometheus.Counter
	HTTPRequests  *prometheus.CounterVec
	HTTPDuration  *prometheus.HistogramVec
}

// New registers every collector on a fresh registry, together with the Go
// runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		Logins: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "logins_total",
			Help: "Login attempts by result.",
		}, []string{"result"}),
		Refreshes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "refreshes_total",
			Help: "Refresh-token exchanges by result.",
		}, []string{"result"}),
		Logouts: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "logouts_total",
			Help: "Logouts by result.",
		}, []string{"result"}),
		Rotations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "refresh_token_rotations_total",
			Help: "Refresh-token rotation decisions by outcome.",
		}, []string{"outcome"}),
		CacheLookups: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "session_cache_lookups_total",
			Help: "Session cache lookups by result.",
		}, []string{"result"}),
		StoreRetries: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "store_retries_total",
			Help: "Refresh token store writes that were retried.",
		}),
		AuditExported: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "audit_exported_rows_total",
			Help: "Refresh token rows written to the audit export.",
		}),
		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "http_requests_total",
			Help: "HTTP requests by route and status.",
		}, []string{"method", "route", "status"}),
		HTTPDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry for tests and extra collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
