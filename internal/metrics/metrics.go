package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the engine's collectors. A nil *Metrics records nothing.
type Metrics struct {
	registry *prometheus.Registry

	logins         *prometheus.CounterVec
	lockouts       *prometheus.CounterVec
	codesIssued    *prometheus.CounterVec
	codesRedeemed  *prometheus.CounterVec
	cleanupDeleted *prometheus.CounterVec
	cleanupErrors  *prometheus.CounterVec
	httpRequests   *prometheus.CounterVec
	httpDuration   *prometheus.HistogramVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "auth_logins_total",
			Help: "Login verifications by method and result",
		}, []string{"tenant", "method", "result"}),
		lockouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "auth_lockouts_total",
			Help: "Logins rejected because of recent failed attempts",
		}, []string{"tenant"}),
		codesIssued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "auth_codes_issued_total",
			Help: "One-time codes issued by type",
		}, []string{"tenant", "type"}),
		codesRedeemed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "auth_codes_redeemed_total",
			Help: "Code redemptions by type and result",
		}, []string{"tenant", "type", "result"}),
		cleanupDeleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "auth_cleanup_deleted_total",
			Help: "Records deleted by session cleanup",
		}, []string{"kind"}),
		cleanupErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "auth_cleanup_errors_total",
			Help: "Storage errors swallowed by session cleanup",
		}, []string{"kind"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests by method, route and status",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
	m.registry.MustRegister(
		m.logins, m.lockouts, m.codesIssued, m.codesRedeemed,
		m.cleanupDeleted, m.cleanupErrors, m.httpRequests, m.httpDuration,
		collectors.NewGoCollector(),
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) Login(tenant, method string, success bool) {
	if m == nil {
		return
	}
	result := "failure"
	if success {
		result = "success"
	}
	m.logins.WithLabelValues(tenant, method, result).Inc()
}

func (m *Metrics) Lockout(tenant string) {
	if m == nil {
		return
	}
	m.lockouts.WithLabelValues(tenant).Inc()
}

func (m *Metrics) CodeIssued(tenant, codeType string) {
	if m == nil {
		return
	}
	m.codesIssued.WithLabelValues(tenant, codeType).Inc()
}

func (m *Metrics) CodeRedeemed(tenant, codeType string, success bool) {
	if m == nil {
		return
	}
	result := "not_found"
	if success {
		result = "redeemed"
	}
	m.codesRedeemed.WithLabelValues(tenant, codeType, result).Inc()
}

func (m *Metrics) CleanupDeleted(kind string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.cleanupDeleted.WithLabelValues(kind).Add(float64(n))
}

func (m *Metrics) CleanupError(kind string) {
	if m == nil {
		return
	}
	m.cleanupErrors.WithLabelValues(kind).Inc()
}

func (m *Metrics) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}
