// Package metrics provides Prometheus metrics collection for the practice server.
package metrics

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	namespace = "practice"
	subsystem = "server"
)

// Version is reported by the info gauge.
var Version = "1.0.0"

var (
	// Global metrics - used by the application
	// Using atomic.Pointer for lock-free initialization checks on hot path metrics.
	requestsTotal     atomic.Pointer[prometheus.CounterVec]
	requestDuration   atomic.Pointer[prometheus.HistogramVec]
	authFailuresTotal atomic.Pointer[prometheus.CounterVec]
	ruleDenialsTotal  atomic.Pointer[prometheus.CounterVec]
	throttledTotal    atomic.Pointer[prometheus.Counter]
)

// Init initializes all Prometheus metrics and registers them with the provided registry.
// This should be called once at application startup.
func Init(reg prometheus.Registerer) error {
	// HTTP request counter: tracks all requests by method, path (normalized), and status code
	requestsTotalVec := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled by the server",
		},
		[]string{"method", "path", "status"},
	)
	if err := reg.Register(requestsTotalVec); err != nil {
		return fmt.Errorf("failed to register requestsTotal: %w", err)
	}

	requestDurationVec := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
	if err := reg.Register(requestDurationVec); err != nil {
		return fmt.Errorf("failed to register requestDuration: %w", err)
	}

	// Auth failures counter: invalid tokens, bad logins, duplicate registrations
	authFailuresTotalVec := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "auth_failures_total",
			Help:      "Total number of authentication failures",
		},
		[]string{"reason"},
	)
	if err := reg.Register(authFailuresTotalVec); err != nil {
		return fmt.Errorf("failed to register authFailuresTotal: %w", err)
	}

	ruleDenialsTotalVec := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "rule_denials_total",
			Help:      "Total number of requests rejected by access rules",
		},
		[]string{"collection", "action"},
	)
	if err := reg.Register(ruleDenialsTotalVec); err != nil {
		return fmt.Errorf("failed to register ruleDenialsTotal: %w", err)
	}

	throttledCounter := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "throttled_requests_total",
			Help:      "Total number of responses delayed by the throttle flag",
		},
	)
	if err := reg.Register(throttledCounter); err != nil {
		return fmt.Errorf("failed to register throttledTotal: %w", err)
	}

	// Info gauge: static metric with constant label values for build info
	infoGaugeVec := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "info",
			Help:      "Server version and build information",
		},
		[]string{"version"},
	)
	infoGaugeInstance := infoGaugeVec.WithLabelValues(Version)
	if err := reg.Register(infoGaugeVec); err != nil {
		return fmt.Errorf("failed to register infoGauge: %w", err)
	}
	infoGaugeInstance.Set(1)

	// Store metrics in atomics for lock-free access in record functions
	requestsTotal.Store(requestsTotalVec)
	requestDuration.Store(requestDurationVec)
	authFailuresTotal.Store(authFailuresTotalVec)
	ruleDenialsTotal.Store(ruleDenialsTotalVec)
	throttledTotal.Store(&throttledCounter)

	return nil
}

// RecordRequest increments the requests counter for the given method, path, and status code.
// The path should be normalized (e.g., "/data/games/:id" instead of "/data/games/1c7e...").
func RecordRequest(method, path, statusCode string) {
	if counter := requestsTotal.Load(); counter != nil {
		counter.WithLabelValues(method, path, statusCode).Inc()
	}
}

// RecordRequestDuration records the latency for a request.
// Duration should be in seconds.
func RecordRequestDuration(method, path, statusCode string, durationSeconds float64) {
	if histogram := requestDuration.Load(); histogram != nil {
		histogram.WithLabelValues(method, path, statusCode).Observe(durationSeconds)
	}
}

// RecordAuthFailure increments the auth failures counter for the given reason.
// Common reasons: "invalid_token", "bad_credentials", "duplicate_identity", "missing_session"
func RecordAuthFailure(reason string) {
	if counter := authFailuresTotal.Load(); counter != nil {
		counter.WithLabelValues(reason).Inc()
	}
}

// RecordRuleDenial increments the rule denials counter.
func RecordRuleDenial(collection, action string) {
	if counter := ruleDenialsTotal.Load(); counter != nil {
		counter.WithLabelValues(collection, action).Inc()
	}
}

// RecordThrottled counts a response delayed by the throttle flag.
func RecordThrottled() {
	if counter := throttledTotal.Load(); counter != nil {
		(*counter).Inc()
	}
}

// StatsSource reports record counts per collection.
type StatsSource interface {
	Stats() map[string]int
}

// storeCollector exports store_records{store,collection} at scrape time.
type storeCollector struct {
	desc   *prometheus.Desc
	stores map[string]StatsSource
}

// RegisterStores registers a collector reporting the record count of every
// collection in the given stores, keyed by store name.
func RegisterStores(reg prometheus.Registerer, stores map[string]StatsSource) error {
	c := &storeCollector{
		desc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, subsystem, "store_records"),
			"Number of records per collection",
			[]string{"store", "collection"},
			nil,
		),
		stores: stores,
	}
	if err := reg.Register(c); err != nil {
		return fmt.Errorf("failed to register store collector: %w", err)
	}
	return nil
}

func (c *storeCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.desc
}

func (c *storeCollector) Collect(ch chan<- prometheus.Metric) {
	names := make([]string, 0, len(c.stores))
	for name := range c.stores {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, store := range names {
		for collection, n := range c.stores[store].Stats() {
			ch <- prometheus.MustNewConstMetric(c.desc, prometheus.GaugeValue, float64(n), store, collection)
		}
	}
}

// HandlerFor returns a metrics handler serving the given gatherer.
func HandlerFor(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// GetMetricsText returns the Prometheus text-format output from a registry.
// This is useful for testing and debugging.
func GetMetricsText(reg prometheus.Gatherer) (string, error) {
	handler := promhttp.HandlerFor(reg, promhttp.HandlerOpts{})

	// Use httptest to capture the handler output
	req := httptest.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	body, err := io.ReadAll(w.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read metrics output: %w", err)
	}

	return string(body), nil
}
