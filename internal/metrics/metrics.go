package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry        *prometheus.Registry
	cycleRuns       *prometheus.CounterVec // total cycles
	cycleDuration   prometheus.Histogram   // time to run a cycle
	lastSync        prometheus.Gauge       // unix time of last committed cycle
	ipLookups       *prometheus.CounterVec // public ip lookups
	ipChanges       prometheus.Counter     // observed public ip changes
	recordActions   *prometheus.CounterVec // per record decisions
	dnsRequests     *prometheus.CounterVec // dns provider requests
	historyRequests *prometheus.CounterVec // badgerdb requests
}

// Public interface for metrics operations
func (m *Metrics) IncCycleRun(status string) {
	if !isValidCycleStatus(status) {
		return
	}
	m.cycleRuns.WithLabelValues(status).Inc()
}

func (m *Metrics) SetCycleDuration(duration time.Duration) {
	m.cycleDuration.Observe(duration.Seconds())
}

func (m *Metrics) SetLastSync(t time.Time) {
	m.lastSync.Set(float64(t.Unix()))
}

func (m *Metrics) IncIPLookup(success bool) {
	status := boolToResult(success)
	m.ipLookups.WithLabelValues(status).Inc()
}

func (m *Metrics) IncIPChange() {
	m.ipChanges.Inc()
}

func (m *Metrics) IncRecordAction(action, zone string) {
	if !isValidAction(action) || zone == "" {
		return
	}
	m.recordActions.WithLabelValues(action, zone).Inc()
}

func (m *Metrics) IncDNSRequest(operation, zone string, success bool) {
	if !isValidOperation(operation) || zone == "" {
		return
	}
	status := boolToResult(success)
	m.dnsRequests.WithLabelValues(operation, zone, status).Inc()
}

func (m *Metrics) IncHistoryRequest(operation string, success bool) {
	if !isValidOperation(operation) {
		return
	}
	status := boolToResult(success)
	m.historyRequests.WithLabelValues(operation, status).Inc()
}

// Validation helpers
func boolToResult(b bool) string {
	if b {
		return "success"
	}
	return "failure"
}

func isValidCycleStatus(status string) bool {
	switch status {
	case "success", "failure", "noop":
		return true
	}
	return false
}

func isValidOperation(op string) bool {
	switch op {
	case "read", "update":
		return true
	}
	return false
}

func isValidAction(action string) bool {
	switch action {
	case "updated", "noop", "error", "skip", "failed":
		return true
	}
	return false
}

func New(register bool) *Metrics {
	registry := prometheus.NewRegistry()
	namespace := "cloudflare_ddns"

	m := &Metrics{
		registry: registry,

		cycleRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycle_runs_total",
			Help:      "Total number of polling cycles",
		}, []string{"status"}),

		cycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cycle_duration_seconds",
			Help:      "Duration of polling cycles in seconds",
			Buckets:   prometheus.DefBuckets,
		}),

		lastSync: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_sync_timestamp_seconds",
			Help:      "Unix time of the last cycle that confirmed the public IP",
		}),

		ipLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ip_lookups_total",
			Help:      "Total public IP lookups",
		}, []string{"status"}),

		ipChanges: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ip_changes_total",
			Help:      "Total cycles that observed a changed or unknown public IP",
		}),

		recordActions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "record_actions_total",
			Help:      "Total record decisions by outcome",
		}, []string{"action", "zone"}),

		dnsRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dns_requests_total",
			Help:      "Total DNS provider requests",
		}, []string{"operation", "zone", "status"}),

		historyRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "badgerdb_requests_total",
			Help:      "Total badgerdb requests",
		}, []string{"operation", "status"}),
	}

	if register {
		registry.MustRegister(
			m.cycleRuns,
			m.cycleDuration,
			m.lastSync,
			m.ipLookups,
			m.ipChanges,
			m.recordActions,
			m.dnsRequests,
			m.historyRequests,
		)
	}
	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
