package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	documentsClassified = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "apiportal", Subsystem: "catalog", Name: "documents_total", Help: "Description documents seen by catalog rebuilds, by outcome"},
		[]string{"outcome"},
	)
	rebuilds = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "apiportal", Subsystem: "catalog", Name: "rebuilds_total", Help: "Catalog rebuilds by outcome"},
		[]string{"outcome"},
	)
	duplicateIdentities = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: "apiportal", Subsystem: "catalog", Name: "duplicate_identities_total", Help: "Documents dropped because another document claimed the same identity"},
	)
	flagWrites = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: "apiportal", Subsystem: "sdk_generation", Name: "writes_total", Help: "Writes of the SDK generation flag file"},
	)
	storageEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "apiportal", Subsystem: "storage", Name: "events_total", Help: "Storage change events by action taken"},
		[]string{"action"},
	)
	passLatency = prometheus.NewSummaryVec(
		prometheus.SummaryOpts{Namespace: "apiportal", Subsystem: "reconcile", Name: "latency_seconds", Help: "Reconciliation pass latency"},
		[]string{"pass"},
	)
	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "apiportal", Subsystem: "http", Name: "requests_total", Help: "HTTP requests by route and status"},
		[]string{"method", "route", "code"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Namespace: "apiportal", Subsystem: "http", Name: "request_duration_seconds", Help: "HTTP request duration", Buckets: prometheus.DefBuckets},
		[]string{"method", "route"},
	)
)

func init() {
	prometheus.MustRegister(documentsClassified, rebuilds, duplicateIdentities, flagWrites, storageEvents, passLatency, httpRequests, httpDuration)
}

func IncDocument(outcome string)    { documentsClassified.WithLabelValues(outcome).Inc() }
func IncRebuild(outcome string)     { rebuilds.WithLabelValues(outcome).Inc() }
func IncDuplicateIdentity()         { duplicateIdentities.Inc() }
func IncFlagWrite()                 { flagWrites.Inc() }
func IncStorageEvent(action string) { storageEvents.WithLabelValues(action).Inc() }

func ObservePass(pass string, d time.Duration) {
	passLatency.WithLabelValues(pass).Observe(d.Seconds())
}

func ObserveRequest(method, route string, code int, d time.Duration) {
	httpRequests.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
	httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
}
