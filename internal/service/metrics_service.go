package service

import (
	"fmt"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation and provides lightweight snapshots for API consumption.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	dbQueryDuration *prometheus.HistogramVec
	bookingOutcomes *prometheus.CounterVec
	bookingRetries  prometheus.Counter
	freeDaysScanned prometheus.Histogram
	freeDaysFound   prometheus.Histogram
	idempotentHits  prometheus.Counter

	requestCount         uint64
	requestDurationTotal uint64
	bookingAccepted      uint64
	bookingRejected      uint64
}

// MetricsSnapshot is a point-in-time summary of the collected metrics.
type MetricsSnapshot struct {
	RequestsTotal            uint64    `json:"requests_total"`
	AverageRequestDurationMs float64   `json:"average_request_duration_ms"`
	BookingsAccepted         uint64    `json:"bookings_accepted"`
	BookingsRejected         uint64    `json:"bookings_rejected"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generated_at"`
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	dbQueryDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "db_query_duration_seconds",
		Help:    "Duration of database queries",
		Buckets: prometheus.DefBuckets,
	}, []string{"query"})

	bookingOutcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "booking_outcomes_total",
		Help: "Booking attempts by operation and outcome code",
	}, []string{"operation", "outcome"})

	bookingRetries := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "booking_race_retries_total",
		Help: "Bookings retried after losing a lock race",
	})

	freeDaysScanned := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "free_days_scanned_days",
		Help:    "Calendar days advanced per free days query",
		Buckets: []float64{7, 14, 31, 62, 124, 248, 365, 730},
	})

	freeDaysFound := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "free_days_found_days",
		Help:    "Free days returned per free days query",
		Buckets: prometheus.LinearBuckets(0, 5, 13),
	})

	idempotentHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "booking_idempotent_replays_total",
		Help: "Bookings answered from a stored idempotency key",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, dbQueryDuration, bookingOutcomes, bookingRetries, freeDaysScanned, freeDaysFound, idempotentHits, goroutines)

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	return &MetricsService{
		registry:        registry,
		handler:         handler,
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		dbQueryDuration: dbQueryDuration,
		bookingOutcomes: bookingOutcomes,
		bookingRetries:  bookingRetries,
		freeDaysScanned: freeDaysScanned,
		freeDaysFound:   freeDaysFound,
		idempotentHits:  idempotentHits,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request metrics and aggregates simple stats for snapshots.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
	atomic.AddUint64(&m.requestCount, 1)
	atomic.AddUint64(&m.requestDurationTotal, uint64(duration.Nanoseconds()))
}

// ObserveDBQuery records database query timing.
func (m *MetricsService) ObserveDBQuery(label string, duration time.Duration) {
	if m == nil {
		return
	}
	m.dbQueryDuration.WithLabelValues(label).Observe(duration.Seconds())
}

// RecordBookingOutcome counts a booking attempt. outcome is "accepted" or an error code.
func (m *MetricsService) RecordBookingOutcome(operation, outcome string) {
	if m == nil {
		return
	}
	m.bookingOutcomes.WithLabelValues(operation, outcome).Inc()
	if outcome == outcomeAccepted {
		atomic.AddUint64(&m.bookingAccepted, 1)
	} else {
		atomic.AddUint64(&m.bookingRejected, 1)
	}
}

// RecordBookingRetry counts a retried booking.
func (m *MetricsService) RecordBookingRetry() {
	if m == nil {
		return
	}
	m.bookingRetries.Inc()
}

// RecordIdempotentReplay counts a booking served from its idempotency key.
func (m *MetricsService) RecordIdempotentReplay() {
	if m == nil {
		return
	}
	m.idempotentHits.Inc()
}

// ObserveFreeDaysScan records how far a free days query scanned and how much it found.
func (m *MetricsService) ObserveFreeDaysScan(scannedDays, found int) {
	if m == nil {
		return
	}
	m.freeDaysScanned.Observe(float64(scannedDays))
	m.freeDaysFound.Observe(float64(found))
}

// Snapshot returns aggregated metrics.
func (m *MetricsService) Snapshot() MetricsSnapshot {
	if m == nil {
		return MetricsSnapshot{}
	}
	requests := atomic.LoadUint64(&m.requestCount)
	reqDuration := atomic.LoadUint64(&m.requestDurationTotal)

	var avgRequestMs float64
	if requests > 0 {
		avgRequestMs = float64(reqDuration) / float64(requests) / float64(time.Millisecond)
	}

	return MetricsSnapshot{
		RequestsTotal:            requests,
		AverageRequestDurationMs: avgRequestMs,
		BookingsAccepted:         atomic.LoadUint64(&m.bookingAccepted),
		BookingsRejected:         atomic.LoadUint64(&m.bookingRejected),
		Goroutines:               runtime.NumGoroutine(),
		GeneratedAt:              time.Now().UTC(),
	}
}
