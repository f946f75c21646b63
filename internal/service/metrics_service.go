package service

import (
	"fmt"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/uni-timetable-api/internal/models"
)

// MetricsSnapshot is a point-in-time summary of the counters kept by MetricsService.
type MetricsSnapshot struct {
	RequestsTotal            uint64                       `json:"requestsTotal"`
	AverageRequestDurationMs float64                      `json:"averageRequestDurationMs"`
	CacheHits                uint64                       `json:"cacheHits"`
	CacheMisses              uint64                       `json:"cacheMisses"`
	CacheHitRatio            float64                      `json:"cacheHitRatio"`
	Runs                     map[models.RunOutcome]uint64 `json:"runs"`
	Goroutines               int                          `json:"goroutines"`
	GeneratedAt              time.Time                    `json:"generatedAt"`
}

// MetricsService encapsulates Prometheus instrumentation and provides lightweight snapshots for API consumption.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheLatency    prometheus.Observer
	cacheWrite      prometheus.Observer
	cacheHitRatio   prometheus.Gauge
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter
	runTotal        *prometheus.CounterVec
	runDuration     *prometheus.HistogramVec
	runBacktracks   prometheus.Histogram
	runUnresolved   prometheus.Histogram
	jobsInFlight    prometheus.Gauge

	cacheHitCount        uint64
	cacheMissCount       uint64
	requestCount         uint64
	requestDurationTotal uint64
	runComplete          uint64
	runPartial           uint64
	runCancelled         uint64
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

	cacheLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_latency_seconds",
		Help:    "Latency for cache operations",
		Buckets: prometheus.DefBuckets,
	})

	cacheWrite := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_write_seconds",
		Help:    "Latency for cache set operations",
		Buckets: prometheus.DefBuckets,
	})

	cacheHitRatio := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "cache_hit_ratio",
		Help: "Ratio of cache hits to total cache lookups",
	})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_hits_total",
		Help: "Total cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_misses_total",
		Help: "Total cache misses",
	})

	runTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "scheduling_runs_total",
		Help: "Scheduling runs by terminal status",
	}, []string{"status"})

	runDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "scheduling_run_duration_seconds",
		Help:    "Wall clock duration of scheduling runs",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
	}, []string{"status"})

	runBacktracks := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "scheduling_run_backtracks",
		Help:    "Backtracks performed per scheduling run",
		Buckets: prometheus.ExponentialBuckets(1, 4, 8),
	})

	runUnresolved := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "scheduling_run_unresolved_tasks",
		Help:    "Tasks left unresolved per scheduling run",
		Buckets: []float64{0, 1, 2, 5, 10, 25, 50, 100},
	})

	jobsInFlight := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "scheduling_jobs_in_flight",
		Help: "Asynchronous scheduling jobs queued or running",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, cacheLatency, cacheWrite, cacheHitRatio, cacheHits, cacheMisses,
		runTotal, runDuration, runBacktracks, runUnresolved, jobsInFlight, goroutines)

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	return &MetricsService{
		registry:        registry,
		handler:         handler,
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		cacheLatency:    cacheLatency,
		cacheWrite:      cacheWrite,
		cacheHitRatio:   cacheHitRatio,
		cacheHits:       cacheHits,
		cacheMisses:     cacheMisses,
		runTotal:        runTotal,
		runDuration:     runDuration,
		runBacktracks:   runBacktracks,
		runUnresolved:   runUnresolved,
		jobsInFlight:    jobsInFlight,
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

// RecordCacheOperation records cache hit/miss metrics and updates hit ratio.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.Observe(duration.Seconds())
	if hit {
		m.cacheHits.Inc()
		atomic.AddUint64(&m.cacheHitCount, 1)
	} else {
		m.cacheMisses.Inc()
		atomic.AddUint64(&m.cacheMissCount, 1)
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	misses := atomic.LoadUint64(&m.cacheMissCount)
	total := hits + misses
	if total > 0 {
		m.cacheHitRatio.Set(float64(hits) / float64(total))
	}
}

// ObserveCacheWrite tracks the duration for cache write operations.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheWrite.Observe(duration.Seconds())
}

// ObserveRun records the terminal status and effort of a scheduling run.
func (m *MetricsService) ObserveRun(status models.RunOutcome, elapsed time.Duration, backtracks, unresolved int) {
	if m == nil {
		return
	}
	label := string(status)
	m.runTotal.WithLabelValues(label).Inc()
	m.runDuration.WithLabelValues(label).Observe(elapsed.Seconds())
	m.runBacktracks.Observe(float64(backtracks))
	m.runUnresolved.Observe(float64(unresolved))
	switch status {
	case models.RunComplete:
		atomic.AddUint64(&m.runComplete, 1)
	case models.RunPartialFailure:
		atomic.AddUint64(&m.runPartial, 1)
	case models.RunCancelled:
		atomic.AddUint64(&m.runCancelled, 1)
	}
}

// JobQueued and JobSettled track asynchronous jobs in flight.
func (m *MetricsService) JobQueued() {
	if m == nil {
		return
	}
	m.jobsInFlight.Inc()
}

func (m *MetricsService) JobSettled() {
	if m == nil {
		return
	}
	m.jobsInFlight.Dec()
}

// Snapshot returns aggregated metrics suitable for the status endpoint.
func (m *MetricsService) Snapshot() MetricsSnapshot {
	if m == nil {
		return MetricsSnapshot{}
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	misses := atomic.LoadUint64(&m.cacheMissCount)
	requests := atomic.LoadUint64(&m.requestCount)
	reqDuration := atomic.LoadUint64(&m.requestDurationTotal)

	var cacheRatio float64
	if total := hits + misses; total > 0 {
		cacheRatio = float64(hits) / float64(total)
	}

	var avgRequestMs float64
	if requests > 0 {
		avgRequestMs = float64(reqDuration) / float64(requests) / float64(time.Millisecond)
	}

	return MetricsSnapshot{
		RequestsTotal:            requests,
		AverageRequestDurationMs: avgRequestMs,
		CacheHits:                hits,
		CacheMisses:              misses,
		CacheHitRatio:            cacheRatio,
		Runs: map[models.RunOutcome]uint64{
			models.RunComplete:       atomic.LoadUint64(&m.runComplete),
			models.RunPartialFailure: atomic.LoadUint64(&m.runPartial),
			models.RunCancelled:      atomic.LoadUint64(&m.runCancelled),
		},
		Goroutines:  runtime.NumGoroutine(),
		GeneratedAt: time.Now().UTC(),
	}
}
