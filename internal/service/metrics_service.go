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

// MetricsSnapshot is the JSON view of process counters.
type MetricsSnapshot struct {
	CacheHitRatio              float64   `json:"cache_hit_ratio"`
	CacheHits                  uint64    `json:"cache_hits"`
	CacheMisses                uint64    `json:"cache_misses"`
	RequestsTotal              uint64    `json:"requests_total"`
	AverageRequestDurationMs   float64   `json:"average_request_duration_ms"`
	StoreCallCount             uint64    `json:"store_call_count"`
	StoreErrorCount            uint64    `json:"store_error_count"`
	AverageStoreCallDurationMs float64   `json:"average_store_call_duration_ms"`
	UploadsCompleted           uint64    `json:"uploads_completed"`
	UploadsFailed              uint64    `json:"uploads_failed"`
	Goroutines                 int       `json:"goroutines"`
	GeneratedAt                time.Time `json:"generated_at"`
}

// MetricsService encapsulates Prometheus instrumentation and provides lightweight snapshots for API consumption.
type MetricsService struct {
	registry          *prometheus.Registry
	handler           http.Handler
	requestDuration   *prometheus.HistogramVec
	requestTotal      *prometheus.CounterVec
	cacheLatency      prometheus.Observer
	cacheWrite        prometheus.Observer
	cacheHitRatio     prometheus.Gauge
	cacheHits         prometheus.Counter
	cacheMisses       prometheus.Counter
	storeCallDuration *prometheus.HistogramVec
	storeErrors       *prometheus.CounterVec
	uploads           *prometheus.CounterVec
	uploadBytes       prometheus.Counter
	mailsSent         *prometheus.CounterVec

	cacheHitCount          uint64
	cacheMissCount         uint64
	requestCount           uint64
	requestDurationTotal   uint64
	storeCallCount         uint64
	storeErrorCount        uint64
	storeCallDurationTotal uint64
	uploadDoneCount        uint64
	uploadFailedCount      uint64
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

	storeCallDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "record_store_call_duration_seconds",
		Help:    "Duration of record store calls",
		Buckets: []float64{.05, .1, .25, .5, 1, 2, 4, 8, 15},
	}, []string{"entity", "action"})

	storeErrors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "record_store_errors_total",
		Help: "Record store calls that returned an error",
	}, []string{"entity", "action"})

	uploads := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "document_uploads_total",
		Help: "Document uploads by outcome",
	}, []string{"outcome"})

	uploadBytes := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "document_upload_bytes_total",
		Help: "Bytes sent to Drive",
	})

	mailsSent := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "reminder_mails_total",
		Help: "Reminder mails by outcome",
	}, []string{"outcome"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, cacheLatency, cacheWrite, cacheHitRatio, cacheHits, cacheMisses,
		storeCallDuration, storeErrors, uploads, uploadBytes, mailsSent, goroutines)

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	return &MetricsService{
		registry:          registry,
		handler:           handler,
		requestDuration:   requestDuration,
		requestTotal:      requestTotal,
		cacheLatency:      cacheLatency,
		cacheWrite:        cacheWrite,
		cacheHitRatio:     cacheHitRatio,
		cacheHits:         cacheHits,
		cacheMisses:       cacheMisses,
		storeCallDuration: storeCallDuration,
		storeErrors:       storeErrors,
		uploads:           uploads,
		uploadBytes:       uploadBytes,
		mailsSent:         mailsSent,
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
	if m.cacheLatency != nil {
		m.cacheLatency.Observe(duration.Seconds())
	}
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
	if m == nil || m.cacheWrite == nil {
		return
	}
	m.cacheWrite.Observe(duration.Seconds())
}

// ObserveStoreCall records the timing and outcome of a record store call.
func (m *MetricsService) ObserveStoreCall(entity, action string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	if entity == "" {
		entity = "_"
	}
	m.storeCallDuration.WithLabelValues(entity, action).Observe(duration.Seconds())
	atomic.AddUint64(&m.storeCallCount, 1)
	atomic.AddUint64(&m.storeCallDurationTotal, uint64(duration.Nanoseconds()))
	if err != nil {
		m.storeErrors.WithLabelValues(entity, action).Inc()
		atomic.AddUint64(&m.storeErrorCount, 1)
	}
}

// ObserveUpload counts a finished Drive upload.
func (m *MetricsService) ObserveUpload(size int64, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.uploads.WithLabelValues("failed").Inc()
		atomic.AddUint64(&m.uploadFailedCount, 1)
		return
	}
	m.uploads.WithLabelValues("done").Inc()
	m.uploadBytes.Add(float64(size))
	atomic.AddUint64(&m.uploadDoneCount, 1)
}

// ObserveMail counts a reminder mail attempt.
func (m *MetricsService) ObserveMail(err error) {
	if m == nil {
		return
	}
	outcome := "sent"
	if err != nil {
		outcome = "failed"
	}
	m.mailsSent.WithLabelValues(outcome).Inc()
}

// Snapshot returns aggregated metrics suitable for the admin summary endpoint.
func (m *MetricsService) Snapshot() MetricsSnapshot {
	if m == nil {
		return MetricsSnapshot{}
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	misses := atomic.LoadUint64(&m.cacheMissCount)
	requests := atomic.LoadUint64(&m.requestCount)
	reqDuration := atomic.LoadUint64(&m.requestDurationTotal)
	storeCount := atomic.LoadUint64(&m.storeCallCount)
	storeDuration := atomic.LoadUint64(&m.storeCallDurationTotal)

	var cacheRatio float64
	totalLookups := hits + misses
	if totalLookups > 0 {
		cacheRatio = float64(hits) / float64(totalLookups)
	}

	var avgRequestMs float64
	if requests > 0 {
		avgRequestMs = float64(reqDuration) / float64(requests) / float64(time.Millisecond)
	}

	var avgStoreMs float64
	if storeCount > 0 {
		avgStoreMs = float64(storeDuration) / float64(storeCount) / float64(time.Millisecond)
	}

	return MetricsSnapshot{
		CacheHitRatio:              cacheRatio,
		CacheHits:                  hits,
		CacheMisses:                misses,
		RequestsTotal:              requests,
		AverageRequestDurationMs:   avgRequestMs,
		StoreCallCount:             storeCount,
		StoreErrorCount:            atomic.LoadUint64(&m.storeErrorCount),
		AverageStoreCallDurationMs: avgStoreMs,
		UploadsCompleted:           atomic.LoadUint64(&m.uploadDoneCount),
		UploadsFailed:              atomic.LoadUint64(&m.uploadFailedCount),
		Goroutines:                 runtime.NumGoroutine(),
		GeneratedAt:                time.Now().UTC(),
	}
}
