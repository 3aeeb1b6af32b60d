package service

import (
	"fmt"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/progress-report-api/internal/models"
)

// MetricsService encapsulates Prometheus instrumentation and keeps running
// totals for the JSON summary endpoint.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	uploads         *prometheus.CounterVec
	rejectedRows    *prometheus.CounterVec
	reports         *prometheus.CounterVec
	renderDuration  *prometheus.HistogramVec
	ledgerStudents  prometheus.Gauge
	cacheLatency    prometheus.Observer
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter
	dbQueryDuration *prometheus.HistogramVec

	requestCount         uint64
	requestDurationTotal uint64
	uploadCount          uint64
	rejectedCount        uint64
	renderedCount        uint64
	failedCount          uint64
	renderDurationTotal  uint64
	cacheHitCount        uint64
	cacheMissCount       uint64
	studentGauge         int64
}

// NewMetricsService registers the collectors on a private registry.
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

	uploads := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "progress_uploads_total",
		Help: "Uploaded spreadsheet files by kind and outcome",
	}, []string{"kind", "outcome"})

	rejectedRows := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "progress_rejected_rows_total",
		Help: "Spreadsheet rows rejected during reconciliation",
	}, []string{"kind"})

	reports := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "progress_reports_total",
		Help: "Report artifacts by kind and outcome",
	}, []string{"kind", "outcome"})

	renderDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "progress_report_render_seconds",
		Help:    "Time spent rendering one report artifact",
		Buckets: prometheus.DefBuckets,
	}, []string{"kind"})

	ledgerStudents := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "progress_ledger_students",
		Help: "Student records currently held in the ledger",
	})

	cacheLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_latency_seconds",
		Help:    "Latency for cache operations",
		Buckets: prometheus.DefBuckets,
	})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_hits_total",
		Help: "Total cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_misses_total",
		Help: "Total cache misses",
	})

	dbQueryDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "db_query_duration_seconds",
		Help:    "Duration of database queries",
		Buckets: prometheus.DefBuckets,
	}, []string{"query"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, uploads, rejectedRows, reports, renderDuration,
		ledgerStudents, cacheLatency, cacheHits, cacheMisses, dbQueryDuration, goroutines)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		uploads:         uploads,
		rejectedRows:    rejectedRows,
		reports:         reports,
		renderDuration:  renderDuration,
		ledgerStudents:  ledgerStudents,
		cacheLatency:    cacheLatency,
		cacheHits:       cacheHits,
		cacheMisses:     cacheMisses,
		dbQueryDuration: dbQueryDuration,
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

// ObserveHTTPRequest records request metrics.
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

// RecordUpload counts one uploaded file; kind is "subject" or "student_info".
func (m *MetricsService) RecordUpload(kind string, ok bool) {
	if m == nil {
		return
	}
	m.uploads.WithLabelValues(kind, outcome(ok)).Inc()
	atomic.AddUint64(&m.uploadCount, 1)
}

// RecordRejectedRows counts rows rejected during reconciliation.
func (m *MetricsService) RecordRejectedRows(kind string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.rejectedRows.WithLabelValues(kind).Add(float64(n))
	atomic.AddUint64(&m.rejectedCount, uint64(n))
}

// ObserveReport records one rendered (or failed) artifact.
func (m *MetricsService) ObserveReport(kind string, ok bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.reports.WithLabelValues(kind, outcome(ok)).Inc()
	if ok {
		m.renderDuration.WithLabelValues(kind).Observe(duration.Seconds())
		atomic.AddUint64(&m.renderedCount, 1)
		atomic.AddUint64(&m.renderDurationTotal, uint64(duration.Nanoseconds()))
		return
	}
	atomic.AddUint64(&m.failedCount, 1)
}

// SetLedgerStudents publishes the ledger size.
func (m *MetricsService) SetLedgerStudents(n int) {
	if m == nil {
		return
	}
	m.ledgerStudents.Set(float64(n))
	atomic.StoreInt64(&m.studentGauge, int64(n))
}

// RecordCacheOperation records cache hit/miss metrics.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.Observe(duration.Seconds())
	if hit {
		m.cacheHits.Inc()
		atomic.AddUint64(&m.cacheHitCount, 1)
		return
	}
	m.cacheMisses.Inc()
	atomic.AddUint64(&m.cacheMissCount, 1)
}

// ObserveDBQuery records database query timing.
func (m *MetricsService) ObserveDBQuery(label string, duration time.Duration) {
	if m == nil {
		return
	}
	m.dbQueryDuration.WithLabelValues(label).Observe(duration.Seconds())
}

// Summary returns aggregated totals.
func (m *MetricsService) Summary() models.MetricsSummary {
	if m == nil {
		return models.MetricsSummary{GeneratedAt: time.Now().UTC()}
	}
	requests := atomic.LoadUint64(&m.requestCount)
	reqDuration := atomic.LoadUint64(&m.requestDurationTotal)
	rendered := atomic.LoadUint64(&m.renderedCount)
	renderDuration := atomic.LoadUint64(&m.renderDurationTotal)
	hits := atomic.LoadUint64(&m.cacheHitCount)
	misses := atomic.LoadUint64(&m.cacheMissCount)

	summary := models.MetricsSummary{
		RequestsTotal:     requests,
		UploadsTotal:      atomic.LoadUint64(&m.uploadCount),
		RejectedRowsTotal: atomic.LoadUint64(&m.rejectedCount),
		ReportsRendered:   rendered,
		ReportsFailed:     atomic.LoadUint64(&m.failedCount),
		LedgerStudents:    atomic.LoadInt64(&m.studentGauge),
		Goroutines:        runtime.NumGoroutine(),
		GeneratedAt:       time.Now().UTC(),
	}
	if requests > 0 {
		summary.AverageRequestDurationMs = float64(reqDuration) / float64(requests) / float64(time.Millisecond)
	}
	if rendered > 0 {
		summary.AverageRenderDurationMs = float64(renderDuration) / float64(rendered) / float64(time.Millisecond)
	}
	if hits+misses > 0 {
		summary.CacheHitRatio = float64(hits) / float64(hits+misses)
	}
	return summary
}

func outcome(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}
