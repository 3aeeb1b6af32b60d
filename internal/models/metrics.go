package models

import "time"

// MetricsSummary is a lightweight JSON view over the Prometheus collectors.
type MetricsSummary struct {
	RequestsTotal            uint64    `json:"requests_total"`
	AverageRequestDurationMs float64   `json:"average_request_duration_ms"`
	UploadsTotal             uint64    `json:"uploads_total"`
	RejectedRowsTotal        uint64    `json:"rejected_rows_total"`
	ReportsRendered          uint64    `json:"reports_rendered"`
	ReportsFailed            uint64    `json:"reports_failed"`
	AverageRenderDurationMs  float64   `json:"average_render_duration_ms"`
	CacheHitRatio            float64   `json:"cache_hit_ratio"`
	LedgerStudents           int64     `json:"ledger_students"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generated_at"`
}
