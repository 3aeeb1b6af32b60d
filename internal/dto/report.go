package dto

import (
	"github.com/noah-isme/progress-report-api/internal/models"
	appErrors "github.com/noah-isme/progress-report-api/pkg/errors"
)

// GenerateReportRequest is the body of POST /api/reports/generate. An empty
// students list targets every roll number in the ledger.
type GenerateReportRequest struct {
	Students        []string `json:"students"`
	DepartmentName  string   `json:"department_name"`
	ReportDate      string   `json:"report_date"`
	AcademicYear    string   `json:"academic_year"`
	Semester        string   `json:"semester"`
	AttendanceStart string   `json:"attendance_start"`
	AttendanceEnd   string   `json:"attendance_end"`
	Template        string   `json:"template" validate:"omitempty,oneof=Detailed Compact"`
	IncludeBacklog  *bool    `json:"include_backlog"`
	IncludeNotes    *bool    `json:"include_notes"`
}

// PartialError lists the students that could not be rendered.
type PartialError struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Issues  []appErrors.Issue `json:"issues"`
}

// GenerateReportResponse is returned by POST /api/reports/generate.
type GenerateReportResponse struct {
	Success              bool                           `json:"success"`
	Message              string                         `json:"message"`
	JobID                string                         `json:"job_id"`
	Reports              map[string]models.ReportResult `json:"reports"`
	ConsolidatedFilename *string                        `json:"consolidated_filename"`
	TotalGenerated       int                            `json:"total_generated"`
	Failed               []models.ReportFailure         `json:"failed,omitempty"`
	PartialError         *PartialError                  `json:"partial_error,omitempty"`
}

// ReportListResponse is returned by GET /api/reports/list.
type ReportListResponse struct {
	Reports []string `json:"reports"`
	Count   int      `json:"count"`
}

// ReportPreviewResponse is returned by GET /api/reports/preview-html/{roll_no}.
type ReportPreviewResponse struct {
	Success  bool     `json:"success"`
	HTML     string   `json:"html"`
	Filename string   `json:"filename"`
	Warnings []string `json:"warnings"`
}
