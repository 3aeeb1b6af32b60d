package models

import "time"

// Report template variants.
const (
	TemplateDetailed = "Detailed"
	TemplateCompact  = "Compact"
)

// ReportConfig is the configuration snapshot of one generate request.
type ReportConfig struct {
	DepartmentName  string `json:"department_name"`
	ReportDate      string `json:"report_date"`
	AcademicYear    string `json:"academic_year"`
	Semester        string `json:"semester"`
	AttendanceStart string `json:"attendance_start"`
	AttendanceEnd   string `json:"attendance_end"`
	Template        string `json:"template"`
	IncludeBacklog  bool   `json:"include_backlog"`
	IncludeNotes    bool   `json:"include_notes"`
}

// ReportResult describes one generated per-student artifact.
type ReportResult struct {
	Filename    string `json:"filename"`
	StudentName string `json:"student_name"`
}

// ReportFailure describes a student whose artifact could not be produced.
type ReportFailure struct {
	RollNo string `json:"roll_no"`
	Code   string `json:"code"`
	Reason string `json:"reason"`
}

// ReportJob is the outcome of the latest generate call.
type ReportJob struct {
	ID                   string                  `json:"id"`
	Targets              []string                `json:"targets"`
	Config               ReportConfig            `json:"config"`
	Results              map[string]ReportResult `json:"results"`
	Failures             []ReportFailure         `json:"failures,omitempty"`
	ConsolidatedFilename *string                 `json:"consolidated_filename"`
	StartedAt            time.Time               `json:"started_at"`
	FinishedAt           time.Time               `json:"finished_at"`
}
