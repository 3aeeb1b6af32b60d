package dto

import appErrors "github.com/noah-isme/progress-report-api/pkg/errors"

// FailedFile reports an uploaded file that could not be ingested.
type FailedFile struct {
	Filename string            `json:"filename"`
	Code     string            `json:"code"`
	Message  string            `json:"message"`
	Issues   []appErrors.Issue `json:"issues,omitempty"`
}

// SubjectUploadResponse is returned by POST /api/upload/subjects.
type SubjectUploadResponse struct {
	Success       bool              `json:"success"`
	Message       string            `json:"message"`
	Subjects      []string          `json:"subjects"`
	TotalStudents int               `json:"total_students"`
	AllStudents   []string          `json:"all_students"`
	Uploaded      []string          `json:"uploaded"`
	Warnings      []appErrors.Issue `json:"warnings,omitempty"`
	Rejected      []appErrors.Issue `json:"rejected,omitempty"`
	FailedFiles   []FailedFile      `json:"failed_files,omitempty"`
}

// StudentInfoUploadResponse is returned by POST /api/upload/student-info.
type StudentInfoUploadResponse struct {
	Success         bool              `json:"success"`
	Message         string            `json:"message"`
	StudentCount    int               `json:"student_count"`
	Placeholders    int               `json:"placeholders_created"`
	Columns         []string          `json:"columns"`
	SemesterColumns []string          `json:"semester_columns"`
	Warnings        []appErrors.Issue `json:"warnings,omitempty"`
	Rejected        []appErrors.Issue `json:"rejected,omitempty"`
}

// UploadStatusResponse is returned by GET /api/upload/status.
type UploadStatusResponse struct {
	HasSubjects     bool     `json:"has_subjects"`
	HasBacklog      bool     `json:"has_backlog"`
	Subjects        []string `json:"subjects"`
	TotalStudents   int      `json:"total_students"`
	ReadyToGenerate bool     `json:"ready_to_generate"`
}

// MessageResponse is the generic success acknowledgement.
type MessageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}
