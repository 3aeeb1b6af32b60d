package dto

import (
	"github.com/noah-isme/progress-report-api/internal/models"
	appErrors "github.com/noah-isme/progress-report-api/pkg/errors"
)

// SubjectPreview is one subject table in GET /api/preview/subjects.
type SubjectPreview struct {
	Records  []map[string]interface{} `json:"records"`
	Columns  []string                 `json:"columns"`
	RowCount int                      `json:"row_count"`
	IsLab    bool                     `json:"is_lab"`
	Filename string                   `json:"filename,omitempty"`
	Warnings []appErrors.Issue        `json:"warnings,omitempty"`
}

// SubjectsPreviewResponse is returned by GET /api/preview/subjects.
type SubjectsPreviewResponse struct {
	Subjects      map[string]SubjectPreview `json:"subjects"`
	SubjectOrder  []string                  `json:"subject_order"`
	TotalSubjects int                       `json:"total_subjects"`
	TotalStudents int                       `json:"total_students"`
	AllStudents   []string                  `json:"all_students"`
}

// StudentResponse is the StudentRecord shape of GET /api/preview/student/{roll_no}.
type StudentResponse struct {
	RollNo      string                `json:"roll_no"`
	StudentName string                `json:"student_name"`
	FatherName  string                `json:"father_name"`
	Subjects    []models.SubjectMarks `json:"subjects"`
	Backlog     map[int][]string      `json:"backlog,omitempty"`
}

// NewStudentResponse converts a ledger record. A student without a name
// reads as "Student {roll}".
func NewStudentResponse(rec models.StudentRecord) StudentResponse {
	subjects := rec.Subjects
	if subjects == nil {
		subjects = []models.SubjectMarks{}
	}
	return StudentResponse{
		RollNo:      rec.RollNo,
		StudentName: rec.DisplayName(),
		FatherName:  rec.FatherName,
		Subjects:    subjects,
		Backlog:     rec.Backlog,
	}
}

// SubjectPatch edits one subject entry. Nil fields are left untouched;
// is_lab is not editable and total_marks is always recomputed server-side.
type SubjectPatch struct {
	SubjectName         string   `json:"subject_name" validate:"required"`
	DTMarks             *float64 `json:"dt_marks,omitempty" validate:"omitempty,min=0"`
	STMarks             *float64 `json:"st_marks,omitempty" validate:"omitempty,min=0"`
	ATMarks             *float64 `json:"at_marks,omitempty" validate:"omitempty,min=0"`
	TotalMarks          *float64 `json:"total_marks,omitempty"`
	AttendanceConducted *int     `json:"attendance_conducted,omitempty" validate:"omitempty,min=0"`
	AttendancePresent   *int     `json:"attendance_present,omitempty" validate:"omitempty,min=0"`
}

// UpdateStudentRequest is the body of PUT /api/preview/student/{roll_no}.
type UpdateStudentRequest struct {
	StudentName *string        `json:"student_name,omitempty"`
	FatherName  *string        `json:"father_name,omitempty"`
	Subjects    []SubjectPatch `json:"subjects" validate:"omitempty,dive"`
}

// UpdateStudentResponse embeds the updated record.
type UpdateStudentResponse struct {
	StudentResponse
	Success         bool     `json:"success"`
	Message         string   `json:"message"`
	UpdatedSubjects []string `json:"updated_subjects"`
}

// BacklogResponse is returned by GET /api/preview/backlog.
type BacklogResponse struct {
	Records         []map[string]interface{} `json:"records"`
	Columns         []string                 `json:"columns"`
	SemesterColumns []string                 `json:"semester_columns"`
	StudentCount    int                      `json:"student_count"`
}

// UpdateBacklogRequest is the body of PUT /api/preview/backlog/{roll_no}.
// Backlogs maps a semester column ("sem 2") to comma separated codes; an
// empty value clears that semester.
type UpdateBacklogRequest struct {
	StudentName *string           `json:"student_name,omitempty"`
	FatherName  *string           `json:"father_name,omitempty"`
	Backlogs    map[string]string `json:"backlogs,omitempty"`
}
