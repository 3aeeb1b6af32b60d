package models

import (
	"time"

	appErrors "github.com/noah-isme/progress-report-api/pkg/errors"
)

// Canonical subject column names.
const (
	ColumnRollNo              = "roll_no"
	ColumnStudentName         = "student_name"
	ColumnFatherName          = "father_name"
	ColumnDTMarks             = "dt_marks"
	ColumnSTMarks             = "st_marks"
	ColumnATMarks             = "at_marks"
	ColumnTotalMarks          = "total_marks"
	ColumnAttendanceConducted = "attendance_conducted"
	ColumnAttendancePresent   = "attendance_present"
)

// MarkColumns are the graded-assessment columns; their absence marks a lab.
var MarkColumns = []string{ColumnDTMarks, ColumnSTMarks, ColumnATMarks}

// Maximum marks per assessment as printed on the report.
const (
	MaxDTMarks    = 20
	MaxSTMarks    = 10
	MaxATMarks    = 10
	MaxTheoryMark = MaxDTMarks + MaxSTMarks + MaxATMarks
)

// SubjectMarks is one student's marks and attendance in one subject.
type SubjectMarks struct {
	SubjectName         string   `json:"subject_name"`
	DTMarks             float64  `json:"dt_marks"`
	STMarks             float64  `json:"st_marks"`
	ATMarks             float64  `json:"at_marks"`
	TotalMarks          float64  `json:"total_marks"`
	AttendanceConducted int      `json:"attendance_conducted"`
	AttendancePresent   int      `json:"attendance_present"`
	IsLab               bool     `json:"is_lab"`
	Absent              []string `json:"absent,omitempty"`
}

// RecomputeTotal derives the total from its parts; labs carry no marks.
func (m *SubjectMarks) RecomputeTotal() {
	if m.IsLab {
		m.DTMarks, m.STMarks, m.ATMarks, m.TotalMarks = 0, 0, 0, 0
		m.Absent = nil
		return
	}
	m.TotalMarks = m.DTMarks + m.STMarks + m.ATMarks
}

// AttendanceValid reports whether present does not exceed conducted.
func (m SubjectMarks) AttendanceValid() bool {
	return m.AttendancePresent >= 0 && m.AttendanceConducted >= 0 && m.AttendancePresent <= m.AttendanceConducted
}

// IsAbsent reports whether the mark column was recorded as absent (AB).
func (m SubjectMarks) IsAbsent(column string) bool {
	for _, c := range m.Absent {
		if c == column {
			return true
		}
	}
	return false
}

// ClearAbsent drops the absent flag once a real mark is entered.
func (m *SubjectMarks) ClearAbsent(column string) {
	kept := m.Absent[:0]
	for _, c := range m.Absent {
		if c != column {
			kept = append(kept, c)
		}
	}
	if len(kept) == 0 {
		kept = nil
	}
	m.Absent = kept
}

// Clone returns a deep copy.
func (m SubjectMarks) Clone() SubjectMarks {
	m.Absent = append([]string(nil), m.Absent...)
	if len(m.Absent) == 0 {
		m.Absent = nil
	}
	return m
}

// SubjectRow is one normalized sheet row of a subject dataset.
type SubjectRow struct {
	Line        int
	RollNo      string
	StudentName string
	FatherName  string
	Marks       SubjectMarks
	Extra       map[string]string
}

// SubjectDataset is a freshly normalized subject upload.
type SubjectDataset struct {
	Name       string
	Filename   string
	IsLab      bool
	Columns    []string
	Rows       []SubjectRow
	Warnings   []appErrors.Issue
	UploadedAt time.Time
}

// SubjectMeta is what the ledger keeps per subject once rows are merged into
// student records; marks themselves live on the records.
type SubjectMeta struct {
	Name       string                       `json:"name"`
	Filename   string                       `json:"filename"`
	IsLab      bool                         `json:"is_lab"`
	Columns    []string                     `json:"columns"`
	RollOrder  []string                     `json:"roll_order"`
	Extras     map[string]map[string]string `json:"extras,omitempty"`
	Warnings   []appErrors.Issue            `json:"warnings,omitempty"`
	UploadedAt time.Time                    `json:"uploaded_at"`
}

// Clone returns a deep copy.
func (m SubjectMeta) Clone() SubjectMeta {
	m.Columns = append([]string(nil), m.Columns...)
	m.RollOrder = append([]string(nil), m.RollOrder...)
	m.Warnings = append([]appErrors.Issue(nil), m.Warnings...)
	m.Extras = cloneNested(m.Extras)
	return m
}

func cloneNested(in map[string]map[string]string) map[string]map[string]string {
	if in == nil {
		return nil
	}
	out := make(map[string]map[string]string, len(in))
	for k, v := range in {
		out[k] = cloneFlat(v)
	}
	return out
}

func cloneFlat(in map[string]string) map[string]string {
	if in == nil {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
