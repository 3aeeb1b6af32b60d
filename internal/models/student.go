package models

import (
	"fmt"
	"sort"
	"strings"
)

// NormalizeRollNo trims and upper-cases a roll number.
func NormalizeRollNo(raw string) string {
	return strings.ToUpper(strings.TrimSpace(raw))
}

// StudentRecord aggregates one student's data across every uploaded subject.
type StudentRecord struct {
	RollNo      string           `json:"roll_no"`
	StudentName string           `json:"student_name"`
	FatherName  string           `json:"father_name"`
	Subjects    []SubjectMarks   `json:"subjects"`
	Backlog     map[int][]string `json:"backlog,omitempty"`
}

// DisplayName falls back to the roll number until a name is known.
func (s StudentRecord) DisplayName() string {
	if strings.TrimSpace(s.StudentName) != "" {
		return s.StudentName
	}
	return fmt.Sprintf("Student %s", s.RollNo)
}

// Subject returns the index of the subject entry or -1.
func (s StudentRecord) Subject(name string) int {
	for i, sub := range s.Subjects {
		if sub.SubjectName == name {
			return i
		}
	}
	return -1
}

// Clone returns a deep copy so callers never alias ledger-owned state.
func (s StudentRecord) Clone() StudentRecord {
	out := s
	out.Subjects = make([]SubjectMarks, len(s.Subjects))
	for i, sub := range s.Subjects {
		out.Subjects[i] = sub.Clone()
	}
	if s.Backlog != nil {
		out.Backlog = make(map[int][]string, len(s.Backlog))
		for sem, codes := range s.Backlog {
			out.Backlog[sem] = append([]string(nil), codes...)
		}
	}
	return out
}

// BacklogSemesters returns semesters with recorded backlogs in ascending order.
func (s StudentRecord) BacklogSemesters() []int {
	sems := make([]int, 0, len(s.Backlog))
	for sem, codes := range s.Backlog {
		if len(codes) > 0 {
			sems = append(sems, sem)
		}
	}
	sort.Ints(sems)
	return sems
}

// StudentInfoRow is one normalized row of the student-info/backlog sheet.
type StudentInfoRow struct {
	Line        int
	RollNo      string
	StudentName string
	FatherName  string
	Backlog     map[int][]string
	Extra       map[string]string
}

// StudentInfoDataset is a freshly normalized student-info upload.
type StudentInfoDataset struct {
	Filename        string
	Columns         []string
	SemesterColumns []string
	Rows            []StudentInfoRow
}

// StudentInfoMeta is what the ledger keeps of the student-info upload.
type StudentInfoMeta struct {
	Filename        string                       `json:"filename"`
	Columns         []string                     `json:"columns"`
	SemesterColumns []string                     `json:"semester_columns"`
	RollOrder       []string                     `json:"roll_order"`
	Extras          map[string]map[string]string `json:"extras,omitempty"`
}

// Clone returns a deep copy.
func (m StudentInfoMeta) Clone() StudentInfoMeta {
	m.Columns = append([]string(nil), m.Columns...)
	m.SemesterColumns = append([]string(nil), m.SemesterColumns...)
	m.RollOrder = append([]string(nil), m.RollOrder...)
	m.Extras = cloneNested(m.Extras)
	return m
}

// SemesterColumn is the display column for a semester backlog ("sem 3").
func SemesterColumn(sem int) string {
	return fmt.Sprintf("sem %d", sem)
}
