package service

import (
	"fmt"
	"math"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/noah-isme/progress-report-api/internal/models"
	appErrors "github.com/noah-isme/progress-report-api/pkg/errors"
	"github.com/noah-isme/progress-report-api/pkg/workbook"
)

// Warning and issue kinds raised while normalizing sheets.
const (
	IssueMissingColumn     = "MISSING_COLUMN"
	IssueCoercedValue      = "COERCED_VALUE"
	IssueAbsentMark        = "ABSENT_MARK"
	IssueAttendanceClamped = "ATTENDANCE_CLAMPED"
	IssueTotalMismatch     = "TOTAL_MISMATCH"
	IssueDuplicateRoll     = "DUPLICATE_ROLL_NUMBER"
	IssueInvalidAttendance = "INVALID_ATTENDANCE"
	IssueUnknownSubject    = "UNKNOWN_SUBJECT"
)

var subjectAliases = map[string][]string{
	models.ColumnRollNo: {
		"roll no", "rollno", "roll number", "student id", "id", "roll_no", "roll",
		"registration no", "reg no", "enrollment no", "enroll no", "ht no", "hall ticket no",
	},
	models.ColumnStudentName: {
		"student name", "name", "full name", "name of student", "candidate name", "student", "pupil name",
	},
	models.ColumnFatherName: {
		"father name", "parent name", "guardian name", "father's name", "parent's name", "father", "parent", "guardian",
	},
	models.ColumnDTMarks: {
		"dt marks", "descriptive test", "descriptive marks", "dt", "test marks", "descriptive", "mid marks", "mid term",
	},
	models.ColumnSTMarks: {
		"st marks", "surprise test", "surprise marks", "st", "surprise", "surprise test marks", "quiz marks", "quiz",
	},
	models.ColumnATMarks: {
		"at marks", "assignment test", "assignment marks", "at", "assignment", "assignment test marks", "assignment score",
	},
	models.ColumnTotalMarks: {
		"total marks", "total", "overall marks", "aggregate marks", "sum marks", "total score", "grand total", "marks total",
	},
	models.ColumnAttendanceConducted: {
		"attendance conducted", "classes conducted", "total classes", "conducted classes", "total attendance",
		"no of classes conducted", "periods conducted",
	},
	models.ColumnAttendancePresent: {
		"attendance present", "classes attended", "present classes", "attended classes", "present",
		"no of classes attended", "periods attended", "classes present",
	},
}

var studentInfoAliases = map[string][]string{
	models.ColumnRollNo:      append(append([]string(nil), subjectAliases[models.ColumnRollNo]...), "htno"),
	models.ColumnStudentName: subjectAliases[models.ColumnStudentName],
	models.ColumnFatherName:  subjectAliases[models.ColumnFatherName],
}

var (
	subjectAliasIndex = buildAliasIndex(subjectAliases)
	infoAliasIndex    = buildAliasIndex(studentInfoAliases)
	semesterPattern   = regexp.MustCompile(`^(?:sem(?:ester)?([1-8])|s([1-8])|([1-8])(?:st|nd|rd|th)?sem(?:ester)?|(viii|vii|vi|iv|v|iii|ii|i)sem(?:ester)?|(first|second|third|fourth|fifth|sixth|seventh|eighth)sem(?:ester)?)$`)
	backlogSplitter   = regexp.MustCompile(`[,;/\n]+`)
	romanSemesters    = map[string]int{"i": 1, "ii": 2, "iii": 3, "iv": 4, "v": 5, "vi": 6, "vii": 7, "viii": 8}
	ordinalSemesters  = map[string]int{"first": 1, "second": 2, "third": 3, "fourth": 4, "fifth": 5, "sixth": 6, "seventh": 7, "eighth": 8}
	noBacklogTokens   = map[string]struct{}{"-": {}, "nil": {}, "none": {}, "na": {}, "n/a": {}}
	absentTokens      = map[string]struct{}{"ab": {}, "absent": {}}
)

func compactHeader(header string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(header) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func buildAliasIndex(aliases map[string][]string) map[string]string {
	index := make(map[string]string)
	for canonical, variants := range aliases {
		index[compactHeader(canonical)] = canonical
		for _, v := range variants {
			index[compactHeader(v)] = canonical
		}
	}
	return index
}

// SubjectNameFromFilename strips directories and the extension.
func SubjectNameFromFilename(filename string) string {
	base := filepath.Base(strings.ReplaceAll(filename, `\`, "/"))
	return strings.TrimSpace(strings.TrimSuffix(base, filepath.Ext(base)))
}

// resolveColumns maps canonical names to sheet headers (first match wins) and
// returns the leftover headers in sheet order.
func resolveColumns(sheet *workbook.Sheet, index map[string]string) (map[string]string, []string) {
	mapped := make(map[string]string)
	extras := make([]string, 0)
	for _, header := range sheet.Headers {
		canonical, ok := index[compactHeader(header)]
		if ok {
			if _, taken := mapped[canonical]; !taken {
				mapped[canonical] = header
				continue
			}
		}
		extras = append(extras, header)
	}
	return mapped, extras
}

// NormalizeSubject turns a parsed sheet into a subject dataset. Every missing
// required column is reported in one MISSING_COLUMN error.
func NormalizeSubject(filename string, sheet *workbook.Sheet) (*models.SubjectDataset, error) {
	name := SubjectNameFromFilename(filename)
	if name == "" {
		return nil, appErrors.WithIssues(appErrors.ErrValidation, "subject name is empty", appErrors.Issue{
			Kind: "INVALID_FILENAME", Message: "file name must carry the subject name", Filename: filename,
		})
	}

	mapped, extras := resolveColumns(sheet, subjectAliasIndex)

	isLab := true
	for _, col := range models.MarkColumns {
		if _, ok := mapped[col]; ok {
			isLab = false
		}
	}

	required := []string{models.ColumnRollNo, models.ColumnAttendanceConducted, models.ColumnAttendancePresent}
	if !isLab {
		required = append(required, models.MarkColumns...)
	}
	var missing []appErrors.Issue
	for _, col := range required {
		if _, ok := mapped[col]; !ok {
			missing = append(missing, appErrors.Issue{
				Kind:     IssueMissingColumn,
				Message:  fmt.Sprintf("required column %s not found", col),
				Filename: filename,
				Subject:  name,
				Column:   col,
			})
		}
	}
	if len(missing) > 0 {
		cols := make([]string, len(missing))
		for i, issue := range missing {
			cols[i] = issue.Column
		}
		msg := fmt.Sprintf("Missing required columns in %s: %s", name, strings.Join(cols, ", "))
		return nil, appErrors.WithIssues(appErrors.ErrMissingColumn, msg, missing...)
	}

	ds := &models.SubjectDataset{
		Name:       name,
		Filename:   filename,
		IsLab:      isLab,
		Columns:    subjectColumns(mapped, extras, isLab),
		Rows:       make([]models.SubjectRow, 0, len(sheet.Rows)),
		UploadedAt: time.Now().UTC(),
	}

	for _, row := range sheet.Rows {
		roll := row.Get(mapped[models.ColumnRollNo])
		c := coercer{subject: name, filename: filename, roll: roll, line: row.Line}

		marks := models.SubjectMarks{SubjectName: name, IsLab: isLab}
		marks.AttendanceConducted = c.attendance(row, mapped, models.ColumnAttendanceConducted)
		marks.AttendancePresent = c.attendance(row, mapped, models.ColumnAttendancePresent)
		if marks.AttendancePresent > marks.AttendanceConducted {
			c.warn(IssueAttendanceClamped, models.ColumnAttendancePresent,
				fmt.Sprintf("attendance present %d exceeds conducted %d; clamped", marks.AttendancePresent, marks.AttendanceConducted))
			marks.AttendancePresent = marks.AttendanceConducted
		}

		if !isLab {
			marks.DTMarks = c.mark(row, mapped, models.ColumnDTMarks, &marks)
			marks.STMarks = c.mark(row, mapped, models.ColumnSTMarks, &marks)
			marks.ATMarks = c.mark(row, mapped, models.ColumnATMarks, &marks)
			marks.RecomputeTotal()
			if header, ok := mapped[models.ColumnTotalMarks]; ok {
				if raw := row.Get(header); raw != "" {
					supplied, err := strconv.ParseFloat(raw, 64)
					if err != nil || math.Abs(supplied-marks.TotalMarks) > 1e-9 {
						c.warn(IssueTotalMismatch, models.ColumnTotalMarks,
							fmt.Sprintf("supplied total %q replaced by computed %s", raw, formatNumber(marks.TotalMarks)))
					}
				}
			}
		}

		var extra map[string]string
		for _, header := range extras {
			if v := row.Get(header); v != "" {
				if extra == nil {
					extra = make(map[string]string)
				}
				extra[header] = v
			}
		}

		ds.Rows = append(ds.Rows, models.SubjectRow{
			Line:        row.Line,
			RollNo:      roll,
			StudentName: row.Get(mapped[models.ColumnStudentName]),
			FatherName:  row.Get(mapped[models.ColumnFatherName]),
			Marks:       marks,
			Extra:       extra,
		})
		ds.Warnings = append(ds.Warnings, c.warnings...)
	}

	return ds, nil
}

func subjectColumns(mapped map[string]string, extras []string, isLab bool) []string {
	cols := []string{models.ColumnRollNo}
	for _, col := range []string{models.ColumnStudentName, models.ColumnFatherName} {
		if _, ok := mapped[col]; ok {
			cols = append(cols, col)
		}
	}
	if !isLab {
		cols = append(cols, models.ColumnDTMarks, models.ColumnSTMarks, models.ColumnATMarks, models.ColumnTotalMarks)
	}
	cols = append(cols, models.ColumnAttendanceConducted, models.ColumnAttendancePresent)
	return append(cols, extras...)
}

type coercer struct {
	subject  string
	filename string
	roll     string
	line     int
	warnings []appErrors.Issue
}

func (c *coercer) warn(kind, column, message string) {
	c.warnings = append(c.warnings, appErrors.Issue{
		Kind:     kind,
		Message:  message,
		Filename: c.filename,
		Subject:  c.subject,
		Column:   column,
		RollNo:   c.roll,
		Line:     c.line,
	})
}

// number parses a cell; blank, non-numeric and negative values become 0.
func (c *coercer) number(raw, column string) (float64, bool) {
	if raw == "" {
		c.warn(IssueCoercedValue, column, "blank value treated as 0")
		return 0, false
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		c.warn(IssueCoercedValue, column, fmt.Sprintf("non-numeric value %q treated as 0", raw))
		return 0, false
	}
	if v < 0 {
		c.warn(IssueCoercedValue, column, fmt.Sprintf("negative value %q treated as 0", raw))
		return 0, false
	}
	return v, true
}

func (c *coercer) mark(row workbook.Row, mapped map[string]string, column string, marks *models.SubjectMarks) float64 {
	raw := row.Get(mapped[column])
	if _, absent := absentTokens[strings.ToLower(raw)]; absent {
		c.warn(IssueAbsentMark, column, "absent (AB) mark treated as 0")
		marks.Absent = append(marks.Absent, column)
		return 0
	}
	v, _ := c.number(raw, column)
	return v
}

func (c *coercer) attendance(row workbook.Row, mapped map[string]string, column string) int {
	raw := row.Get(mapped[column])
	v, ok := c.number(raw, column)
	if !ok {
		return 0
	}
	rounded := math.Round(v)
	if rounded != v {
		c.warn(IssueCoercedValue, column, fmt.Sprintf("fractional attendance %q rounded to %d", raw, int(rounded)))
	}
	return int(rounded)
}

// NormalizeStudentInfo turns the student-info/backlog sheet into a dataset.
// Unrecognized columns are kept verbatim for the backlog preview.
func NormalizeStudentInfo(filename string, sheet *workbook.Sheet) (*models.StudentInfoDataset, error) {
	mapped := make(map[string]string)
	semesters := make(map[int]string)
	extras := make([]string, 0)
	for _, header := range sheet.Headers {
		compact := compactHeader(header)
		if canonical, ok := infoAliasIndex[compact]; ok {
			if _, taken := mapped[canonical]; !taken {
				mapped[canonical] = header
				continue
			}
		}
		if sem := semesterNumber(compact); sem > 0 {
			if _, taken := semesters[sem]; !taken {
				semesters[sem] = header
				continue
			}
		}
		extras = append(extras, header)
	}

	if _, ok := mapped[models.ColumnRollNo]; !ok {
		return nil, appErrors.WithIssues(appErrors.ErrMissingColumn, "Missing required columns in student info: roll_no", appErrors.Issue{
			Kind:     IssueMissingColumn,
			Message:  "required column roll_no not found",
			Filename: filename,
			Column:   models.ColumnRollNo,
		})
	}

	semNumbers := make([]int, 0, len(semesters))
	for sem := range semesters {
		semNumbers = append(semNumbers, sem)
	}
	sort.Ints(semNumbers)

	ds := &models.StudentInfoDataset{Filename: filename}
	ds.Columns = []string{models.ColumnRollNo}
	for _, col := range []string{models.ColumnStudentName, models.ColumnFatherName} {
		if _, ok := mapped[col]; ok {
			ds.Columns = append(ds.Columns, col)
		}
	}
	for _, sem := range semNumbers {
		ds.SemesterColumns = append(ds.SemesterColumns, models.SemesterColumn(sem))
	}
	ds.Columns = append(ds.Columns, ds.SemesterColumns...)
	ds.Columns = append(ds.Columns, extras...)

	for _, row := range sheet.Rows {
		info := models.StudentInfoRow{
			Line:        row.Line,
			RollNo:      row.Get(mapped[models.ColumnRollNo]),
			StudentName: row.Get(mapped[models.ColumnStudentName]),
			FatherName:  row.Get(mapped[models.ColumnFatherName]),
		}
		for _, sem := range semNumbers {
			if codes := ParseBacklog(row.Get(semesters[sem])); len(codes) > 0 {
				if info.Backlog == nil {
					info.Backlog = make(map[int][]string)
				}
				info.Backlog[sem] = codes
			}
		}
		for _, header := range extras {
			if v := row.Get(header); v != "" {
				if info.Extra == nil {
					info.Extra = make(map[string]string)
				}
				info.Extra[header] = v
			}
		}
		ds.Rows = append(ds.Rows, info)
	}
	return ds, nil
}

func semesterNumber(compact string) int {
	m := semesterPattern.FindStringSubmatch(compact)
	if m == nil {
		return 0
	}
	for _, group := range m[1:4] {
		if group != "" {
			n, _ := strconv.Atoi(group)
			return n
		}
	}
	if m[4] != "" {
		return romanSemesters[m[4]]
	}
	return ordinalSemesters[m[5]]
}

// SemesterFromColumn parses a backlog column name such as "sem 3".
func SemesterFromColumn(column string) int {
	return semesterNumber(compactHeader(column))
}

// ParseBacklog splits a semester cell into subject codes. Placeholders such as
// "-" or "nil" mean no backlog.
func ParseBacklog(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	if _, none := noBacklogTokens[strings.ToLower(raw)]; none {
		return nil
	}
	var codes []string
	for _, part := range backlogSplitter.Split(raw, -1) {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if _, none := noBacklogTokens[strings.ToLower(part)]; none {
			continue
		}
		codes = append(codes, part)
	}
	return codes
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
