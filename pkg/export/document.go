package export

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Template variants.
const (
	TemplateDetailed = "Detailed"
	TemplateCompact  = "Compact"
)

const (
	// AttendanceThreshold is the minimum aggregate attendance percentage.
	AttendanceThreshold = 75.0
	theoryMaxMarks      = 40
	defaultSemester     = 4
)

var (
	semesterRoman = regexp.MustCompile(`\b(VIII|VII|VI|V|IV|III|II|I)\b`)
	romanValues   = map[string]int{"I": 1, "II": 2, "III": 3, "IV": 4, "V": 5, "VI": 6, "VII": 7, "VIII": 8}
	romanLabels   = []string{"", "I", "II", "III", "IV", "V", "VI", "VII", "VIII"}
)

// Institution is the letterhead printed on every report.
type Institution struct {
	Name     string
	Subtitle string
	Lines    []string
	LogoPath string
}

// Settings is the per-job configuration shared by every report.
type Settings struct {
	Institution     Institution
	Department      string
	ReportDate      string
	AcademicYear    string
	Semester        string
	AttendanceStart string
	AttendanceEnd   string
	Template        string
	IncludeBacklog  bool
	IncludeNotes    bool
}

// SubjectScore is one subject entry of a student.
type SubjectScore struct {
	Name      string
	IsLab     bool
	DT        float64
	ST        float64
	AT        float64
	AbsentDT  bool
	AbsentST  bool
	AbsentAT  bool
	Conducted int
	Present   int
}

// Student is the finalized record a report is built from.
type Student struct {
	RollNo     string
	Name       string
	FatherName string
	Subjects   []SubjectScore
	Backlog    map[int][]string
}

// SubjectLine is one printed row of the attendance and marks table. Mark
// cells are display strings; labs leave them empty.
type SubjectLine struct {
	Index     int
	Name      string
	IsLab     bool
	Conducted int
	Present   int
	DT        string
	ST        string
	AT        string
	Total     string
}

// BacklogTable lists backlog codes for the semesters before the current one.
type BacklogTable struct {
	Headers []string
	Values  []string
}

// ReportDocument is the fully computed content of one student report.
type ReportDocument struct {
	Settings

	RollNo     string
	Name       string
	FatherName string

	Lines             []SubjectLine
	TotalConducted    int
	TotalPresent      int
	TotalMarks        float64
	MaxMarks          int
	AttendancePercent float64
	MarksPercent      float64
	AttendanceStatus  string
	Backlog           *BacklogTable
}

// Detailed reports whether the document uses the detailed template.
func (d ReportDocument) Detailed() bool {
	return d.Template != TemplateCompact
}

// AttendanceHeader is the attendance column group title.
func (d ReportDocument) AttendanceHeader() string {
	header := "Attendance"
	if d.AttendanceStart != "" && d.AttendanceEnd != "" {
		header += fmt.Sprintf("\n(From %s to %s)", d.AttendanceStart, d.AttendanceEnd)
	}
	return header
}

// AttendancePercentText formats the aggregate attendance.
func (d ReportDocument) AttendancePercentText() string {
	return fmt.Sprintf("%.2f%%", d.AttendancePercent)
}

// MarksPercentText formats the marks percentage; "-" without theory subjects.
func (d ReportDocument) MarksPercentText() string {
	if d.MaxMarks == 0 {
		return "-"
	}
	return fmt.Sprintf("%.2f%%", d.MarksPercent)
}

// TotalMarksText is the marks cell of the totals row.
func (d ReportDocument) TotalMarksText() string {
	if d.MaxMarks == 0 {
		return ""
	}
	return strconv.Itoa(int(math.Round(d.TotalMarks)))
}

// LowAttendance reports whether attendance is below the threshold.
func (d ReportDocument) LowAttendance() bool {
	return d.AttendancePercent < AttendanceThreshold
}

// AttendanceNote is the sentence printed under the table.
func (d ReportDocument) AttendanceNote() string {
	return fmt.Sprintf("Your ward's attendance is %.2f%% which is %s.", d.AttendancePercent, d.AttendanceStatus)
}

// BuildReportDocument computes totals and percentages for one student.
// Theory subjects come first, labs after; AB marks print as "AB" and count
// as zero.
func BuildReportDocument(settings Settings, student Student) ReportDocument {
	doc := ReportDocument{
		Settings:   settings,
		RollNo:     student.RollNo,
		Name:       student.Name,
		FatherName: student.FatherName,
	}

	ordered := make([]SubjectScore, len(student.Subjects))
	copy(ordered, student.Subjects)
	sort.SliceStable(ordered, func(i, j int) bool { return !ordered[i].IsLab && ordered[j].IsLab })

	for i, sub := range ordered {
		line := SubjectLine{
			Index:     i + 1,
			Name:      sub.Name,
			IsLab:     sub.IsLab,
			Conducted: sub.Conducted,
			Present:   sub.Present,
		}
		doc.TotalConducted += sub.Conducted
		doc.TotalPresent += sub.Present
		if !sub.IsLab {
			total := sub.DT + sub.ST + sub.AT
			line.DT = markText(sub.DT, sub.AbsentDT)
			line.ST = markText(sub.ST, sub.AbsentST)
			line.AT = markText(sub.AT, sub.AbsentAT)
			line.Total = markText(total, false)
			doc.TotalMarks += total
			doc.MaxMarks += theoryMaxMarks
		}
		doc.Lines = append(doc.Lines, line)
	}

	doc.AttendancePercent = percent(float64(doc.TotalPresent), float64(doc.TotalConducted))
	doc.MarksPercent = percent(doc.TotalMarks, float64(doc.MaxMarks))
	doc.AttendanceStatus = "Satisfactory"
	if doc.LowAttendance() {
		doc.AttendanceStatus = "Poor"
	}
	if settings.IncludeBacklog && doc.Detailed() {
		doc.Backlog = buildBacklog(settings.Semester, student.Backlog)
	}
	return doc
}

func percent(part, whole float64) float64 {
	if whole == 0 {
		return 0
	}
	return part / whole * 100
}

func markText(v float64, absent bool) string {
	if absent {
		return "AB"
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// SemesterNumber extracts the Roman numeral semester from text such as
// "B.E- IV Semester". It defaults to 4.
func SemesterNumber(semester string) int {
	m := semesterRoman.FindStringSubmatch(semester)
	if m == nil {
		return defaultSemester
	}
	return romanValues[m[1]]
}

func buildBacklog(semester string, backlog map[int][]string) *BacklogTable {
	previous := SemesterNumber(semester) - 1
	if previous < 1 {
		previous = 1
	}
	table := &BacklogTable{}
	for sem := 1; sem <= previous; sem++ {
		table.Headers = append(table.Headers, romanLabels[sem]+" Sem.")
		value := "-"
		if codes := backlog[sem]; len(codes) > 0 {
			value = strings.Join(codes, ", ")
		}
		table.Values = append(table.Values, value)
	}
	table.Headers = append(table.Headers, "Remarks by Head of the Department")
	table.Values = append(table.Values, "-")
	return table
}
