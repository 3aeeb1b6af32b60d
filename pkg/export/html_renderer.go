package export

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
)

var reportTemplate = template.Must(template.New("report").Funcs(template.FuncMap{
	"lines": func(s string) []string { return strings.Split(s, "\n") },
}).Parse(`<div class="progress-report">
<div class="letterhead">
{{- with .Institution}}{{if .Name}}<h2>{{.Name}}</h2>{{end}}{{if .Subtitle}}<p class="subtitle">{{.Subtitle}}</p>{{end}}{{range .Lines}}<p class="institution-line">{{.}}</p>{{end}}{{end}}
{{- if .Department}}<h3>Department of {{.Department}}</h3>{{end}}
</div>
<p class="report-date" style="text-align:right">Date: {{.ReportDate}}</p>
<h3 class="report-title" style="text-align:center;text-decoration:underline">Progress Report</h3>
<p class="academic"><strong>Academic Year: {{.AcademicYear}}</strong><span style="float:right"><strong>{{.Semester}}</strong></span></p>
<p><strong>Roll No. : {{.RollNo}}</strong></p>
<p><strong>Name of the Student : {{.Name}}</strong></p>
<p><strong>Name of the Father : {{.FatherName}}</strong></p>
{{- if .Detailed}}
<p>Dear Parent/Guardian,</p>
<p>The following are the details of the attendance and Continuous Internal Evaluation-1 of your ward. It is furnished for your information.</p>
{{- end}}
<table class="marks" border="1" cellspacing="0" cellpadding="4">
<thead>
<tr><th rowspan="2">S. No.</th><th rowspan="2">Course Title</th><th colspan="2">{{range $i, $l := lines .AttendanceHeader}}{{if $i}}<br>{{end}}{{$l}}{{end}}</th><th colspan="4">CIE-1 Marks</th></tr>
<tr><th>No. of Classes<br>Conducted</th><th>No. of Classes<br>Attended</th><th>DT<br>(20)</th><th>ST<br>(10)</th><th>AT<br>(10)</th><th>Total<br>(40)</th></tr>
</thead>
<tbody>
{{- range .Lines}}
<tr><td>{{.Index}}</td><td>{{.Name}}</td><td>{{.Conducted}}</td><td>{{.Present}}</td>{{if .IsLab}}<td colspan="4">-</td>{{else}}<td>{{.DT}}</td><td>{{.ST}}</td><td>{{.AT}}</td><td>{{.Total}}</td>{{end}}</tr>
{{- end}}
<tr class="total"><td></td><th>TOTAL</th><th>{{.TotalConducted}}</th><th>{{.TotalPresent}}</th><th colspan="4">{{.TotalMarksText}}</th></tr>
<tr class="percentage"><td></td><th>Percentage</th><th colspan="2">{{.AttendancePercentText}}</th><th colspan="4">{{.MarksPercentText}}</th></tr>
</tbody>
</table>
{{- if .Detailed}}
<p class="legend">*DT – Descriptive Test  ST-Surprise Test  AT- Assignment</p>
<p class="attendance-note"{{if .LowAttendance}} style="color:red"{{end}}><strong>{{.AttendanceNote}}</strong></p>
{{- if .IncludeNotes}}
<p><strong>Important Note:</strong></p>
<ul class="notes">{{range .Notes}}<li>{{.}}</li>{{end}}</ul>
{{- end}}
{{- with .Backlog}}
<p><strong>Backlog Data:</strong></p>
<table class="backlog" border="1" cellspacing="0" cellpadding="4">
<tr>{{range .Headers}}<th>{{.}}</th>{{end}}</tr>
<tr>{{range .Values}}<td>{{.}}</td>{{end}}</tr>
</table>
{{- end}}
<p class="signature" style="text-align:center"><strong>Sign. of the student: _______________________Sign. of the Parent/Guardian: _________________________</strong></p>
{{- end}}
</div>
`))

// HTMLRenderer renders a report document as an HTML fragment for previews.
type HTMLRenderer struct{}

// NewHTMLRenderer constructs an HTML renderer.
func NewHTMLRenderer() *HTMLRenderer {
	return &HTMLRenderer{}
}

type htmlView struct {
	ReportDocument
	Notes []string
}

// Render produces the HTML fragment. Every value is escaped.
func (r *HTMLRenderer) Render(doc ReportDocument) (string, error) {
	var buf bytes.Buffer
	if err := reportTemplate.Execute(&buf, htmlView{ReportDocument: doc, Notes: regulationNotes}); err != nil {
		return "", fmt.Errorf("render html: %w", err)
	}
	return buf.String(), nil
}
