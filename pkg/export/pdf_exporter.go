package export

import (
	"bytes"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/jung-kurt/gofpdf"
)

const (
	pageMargin  = 15.0
	lineHeight  = 5.0
	bodyFont    = "Times"
	bodySize    = 12.0
	headingSize = 14.0
)

// Column widths of the attendance and marks table, in mm.
var tableWidths = []float64{12, 50, 32, 30, 14, 14, 14, 14}

var regulationNotes = []string{
	"As per the Osmania University rules, a student must have minimum attendance of 75% in aggregate of all the subjects to be eligible or promoted for the next year. Students having less than 75% attendance in aggregate will not be issued Hall Ticket for the examination, such students will come under Condonation/Detention category.",
	"As per State Government rules, the student is not eligible for Scholarship if the attendance is less than 75%.",
}

const (
	greeting    = "Dear Parent/Guardian,"
	description = "The following are the details of the attendance and Continuous Internal Evaluation-1 of your ward. It is furnished for your information."
	legend      = "*DT – Descriptive Test  ST-Surprise Test  AT- Assignment"
	signature   = "Sign. of the student: _______________________Sign. of the Parent/Guardian: _________________________"
)

// ReportRenderer renders report documents into PDF.
type ReportRenderer struct{}

// NewReportRenderer constructs a PDF renderer.
func NewReportRenderer() *ReportRenderer {
	return &ReportRenderer{}
}

// RenderStudent produces the PDF of a single student report.
func (r *ReportRenderer) RenderStudent(doc ReportDocument) ([]byte, error) {
	return r.render([]ReportDocument{doc})
}

// RenderConsolidated produces one PDF holding every report, one per page.
func (r *ReportRenderer) RenderConsolidated(docs []ReportDocument) ([]byte, error) {
	if len(docs) == 0 {
		return nil, fmt.Errorf("consolidated report requires at least one student")
	}
	return r.render(docs)
}

func (r *ReportRenderer) render(docs []ReportDocument) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(pageMargin, pageMargin, pageMargin)
	pdf.SetAutoPageBreak(true, pageMargin)
	w := &pdfWriter{pdf: pdf, tr: pdf.UnicodeTranslatorFromDescriptor("")}

	for _, doc := range docs {
		pdf.AddPage()
		w.report(doc)
		if err := pdf.Error(); err != nil {
			return nil, fmt.Errorf("render report %s: %w", doc.RollNo, err)
		}
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

type pdfWriter struct {
	pdf *gofpdf.Fpdf
	tr  func(string) string
}

func (w *pdfWriter) font(style string, size float64) {
	w.pdf.SetFont(bodyFont, style, size)
}

func (w *pdfWriter) line(text, style string, size float64, align string) {
	w.font(style, size)
	w.pdf.CellFormat(0, lineHeight+1, w.tr(text), "", 1, align, false, 0, "")
}

func (w *pdfWriter) paragraph(text, style string) {
	w.font(style, bodySize)
	w.pdf.MultiCell(0, lineHeight+1, w.tr(text), "", "J", false)
}

func (w *pdfWriter) report(doc ReportDocument) {
	w.letterhead(doc)

	w.pdf.Ln(2)
	w.line("Date: "+doc.ReportDate, "", bodySize, "R")
	w.line("Progress Report", "BU", headingSize, "C")
	w.pdf.Ln(1)

	w.font("B", bodySize)
	pageWidth, _ := w.pdf.GetPageSize()
	half := (pageWidth - 2*pageMargin) / 2
	w.pdf.CellFormat(half, lineHeight+1, w.tr("Academic Year: "+doc.AcademicYear), "", 0, "L", false, 0, "")
	w.pdf.CellFormat(half, lineHeight+1, w.tr(doc.Semester), "", 1, "R", false, 0, "")

	w.line("Roll No.              : "+doc.RollNo, "B", bodySize, "L")
	w.line("Name of the Student : "+doc.Name, "B", bodySize, "L")
	w.line("Name of the Father   : "+doc.FatherName, "B", bodySize, "L")

	if doc.Detailed() {
		w.pdf.Ln(2)
		w.line(greeting, "", bodySize, "L")
		w.paragraph(description, "")
	}

	w.pdf.Ln(2)
	w.table(doc)

	if !doc.Detailed() {
		return
	}

	w.line(legend, "", 10, "L")
	w.pdf.Ln(1)
	if doc.LowAttendance() {
		w.pdf.SetTextColor(255, 0, 0)
	}
	w.line(doc.AttendanceNote(), "B", bodySize, "L")
	w.pdf.SetTextColor(0, 0, 0)

	if doc.IncludeNotes {
		w.pdf.Ln(1)
		w.line("Important Note:", "B", bodySize, "L")
		for _, note := range regulationNotes {
			w.paragraph("  > "+note, "")
		}
	}

	if doc.Backlog != nil {
		w.pdf.Ln(2)
		w.line("Backlog Data:", "B", bodySize, "L")
		w.backlog(*doc.Backlog)
	}

	w.pdf.Ln(8)
	w.line(signature, "B", 11, "C")
}

func (w *pdfWriter) letterhead(doc ReportDocument) {
	inst := doc.Institution
	top := w.pdf.GetY()
	if inst.LogoPath != "" {
		if _, err := os.Stat(inst.LogoPath); err == nil {
			w.pdf.ImageOptions(inst.LogoPath, pageMargin, top, 22, 0, false, gofpdf.ImageOptions{ReadDpi: true}, 0, "")
		}
	}
	if inst.Name != "" {
		w.line(inst.Name, "B", 16, "C")
	}
	if inst.Subtitle != "" {
		w.line(inst.Subtitle, "B", bodySize, "C")
	}
	for _, l := range inst.Lines {
		w.line(l, "", 10, "C")
	}
	if doc.Department != "" {
		w.line("Department of "+doc.Department, "B", bodySize, "C")
	}
	pageWidth, _ := w.pdf.GetPageSize()
	y := w.pdf.GetY() + 1
	if y < top+24 && inst.LogoPath != "" {
		y = top + 24
	}
	w.pdf.Line(pageMargin, y, pageWidth-pageMargin, y)
	w.pdf.SetY(y + 1)
}

// box draws a bordered cell of the given height with centred, wrapped text.
func (w *pdfWriter) box(x, y, width, height float64, text string, align string) {
	w.pdf.Rect(x, y, width, height, "D")
	lines := w.wrap(text, width)
	offset := (height - float64(len(lines))*lineHeight) / 2
	for i, l := range lines {
		w.pdf.SetXY(x, y+offset+float64(i)*lineHeight)
		w.pdf.CellFormat(width, lineHeight, l, "", 0, align, false, 0, "")
	}
}

func (w *pdfWriter) wrap(text string, width float64) []string {
	var out []string
	for _, part := range strings.Split(text, "\n") {
		if part == "" {
			out = append(out, "")
			continue
		}
		for _, chunk := range w.pdf.SplitLines([]byte(w.tr(part)), width-2) {
			out = append(out, string(chunk))
		}
	}
	return out
}

func (w *pdfWriter) rowHeight(texts []string, widths []float64) float64 {
	lines := 1
	for i, text := range texts {
		if n := len(w.wrap(text, widths[i])); n > lines {
			lines = n
		}
	}
	return float64(lines)*lineHeight + 2
}

func (w *pdfWriter) ensureSpace(height float64) {
	_, pageHeight := w.pdf.GetPageSize()
	if w.pdf.GetY()+height > pageHeight-pageMargin {
		w.pdf.AddPage()
	}
}

func (w *pdfWriter) table(doc ReportDocument) {
	x := pageMargin
	cols := make([]float64, len(tableWidths)+1)
	for i, width := range tableWidths {
		cols[i+1] = cols[i] + width
	}
	span := func(from, to int) float64 { return cols[to] - cols[from] }

	w.font("B", bodySize)
	top := w.rowHeight([]string{doc.AttendanceHeader()}, []float64{span(2, 4)})
	sub := w.rowHeight([]string{"No. of Classes\nConducted"}, []float64{tableWidths[2]})
	w.ensureSpace(top + sub)
	y := w.pdf.GetY()
	w.box(x, y, tableWidths[0], top+sub, "S. No.", "C")
	w.box(x+cols[1], y, tableWidths[1], top+sub, "Course Title", "C")
	w.box(x+cols[2], y, span(2, 4), top, doc.AttendanceHeader(), "C")
	w.box(x+cols[4], y, span(4, 8), top, "CIE-1 Marks", "C")
	y += top
	for i, label := range []string{"No. of Classes\nConducted", "No. of Classes\nAttended", "DT\n(20)", "ST\n(10)", "AT\n(10)", "Total\n(40)"} {
		w.box(x+cols[i+2], y, tableWidths[i+2], sub, label, "C")
	}
	y += sub

	w.font("", bodySize)
	for _, line := range doc.Lines {
		h := w.rowHeight([]string{line.Name}, []float64{tableWidths[1]})
		if w.ensureSpaceAt(&y, h) {
			w.font("", bodySize)
		}
		w.box(x, y, tableWidths[0], h, strconv.Itoa(line.Index), "C")
		w.box(x+cols[1], y, tableWidths[1], h, line.Name, "C")
		w.box(x+cols[2], y, tableWidths[2], h, strconv.Itoa(line.Conducted), "C")
		w.box(x+cols[3], y, tableWidths[3], h, strconv.Itoa(line.Present), "C")
		if line.IsLab {
			w.box(x+cols[4], y, span(4, 8), h, "-", "C")
		} else {
			for i, v := range []string{line.DT, line.ST, line.AT, line.Total} {
				w.box(x+cols[i+4], y, tableWidths[i+4], h, v, "C")
			}
		}
		y += h
	}

	w.font("B", bodySize)
	h := lineHeight + 2
	w.ensureSpaceAt(&y, 2*h)
	w.box(x, y, tableWidths[0], h, "", "C")
	w.box(x+cols[1], y, tableWidths[1], h, "TOTAL", "C")
	w.box(x+cols[2], y, tableWidths[2], h, strconv.Itoa(doc.TotalConducted), "C")
	w.box(x+cols[3], y, tableWidths[3], h, strconv.Itoa(doc.TotalPresent), "C")
	w.box(x+cols[4], y, span(4, 8), h, doc.TotalMarksText(), "C")
	y += h
	w.box(x, y, tableWidths[0], h, "", "C")
	w.box(x+cols[1], y, tableWidths[1], h, "Percentage", "C")
	w.box(x+cols[2], y, span(2, 4), h, doc.AttendancePercentText(), "C")
	w.box(x+cols[4], y, span(4, 8), h, doc.MarksPercentText(), "C")
	y += h

	w.pdf.SetXY(pageMargin, y+1)
}

// ensureSpaceAt starts a new page when a row of height h does not fit below
// y. It reports whether a page was added.
func (w *pdfWriter) ensureSpaceAt(y *float64, h float64) bool {
	_, pageHeight := w.pdf.GetPageSize()
	if *y+h <= pageHeight-pageMargin {
		return false
	}
	w.pdf.AddPage()
	*y = w.pdf.GetY()
	return true
}

func (w *pdfWriter) backlog(table BacklogTable) {
	pageWidth, _ := w.pdf.GetPageSize()
	usable := pageWidth - 2*pageMargin
	remarks := 41.0
	semWidth := (usable - remarks) / float64(len(table.Headers)-1)
	widths := make([]float64, len(table.Headers))
	for i := range widths {
		widths[i] = semWidth
	}
	widths[len(widths)-1] = remarks

	w.font("B", bodySize)
	h := w.rowHeight(table.Headers, widths)
	w.ensureSpace(2 * h)
	x, y := pageMargin, w.pdf.GetY()
	for i, header := range table.Headers {
		w.box(x, y, widths[i], h, header, "C")
		x += widths[i]
	}
	w.font("", bodySize)
	x, y = pageMargin, y+h
	vh := w.rowHeight(table.Values, widths)
	for i, value := range table.Values {
		w.box(x, y, widths[i], vh, value, "C")
		x += widths[i]
	}
	w.pdf.SetXY(pageMargin, y+vh+1)
}
