// Package workbook reads uploaded spreadsheets into header-keyed rows.
package workbook

import (
	"bytes"
	"fmt"
	"strings"
	"unicode"

	"github.com/extrame/xls"
	"github.com/xuri/excelize/v2"

	appErrors "github.com/noah-isme/progress-report-api/pkg/errors"
)

// Row is one data row keyed by normalized header. Line is the 1-based sheet
// row number so issues can point at the offending cell.
type Row struct {
	Line   int
	Values map[string]string
}

// Get returns the trimmed cell value for the column.
func (r Row) Get(column string) string {
	return strings.TrimSpace(r.Values[column])
}

// Sheet is the parsed first worksheet of a workbook.
type Sheet struct {
	Name    string
	Headers []string
	// RawHeaders keeps the header text as written in the file.
	RawHeaders []string
	Rows       []Row
}

// HasColumn reports whether the normalized header exists.
func (s *Sheet) HasColumn(column string) bool {
	for _, h := range s.Headers {
		if h == column {
			return true
		}
	}
	return false
}

// Parse opens the workbook bytes and returns its first worksheet.
func Parse(data []byte) (*Sheet, error) {
	if len(data) == 0 {
		return nil, appErrors.Clone(appErrors.ErrMalformedFile, "file is empty")
	}

	if bytes.HasPrefix(data, oleSignature) {
		return parseLegacy(data)
	}

	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrMalformedFile.Code, appErrors.ErrMalformedFile.Status, appErrors.ErrMalformedFile.Message)
	}
	defer f.Close() //nolint:errcheck

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, appErrors.Clone(appErrors.ErrMalformedFile, "workbook contains no worksheets")
	}

	rows, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrMalformedFile.Code, appErrors.ErrMalformedFile.Status, appErrors.ErrMalformedFile.Message)
	}

	return FromRecords(sheets[0], rows)
}

// oleSignature opens every compound document, which is how BIFF .xls
// workbooks are stored.
var oleSignature = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}

func parseLegacy(data []byte) (sheet *Sheet, err error) {
	// The BIFF reader panics on some truncated streams.
	defer func() {
		if r := recover(); r != nil {
			sheet = nil
			err = appErrors.Wrap(fmt.Errorf("xls: %v", r), appErrors.ErrMalformedFile.Code, appErrors.ErrMalformedFile.Status, appErrors.ErrMalformedFile.Message)
		}
	}()

	wb, err := xls.OpenReader(bytes.NewReader(data), "utf-8")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrMalformedFile.Code, appErrors.ErrMalformedFile.Status, appErrors.ErrMalformedFile.Message)
	}
	if wb == nil || wb.NumSheets() == 0 {
		return nil, appErrors.Clone(appErrors.ErrMalformedFile, "workbook contains no worksheets")
	}

	ws := wb.GetSheet(0)
	if ws == nil {
		return nil, appErrors.Clone(appErrors.ErrMalformedFile, "workbook contains no worksheets")
	}
	records := make([][]string, 0, int(ws.MaxRow)+1)
	for i := 0; i <= int(ws.MaxRow); i++ {
		row := ws.Row(i)
		if row == nil {
			records = append(records, nil)
			continue
		}
		cells := make([]string, 0, row.LastCol()+1)
		for c := 0; c <= row.LastCol(); c++ {
			cells = append(cells, row.Col(c))
		}
		records = append(records, trimRecord(cells))
	}
	return FromRecords(ws.Name, records)
}

// trimRecord drops trailing blank cells so padded BIFF rows do not invent
// header columns.
func trimRecord(cells []string) []string {
	end := len(cells)
	for end > 0 && strings.TrimSpace(cells[end-1]) == "" {
		end--
	}
	return cells[:end]
}

// FromRecords builds a Sheet from raw cell records. The first non-blank
// record is the header row; blank records after it are skipped.
func FromRecords(name string, records [][]string) (*Sheet, error) {
	headerIdx := -1
	for i, record := range records {
		if !blank(record) {
			headerIdx = i
			break
		}
	}
	if headerIdx < 0 {
		return nil, appErrors.Clone(appErrors.ErrEmptySheet, fmt.Sprintf("sheet %q is empty", name))
	}

	raw := records[headerIdx]
	sheet := &Sheet{
		Name:       name,
		Headers:    make([]string, len(raw)),
		RawHeaders: make([]string, len(raw)),
	}
	seen := make(map[string]int, len(raw))
	for i, cell := range raw {
		header := NormalizeHeader(cell)
		if header == "" {
			header = fmt.Sprintf("column_%d", i+1)
		}
		if n := seen[header]; n > 0 {
			seen[header] = n + 1
			header = fmt.Sprintf("%s_%d", header, n+1)
		} else {
			seen[header] = 1
		}
		sheet.Headers[i] = header
		sheet.RawHeaders[i] = strings.TrimSpace(cell)
	}

	for i := headerIdx + 1; i < len(records); i++ {
		record := records[i]
		if blank(record) {
			continue
		}
		values := make(map[string]string, len(sheet.Headers))
		for col, header := range sheet.Headers {
			if col < len(record) {
				values[header] = record[col]
			} else {
				values[header] = ""
			}
		}
		sheet.Rows = append(sheet.Rows, Row{Line: i + 1, Values: values})
	}

	if len(sheet.Rows) == 0 {
		return nil, appErrors.Clone(appErrors.ErrEmptySheet, fmt.Sprintf("sheet %q has a header row but no data rows", name))
	}
	return sheet, nil
}

// NormalizeHeader lowercases and trims the header and collapses every run of
// non-alphanumeric characters into one underscore: "Roll No." becomes roll_no.
func NormalizeHeader(header string) string {
	var b strings.Builder
	pendingSep := false
	for _, r := range strings.ToLower(strings.TrimSpace(header)) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if pendingSep && b.Len() > 0 {
				b.WriteByte('_')
			}
			pendingSep = false
			b.WriteRune(r)
			continue
		}
		pendingSep = true
	}
	return b.String()
}

func blank(record []string) bool {
	for _, cell := range record {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
