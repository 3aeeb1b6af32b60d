package service

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/noah-isme/progress-report-api/internal/models"
	"github.com/noah-isme/progress-report-api/internal/repository"
	appErrors "github.com/noah-isme/progress-report-api/pkg/errors"
)

var theoryHeader = []interface{}{"Roll No", "Student Name", "DT Marks", "ST Marks", "AT Marks", "Total Marks", "Attendance Conducted", "Attendance Present"}

func buildXLSX(t *testing.T, rows ...[]interface{}) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close() //nolint:errcheck
	sheet := f.GetSheetName(0)
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		r := row
		require.NoError(t, f.SetSheetRow(sheet, cell, &r))
	}
	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))
	return buf.Bytes()
}

func newTestIngest(t *testing.T) (*IngestService, *repository.LedgerRepository) {
	t.Helper()
	ledger := repository.NewLedgerRepository()
	sync := NewLedgerSync(ledger, nil, "", nil, nil, nil)
	return NewIngestService(ledger, sync, nil, IngestConfig{MaxFileSizeBytes: 1 << 20, MaxFiles: 10}, nil), ledger
}

func TestUploadSubjectsBuildsRecords(t *testing.T) {
	svc, ledger := newTestIngest(t)

	physics := buildXLSX(t, theoryHeader,
		[]interface{}{"21a01 ", "Asha", 18, 9, 10, 99, 40, 36},
		[]interface{}{"21A02", "Ravi", "AB", 7, 8, nil, 40, 42},
		[]interface{}{"", "Ghost", 1, 1, 1, 3, 10, 5},
	)
	lab := buildXLSX(t,
		[]interface{}{"Roll Number", "Classes Conducted", "Classes Attended"},
		[]interface{}{"21A01", 12, 12},
	)

	resp, err := svc.UploadSubjects(context.Background(), []UploadFile{
		{Filename: "Physics.xlsx", Data: physics},
		{Filename: "Physics Lab.xlsx", Data: lab},
	})
	require.NoError(t, err)

	assert.True(t, resp.Success)
	assert.Equal(t, "Successfully uploaded 2 subject files", resp.Message)
	assert.Equal(t, []string{"Physics", "Physics Lab"}, resp.Subjects)
	assert.Equal(t, []string{"21A01", "21A02"}, resp.AllStudents)
	assert.Equal(t, 2, resp.TotalStudents)
	require.Len(t, resp.Rejected, 1)
	assert.Equal(t, appErrors.ErrInvalidRollNumber.Code, resp.Rejected[0].Kind)

	kinds := map[string]bool{}
	for _, w := range resp.Warnings {
		kinds[w.Kind] = true
	}
	assert.True(t, kinds[IssueTotalMismatch])
	assert.True(t, kinds[IssueAbsentMark])
	assert.True(t, kinds[IssueAttendanceClamped])

	ledger.View(func(v repository.LedgerView) {
		asha, ok := v.Student("21A01")
		require.True(t, ok)
		require.Len(t, asha.Subjects, 2)
		assert.Equal(t, 37.0, asha.Subjects[0].TotalMarks)
		assert.True(t, asha.Subjects[1].IsLab)
		assert.Empty(t, asha.StudentName, "names come from the student-info upload")

		ravi, _ := v.Student("21A02")
		require.Len(t, ravi.Subjects, 1)
		assert.True(t, ravi.Subjects[0].IsAbsent(models.ColumnDTMarks))
		assert.Equal(t, 40, ravi.Subjects[0].AttendancePresent)

		meta, _ := v.Subject("Physics")
		assert.Equal(t, "Asha", meta.Extras["21A01"][models.ColumnStudentName])
		assert.NotEmpty(t, meta.Warnings)
	})
}

func TestUploadSubjectsReuploadReplaces(t *testing.T) {
	svc, ledger := newTestIngest(t)
	ctx := context.Background()

	_, err := svc.UploadSubjects(ctx, []UploadFile{{Filename: "Maths.xlsx", Data: buildXLSX(t, theoryHeader,
		[]interface{}{"21A01", "Asha", 10, 5, 5, 20, 30, 20},
		[]interface{}{"21A02", "Ravi", 10, 5, 5, 20, 30, 20},
	)}})
	require.NoError(t, err)

	_, err = svc.UploadSubjects(ctx, []UploadFile{{Filename: "Maths.xlsx", Data: buildXLSX(t, theoryHeader,
		[]interface{}{"21A01", "Asha", 20, 10, 10, 40, 30, 30},
	)}})
	require.NoError(t, err)

	ledger.View(func(v repository.LedgerView) {
		assert.Equal(t, []string{"Maths"}, v.SubjectOrder())
		asha, _ := v.Student("21A01")
		require.Len(t, asha.Subjects, 1)
		assert.Equal(t, 40.0, asha.Subjects[0].TotalMarks)

		ravi, ok := v.Student("21A02")
		require.True(t, ok)
		assert.Empty(t, ravi.Subjects)
	})
}

func TestUploadSubjectsReportsEveryMissingColumn(t *testing.T) {
	svc, ledger := newTestIngest(t)
	data := buildXLSX(t,
		[]interface{}{"Roll No", "DT Marks", "Attendance Present"},
		[]interface{}{"21A01", 10, 5},
	)

	_, err := svc.UploadSubjects(context.Background(), []UploadFile{{Filename: "Chemistry.xlsx", Data: data}})
	require.Error(t, err)
	require.ErrorIs(t, err, appErrors.ErrMissingColumn)

	appErr := appErrors.FromError(err)
	columns := make([]string, 0, len(appErr.Issues))
	for _, issue := range appErr.Issues {
		assert.Equal(t, "Chemistry.xlsx", issue.Filename)
		columns = append(columns, issue.Column)
	}
	assert.ElementsMatch(t, []string{models.ColumnSTMarks, models.ColumnATMarks, models.ColumnAttendanceConducted}, columns)
	assert.Zero(t, ledger.Revision())
}

func TestUploadSubjectsKeepsGoodFilesInMixedBatch(t *testing.T) {
	svc, _ := newTestIngest(t)

	resp, err := svc.UploadSubjects(context.Background(), []UploadFile{
		{Filename: "notes.txt", Data: []byte("hello")},
		{Filename: "Broken.xlsx", Data: []byte("not a workbook")},
		{Filename: "English.xlsx", Data: buildXLSX(t, theoryHeader, []interface{}{"21A01", "Asha", 1, 1, 1, 3, 10, 9})},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"English"}, resp.Uploaded)
	require.Len(t, resp.FailedFiles, 2)
	assert.Equal(t, appErrors.ErrUnsupportedFile.Code, resp.FailedFiles[0].Code)
	assert.Equal(t, appErrors.ErrMalformedFile.Code, resp.FailedFiles[1].Code)
}

func TestUploadSubjectsRejectsEmptyAndOversizedBatches(t *testing.T) {
	svc, _ := newTestIngest(t)
	ctx := context.Background()

	_, err := svc.UploadSubjects(ctx, nil)
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	svc.cfg.MaxFileSizeBytes = 4
	_, err = svc.UploadSubjects(ctx, []UploadFile{{Filename: "Big.xlsx", Data: []byte("too large")}})
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestUploadStudentInfoCreatesPlaceholders(t *testing.T) {
	svc, ledger := newTestIngest(t)
	ctx := context.Background()

	_, err := svc.UploadSubjects(ctx, []UploadFile{{Filename: "Maths.xlsx", Data: buildXLSX(t, theoryHeader,
		[]interface{}{"21A01", "", 10, 5, 5, 20, 30, 20},
	)}})
	require.NoError(t, err)

	info := buildXLSX(t,
		[]interface{}{"HT No", "Student Name", "Father Name", "Sem 1", "II Sem", "Section"},
		[]interface{}{"21a01", "Asha Rao", "K. Rao", "-", "MA201, PH202", "A"},
		[]interface{}{"21A09", "New Kid", "", "CS101", "", "B"},
	)
	resp, err := svc.UploadStudentInfo(ctx, UploadFile{Filename: "students.xlsx", Data: info})
	require.NoError(t, err)

	assert.Equal(t, "Successfully uploaded student info (2 students)", resp.Message)
	assert.Equal(t, 2, resp.StudentCount)
	assert.Equal(t, 1, resp.Placeholders)
	assert.Equal(t, []string{"sem 1", "sem 2"}, resp.SemesterColumns)

	ledger.View(func(v repository.LedgerView) {
		asha, _ := v.Student("21A01")
		assert.Equal(t, "Asha Rao", asha.StudentName)
		assert.Equal(t, "K. Rao", asha.FatherName)
		assert.Equal(t, map[int][]string{2: {"MA201", "PH202"}}, asha.Backlog)
		assert.Len(t, asha.Subjects, 1)

		kid, ok := v.Student("21A09")
		require.True(t, ok)
		assert.Empty(t, kid.Subjects)
		assert.Equal(t, []string{"CS101"}, kid.Backlog[1])

		meta, ok := v.StudentInfo()
		require.True(t, ok)
		assert.Equal(t, "B", meta.Extras["21A09"]["section"])
	})

	// A later file replaces the backlog of students it no longer lists.
	_, err = svc.UploadStudentInfo(ctx, UploadFile{Filename: "students.xlsx", Data: buildXLSX(t,
		[]interface{}{"Roll No", "Sem 1"},
		[]interface{}{"21A09", "nil"},
	)})
	require.NoError(t, err)
	ledger.View(func(v repository.LedgerView) {
		asha, _ := v.Student("21A01")
		assert.Empty(t, asha.Backlog)
		assert.Equal(t, "Asha Rao", asha.StudentName)
	})
}

func TestUploadStudentInfoRequiresRollColumn(t *testing.T) {
	svc, _ := newTestIngest(t)
	_, err := svc.UploadStudentInfo(context.Background(), UploadFile{Filename: "info.xlsx", Data: buildXLSX(t,
		[]interface{}{"Name", "Sem 1"},
		[]interface{}{"Asha", "-"},
	)})
	require.ErrorIs(t, err, appErrors.ErrMissingColumn)
}

func TestIngestStatusAndClear(t *testing.T) {
	svc, ledger := newTestIngest(t)
	ctx := context.Background()

	status := svc.Status(ctx)
	assert.False(t, status.HasSubjects)
	assert.False(t, status.ReadyToGenerate)

	_, err := svc.UploadSubjects(ctx, []UploadFile{{Filename: "Maths.xlsx", Data: buildXLSX(t, theoryHeader,
		[]interface{}{"21A01", "", 10, 5, 5, 20, 30, 20},
	)}})
	require.NoError(t, err)

	status = svc.Status(ctx)
	assert.True(t, status.ReadyToGenerate)
	assert.Equal(t, []string{"Maths"}, status.Subjects)
	assert.Equal(t, 1, status.TotalStudents)

	msg := svc.Clear(ctx)
	assert.Equal(t, "All uploads cleared", msg.Message)
	ledger.View(func(v repository.LedgerView) {
		assert.Zero(t, v.StudentCount())
	})
}
