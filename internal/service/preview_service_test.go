package service

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/progress-report-api/internal/dto"
	"github.com/noah-isme/progress-report-api/internal/models"
	"github.com/noah-isme/progress-report-api/internal/repository"
	appErrors "github.com/noah-isme/progress-report-api/pkg/errors"
)

func floatPtr(v float64) *float64 { return &v }
func intPtr(v int) *int { return &v }
func strPtr(v string) *string { return &v }

func seedLedger(t *testing.T) *repository.LedgerRepository {
	t.Helper()
	ledger := repository.NewLedgerRepository()
	_, err := ledger.Update(func(tx *repository.LedgerTx) error {
		tx.ReplaceSubject(models.SubjectMeta{
			Name:    "Maths",
			Columns: []string{models.ColumnRollNo, models.ColumnDTMarks, models.ColumnSTMarks, models.ColumnATMarks, models.ColumnTotalMarks, models.ColumnAttendanceConducted, models.ColumnAttendancePresent},
		})
		tx.ReplaceSubject(models.SubjectMeta{
			Name:    "Maths Lab",
			IsLab:   true,
			Columns: []string{models.ColumnRollNo, models.ColumnAttendanceConducted, models.ColumnAttendancePresent},
		})
		for _, roll := range []string{"21A02", "21A01"} {
			maths := models.SubjectMarks{SubjectName: "Maths", DTMarks: 10, STMarks: 5, ATMarks: 5, TotalMarks: 20, AttendanceConducted: 30, AttendancePresent: 25}
			if roll == "21A02" {
				maths.Absent = []string{models.ColumnDTMarks}
				maths.DTMarks, maths.TotalMarks = 0, 10
			}
			if _, err := tx.SetMarks(roll, maths); err != nil {
				return err
			}
			if _, err := tx.SetMarks(roll, models.SubjectMarks{SubjectName: "Maths Lab", IsLab: true, AttendanceConducted: 12, AttendancePresent: 10}); err != nil {
				return err
			}
		}
		tx.SetSubjectExtras("Maths", "21A01", map[string]string{models.ColumnStudentName: "Asha (sheet)"})
		return nil
	})
	require.NoError(t, err)
	return ledger
}

func newTestPreview(t *testing.T, ledger *repository.LedgerRepository, cache *CacheService) *PreviewService {
	t.Helper()
	sync := NewLedgerSync(ledger, nil, "", cache, nil, nil)
	return NewPreviewService(ledger, sync, cache, nil, nil)
}

func TestListSubjectsBuildsPreviewTables(t *testing.T) {
	svc := newTestPreview(t, seedLedger(t), nil)

	resp, err := svc.ListSubjects(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, resp.TotalSubjects)
	assert.Equal(t, []string{"Maths", "Maths Lab"}, resp.SubjectOrder)
	assert.Equal(t, []string{"21A01", "21A02"}, resp.AllStudents)

	maths := resp.Subjects["Maths"]
	require.Len(t, maths.Records, 2)
	assert.Equal(t, "21A02", maths.Records[0][models.ColumnRollNo], "rows keep sheet order")
	assert.Equal(t, "AB", maths.Records[0][models.ColumnDTMarks])
	assert.Equal(t, "Asha (sheet)", maths.Records[1][models.ColumnStudentName])

	lab := resp.Subjects["Maths Lab"]
	assert.True(t, lab.IsLab)
	assert.NotContains(t, lab.Columns, models.ColumnDTMarks)
	_, hasMarks := lab.Records[0][models.ColumnTotalMarks]
	assert.False(t, hasMarks)
}

func TestListSubjectsNotFoundWhenEmpty(t *testing.T) {
	svc := newTestPreview(t, repository.NewLedgerRepository(), nil)
	_, err := svc.ListSubjects(context.Background())
	require.ErrorIs(t, err, appErrors.ErrNotFound)
	assert.Equal(t, "No subject data uploaded", appErrors.FromError(err).Message)
}

func TestListSubjectsCachesPerRevision(t *testing.T) {
	ledger := seedLedger(t)
	repo := newMemoryCacheRepo()
	cache := NewCacheService(repo, nil, time.Minute, nil, true)
	svc := newTestPreview(t, ledger, cache)
	ctx := context.Background()

	_, err := svc.ListSubjects(ctx)
	require.NoError(t, err)
	_, ok := repo.items[PreviewKey("subjects", ledger.Revision())]
	assert.True(t, ok)

	_, err = svc.UpdateStudent(ctx, "21A01", dto.UpdateStudentRequest{StudentName: strPtr("Asha")})
	require.NoError(t, err)
	assert.Empty(t, repo.items, "commits purge cached previews")

	resp, err := svc.ListSubjects(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Asha", resp.Subjects["Maths"].Records[1][models.ColumnStudentName])
}

func TestGetStudentNormalizesRoll(t *testing.T) {
	svc := newTestPreview(t, seedLedger(t), nil)

	rec, err := svc.GetStudent(context.Background(), " 21a01")
	require.NoError(t, err)
	assert.Equal(t, "21A01", rec.RollNo)
	assert.Len(t, rec.Subjects, 2)

	_, err = svc.GetStudent(context.Background(), "nope")
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestUpdateStudentRecomputesTotal(t *testing.T) {
	ledger := seedLedger(t)
	svc := newTestPreview(t, ledger, nil)

	resp, err := svc.UpdateStudent(context.Background(), "21A02", dto.UpdateStudentRequest{
		StudentName: strPtr("  Ravi "),
		Subjects: []dto.SubjectPatch{{
			SubjectName: "Maths",
			DTMarks:     floatPtr(15),
			TotalMarks:  floatPtr(99),
		}},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Maths"}, resp.UpdatedSubjects)
	assert.Equal(t, "Ravi", resp.StudentName)

	maths := resp.Subjects[0]
	assert.Equal(t, 25.0, maths.TotalMarks, "client totals are overwritten")
	assert.False(t, maths.IsAbsent(models.ColumnDTMarks))

	ledger.View(func(v repository.LedgerView) {
		rec, _ := v.Student("21A02")
		assert.Equal(t, 25.0, rec.Subjects[0].TotalMarks)
	})
}

func TestUpdateStudentAcceptsEchoedRecord(t *testing.T) {
	ledger := seedLedger(t)
	svc := newTestPreview(t, ledger, nil)
	ctx := context.Background()

	for _, roll := range []string{"21A01", "21A02"} {
		rec, err := svc.GetStudent(ctx, roll)
		require.NoError(t, err)
		assert.Equal(t, "Student "+roll, rec.StudentName)

		body, err := json.Marshal(rec)
		require.NoError(t, err)
		var req dto.UpdateStudentRequest
		require.NoError(t, json.Unmarshal(body, &req))
		require.Len(t, req.Subjects, 2)
		require.NotNil(t, req.Subjects[1].DTMarks, "lab entries carry zero marks")

		resp, err := svc.UpdateStudent(ctx, roll, req)
		require.NoError(t, err, roll)
		assert.Equal(t, []string{"Maths", "Maths Lab"}, resp.UpdatedSubjects)
	}

	ledger.View(func(v repository.LedgerView) {
		rec, _ := v.Student("21A02")
		assert.Empty(t, rec.StudentName, "placeholder name is not stored")
		assert.True(t, rec.Subjects[0].IsAbsent(models.ColumnDTMarks), "unchanged AB mark survives")
		assert.Equal(t, 10.0, rec.Subjects[0].TotalMarks)
		assert.Zero(t, rec.Subjects[1].TotalMarks)
	})
}

func TestUpdateStudentAbsentClearedOnlyByNewValue(t *testing.T) {
	svc := newTestPreview(t, seedLedger(t), nil)

	resp, err := svc.UpdateStudent(context.Background(), "21A02", dto.UpdateStudentRequest{
		Subjects: []dto.SubjectPatch{{SubjectName: "Maths", DTMarks: floatPtr(0), STMarks: floatPtr(7)}},
	})
	require.NoError(t, err)
	assert.True(t, resp.Subjects[0].IsAbsent(models.ColumnDTMarks))
	assert.Equal(t, 12.0, resp.Subjects[0].TotalMarks)

	resp, err = svc.UpdateStudent(context.Background(), "21A02", dto.UpdateStudentRequest{
		Subjects: []dto.SubjectPatch{{SubjectName: "Maths", DTMarks: floatPtr(4)}},
	})
	require.NoError(t, err)
	assert.False(t, resp.Subjects[0].IsAbsent(models.ColumnDTMarks))
	assert.Equal(t, 16.0, resp.Subjects[0].TotalMarks)
}

func TestUpdateStudentRejectsInvalidAttendanceAtomically(t *testing.T) {
	ledger := seedLedger(t)
	svc := newTestPreview(t, ledger, nil)
	before := ledger.Revision()

	_, err := svc.UpdateStudent(context.Background(), "21A01", dto.UpdateStudentRequest{
		StudentName: strPtr("Changed"),
		Subjects: []dto.SubjectPatch{
			{SubjectName: "Maths", STMarks: floatPtr(9)},
			{SubjectName: "Maths Lab", AttendancePresent: intPtr(13)},
		},
	})
	require.ErrorIs(t, err, appErrors.ErrInvalidAttendance)
	appErr := appErrors.FromError(err)
	require.Len(t, appErr.Issues, 1)
	assert.Equal(t, "Maths Lab", appErr.Issues[0].Subject)

	assert.Equal(t, before, ledger.Revision())
	ledger.View(func(v repository.LedgerView) {
		rec, _ := v.Student("21A01")
		assert.Empty(t, rec.StudentName)
		assert.Equal(t, 5.0, rec.Subjects[0].STMarks)
		assert.Equal(t, 10, rec.Subjects[1].AttendancePresent)
	})
}

func TestUpdateStudentValidation(t *testing.T) {
	svc := newTestPreview(t, seedLedger(t), nil)
	ctx := context.Background()

	cases := []struct {
		name string
		req  dto.UpdateStudentRequest
		want *appErrors.Error
	}{
		{"unknown subject", dto.UpdateStudentRequest{Subjects: []dto.SubjectPatch{{SubjectName: "History", DTMarks: floatPtr(1)}}}, appErrors.ErrValidation},
		{"negative marks", dto.UpdateStudentRequest{Subjects: []dto.SubjectPatch{{SubjectName: "Maths", DTMarks: floatPtr(-1)}}}, appErrors.ErrValidation},
		{"lab marks", dto.UpdateStudentRequest{Subjects: []dto.SubjectPatch{{SubjectName: "Maths Lab", ATMarks: floatPtr(3)}}}, appErrors.ErrValidation},
		{"missing subject name", dto.UpdateStudentRequest{Subjects: []dto.SubjectPatch{{DTMarks: floatPtr(3)}}}, appErrors.ErrValidation},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.UpdateStudent(ctx, "21A01", tc.req)
			assert.ErrorIs(t, err, tc.want)
		})
	}

	_, err := svc.UpdateStudent(ctx, "21A99", dto.UpdateStudentRequest{StudentName: strPtr("x")})
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestRemoveStudent(t *testing.T) {
	ledger := seedLedger(t)
	svc := newTestPreview(t, ledger, nil)

	_, err := svc.RemoveStudent(context.Background(), "21a02")
	require.NoError(t, err)
	ledger.View(func(v repository.LedgerView) {
		assert.Equal(t, []string{"21A01"}, v.RollNumbers())
	})

	_, err = svc.RemoveStudent(context.Background(), "21A02")
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestBacklogPreviewAndUpdate(t *testing.T) {
	ledger := seedLedger(t)
	svc := newTestPreview(t, ledger, nil)
	ctx := context.Background()

	_, err := svc.GetBacklog(ctx)
	require.ErrorIs(t, err, appErrors.ErrNotFound)

	_, err = ledger.Update(func(tx *repository.LedgerTx) error {
		rec, _ := tx.Student("21A01")
		rec.StudentName = "Asha"
		rec.Backlog = map[int][]string{1: {"MA101"}}
		tx.PutStudent(rec)
		tx.SetStudentInfo(models.StudentInfoMeta{
			Columns:         []string{models.ColumnRollNo, models.ColumnStudentName, "sem 1", "section"},
			SemesterColumns: []string{"sem 1"},
			RollOrder:       []string{"21A01"},
			Extras:          map[string]map[string]string{"21A01": {"section": "A"}},
		})
		return nil
	})
	require.NoError(t, err)

	backlog, err := svc.GetBacklog(ctx)
	require.NoError(t, err)
	require.Len(t, backlog.Records, 1)
	assert.Equal(t, "MA101", backlog.Records[0]["sem 1"])
	assert.Equal(t, "A", backlog.Records[0]["section"])

	_, err = svc.UpdateBacklog(ctx, "21A01", dto.UpdateBacklogRequest{
		FatherName: strPtr("K. Rao"),
		Backlogs:   map[string]string{"sem 1": "-", "sem 3": "CS301, CS302"},
	})
	require.NoError(t, err)

	backlog, err = svc.GetBacklog(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"sem 1", "sem 3"}, backlog.SemesterColumns)
	assert.Equal(t, []string{models.ColumnRollNo, models.ColumnStudentName, "sem 1", "sem 3", "section"}, backlog.Columns)
	row := backlog.Records[0]
	assert.Equal(t, "-", row["sem 1"])
	assert.Equal(t, "CS301, CS302", row["sem 3"])
	assert.Equal(t, "K. Rao", row[models.ColumnFatherName])

	_, err = svc.UpdateBacklog(ctx, "21A01", dto.UpdateBacklogRequest{Backlogs: map[string]string{"remarks": "x"}})
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestExportCSV(t *testing.T) {
	svc := newTestPreview(t, seedLedger(t), nil)

	out, err := svc.ExportCSV(context.Background())
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "Roll No,Student Name,Father Name,Maths DT,Maths ST,Maths AT,Maths Total,Maths Conducted,Maths Present,Maths Lab Conducted,Maths Lab Present", lines[0])
	assert.Equal(t, "21A01,Student 21A01,,10,5,5,20,30,25,12,10", lines[1])
	assert.Equal(t, "21A02,Student 21A02,,AB,5,5,10,30,25,12,10", lines[2])

	_, err = newTestPreview(t, repository.NewLedgerRepository(), nil).ExportCSV(context.Background())
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}
