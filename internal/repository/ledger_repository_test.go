package repository

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/progress-report-api/internal/models"
)

func installSubject(t *testing.T, repo *LedgerRepository, name string, rolls ...string) {
	t.Helper()
	_, err := repo.Update(func(tx *LedgerTx) error {
		tx.ReplaceSubject(models.SubjectMeta{Name: name})
		for _, roll := range rolls {
			if _, err := tx.SetMarks(roll, models.SubjectMarks{SubjectName: name, AttendanceConducted: 10, AttendancePresent: 8}); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)
}

func TestLedgerReplaceSubjectNeverDuplicates(t *testing.T) {
	repo := NewLedgerRepository()
	installSubject(t, repo, "Physics", "21A01", "21A02")
	installSubject(t, repo, "Maths", "21A01")
	installSubject(t, repo, "Physics", "21A01")

	repo.View(func(v LedgerView) {
		assert.Equal(t, []string{"Physics", "Maths"}, v.SubjectOrder())

		first, ok := v.Student("21A01")
		require.True(t, ok)
		require.Len(t, first.Subjects, 2)
		assert.Equal(t, "Physics", first.Subjects[0].SubjectName)
		assert.Equal(t, "Maths", first.Subjects[1].SubjectName)

		second, ok := v.Student("21A02")
		require.True(t, ok, "students are never dropped by a re-upload")
		assert.Empty(t, second.Subjects)

		meta, _ := v.Subject("Physics")
		assert.Equal(t, []string{"21A01"}, meta.RollOrder)
	})
}

func TestLedgerSubjectsFollowGlobalOrder(t *testing.T) {
	repo := NewLedgerRepository()
	installSubject(t, repo, "Physics", "21A02")
	installSubject(t, repo, "Maths", "21A01", "21A02")
	installSubject(t, repo, "Physics", "21A01", "21A02")

	repo.View(func(v LedgerView) {
		rec, _ := v.Student("21A01")
		require.Len(t, rec.Subjects, 2)
		assert.Equal(t, "Physics", rec.Subjects[0].SubjectName)
		assert.Equal(t, "Maths", rec.Subjects[1].SubjectName)
	})
}

func TestLedgerUpdateIsAllOrNothing(t *testing.T) {
	repo := NewLedgerRepository()
	installSubject(t, repo, "Physics", "21A01")
	before := repo.Revision()

	boom := errors.New("boom")
	_, err := repo.Update(func(tx *LedgerTx) error {
		rec, _ := tx.Student("21A01")
		rec.StudentName = "Changed"
		tx.PutStudent(rec)
		tx.EnsureStudent("21A99")
		return boom
	})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, before, repo.Revision())

	repo.View(func(v LedgerView) {
		rec, _ := v.Student("21A01")
		assert.Empty(t, rec.StudentName)
		_, exists := v.Student("21A99")
		assert.False(t, exists)
	})
}

func TestLedgerRejectsInvariantViolations(t *testing.T) {
	repo := NewLedgerRepository()
	installSubject(t, repo, "Physics", "21A01")

	_, err := repo.Update(func(tx *LedgerTx) error {
		rec, _ := tx.Student("21A01")
		rec.Subjects = append(rec.Subjects, rec.Subjects[0])
		tx.PutStudent(rec)
		return nil
	})
	require.Error(t, err)

	repo.View(func(v LedgerView) {
		rec, _ := v.Student("21A01")
		assert.Len(t, rec.Subjects, 1)
	})
}

func TestLedgerViewReturnsCopies(t *testing.T) {
	repo := NewLedgerRepository()
	installSubject(t, repo, "Physics", "21A01")

	repo.View(func(v LedgerView) {
		rec, _ := v.Student("21A01")
		rec.Subjects[0].AttendancePresent = 0
	})
	repo.View(func(v LedgerView) {
		rec, _ := v.Student("21A01")
		assert.Equal(t, 8, rec.Subjects[0].AttendancePresent)
	})
}

func TestLedgerRemoveStudentKeepsInvariants(t *testing.T) {
	repo := NewLedgerRepository()
	installSubject(t, repo, "Physics", "21A01", "21A02")

	_, err := repo.Update(func(tx *LedgerTx) error {
		assert.True(t, tx.RemoveStudent("21A02"))
		assert.False(t, tx.RemoveStudent("missing"))
		return nil
	})
	require.NoError(t, err)

	repo.View(func(v LedgerView) {
		assert.Equal(t, []string{"21A01"}, v.RollNumbers())
		meta, _ := v.Subject("Physics")
		assert.Equal(t, []string{"21A01"}, meta.RollOrder)
	})
}

func TestLedgerSnapshotRestore(t *testing.T) {
	repo := NewLedgerRepository()
	installSubject(t, repo, "Physics", "21A01")
	_, err := repo.Update(func(tx *LedgerTx) error {
		tx.SetStudentInfo(models.StudentInfoMeta{Columns: []string{"roll_no"}, RollOrder: []string{"21A01"}})
		return nil
	})
	require.NoError(t, err)

	snap := repo.Snapshot()
	restored := NewLedgerRepository()
	require.NoError(t, restored.Restore(snap))
	assert.Greater(t, restored.Revision(), snap.Revision)

	restored.View(func(v LedgerView) {
		assert.Equal(t, []string{"Physics"}, v.SubjectOrder())
		_, ok := v.StudentInfo()
		assert.True(t, ok)
	})

	broken := snap
	broken.SubjectOrder = nil
	assert.Error(t, NewLedgerRepository().Restore(broken))
}

func TestLedgerClear(t *testing.T) {
	repo := NewLedgerRepository()
	installSubject(t, repo, "Physics", "21A01")
	rev := repo.Revision()

	assert.Greater(t, repo.Clear(), rev)
	repo.View(func(v LedgerView) {
		assert.False(t, v.HasSubjects())
		assert.Zero(t, v.StudentCount())
	})
}

func TestLedgerConcurrentUpsertsDoNotLoseUpdates(t *testing.T) {
	repo := NewLedgerRepository()
	installSubject(t, repo, "Physics")

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := repo.Update(func(tx *LedgerTx) error {
				_, err := tx.SetMarks(fmt.Sprintf("R%02d", i), models.SubjectMarks{SubjectName: "Physics"})
				return err
			})
			assert.NoError(t, err)
		}(i)
		go repo.View(func(v LedgerView) { _ = v.RollNumbers() })
	}
	wg.Wait()

	repo.View(func(v LedgerView) {
		assert.Equal(t, 50, v.StudentCount())
		meta, _ := v.Subject("Physics")
		assert.Len(t, meta.RollOrder, 50)
	})
}
