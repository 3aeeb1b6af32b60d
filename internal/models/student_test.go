package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeRollNo(t *testing.T) {
	assert.Equal(t, "21A01", NormalizeRollNo("  21a01 \t"))
	assert.Equal(t, "", NormalizeRollNo("   "))
}

func TestStudentRecordCloneDoesNotAlias(t *testing.T) {
	rec := StudentRecord{
		RollNo:   "21A01",
		Subjects: []SubjectMarks{{SubjectName: "Physics", DTMarks: 10, Absent: []string{ColumnSTMarks}}},
		Backlog:  map[int][]string{1: {"CS101"}},
	}
	clone := rec.Clone()
	clone.Subjects[0].DTMarks = 20
	clone.Subjects[0].Absent[0] = "x"
	clone.Backlog[1][0] = "changed"

	assert.Equal(t, 10.0, rec.Subjects[0].DTMarks)
	assert.Equal(t, ColumnSTMarks, rec.Subjects[0].Absent[0])
	assert.Equal(t, "CS101", rec.Backlog[1][0])
	assert.Equal(t, "Student 21A01", rec.DisplayName())
}

func TestRecomputeTotal(t *testing.T) {
	theory := SubjectMarks{DTMarks: 15, STMarks: 8, ATMarks: 9.5, TotalMarks: 99}
	theory.RecomputeTotal()
	assert.Equal(t, 32.5, theory.TotalMarks)

	lab := SubjectMarks{IsLab: true, DTMarks: 3, TotalMarks: 3}
	lab.RecomputeTotal()
	assert.Zero(t, lab.TotalMarks)
	assert.Zero(t, lab.DTMarks)
}

func TestLedgerSnapshotScan(t *testing.T) {
	snap := LedgerSnapshot{Revision: 3, SubjectOrder: []string{"Physics"}}
	value, err := snap.Value()
	require.NoError(t, err)

	var decoded LedgerSnapshot
	require.NoError(t, decoded.Scan(value))
	assert.Equal(t, uint64(3), decoded.Revision)
	assert.Equal(t, []string{"Physics"}, decoded.SubjectOrder)

	require.NoError(t, decoded.Scan(nil))
	assert.Zero(t, decoded.Revision)
	assert.Error(t, decoded.Scan(42))
}
