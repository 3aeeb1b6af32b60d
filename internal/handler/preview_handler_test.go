package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/progress-report-api/internal/dto"
	"github.com/noah-isme/progress-report-api/internal/models"
	appErrors "github.com/noah-isme/progress-report-api/pkg/errors"
)

type previewServiceMock struct {
	roll    string
	update  dto.UpdateStudentRequest
	backlog dto.UpdateBacklogRequest
	err     error
	csv     []byte
}

func (m *previewServiceMock) ListSubjects(ctx context.Context) (*dto.SubjectsPreviewResponse, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &dto.SubjectsPreviewResponse{SubjectOrder: []string{"Maths"}, TotalSubjects: 1}, nil
}

func (m *previewServiceMock) GetStudent(ctx context.Context, roll string) (*dto.StudentResponse, error) {
	m.roll = roll
	if m.err != nil {
		return nil, m.err
	}
	resp := dto.NewStudentResponse(models.StudentRecord{RollNo: roll, StudentName: "Asha"})
	return &resp, nil
}

func (m *previewServiceMock) UpdateStudent(ctx context.Context, roll string, req dto.UpdateStudentRequest) (*dto.UpdateStudentResponse, error) {
	m.roll, m.update = roll, req
	if m.err != nil {
		return nil, m.err
	}
	return &dto.UpdateStudentResponse{Success: true, Message: "Student " + roll + " updated successfully"}, nil
}

func (m *previewServiceMock) RemoveStudent(ctx context.Context, roll string) (*dto.MessageResponse, error) {
	m.roll = roll
	return &dto.MessageResponse{Success: true, Message: "Student " + roll + " removed"}, m.err
}

func (m *previewServiceMock) GetBacklog(ctx context.Context) (*dto.BacklogResponse, error) {
	return &dto.BacklogResponse{StudentCount: 1}, m.err
}

func (m *previewServiceMock) UpdateBacklog(ctx context.Context, roll string, req dto.UpdateBacklogRequest) (*dto.MessageResponse, error) {
	m.roll, m.backlog = roll, req
	return &dto.MessageResponse{Success: true}, m.err
}

func (m *previewServiceMock) ExportCSV(ctx context.Context) ([]byte, error) {
	return m.csv, m.err
}

func TestPreviewSubjectsNotFound(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewPreviewHandler(&previewServiceMock{err: appErrors.Clone(appErrors.ErrNotFound, "No subject data uploaded")})

	c, w := newGinContext(http.MethodGet, "/api/preview/subjects", nil)
	h.Subjects(c)
	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "No subject data uploaded", decodeError(t, w).Detail)
}

func TestPreviewStudentRoutesRollParam(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &previewServiceMock{}
	h := NewPreviewHandler(mockSvc)

	c, w := newGinContext(http.MethodGet, "/api/preview/student/21A01", nil)
	c.Params = gin.Params{{Key: "roll_no", Value: "21A01"}}
	h.Student(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "21A01", mockSvc.roll)
	var student dto.StudentResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &student))
	assert.Equal(t, "Asha", student.StudentName)
	assert.NotNil(t, student.Subjects)
}

func TestPreviewUpdateStudent(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &previewServiceMock{}
	h := NewPreviewHandler(mockSvc)

	payload := []byte(`{"student_name":"Asha R","subjects":[{"subject_name":"Maths","dt_marks":18,"total_marks":99}]}`)
	c, w := newGinContext(http.MethodPut, "/api/preview/student/21A01", payload)
	c.Params = gin.Params{{Key: "roll_no", Value: "21A01"}}
	h.UpdateStudent(c)

	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, mockSvc.update.StudentName)
	assert.Equal(t, "Asha R", *mockSvc.update.StudentName)
	require.Len(t, mockSvc.update.Subjects, 1)
	assert.Equal(t, 18.0, *mockSvc.update.Subjects[0].DTMarks)

	mockSvc.err = appErrors.WithIssues(appErrors.ErrInvalidAttendance, "Attendance present cannot exceed attendance conducted for Maths",
		appErrors.Issue{Kind: "INVALID_ATTENDANCE", Subject: "Maths", RollNo: "21A01"})
	c, w = newGinContext(http.MethodPut, "/api/preview/student/21A01", payload)
	h.UpdateStudent(c)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	body := decodeError(t, w)
	require.Len(t, body.Error.Issues, 1)
	assert.Equal(t, "Maths", body.Error.Issues[0].Subject)

	c, w = newGinContext(http.MethodPut, "/api/preview/student/21A01", []byte(`not json`))
	h.UpdateStudent(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPreviewBacklogEndpoints(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &previewServiceMock{}
	h := NewPreviewHandler(mockSvc)

	c, w := newGinContext(http.MethodGet, "/api/preview/backlog", nil)
	h.Backlog(c)
	require.Equal(t, http.StatusOK, w.Code)

	c, w = newGinContext(http.MethodPut, "/api/preview/backlog/21A01", []byte(`{"backlogs":{"sem 2":"MA201"}}`))
	c.Params = gin.Params{{Key: "roll_no", Value: "21A01"}}
	h.UpdateBacklog(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "MA201", mockSvc.backlog.Backlogs["sem 2"])

	c, w = newGinContext(http.MethodDelete, "/api/preview/student/21A01", nil)
	c.Params = gin.Params{{Key: "roll_no", Value: "21A01"}}
	h.RemoveStudent(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Student 21A01 removed")
}

func TestPreviewExportCSV(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewPreviewHandler(&previewServiceMock{csv: []byte("Roll No\n21A01\n")})
	h.now = func() time.Time { return time.Date(2025, 3, 1, 9, 30, 15, 0, time.UTC) }

	c, w := newGinContext(http.MethodGet, "/api/preview/export.csv", nil)
	h.ExportCSV(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "Student_Ledger_20250301_093015.csv")
	assert.Equal(t, "Roll No\n21A01\n", w.Body.String())
}
