package handler

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/progress-report-api/internal/dto"
	"github.com/noah-isme/progress-report-api/internal/service"
	appErrors "github.com/noah-isme/progress-report-api/pkg/errors"
)

type ingestServiceMock struct {
	subjects []service.UploadFile
	info     *service.UploadFile
	err      error
}

func (m *ingestServiceMock) UploadSubjects(ctx context.Context, files []service.UploadFile) (*dto.SubjectUploadResponse, error) {
	m.subjects = files
	if m.err != nil {
		return nil, m.err
	}
	names := make([]string, 0, len(files))
	for _, f := range files {
		names = append(names, f.Filename)
	}
	return &dto.SubjectUploadResponse{Success: true, Uploaded: names, Message: "ok"}, nil
}

func (m *ingestServiceMock) UploadStudentInfo(ctx context.Context, file service.UploadFile) (*dto.StudentInfoUploadResponse, error) {
	m.info = &file
	if m.err != nil {
		return nil, m.err
	}
	return &dto.StudentInfoUploadResponse{Success: true, StudentCount: 3}, nil
}

func (m *ingestServiceMock) Status(ctx context.Context) dto.UploadStatusResponse {
	return dto.UploadStatusResponse{HasSubjects: true, Subjects: []string{"Maths"}, TotalStudents: 2, ReadyToGenerate: true}
}

func (m *ingestServiceMock) Clear(ctx context.Context) dto.MessageResponse {
	return dto.MessageResponse{Success: true, Message: "All uploads cleared"}
}

type formFile struct {
	field    string
	filename string
	data     string
}

func newMultipartContext(t *testing.T, path string, files ...formFile) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for _, f := range files {
		part, err := mw.CreateFormFile(f.field, f.filename)
		require.NoError(t, err)
		_, err = part.Write([]byte(f.data))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	c.Request = req
	return c, w
}

func TestUploadSubjectsAcceptsBothFieldNames(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &ingestServiceMock{}
	h := NewUploadHandler(mockSvc)

	c, w := newMultipartContext(t, "/api/upload/subjects",
		formFile{field: "files", filename: "Maths.xlsx", data: "a"},
		formFile{field: "files[]", filename: "Physics.xlsx", data: "bb"},
	)
	h.UploadSubjects(c)

	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, mockSvc.subjects, 2)
	assert.Equal(t, "Maths.xlsx", mockSvc.subjects[0].Filename)
	assert.Equal(t, []byte("bb"), mockSvc.subjects[1].Data)
}

func TestUploadSubjectsPropagatesServiceErrors(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &ingestServiceMock{err: appErrors.Clone(appErrors.ErrUnsupportedFile, "Invalid file type: notes.txt. Only Excel files (.xlsx, .xls) are allowed.")}
	h := NewUploadHandler(mockSvc)

	c, w := newMultipartContext(t, "/api/upload/subjects", formFile{field: "files[]", filename: "notes.txt", data: "x"})
	h.UploadSubjects(c)

	require.Equal(t, http.StatusBadRequest, w.Code)
	body := decodeError(t, w)
	assert.Equal(t, "UNSUPPORTED_FILE", body.Error.Code)
	assert.Contains(t, body.Detail, "notes.txt")
}

func TestUploadSubjectsWithoutMultipartBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewUploadHandler(&ingestServiceMock{})
	c, w := newGinContext(http.MethodPost, "/api/upload/subjects", []byte(`{}`))
	h.UploadSubjects(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "No files uploaded", decodeError(t, w).Detail)
}

func TestUploadStudentInfo(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &ingestServiceMock{}
	h := NewUploadHandler(mockSvc)

	c, w := newMultipartContext(t, "/api/upload/student-info", formFile{field: "file", filename: "Backlog.xlsx", data: "xyz"})
	h.UploadStudentInfo(c)
	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, mockSvc.info)
	assert.Equal(t, "Backlog.xlsx", mockSvc.info.Filename)
	assert.Contains(t, w.Body.String(), `"student_count":3`)

	c, w = newMultipartContext(t, "/api/upload/student-info", formFile{field: "other", filename: "x.xlsx", data: "x"})
	h.UploadStudentInfo(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUploadStatusAndClear(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewUploadHandler(&ingestServiceMock{})

	c, w := newGinContext(http.MethodGet, "/api/upload/status", nil)
	h.Status(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"has_subjects":true,"has_backlog":false,"subjects":["Maths"],"total_students":2,"ready_to_generate":true}`, w.Body.String())

	c, w = newGinContext(http.MethodDelete, "/api/upload/clear", nil)
	h.Clear(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "All uploads cleared")
}
