package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/progress-report-api/internal/dto"
	"github.com/noah-isme/progress-report-api/internal/models"
	"github.com/noah-isme/progress-report-api/internal/service"
	appErrors "github.com/noah-isme/progress-report-api/pkg/errors"
	"github.com/noah-isme/progress-report-api/pkg/response"
)

type reportServiceMock struct {
	lastReq     dto.GenerateReportRequest
	generate    *dto.GenerateReportResponse
	generateErr error
	artifact    *service.Artifact
	openErr     error
	openedName  string
	archive     *service.Artifact
	archiveErr  error
	preview     *dto.ReportPreviewResponse
	previewErr  error
}

func (m *reportServiceMock) Generate(ctx context.Context, req dto.GenerateReportRequest) (*dto.GenerateReportResponse, error) {
	m.lastReq = req
	return m.generate, m.generateErr
}

func (m *reportServiceMock) Open(ctx context.Context, filename string) (*service.Artifact, error) {
	m.openedName = filename
	return m.artifact, m.openErr
}

func (m *reportServiceMock) Archive(ctx context.Context) (*service.Artifact, error) {
	return m.archive, m.archiveErr
}

func (m *reportServiceMock) List(ctx context.Context) dto.ReportListResponse {
	return dto.ReportListResponse{Reports: []string{"a.pdf"}, Count: 1}
}

func (m *reportServiceMock) PreviewHTML(ctx context.Context, roll string) (*dto.ReportPreviewResponse, error) {
	return m.preview, m.previewErr
}

func (m *reportServiceMock) Clear(ctx context.Context) dto.MessageResponse {
	return dto.MessageResponse{Success: true, Message: "All generated reports cleared"}
}

func newGinContext(method, path string, body []byte) (*gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	return c, w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) response.ErrorBody {
	t.Helper()
	var body response.ErrorBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestReportHandlerGenerate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	consolidated := "Consolidated_Progress_Report_20250301_093015.pdf"
	mockSvc := &reportServiceMock{generate: &dto.GenerateReportResponse{
		Success:              true,
		Message:              "Generated reports for 1 students",
		Reports:              map[string]models.ReportResult{"21A01": {Filename: "21A01_Asha_Report.pdf", StudentName: "Asha"}},
		ConsolidatedFilename: &consolidated,
		TotalGenerated:       1,
	}}
	h := NewReportHandler(mockSvc)

	payload, _ := json.Marshal(map[string]interface{}{"students": []string{"21A01"}, "template": "Compact"})
	c, w := newGinContext(http.MethodPost, "/api/reports/generate", payload)
	h.Generate(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"21A01"}, mockSvc.lastReq.Students)
	assert.Equal(t, "Compact", mockSvc.lastReq.Template)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, float64(1), resp["total_generated"])
	assert.Equal(t, consolidated, resp["consolidated_filename"])
	assert.Contains(t, resp["reports"], "21A01")
}

func TestReportHandlerGenerateAcceptsEmptyBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &reportServiceMock{generateErr: appErrors.Clone(appErrors.ErrNoSubjectsUploaded, "No subject data uploaded. Please upload subject files first.")}
	h := NewReportHandler(mockSvc)

	c, w := newGinContext(http.MethodPost, "/api/reports/generate", nil)
	h.Generate(c)

	require.Equal(t, http.StatusBadRequest, w.Code)
	body := decodeError(t, w)
	assert.Equal(t, "No subject data uploaded. Please upload subject files first.", body.Detail)
	assert.Equal(t, "NO_SUBJECTS", body.Error.Code)
}

func TestReportHandlerGenerateRejectsBadJSON(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewReportHandler(&reportServiceMock{})
	c, w := newGinContext(http.MethodPost, "/api/reports/generate", []byte(`{"students": 5}`))
	h.Generate(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestReportHandlerDownload(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &reportServiceMock{artifact: &service.Artifact{Filename: "21A01_Asha_Report.pdf", ContentType: "application/pdf", Data: []byte("%PDF-1.3")}}
	h := NewReportHandler(mockSvc)

	c, w := newGinContext(http.MethodGet, "/api/reports/download/21A01_Asha_Report.pdf", nil)
	c.Params = gin.Params{{Key: "filename", Value: "21A01_Asha_Report.pdf"}}
	h.Download(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "21A01_Asha_Report.pdf", mockSvc.openedName)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "21A01_Asha_Report.pdf")
	assert.Equal(t, "%PDF-1.3", w.Body.String())

	mockSvc.openErr = appErrors.Clone(appErrors.ErrNotFound, "Report not found. Please generate reports first.")
	c, w = newGinContext(http.MethodGet, "/api/reports/download/missing.pdf", nil)
	c.Params = gin.Params{{Key: "filename", Value: "missing.pdf"}}
	h.Download(c)
	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Report not found. Please generate reports first.", decodeError(t, w).Detail)
}

func TestReportHandlerDownloadZip(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &reportServiceMock{archiveErr: appErrors.Clone(appErrors.ErrNotFound, "No reports generated. Please generate reports first.")}
	h := NewReportHandler(mockSvc)

	c, w := newGinContext(http.MethodGet, "/api/reports/download-zip", nil)
	h.DownloadZip(c)
	require.Equal(t, http.StatusNotFound, w.Code)

	mockSvc.archiveErr = nil
	mockSvc.archive = &service.Artifact{Filename: "All_Reports_20250301_093015.zip", ContentType: "application/zip", Data: []byte("PK")}
	c, w = newGinContext(http.MethodGet, "/api/reports/download-zip", nil)
	h.DownloadZip(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/zip", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "All_Reports_20250301_093015.zip")
}

func TestReportHandlerListPreviewAndClear(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &reportServiceMock{preview: &dto.ReportPreviewResponse{Success: true, HTML: "<div></div>", Warnings: []string{}}}
	h := NewReportHandler(mockSvc)

	c, w := newGinContext(http.MethodGet, "/api/reports/list", nil)
	h.List(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"reports":["a.pdf"],"count":1}`, w.Body.String())

	c, w = newGinContext(http.MethodGet, "/api/reports/preview-html/21A01", nil)
	c.Params = gin.Params{{Key: "roll_no", Value: "21A01"}}
	h.PreviewHTML(c)
	require.Equal(t, http.StatusOK, w.Code)
	var preview dto.ReportPreviewResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &preview))
	assert.Equal(t, "<div></div>", preview.HTML)

	mockSvc.previewErr = appErrors.Clone(appErrors.ErrNotFound, "No report generated for student 21A09")
	c, w = newGinContext(http.MethodGet, "/api/reports/preview-html/21A09", nil)
	h.PreviewHTML(c)
	assert.Equal(t, http.StatusNotFound, w.Code)

	c, w = newGinContext(http.MethodDelete, "/api/reports/clear", nil)
	h.Clear(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "All generated reports cleared")
}
