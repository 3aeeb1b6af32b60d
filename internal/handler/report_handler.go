package handler

import (
	"context"
	"errors"
	"io"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/progress-report-api/internal/dto"
	"github.com/noah-isme/progress-report-api/internal/service"
	appErrors "github.com/noah-isme/progress-report-api/pkg/errors"
	"github.com/noah-isme/progress-report-api/pkg/response"
)

type reportService interface {
	Generate(ctx context.Context, req dto.GenerateReportRequest) (*dto.GenerateReportResponse, error)
	Open(ctx context.Context, filename string) (*service.Artifact, error)
	Archive(ctx context.Context) (*service.Artifact, error)
	List(ctx context.Context) dto.ReportListResponse
	PreviewHTML(ctx context.Context, roll string) (*dto.ReportPreviewResponse, error)
	Clear(ctx context.Context) dto.MessageResponse
}

// ReportHandler exposes report generation and download endpoints.
type ReportHandler struct {
	service reportService
}

// NewReportHandler constructs handler.
func NewReportHandler(service reportService) *ReportHandler {
	return &ReportHandler{service: service}
}

// Generate godoc
// @Summary Generate progress reports
// @Tags Reports
// @Accept json
// @Produce json
// @Param payload body dto.GenerateReportRequest false "Report settings"
// @Success 200 {object} dto.GenerateReportResponse
// @Failure 400 {object} response.ErrorBody
// @Failure 422 {object} response.ErrorBody
// @Router /reports/generate [post]
func (h *ReportHandler) Generate(c *gin.Context) {
	var req dto.GenerateReportRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, err.Error()))
		return
	}
	resp, err := h.service.Generate(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, resp)
}

// Download godoc
// @Summary Download a generated report
// @Tags Reports
// @Produce application/pdf
// @Param filename path string true "Report filename"
// @Success 200 {file} file
// @Failure 404 {object} response.ErrorBody
// @Router /reports/download/{filename} [get]
func (h *ReportHandler) Download(c *gin.Context) {
	artifact, err := h.service.Open(c.Request.Context(), c.Param("filename"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, artifact.Filename, artifact.ContentType, artifact.Data)
}

// DownloadZip godoc
// @Summary Download every generated report as a ZIP
// @Tags Reports
// @Produce application/zip
// @Success 200 {file} file
// @Failure 404 {object} response.ErrorBody
// @Router /reports/download-zip [get]
func (h *ReportHandler) DownloadZip(c *gin.Context) {
	artifact, err := h.service.Archive(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, artifact.Filename, artifact.ContentType, artifact.Data)
}

// List godoc
// @Summary List generated reports
// @Tags Reports
// @Produce json
// @Success 200 {object} dto.ReportListResponse
// @Router /reports/list [get]
func (h *ReportHandler) List(c *gin.Context) {
	response.OK(c, h.service.List(c.Request.Context()))
}

// PreviewHTML godoc
// @Summary Preview a student's latest report as HTML
// @Tags Reports
// @Produce json
// @Param roll_no path string true "Roll number"
// @Success 200 {object} dto.ReportPreviewResponse
// @Failure 400 {object} response.ErrorBody
// @Failure 404 {object} response.ErrorBody
// @Router /reports/preview-html/{roll_no} [get]
func (h *ReportHandler) PreviewHTML(c *gin.Context) {
	resp, err := h.service.PreviewHTML(c.Request.Context(), c.Param("roll_no"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, resp)
}

// Clear godoc
// @Summary Delete every generated report
// @Tags Reports
// @Produce json
// @Success 200 {object} dto.MessageResponse
// @Router /reports/clear [delete]
func (h *ReportHandler) Clear(c *gin.Context) {
	response.OK(c, h.service.Clear(c.Request.Context()))
}
