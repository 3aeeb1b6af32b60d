package handler

import (
	"context"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/progress-report-api/internal/dto"
	appErrors "github.com/noah-isme/progress-report-api/pkg/errors"
	"github.com/noah-isme/progress-report-api/pkg/response"
)

type previewService interface {
	ListSubjects(ctx context.Context) (*dto.SubjectsPreviewResponse, error)
	GetStudent(ctx context.Context, roll string) (*dto.StudentResponse, error)
	UpdateStudent(ctx context.Context, roll string, req dto.UpdateStudentRequest) (*dto.UpdateStudentResponse, error)
	RemoveStudent(ctx context.Context, roll string) (*dto.MessageResponse, error)
	GetBacklog(ctx context.Context) (*dto.BacklogResponse, error)
	UpdateBacklog(ctx context.Context, roll string, req dto.UpdateBacklogRequest) (*dto.MessageResponse, error)
	ExportCSV(ctx context.Context) ([]byte, error)
}

// PreviewHandler exposes ledger inspection and edit endpoints.
type PreviewHandler struct {
	service previewService
	now     func() time.Time
}

// NewPreviewHandler builds a new handler.
func NewPreviewHandler(service previewService) *PreviewHandler {
	return &PreviewHandler{service: service, now: time.Now}
}

// Subjects godoc
// @Summary Preview every uploaded subject table
// @Tags Preview
// @Produce json
// @Success 200 {object} dto.SubjectsPreviewResponse
// @Failure 404 {object} response.ErrorBody
// @Router /preview/subjects [get]
func (h *PreviewHandler) Subjects(c *gin.Context) {
	resp, err := h.service.ListSubjects(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, resp)
}

// Student godoc
// @Summary Get one student record
// @Tags Preview
// @Produce json
// @Param roll_no path string true "Roll number"
// @Success 200 {object} dto.StudentResponse
// @Failure 404 {object} response.ErrorBody
// @Router /preview/student/{roll_no} [get]
func (h *PreviewHandler) Student(c *gin.Context) {
	resp, err := h.service.GetStudent(c.Request.Context(), c.Param("roll_no"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, resp)
}

// UpdateStudent godoc
// @Summary Edit a student's names, marks or attendance
// @Tags Preview
// @Accept json
// @Produce json
// @Param roll_no path string true "Roll number"
// @Param payload body dto.UpdateStudentRequest true "Patch"
// @Success 200 {object} dto.UpdateStudentResponse
// @Failure 400 {object} response.ErrorBody
// @Failure 404 {object} response.ErrorBody
// @Failure 422 {object} response.ErrorBody
// @Router /preview/student/{roll_no} [put]
func (h *PreviewHandler) UpdateStudent(c *gin.Context) {
	var req dto.UpdateStudentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, err.Error()))
		return
	}
	resp, err := h.service.UpdateStudent(c.Request.Context(), c.Param("roll_no"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, resp)
}

// RemoveStudent godoc
// @Summary Remove a student from the ledger
// @Tags Preview
// @Produce json
// @Param roll_no path string true "Roll number"
// @Success 200 {object} dto.MessageResponse
// @Failure 404 {object} response.ErrorBody
// @Router /preview/student/{roll_no} [delete]
func (h *PreviewHandler) RemoveStudent(c *gin.Context) {
	resp, err := h.service.RemoveStudent(c.Request.Context(), c.Param("roll_no"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, resp)
}

// Backlog godoc
// @Summary Preview the backlog table
// @Tags Preview
// @Produce json
// @Success 200 {object} dto.BacklogResponse
// @Failure 404 {object} response.ErrorBody
// @Router /preview/backlog [get]
func (h *PreviewHandler) Backlog(c *gin.Context) {
	resp, err := h.service.GetBacklog(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, resp)
}

// UpdateBacklog godoc
// @Summary Edit a student's backlog entries
// @Tags Preview
// @Accept json
// @Produce json
// @Param roll_no path string true "Roll number"
// @Param payload body dto.UpdateBacklogRequest true "Backlog patch"
// @Success 200 {object} dto.MessageResponse
// @Failure 400 {object} response.ErrorBody
// @Router /preview/backlog/{roll_no} [put]
func (h *PreviewHandler) UpdateBacklog(c *gin.Context) {
	var req dto.UpdateBacklogRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, err.Error()))
		return
	}
	resp, err := h.service.UpdateBacklog(c.Request.Context(), c.Param("roll_no"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, resp)
}

// ExportCSV godoc
// @Summary Export the ledger as CSV
// @Tags Preview
// @Produce text/csv
// @Success 200 {file} file
// @Failure 404 {object} response.ErrorBody
// @Router /preview/export.csv [get]
func (h *PreviewHandler) ExportCSV(c *gin.Context) {
	data, err := h.service.ExportCSV(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	filename := fmt.Sprintf("Student_Ledger_%s.csv", h.now().Format("20060102_150405"))
	response.Attachment(c, filename, "text/csv; charset=utf-8", data)
}
