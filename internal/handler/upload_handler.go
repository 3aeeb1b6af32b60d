package handler

import (
	"context"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/progress-report-api/internal/dto"
	"github.com/noah-isme/progress-report-api/internal/service"
	appErrors "github.com/noah-isme/progress-report-api/pkg/errors"
	"github.com/noah-isme/progress-report-api/pkg/response"
)

type ingestService interface {
	UploadSubjects(ctx context.Context, files []service.UploadFile) (*dto.SubjectUploadResponse, error)
	UploadStudentInfo(ctx context.Context, file service.UploadFile) (*dto.StudentInfoUploadResponse, error)
	Status(ctx context.Context) dto.UploadStatusResponse
	Clear(ctx context.Context) dto.MessageResponse
}

// UploadHandler accepts spreadsheet uploads.
type UploadHandler struct {
	service ingestService
}

// NewUploadHandler builds a new handler.
func NewUploadHandler(service ingestService) *UploadHandler {
	return &UploadHandler{service: service}
}

// subjectFileFields are the multipart fields accepted for subject sheets.
var subjectFileFields = []string{"files", "files[]"}

// UploadSubjects godoc
// @Summary Upload subject spreadsheets
// @Tags Upload
// @Accept multipart/form-data
// @Produce json
// @Param files formData file true "Subject spreadsheets (.xlsx, .xls)"
// @Success 200 {object} dto.SubjectUploadResponse
// @Failure 400 {object} response.ErrorBody
// @Router /upload/subjects [post]
func (h *UploadHandler) UploadSubjects(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "No files uploaded"))
		return
	}
	var headers []*multipart.FileHeader
	for _, field := range subjectFileFields {
		headers = append(headers, form.File[field]...)
	}
	files := make([]service.UploadFile, 0, len(headers))
	for _, fh := range headers {
		file, err := readUpload(fh)
		if err != nil {
			response.Error(c, err)
			return
		}
		files = append(files, file)
	}

	resp, err := h.service.UploadSubjects(c.Request.Context(), files)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, resp)
}

// UploadStudentInfo godoc
// @Summary Upload the student info and backlog spreadsheet
// @Tags Upload
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "Student info spreadsheet"
// @Success 200 {object} dto.StudentInfoUploadResponse
// @Failure 400 {object} response.ErrorBody
// @Router /upload/student-info [post]
func (h *UploadHandler) UploadStudentInfo(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "No file uploaded"))
		return
	}
	file, err := readUpload(fh)
	if err != nil {
		response.Error(c, err)
		return
	}
	resp, err := h.service.UploadStudentInfo(c.Request.Context(), file)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, resp)
}

// Status godoc
// @Summary Upload status
// @Tags Upload
// @Produce json
// @Success 200 {object} dto.UploadStatusResponse
// @Router /upload/status [get]
func (h *UploadHandler) Status(c *gin.Context) {
	response.JSON(c, http.StatusOK, h.service.Status(c.Request.Context()))
}

// Clear godoc
// @Summary Clear every upload and the student ledger
// @Tags Upload
// @Produce json
// @Success 200 {object} dto.MessageResponse
// @Router /upload/clear [delete]
func (h *UploadHandler) Clear(c *gin.Context) {
	response.OK(c, h.service.Clear(c.Request.Context()))
}

func readUpload(fh *multipart.FileHeader) (service.UploadFile, error) {
	f, err := fh.Open()
	if err != nil {
		return service.UploadFile{}, appErrors.Wrap(err, appErrors.ErrMalformedFile.Code, appErrors.ErrMalformedFile.Status, "Error reading "+fh.Filename)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return service.UploadFile{}, appErrors.Wrap(err, appErrors.ErrMalformedFile.Code, appErrors.ErrMalformedFile.Status, "Error reading "+fh.Filename)
	}
	return service.UploadFile{Filename: fh.Filename, Data: data}, nil
}
