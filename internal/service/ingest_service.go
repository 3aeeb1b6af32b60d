package service

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/progress-report-api/internal/dto"
	"github.com/noah-isme/progress-report-api/internal/models"
	"github.com/noah-isme/progress-report-api/internal/repository"
	appErrors "github.com/noah-isme/progress-report-api/pkg/errors"
	"github.com/noah-isme/progress-report-api/pkg/workbook"
)

var allowedExtensions = map[string]struct{}{".xlsx": {}, ".xlsm": {}, ".xls": {}}

// UploadFile is one uploaded spreadsheet.
type UploadFile struct {
	Filename string
	Data     []byte
}

// IngestConfig bounds upload batches.
type IngestConfig struct {
	MaxFileSizeBytes int64
	MaxFiles         int
}

// IngestService parses uploaded spreadsheets and reconciles them into the
// ledger. Parsing runs outside the ledger lock; merging runs as one
// transaction per request.
type IngestService struct {
	ledger  *repository.LedgerRepository
	sync    *LedgerSync
	metrics *MetricsService
	cfg     IngestConfig
	logger  *zap.Logger
}

// NewIngestService constructs the service.
func NewIngestService(ledger *repository.LedgerRepository, sync *LedgerSync, metrics *MetricsService, cfg IngestConfig, logger *zap.Logger) *IngestService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IngestService{ledger: ledger, sync: sync, metrics: metrics, cfg: cfg, logger: logger}
}

func (s *IngestService) checkFile(file UploadFile) error {
	ext := strings.ToLower(filepath.Ext(file.Filename))
	if _, ok := allowedExtensions[ext]; !ok {
		return appErrors.WithIssues(appErrors.ErrUnsupportedFile,
			fmt.Sprintf("Invalid file type: %s. Only Excel files (.xlsx, .xls) are allowed.", file.Filename),
			appErrors.Issue{Kind: appErrors.ErrUnsupportedFile.Code, Message: "unsupported extension", Filename: file.Filename})
	}
	if s.cfg.MaxFileSizeBytes > 0 && int64(len(file.Data)) > s.cfg.MaxFileSizeBytes {
		return appErrors.WithIssues(appErrors.ErrValidation,
			fmt.Sprintf("%s exceeds the %d byte upload limit", file.Filename, s.cfg.MaxFileSizeBytes),
			appErrors.Issue{Kind: "FILE_TOO_LARGE", Message: "file too large", Filename: file.Filename})
	}
	return nil
}

func (s *IngestService) parseSubject(file UploadFile) (*models.SubjectDataset, error) {
	if err := s.checkFile(file); err != nil {
		return nil, err
	}
	sheet, err := workbook.Parse(file.Data)
	if err != nil {
		return nil, err
	}
	return NormalizeSubject(file.Filename, sheet)
}

// UploadSubjects ingests a batch of subject files. Files that fail to parse
// or normalize are reported and skipped; the request fails only when no
// file survives.
func (s *IngestService) UploadSubjects(ctx context.Context, files []UploadFile) (*dto.SubjectUploadResponse, error) {
	if len(files) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "No files uploaded")
	}
	if s.cfg.MaxFiles > 0 && len(files) > s.cfg.MaxFiles {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("at most %d files may be uploaded at once", s.cfg.MaxFiles))
	}

	datasets := make([]*models.SubjectDataset, 0, len(files))
	failed := make([]dto.FailedFile, 0)
	var failures []*appErrors.Error
	for _, file := range files {
		ds, err := s.parseSubject(file)
		if err != nil {
			appErr := appErrors.FromError(err)
			issues := withFilename(appErr.Issues, file.Filename)
			if len(issues) == 0 {
				issues = []appErrors.Issue{{Kind: appErr.Code, Message: appErr.Message, Filename: file.Filename}}
			}
			failed = append(failed, dto.FailedFile{Filename: file.Filename, Code: appErr.Code, Message: appErr.Message, Issues: issues})
			failure := appErrors.Clone(appErr, "")
			failure.Issues = issues
			failures = append(failures, failure)
			s.metrics.RecordUpload("subject", false)
			s.logger.Warn("subject file rejected", zap.String("filename", file.Filename), zap.String("code", appErr.Code), zap.Error(err))
			continue
		}
		datasets = append(datasets, ds)
	}

	if len(datasets) == 0 {
		return nil, combineFailures(failures)
	}

	var warnings, rejected []appErrors.Issue
	uploaded := make([]string, 0, len(datasets))
	_, err := s.ledger.Update(func(tx *repository.LedgerTx) error {
		warnings, rejected = nil, nil
		uploaded = uploaded[:0]
		for _, ds := range datasets {
			w, r, err := applySubject(tx, ds)
			if err != nil {
				return err
			}
			warnings = append(warnings, w...)
			rejected = append(rejected, r...)
			uploaded = append(uploaded, ds.Name)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for range datasets {
		s.metrics.RecordUpload("subject", true)
	}
	s.metrics.RecordRejectedRows("subject", len(rejected))
	s.sync.Committed(ctx)

	resp := &dto.SubjectUploadResponse{
		Success:     true,
		Uploaded:    uploaded,
		Warnings:    warnings,
		Rejected:    rejected,
		FailedFiles: failed,
	}
	s.ledger.View(func(v repository.LedgerView) {
		resp.Subjects = v.SubjectOrder()
		resp.TotalStudents = v.StudentCount()
		resp.AllStudents = v.RollNumbers()
	})
	resp.Message = fmt.Sprintf("Successfully uploaded %d subject files", len(datasets))
	if len(failed) > 0 {
		resp.Message = fmt.Sprintf("%s; %d file(s) could not be processed", resp.Message, len(failed))
	}

	s.logger.Info("subject files ingested",
		zap.Strings("subjects", uploaded),
		zap.Int("failed_files", len(failed)),
		zap.Int("rejected_rows", len(rejected)),
		zap.Int("warnings", len(warnings)),
		zap.Int("total_students", resp.TotalStudents))
	return resp, nil
}

// applySubject merges one dataset: the prior dataset of the same name is
// replaced, rows with an empty roll number are rejected and a repeated roll
// keeps its last row.
func applySubject(tx *repository.LedgerTx, ds *models.SubjectDataset) ([]appErrors.Issue, []appErrors.Issue, error) {
	warnings := append([]appErrors.Issue(nil), ds.Warnings...)
	var rejected []appErrors.Issue

	meta := models.SubjectMeta{
		Name:       ds.Name,
		Filename:   ds.Filename,
		IsLab:      ds.IsLab,
		Columns:    append([]string(nil), ds.Columns...),
		UploadedAt: ds.UploadedAt,
	}
	tx.ReplaceSubject(meta)

	seen := make(map[string]int, len(ds.Rows))
	for _, row := range ds.Rows {
		roll := models.NormalizeRollNo(row.RollNo)
		if roll == "" {
			rejected = append(rejected, appErrors.Issue{
				Kind:     appErrors.ErrInvalidRollNumber.Code,
				Message:  "roll number is empty",
				Filename: ds.Filename,
				Subject:  ds.Name,
				Column:   models.ColumnRollNo,
				Line:     row.Line,
			})
			continue
		}
		if prev, dup := seen[roll]; dup {
			warnings = append(warnings, appErrors.Issue{
				Kind:     IssueDuplicateRoll,
				Message:  fmt.Sprintf("roll number repeated; line %d replaces line %d", row.Line, prev),
				Filename: ds.Filename,
				Subject:  ds.Name,
				RollNo:   roll,
				Line:     row.Line,
			})
		}
		seen[roll] = row.Line

		if _, err := tx.SetMarks(roll, row.Marks.Clone()); err != nil {
			return nil, nil, err
		}

		extra := make(map[string]string, len(row.Extra)+2)
		for k, v := range row.Extra {
			extra[k] = v
		}
		if row.StudentName != "" {
			extra[models.ColumnStudentName] = row.StudentName
		}
		if row.FatherName != "" {
			extra[models.ColumnFatherName] = row.FatherName
		}
		tx.SetSubjectExtras(ds.Name, roll, extra)
	}

	tx.SetSubjectWarnings(ds.Name, append(append([]appErrors.Issue(nil), warnings...), rejected...))
	return warnings, rejected, nil
}

// UploadStudentInfo ingests the student-info/backlog file. Names and backlog
// are merged into existing records; unknown rolls get placeholder records.
func (s *IngestService) UploadStudentInfo(ctx context.Context, file UploadFile) (*dto.StudentInfoUploadResponse, error) {
	if err := s.checkFile(file); err != nil {
		s.metrics.RecordUpload("student_info", false)
		return nil, err
	}
	sheet, err := workbook.Parse(file.Data)
	if err != nil {
		s.metrics.RecordUpload("student_info", false)
		return nil, err
	}
	ds, err := NormalizeStudentInfo(file.Filename, sheet)
	if err != nil {
		s.metrics.RecordUpload("student_info", false)
		return nil, err
	}

	var warnings, rejected []appErrors.Issue
	var placeholders, accepted int
	_, err = s.ledger.Update(func(tx *repository.LedgerTx) error {
		warnings, rejected = nil, nil
		placeholders, accepted = 0, 0

		meta := models.StudentInfoMeta{
			Filename:        ds.Filename,
			Columns:         append([]string(nil), ds.Columns...),
			SemesterColumns: append([]string(nil), ds.SemesterColumns...),
		}
		if prev, ok := tx.StudentInfo(); ok {
			// The new file replaces the previous one, backlogs included.
			for _, roll := range prev.RollOrder {
				if rec, exists := tx.Student(roll); exists {
					rec.Backlog = nil
					tx.PutStudent(rec)
				}
			}
		}

		seen := make(map[string]int, len(ds.Rows))
		for _, row := range ds.Rows {
			roll := models.NormalizeRollNo(row.RollNo)
			if roll == "" {
				rejected = append(rejected, appErrors.Issue{
					Kind:     appErrors.ErrInvalidRollNumber.Code,
					Message:  "roll number is empty",
					Filename: ds.Filename,
					Column:   models.ColumnRollNo,
					Line:     row.Line,
				})
				continue
			}
			if prev, dup := seen[roll]; dup {
				warnings = append(warnings, appErrors.Issue{
					Kind:     IssueDuplicateRoll,
					Message:  fmt.Sprintf("roll number repeated; line %d replaces line %d", row.Line, prev),
					Filename: ds.Filename,
					RollNo:   roll,
					Line:     row.Line,
				})
			} else {
				meta.RollOrder = append(meta.RollOrder, roll)
				accepted++
			}
			seen[roll] = row.Line

			if tx.EnsureStudent(roll) {
				placeholders++
			}
			rec, _ := tx.Student(roll)
			if row.StudentName != "" {
				rec.StudentName = row.StudentName
			}
			if row.FatherName != "" {
				rec.FatherName = row.FatherName
			}
			rec.Backlog = row.Backlog
			tx.PutStudent(rec)

			if len(row.Extra) > 0 {
				if meta.Extras == nil {
					meta.Extras = make(map[string]map[string]string)
				}
				meta.Extras[roll] = row.Extra
			}
		}
		tx.SetStudentInfo(meta)
		return nil
	})
	if err != nil {
		s.metrics.RecordUpload("student_info", false)
		return nil, err
	}

	s.metrics.RecordUpload("student_info", true)
	s.metrics.RecordRejectedRows("student_info", len(rejected))
	s.sync.Committed(ctx)
	s.logger.Info("student info ingested",
		zap.String("filename", file.Filename),
		zap.Int("students", accepted),
		zap.Int("placeholders", placeholders),
		zap.Int("rejected_rows", len(rejected)))

	return &dto.StudentInfoUploadResponse{
		Success:         true,
		Message:         fmt.Sprintf("Successfully uploaded student info (%d students)", accepted),
		StudentCount:    accepted,
		Placeholders:    placeholders,
		Columns:         ds.Columns,
		SemesterColumns: ds.SemesterColumns,
		Warnings:        warnings,
		Rejected:        rejected,
	}, nil
}

// Status summarises what has been uploaded so far.
func (s *IngestService) Status(ctx context.Context) dto.UploadStatusResponse {
	var status dto.UploadStatusResponse
	s.ledger.View(func(v repository.LedgerView) {
		_, hasInfo := v.StudentInfo()
		status = dto.UploadStatusResponse{
			HasSubjects:     v.HasSubjects(),
			HasBacklog:      hasInfo,
			Subjects:        v.SubjectOrder(),
			TotalStudents:   v.StudentCount(),
			ReadyToGenerate: v.HasSubjects(),
		}
	})
	return status
}

// Clear drops every upload and student record.
func (s *IngestService) Clear(ctx context.Context) dto.MessageResponse {
	rev := s.ledger.Clear()
	s.sync.Cleared(ctx)
	s.logger.Info("uploads cleared", zap.Uint64("revision", rev))
	return dto.MessageResponse{Success: true, Message: "All uploads cleared"}
}

func withFilename(issues []appErrors.Issue, filename string) []appErrors.Issue {
	out := make([]appErrors.Issue, len(issues))
	for i, issue := range issues {
		if issue.Filename == "" {
			issue.Filename = filename
		}
		out[i] = issue
	}
	return out
}

// combineFailures folds per-file errors into the request error. A single
// failure is returned as is.
func combineFailures(failures []*appErrors.Error) error {
	if len(failures) == 1 {
		return failures[0]
	}
	messages := make([]string, 0, len(failures))
	var issues []appErrors.Issue
	for _, f := range failures {
		messages = append(messages, f.Message)
		issues = append(issues, f.Issues...)
	}
	combined := appErrors.Clone(failures[0], "No subject files could be processed: "+strings.Join(messages, "; "))
	combined.Issues = issues
	return combined
}
