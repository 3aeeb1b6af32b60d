package service

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/progress-report-api/internal/dto"
	"github.com/noah-isme/progress-report-api/internal/models"
	"github.com/noah-isme/progress-report-api/internal/repository"
	appErrors "github.com/noah-isme/progress-report-api/pkg/errors"
	"github.com/noah-isme/progress-report-api/pkg/export"
	"github.com/noah-isme/progress-report-api/pkg/jobs"
)

// Defaults applied to generate requests that leave fields blank.
const (
	DefaultDepartment   = "Computer Science"
	DefaultAcademicYear = "2024-2025"
	DefaultSemester     = "B.E- IV Semester"

	reportDateLayout = "02.01.2006"
	stampLayout      = "20060102_150405"
	pdfContentType   = "application/pdf"
	zipContentType   = "application/zip"
)

var (
	errRenderFailed = appErrors.New("RENDER_FAILED", http.StatusInternalServerError, "report rendering failed")
	unsafeFilename  = regexp.MustCompile(`[^A-Za-z0-9._-]+`)
)

// ReportRenderer turns report documents into downloadable artifacts.
type ReportRenderer interface {
	RenderStudent(doc export.ReportDocument) ([]byte, error)
	RenderConsolidated(docs []export.ReportDocument) ([]byte, error)
}

// ArtifactStore persists rendered artifacts by filename.
type ArtifactStore interface {
	Save(name string, data []byte) error
	Read(name string) ([]byte, error)
	Delete(name string) error
}

// ReportServiceConfig carries the letterhead and worker pool sizing.
type ReportServiceConfig struct {
	Institution export.Institution
	Workers     int
	MaxRetries  int
}

// Artifact is a file ready to be served.
type Artifact struct {
	Filename    string
	ContentType string
	Data        []byte
}

type renderOutcome struct {
	doc      export.ReportDocument
	filename string
	name     string
}

// ReportService renders per-student and consolidated reports over a bounded
// worker pool and tracks every artifact produced since the last clear.
type ReportService struct {
	ledger    *repository.LedgerRepository
	store     ArtifactStore
	renderer  ReportRenderer
	html      *export.HTMLRenderer
	pool      *jobs.Pool
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	cfg       ReportServiceConfig
	now       func() time.Time

	mu       sync.RWMutex
	registry map[string]struct{}
	lastJob  *models.ReportJob
	lastDocs map[string]export.ReportDocument
}

// NewReportService constructs the report service.
func NewReportService(ledger *repository.LedgerRepository, store ArtifactStore, renderer ReportRenderer, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger, cfg ReportServiceConfig) *ReportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if renderer == nil {
		renderer = export.NewReportRenderer()
	}
	return &ReportService{
		ledger:    ledger,
		store:     store,
		renderer:  renderer,
		html:      export.NewHTMLRenderer(),
		pool:      jobs.NewPool("reports", jobs.PoolConfig{Workers: cfg.Workers, MaxRetries: cfg.MaxRetries, Logger: logger}),
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		cfg:       cfg,
		now:       time.Now,
		registry:  make(map[string]struct{}),
		lastDocs:  make(map[string]export.ReportDocument),
	}
}

func (s *ReportService) reportConfig(req dto.GenerateReportRequest) models.ReportConfig {
	cfg := models.ReportConfig{
		DepartmentName:  strings.TrimSpace(req.DepartmentName),
		ReportDate:      strings.TrimSpace(req.ReportDate),
		AcademicYear:    strings.TrimSpace(req.AcademicYear),
		Semester:        strings.TrimSpace(req.Semester),
		AttendanceStart: strings.TrimSpace(req.AttendanceStart),
		AttendanceEnd:   strings.TrimSpace(req.AttendanceEnd),
		Template:        req.Template,
		IncludeBacklog:  req.IncludeBacklog == nil || *req.IncludeBacklog,
		IncludeNotes:    req.IncludeNotes == nil || *req.IncludeNotes,
	}
	if cfg.DepartmentName == "" {
		cfg.DepartmentName = DefaultDepartment
	}
	if cfg.ReportDate == "" {
		cfg.ReportDate = s.now().Format(reportDateLayout)
	}
	if cfg.AcademicYear == "" {
		cfg.AcademicYear = DefaultAcademicYear
	}
	if cfg.Semester == "" {
		cfg.Semester = DefaultSemester
	}
	if cfg.Template == "" {
		cfg.Template = models.TemplateDetailed
	}
	return cfg
}

func (s *ReportService) settings(cfg models.ReportConfig) export.Settings {
	return export.Settings{
		Institution:     s.cfg.Institution,
		Department:      cfg.DepartmentName,
		ReportDate:      cfg.ReportDate,
		AcademicYear:    cfg.AcademicYear,
		Semester:        cfg.Semester,
		AttendanceStart: cfg.AttendanceStart,
		AttendanceEnd:   cfg.AttendanceEnd,
		Template:        cfg.Template,
		IncludeBacklog:  cfg.IncludeBacklog,
		IncludeNotes:    cfg.IncludeNotes,
	}
}

// targets resolves the roll numbers to render, sorted and deduplicated.
func (s *ReportService) targets(requested []string) ([]string, error) {
	var rolls []string
	var hasSubjects bool
	s.ledger.View(func(v repository.LedgerView) {
		hasSubjects = v.HasSubjects()
		if len(requested) == 0 {
			rolls = v.RollNumbers()
		}
	})
	if !hasSubjects {
		return nil, appErrors.Clone(appErrors.ErrNoSubjectsUploaded, "No subject data uploaded. Please upload subject files first.")
	}
	if len(requested) > 0 {
		seen := make(map[string]struct{}, len(requested))
		for _, raw := range requested {
			roll := models.NormalizeRollNo(raw)
			if roll == "" {
				continue
			}
			if _, dup := seen[roll]; dup {
				continue
			}
			seen[roll] = struct{}{}
			rolls = append(rolls, roll)
		}
		sort.Strings(rolls)
	}
	if len(rolls) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "No students to generate reports for.")
	}
	return rolls, nil
}

// Generate renders one report per target student plus the consolidated
// report. Per-student failures never abort the batch; the call fails only
// when no report could be produced.
func (s *ReportService) Generate(ctx context.Context, req dto.GenerateReportRequest) (*dto.GenerateReportResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err)
	}
	rolls, err := s.targets(req.Students)
	if err != nil {
		return nil, err
	}

	cfg := s.reportConfig(req)
	settings := s.settings(cfg)
	job := &models.ReportJob{
		ID:        uuid.NewString(),
		Targets:   rolls,
		Config:    cfg,
		Results:   make(map[string]models.ReportResult, len(rolls)),
		StartedAt: s.now().UTC(),
	}
	logger := s.logger.With(zap.String("job_id", job.ID))
	logger.Info("report generation started", zap.Int("targets", len(rolls)), zap.String("template", cfg.Template), zap.Int("workers", s.pool.Workers()))

	outcomes := make([]*renderOutcome, len(rolls))
	tasks := make([]jobs.Task, len(rolls))
	for i, roll := range rolls {
		i, roll := i, roll
		tasks[i] = jobs.Task{ID: roll, Run: func(context.Context) error {
			out, err := s.renderStudent(roll, settings)
			if err != nil {
				return err
			}
			outcomes[i] = out
			return nil
		}}
	}
	results := s.pool.Run(ctx, tasks)

	docs := make([]export.ReportDocument, 0, len(rolls))
	var issues []appErrors.Issue
	for i, res := range results {
		roll := rolls[i]
		if res.Err != nil || outcomes[i] == nil {
			failure := reportFailure(roll, res.Err)
			job.Failures = append(job.Failures, failure)
			issues = append(issues, appErrors.Issue{Kind: failure.Code, Message: failure.Reason, RollNo: roll})
			s.metrics.ObserveReport("student", false, res.Duration)
			continue
		}
		out := outcomes[i]
		job.Results[roll] = models.ReportResult{Filename: out.filename, StudentName: out.name}
		docs = append(docs, out.doc)
		s.metrics.ObserveReport("student", true, res.Duration)
	}

	if len(docs) > 0 {
		if name, err := s.renderConsolidated(docs); err != nil {
			logger.Error("consolidated report failed", zap.Error(err))
		} else {
			job.ConsolidatedFilename = &name
		}
	}
	job.FinishedAt = s.now().UTC()
	s.publish(job, docs)

	logger.Info("report generation finished",
		zap.Int("generated", len(job.Results)),
		zap.Int("failed", len(job.Failures)),
		zap.Duration("elapsed", job.FinishedAt.Sub(job.StartedAt)))

	if len(job.Results) == 0 {
		return nil, appErrors.WithIssues(appErrors.ErrGenerationFailed,
			fmt.Sprintf("No reports could be generated for %d students", len(rolls)), issues...)
	}

	resp := &dto.GenerateReportResponse{
		Success:              true,
		Message:              fmt.Sprintf("Generated reports for %d students", len(job.Results)),
		JobID:                job.ID,
		Reports:              job.Results,
		ConsolidatedFilename: job.ConsolidatedFilename,
		TotalGenerated:       len(job.Results),
		Failed:               job.Failures,
	}
	if len(issues) > 0 {
		resp.PartialError = &dto.PartialError{
			Code:    appErrors.ErrPartialGeneration.Code,
			Message: fmt.Sprintf("%d of %d reports could not be generated", len(issues), len(rolls)),
			Issues:  issues,
		}
	}
	return resp, nil
}

// renderStudent snapshots the student at render time, so a record removed
// mid-batch fails only its own task.
func (s *ReportService) renderStudent(roll string, settings export.Settings) (*renderOutcome, error) {
	var rec models.StudentRecord
	var ok bool
	s.ledger.View(func(v repository.LedgerView) { rec, ok = v.Student(roll) })
	if !ok {
		return nil, jobs.Permanent(studentNotFound(roll))
	}
	if len(rec.Subjects) == 0 {
		return nil, jobs.Permanent(appErrors.Clone(appErrors.ErrNoSubjectsUploaded, fmt.Sprintf("Student %s has no subject data", roll)))
	}

	doc := export.BuildReportDocument(settings, exportStudent(rec))
	data, err := s.renderer.RenderStudent(doc)
	if err != nil {
		return nil, appErrors.Wrap(err, errRenderFailed.Code, errRenderFailed.Status, fmt.Sprintf("failed to render report for %s", roll))
	}
	name := rec.DisplayName()
	filename := StudentReportFilename(roll, name)
	if err := s.store.Save(filename, data); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, fmt.Sprintf("failed to store report for %s", roll))
	}
	return &renderOutcome{doc: doc, filename: filename, name: name}, nil
}

func (s *ReportService) renderConsolidated(docs []export.ReportDocument) (string, error) {
	start := time.Now()
	data, err := s.renderer.RenderConsolidated(docs)
	if err == nil {
		name := fmt.Sprintf("Consolidated_Progress_Report_%s.pdf", s.now().Format(stampLayout))
		if err = s.store.Save(name, data); err == nil {
			s.metrics.ObserveReport("consolidated", true, time.Since(start))
			return name, nil
		}
	}
	s.metrics.ObserveReport("consolidated", false, time.Since(start))
	return "", err
}

func (s *ReportService) publish(job *models.ReportJob, docs []export.ReportDocument) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, res := range job.Results {
		s.registry[res.Filename] = struct{}{}
	}
	if job.ConsolidatedFilename != nil {
		s.registry[*job.ConsolidatedFilename] = struct{}{}
	}
	s.lastJob = job
	s.lastDocs = make(map[string]export.ReportDocument, len(docs))
	for _, doc := range docs {
		s.lastDocs[doc.RollNo] = doc
	}
}

func reportFailure(roll string, err error) models.ReportFailure {
	if err == nil {
		return models.ReportFailure{RollNo: roll, Code: appErrors.ErrInternal.Code, Reason: "report was not produced"}
	}
	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		return models.ReportFailure{RollNo: roll, Code: appErr.Code, Reason: appErr.Error()}
	}
	var panicErr *jobs.PanicError
	if errors.As(err, &panicErr) {
		return models.ReportFailure{RollNo: roll, Code: errRenderFailed.Code, Reason: panicErr.Error()}
	}
	return models.ReportFailure{RollNo: roll, Code: appErrors.ErrInternal.Code, Reason: err.Error()}
}

func exportStudent(rec models.StudentRecord) export.Student {
	student := export.Student{
		RollNo:     rec.RollNo,
		Name:       rec.DisplayName(),
		FatherName: rec.FatherName,
		Backlog:    rec.Backlog,
		Subjects:   make([]export.SubjectScore, 0, len(rec.Subjects)),
	}
	for _, sub := range rec.Subjects {
		student.Subjects = append(student.Subjects, export.SubjectScore{
			Name:      sub.SubjectName,
			IsLab:     sub.IsLab,
			DT:        sub.DTMarks,
			ST:        sub.STMarks,
			AT:        sub.ATMarks,
			AbsentDT:  sub.IsAbsent(models.ColumnDTMarks),
			AbsentST:  sub.IsAbsent(models.ColumnSTMarks),
			AbsentAT:  sub.IsAbsent(models.ColumnATMarks),
			Conducted: sub.AttendanceConducted,
			Present:   sub.AttendancePresent,
		})
	}
	return student
}

// StudentReportFilename builds "{roll}_{Name_With_Underscores}_Report.pdf".
// A roll that had to be rewritten gets a short digest of the original so
// "A/1" and "A_1" never share a file.
func StudentReportFilename(roll, name string) string {
	name = strings.Trim(unsafeFilename.ReplaceAllString(strings.TrimSpace(name), "_"), "_.")
	safe := strings.Trim(unsafeFilename.ReplaceAllString(roll, "_"), "_.")
	if safe != roll {
		safe = fmt.Sprintf("%s-%s", safe, uuid.NewSHA1(uuid.NameSpaceOID, []byte(roll)).String()[:8])
	}
	return fmt.Sprintf("%s_%s_Report.pdf", safe, name)
}

// Open returns a registered artifact.
func (s *ReportService) Open(ctx context.Context, filename string) (*Artifact, error) {
	s.mu.RLock()
	_, ok := s.registry[filename]
	s.mu.RUnlock()
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "Report not found. Please generate reports first.")
	}
	data, err := s.store.Read(filename)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, "Report not found. Please generate reports first.")
	}
	return &Artifact{Filename: filename, ContentType: pdfContentType, Data: data}, nil
}

// Archive packs every registered artifact into one ZIP. Artifacts gone from
// storage are skipped; NOT_FOUND when none are left.
func (s *ReportService) Archive(ctx context.Context) (*Artifact, error) {
	names := s.filenames()
	if len(names) == 0 {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "No reports generated. Please generate reports first.")
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	packed := 0
	for _, name := range names {
		data, err := s.store.Read(name)
		if err != nil {
			s.logger.Warn("artifact missing from archive", zap.String("filename", name), zap.Error(err))
			continue
		}
		packed++
		f, err := zw.Create(name)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to build archive")
		}
		if _, err := f.Write(data); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to build archive")
		}
	}
	if packed == 0 {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "Report files are missing. Please generate reports again.")
	}
	if err := zw.Close(); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to build archive")
	}
	return &Artifact{
		Filename:    fmt.Sprintf("All_Reports_%s.zip", s.now().Format(stampLayout)),
		ContentType: zipContentType,
		Data:        buf.Bytes(),
	}, nil
}

func (s *ReportService) filenames() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.registry))
	for name := range s.registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// List returns every artifact generated since the last clear.
func (s *ReportService) List(ctx context.Context) dto.ReportListResponse {
	names := s.filenames()
	return dto.ReportListResponse{Reports: names, Count: len(names)}
}

// LastJob returns the most recent generate outcome, if any.
func (s *ReportService) LastJob() (*models.ReportJob, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.lastJob == nil {
		return nil, false
	}
	job := *s.lastJob
	return &job, true
}

const previewWrapper = `<style>
.report-preview { font-family: 'Times New Roman', serif; max-width: 800px; margin: 0 auto; padding: 20px; }
.report-preview table { border-collapse: collapse; width: 100%%; margin: 10px 0; }
.report-preview th, .report-preview td { border: 1px solid #ddd; padding: 8px; text-align: center; }
.report-preview th { background-color: #f2f2f2; font-weight: bold; }
</style>
<div class="report-preview">
%s
</div>`

// PreviewHTML renders the latest generated report of a student as HTML.
func (s *ReportService) PreviewHTML(ctx context.Context, roll string) (*dto.ReportPreviewResponse, error) {
	var hasSubjects bool
	s.ledger.View(func(v repository.LedgerView) { hasSubjects = v.HasSubjects() })
	if !hasSubjects {
		return nil, appErrors.Clone(appErrors.ErrNoSubjectsUploaded, "No subject data uploaded")
	}

	roll = models.NormalizeRollNo(roll)
	s.mu.RLock()
	doc, ok := s.lastDocs[roll]
	var filename string
	if ok && s.lastJob != nil {
		filename = s.lastJob.Results[roll].Filename
	}
	s.mu.RUnlock()
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("No report generated for student %s", roll))
	}

	fragment, err := s.html.Render(doc)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "Error generating preview")
	}
	return &dto.ReportPreviewResponse{
		Success:  true,
		HTML:     fmt.Sprintf(previewWrapper, fragment),
		Filename: filename,
		Warnings: []string{},
	}, nil
}

// Clear deletes every generated artifact.
func (s *ReportService) Clear(ctx context.Context) dto.MessageResponse {
	s.mu.Lock()
	names := make([]string, 0, len(s.registry))
	for name := range s.registry {
		names = append(names, name)
	}
	s.registry = make(map[string]struct{})
	s.lastJob = nil
	s.lastDocs = make(map[string]export.ReportDocument)
	s.mu.Unlock()

	for _, name := range names {
		if err := s.store.Delete(name); err != nil {
			s.logger.Warn("artifact delete failed", zap.String("filename", name), zap.Error(err))
		}
	}
	s.logger.Info("generated reports cleared", zap.Int("artifacts", len(names)))
	return dto.MessageResponse{Success: true, Message: "All generated reports cleared"}
}
