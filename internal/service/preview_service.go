package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/progress-report-api/internal/dto"
	"github.com/noah-isme/progress-report-api/internal/models"
	"github.com/noah-isme/progress-report-api/internal/repository"
	appErrors "github.com/noah-isme/progress-report-api/pkg/errors"
	"github.com/noah-isme/progress-report-api/pkg/export"
)

// PreviewService serves the read and edit endpoints over the ledger.
type PreviewService struct {
	ledger    *repository.LedgerRepository
	sync      *LedgerSync
	cache     *CacheService
	csv       *export.CSVExporter
	validator *validator.Validate
	logger    *zap.Logger
}

// NewPreviewService constructs the service; cache may be nil.
func NewPreviewService(ledger *repository.LedgerRepository, sync *LedgerSync, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *PreviewService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PreviewService{
		ledger:    ledger,
		sync:      sync,
		cache:     cache,
		csv:       export.NewCSVExporter(),
		validator: validate,
		logger:    logger,
	}
}

// ListSubjects returns every uploaded subject as a preview table.
func (s *PreviewService) ListSubjects(ctx context.Context) (*dto.SubjectsPreviewResponse, error) {
	key := PreviewKey("subjects", s.ledger.Revision())
	var cached dto.SubjectsPreviewResponse
	if hit, _ := s.cache.Get(ctx, key, &cached); hit {
		return &cached, nil
	}

	var resp *dto.SubjectsPreviewResponse
	var revision uint64
	s.ledger.View(func(v repository.LedgerView) {
		revision = v.Revision()
		if !v.HasSubjects() {
			return
		}
		order := v.SubjectOrder()
		resp = &dto.SubjectsPreviewResponse{
			Subjects:      make(map[string]dto.SubjectPreview, len(order)),
			SubjectOrder:  order,
			TotalSubjects: len(order),
			TotalStudents: v.StudentCount(),
			AllStudents:   v.RollNumbers(),
		}
		for _, name := range order {
			meta, _ := v.Subject(name)
			resp.Subjects[name] = subjectPreview(v, meta)
		}
	})
	if resp == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "No subject data uploaded")
	}

	_ = s.cache.Set(ctx, PreviewKey("subjects", revision), resp, 0)
	return resp, nil
}

func subjectPreview(v repository.LedgerView, meta models.SubjectMeta) dto.SubjectPreview {
	preview := dto.SubjectPreview{
		Records:  make([]map[string]interface{}, 0, len(meta.RollOrder)),
		Columns:  meta.Columns,
		RowCount: len(meta.RollOrder),
		IsLab:    meta.IsLab,
		Filename: meta.Filename,
		Warnings: meta.Warnings,
	}
	for _, roll := range meta.RollOrder {
		rec, ok := v.Student(roll)
		if !ok {
			continue
		}
		idx := rec.Subject(meta.Name)
		if idx < 0 {
			continue
		}
		marks := rec.Subjects[idx]
		row := make(map[string]interface{}, len(meta.Columns))
		for col, value := range meta.Extras[roll] {
			row[col] = value
		}
		row[models.ColumnRollNo] = roll
		if rec.StudentName != "" {
			row[models.ColumnStudentName] = rec.StudentName
		}
		if rec.FatherName != "" {
			row[models.ColumnFatherName] = rec.FatherName
		}
		if !meta.IsLab {
			row[models.ColumnDTMarks] = markValue(marks, models.ColumnDTMarks, marks.DTMarks)
			row[models.ColumnSTMarks] = markValue(marks, models.ColumnSTMarks, marks.STMarks)
			row[models.ColumnATMarks] = markValue(marks, models.ColumnATMarks, marks.ATMarks)
			row[models.ColumnTotalMarks] = marks.TotalMarks
		}
		row[models.ColumnAttendanceConducted] = marks.AttendanceConducted
		row[models.ColumnAttendancePresent] = marks.AttendancePresent
		preview.Records = append(preview.Records, row)
	}
	return preview
}

func markValue(marks models.SubjectMarks, column string, value float64) interface{} {
	if marks.IsAbsent(column) {
		return "AB"
	}
	return value
}

// GetStudent returns one student record.
func (s *PreviewService) GetStudent(ctx context.Context, roll string) (*dto.StudentResponse, error) {
	roll = models.NormalizeRollNo(roll)
	var rec models.StudentRecord
	var ok bool
	s.ledger.View(func(v repository.LedgerView) { rec, ok = v.Student(roll) })
	if !ok {
		return nil, studentNotFound(roll)
	}
	resp := dto.NewStudentResponse(rec)
	return &resp, nil
}

// UpdateStudent applies a partial edit to one student. The edit is rejected
// as a whole when any subject fails validation.
func (s *PreviewService) UpdateStudent(ctx context.Context, roll string, req dto.UpdateStudentRequest) (*dto.UpdateStudentResponse, error) {
	roll = models.NormalizeRollNo(roll)
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err)
	}

	var updated models.StudentRecord
	var subjects []string
	_, err := s.ledger.Update(func(tx *repository.LedgerTx) error {
		rec, ok := tx.Student(roll)
		if !ok {
			return studentNotFound(roll)
		}
		if req.StudentName != nil {
			// The placeholder read back from GET is not a real name.
			if name := strings.TrimSpace(*req.StudentName); name != rec.DisplayName() {
				rec.StudentName = name
			}
		}
		if req.FatherName != nil {
			rec.FatherName = strings.TrimSpace(*req.FatherName)
		}

		subjects = subjects[:0]
		var issues []appErrors.Issue
		for _, patch := range req.Subjects {
			idx := rec.Subject(patch.SubjectName)
			if idx < 0 {
				issues = append(issues, appErrors.Issue{
					Kind:    IssueUnknownSubject,
					Message: fmt.Sprintf("student %s has no subject %s", roll, patch.SubjectName),
					Subject: patch.SubjectName,
					RollNo:  roll,
				})
				continue
			}
			if err := applyPatch(&rec.Subjects[idx], patch); err != nil {
				issues = append(issues, appErrors.Issue{
					Kind:    appErrors.ErrValidation.Code,
					Message: err.Error(),
					Subject: patch.SubjectName,
					RollNo:  roll,
				})
				continue
			}
			subjects = append(subjects, patch.SubjectName)
		}
		if len(issues) > 0 {
			return appErrors.WithIssues(appErrors.ErrValidation, issues[0].Message, issues...)
		}

		var invalid []appErrors.Issue
		for _, sub := range rec.Subjects {
			if !sub.AttendanceValid() {
				invalid = append(invalid, appErrors.Issue{
					Kind:    IssueInvalidAttendance,
					Message: fmt.Sprintf("attendance present %d exceeds conducted %d", sub.AttendancePresent, sub.AttendanceConducted),
					Subject: sub.SubjectName,
					Column:  models.ColumnAttendancePresent,
					RollNo:  roll,
				})
			}
		}
		if len(invalid) > 0 {
			names := make([]string, len(invalid))
			for i, issue := range invalid {
				names[i] = issue.Subject
			}
			msg := fmt.Sprintf("Attendance present cannot exceed attendance conducted for %s", strings.Join(names, ", "))
			return appErrors.WithIssues(appErrors.ErrInvalidAttendance, msg, invalid...)
		}

		tx.PutStudent(rec)
		updated = rec
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.sync.Committed(ctx)
	s.logger.Info("student updated", zap.String("roll_no", roll), zap.Strings("subjects", subjects))
	return &dto.UpdateStudentResponse{
		StudentResponse: dto.NewStudentResponse(updated),
		Success:         true,
		Message:         fmt.Sprintf("Student %s updated successfully", roll),
		UpdatedSubjects: append([]string{}, subjects...),
	}, nil
}

// applyPatch edits one subject entry in place and recomputes its total.
// A lab accepts zero marks, which is what the record reads back as.
func applyPatch(marks *models.SubjectMarks, patch dto.SubjectPatch) error {
	if marks.IsLab {
		for _, v := range []*float64{patch.DTMarks, patch.STMarks, patch.ATMarks, patch.TotalMarks} {
			if v != nil && *v != 0 {
				return fmt.Errorf("marks cannot be edited for lab subject %s", marks.SubjectName)
			}
		}
	} else {
		// An unchanged value keeps its AB flag.
		set := func(column string, dst *float64, src *float64) {
			if src == nil || *src == *dst {
				return
			}
			*dst = *src
			marks.ClearAbsent(column)
		}
		set(models.ColumnDTMarks, &marks.DTMarks, patch.DTMarks)
		set(models.ColumnSTMarks, &marks.STMarks, patch.STMarks)
		set(models.ColumnATMarks, &marks.ATMarks, patch.ATMarks)
	}
	if patch.AttendanceConducted != nil {
		marks.AttendanceConducted = *patch.AttendanceConducted
	}
	if patch.AttendancePresent != nil {
		marks.AttendancePresent = *patch.AttendancePresent
	}
	if marks.DTMarks < 0 || marks.STMarks < 0 || marks.ATMarks < 0 || marks.AttendanceConducted < 0 || marks.AttendancePresent < 0 {
		return fmt.Errorf("negative values are not allowed for %s", marks.SubjectName)
	}
	// Client supplied totals are ignored.
	marks.RecomputeTotal()
	return nil
}

// RemoveStudent deletes a student and every reference to it.
func (s *PreviewService) RemoveStudent(ctx context.Context, roll string) (*dto.MessageResponse, error) {
	roll = models.NormalizeRollNo(roll)
	_, err := s.ledger.Update(func(tx *repository.LedgerTx) error {
		if !tx.RemoveStudent(roll) {
			return studentNotFound(roll)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.sync.Committed(ctx)
	s.logger.Info("student removed", zap.String("roll_no", roll))
	return &dto.MessageResponse{Success: true, Message: fmt.Sprintf("Student %s removed", roll)}, nil
}

// GetBacklog returns the student-info table with each semester's backlog.
func (s *PreviewService) GetBacklog(ctx context.Context) (*dto.BacklogResponse, error) {
	key := PreviewKey("backlog", s.ledger.Revision())
	var cached dto.BacklogResponse
	if hit, _ := s.cache.Get(ctx, key, &cached); hit {
		return &cached, nil
	}

	var resp *dto.BacklogResponse
	var revision uint64
	s.ledger.View(func(v repository.LedgerView) {
		revision = v.Revision()
		info, ok := v.StudentInfo()
		if !ok {
			return
		}
		resp = &dto.BacklogResponse{
			Records:         make([]map[string]interface{}, 0, len(info.RollOrder)),
			Columns:         info.Columns,
			SemesterColumns: info.SemesterColumns,
			StudentCount:    len(info.RollOrder),
		}
		for _, roll := range info.RollOrder {
			rec, ok := v.Student(roll)
			if !ok {
				continue
			}
			resp.Records = append(resp.Records, backlogRecord(rec, info))
		}
	})
	if resp == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "No backlog data uploaded")
	}

	_ = s.cache.Set(ctx, PreviewKey("backlog", revision), resp, 0)
	return resp, nil
}

func backlogRecord(rec models.StudentRecord, info models.StudentInfoMeta) map[string]interface{} {
	row := make(map[string]interface{}, len(info.Columns))
	for col, value := range info.Extras[rec.RollNo] {
		row[col] = value
	}
	row[models.ColumnRollNo] = rec.RollNo
	row[models.ColumnStudentName] = rec.StudentName
	row[models.ColumnFatherName] = rec.FatherName
	for _, col := range info.SemesterColumns {
		sem := SemesterFromColumn(col)
		if codes := rec.Backlog[sem]; len(codes) > 0 {
			row[col] = strings.Join(codes, ", ")
		} else {
			row[col] = "-"
		}
	}
	return row
}

// UpdateBacklog edits one student's names and per-semester backlog.
func (s *PreviewService) UpdateBacklog(ctx context.Context, roll string, req dto.UpdateBacklogRequest) (*dto.MessageResponse, error) {
	roll = models.NormalizeRollNo(roll)
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err)
	}

	semesters := make(map[int][]string, len(req.Backlogs))
	var issues []appErrors.Issue
	for col, raw := range req.Backlogs {
		sem := SemesterFromColumn(col)
		if sem == 0 {
			issues = append(issues, appErrors.Issue{
				Kind:    appErrors.ErrValidation.Code,
				Message: fmt.Sprintf("%q is not a semester column", col),
				Column:  col,
				RollNo:  roll,
			})
			continue
		}
		semesters[sem] = ParseBacklog(raw)
	}
	if len(issues) > 0 {
		sort.Slice(issues, func(i, j int) bool { return issues[i].Column < issues[j].Column })
		return nil, appErrors.WithIssues(appErrors.ErrValidation, issues[0].Message, issues...)
	}

	_, err := s.ledger.Update(func(tx *repository.LedgerTx) error {
		info, ok := tx.StudentInfo()
		if !ok {
			return appErrors.Clone(appErrors.ErrNotFound, "No backlog data uploaded")
		}
		rec, ok := tx.Student(roll)
		if !ok {
			return studentNotFound(roll)
		}
		if req.StudentName != nil {
			rec.StudentName = strings.TrimSpace(*req.StudentName)
		}
		if req.FatherName != nil {
			rec.FatherName = strings.TrimSpace(*req.FatherName)
		}
		for sem, codes := range semesters {
			if len(codes) == 0 {
				delete(rec.Backlog, sem)
				continue
			}
			if rec.Backlog == nil {
				rec.Backlog = make(map[int][]string)
			}
			rec.Backlog[sem] = codes
		}
		tx.PutStudent(rec)

		meta := info.Clone()
		known := make(map[string]struct{}, len(meta.SemesterColumns))
		for _, col := range meta.SemesterColumns {
			known[col] = struct{}{}
		}
		added := false
		for sem := range semesters {
			if _, exists := known[models.SemesterColumn(sem)]; !exists {
				meta.SemesterColumns = append(meta.SemesterColumns, models.SemesterColumn(sem))
				added = true
			}
		}
		if added {
			sort.Slice(meta.SemesterColumns, func(i, j int) bool {
				return SemesterFromColumn(meta.SemesterColumns[i]) < SemesterFromColumn(meta.SemesterColumns[j])
			})
			meta.Columns = infoColumns(meta)
		}
		if !containsString(meta.RollOrder, roll) {
			meta.RollOrder = append(meta.RollOrder, roll)
		}
		tx.SetStudentInfo(meta)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.sync.Committed(ctx)
	s.logger.Info("backlog updated", zap.String("roll_no", roll))
	return &dto.MessageResponse{Success: true, Message: fmt.Sprintf("Backlog for %s updated successfully", roll)}, nil
}

// infoColumns rebuilds the column list after semester columns changed,
// keeping name columns first and extras last.
func infoColumns(meta models.StudentInfoMeta) []string {
	semesters := make(map[string]struct{}, len(meta.SemesterColumns))
	for _, col := range meta.SemesterColumns {
		semesters[col] = struct{}{}
	}
	var head, tail []string
	for _, col := range meta.Columns {
		if _, isSem := semesters[col]; isSem {
			continue
		}
		if SemesterFromColumn(col) > 0 {
			continue
		}
		switch col {
		case models.ColumnRollNo, models.ColumnStudentName, models.ColumnFatherName:
			head = append(head, col)
		default:
			tail = append(tail, col)
		}
	}
	out := append(head, meta.SemesterColumns...)
	return append(out, tail...)
}

// ExportCSV writes the consolidated marks and attendance table.
func (s *PreviewService) ExportCSV(ctx context.Context) ([]byte, error) {
	var data export.Dataset
	var empty bool
	s.ledger.View(func(v repository.LedgerView) {
		if !v.HasSubjects() {
			empty = true
			return
		}
		data = ledgerDataset(v)
	})
	if empty {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "No subject data uploaded")
	}
	out, err := s.csv.Render(data)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to export csv")
	}
	return out, nil
}

func ledgerDataset(v repository.LedgerView) export.Dataset {
	columns := []export.Column{
		{Key: models.ColumnRollNo, Label: "Roll No"},
		{Key: models.ColumnStudentName, Label: "Student Name"},
		{Key: models.ColumnFatherName, Label: "Father Name"},
	}
	order := v.SubjectOrder()
	labs := make(map[string]bool, len(order))
	for _, name := range order {
		meta, _ := v.Subject(name)
		labs[name] = meta.IsLab
		if !meta.IsLab {
			columns = append(columns,
				export.Column{Key: name + "|dt", Label: name + " DT"},
				export.Column{Key: name + "|st", Label: name + " ST"},
				export.Column{Key: name + "|at", Label: name + " AT"},
				export.Column{Key: name + "|total", Label: name + " Total"},
			)
		}
		columns = append(columns,
			export.Column{Key: name + "|conducted", Label: name + " Conducted"},
			export.Column{Key: name + "|present", Label: name + " Present"},
		)
	}

	rolls := v.RollNumbers()
	rows := make([]map[string]string, 0, len(rolls))
	for _, roll := range rolls {
		rec, _ := v.Student(roll)
		row := map[string]string{
			models.ColumnRollNo:      rec.RollNo,
			models.ColumnStudentName: rec.DisplayName(),
			models.ColumnFatherName:  rec.FatherName,
		}
		for _, sub := range rec.Subjects {
			if !labs[sub.SubjectName] {
				row[sub.SubjectName+"|dt"] = csvMark(sub, models.ColumnDTMarks, sub.DTMarks)
				row[sub.SubjectName+"|st"] = csvMark(sub, models.ColumnSTMarks, sub.STMarks)
				row[sub.SubjectName+"|at"] = csvMark(sub, models.ColumnATMarks, sub.ATMarks)
				row[sub.SubjectName+"|total"] = formatNumber(sub.TotalMarks)
			}
			row[sub.SubjectName+"|conducted"] = fmt.Sprintf("%d", sub.AttendanceConducted)
			row[sub.SubjectName+"|present"] = fmt.Sprintf("%d", sub.AttendancePresent)
		}
		rows = append(rows, row)
	}
	return export.Dataset{Columns: columns, Rows: rows}
}

func csvMark(marks models.SubjectMarks, column string, value float64) string {
	if marks.IsAbsent(column) {
		return "AB"
	}
	return formatNumber(value)
}

func studentNotFound(roll string) error {
	return appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("Student %s not found", roll))
}

// validationError turns validator failures into one issue per field.
func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}
	issues := make([]appErrors.Issue, 0, len(verrs))
	for _, fe := range verrs {
		issues = append(issues, appErrors.Issue{
			Kind:    appErrors.ErrValidation.Code,
			Message: fmt.Sprintf("%s failed %s validation", fe.Namespace(), fe.Tag()),
			Column:  fe.Field(),
		})
	}
	return appErrors.WithIssues(appErrors.ErrValidation, "invalid payload", issues...)
}

func containsString(list []string, target string) bool {
	for _, s := range list {
		if s == target {
			return true
		}
	}
	return false
}
