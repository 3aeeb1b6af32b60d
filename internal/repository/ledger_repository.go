package repository

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/noah-isme/progress-report-api/internal/models"
	appErrors "github.com/noah-isme/progress-report-api/pkg/errors"
)

// ledgerState is immutable once committed; transactions work on a copy.
type ledgerState struct {
	subjectOrder []string
	subjects     map[string]models.SubjectMeta
	students     map[string]models.StudentRecord
	info         *models.StudentInfoMeta
}

func newLedgerState() *ledgerState {
	return &ledgerState{
		subjects: make(map[string]models.SubjectMeta),
		students: make(map[string]models.StudentRecord),
	}
}

func (s *ledgerState) clone() *ledgerState {
	out := &ledgerState{
		subjectOrder: append([]string(nil), s.subjectOrder...),
		subjects:     make(map[string]models.SubjectMeta, len(s.subjects)),
		students:     make(map[string]models.StudentRecord, len(s.students)),
	}
	for name, meta := range s.subjects {
		out.subjects[name] = meta.Clone()
	}
	for roll, rec := range s.students {
		out.students[roll] = rec.Clone()
	}
	if s.info != nil {
		info := s.info.Clone()
		out.info = &info
	}
	return out
}

// LedgerRepository owns every student record and subject dataset of the
// current upload session. One RWMutex guards it: writers hold the write lock
// for a whole batch, readers share the read lock.
type LedgerRepository struct {
	mu       sync.RWMutex
	state    *ledgerState
	revision uint64
	now      func() time.Time
}

// NewLedgerRepository returns an empty ledger.
func NewLedgerRepository() *LedgerRepository {
	return &LedgerRepository{state: newLedgerState(), now: time.Now}
}

// Update runs fn against a private copy of the ledger and commits it only
// when fn succeeds and every ledger invariant holds. It returns the new
// revision.
func (r *LedgerRepository) Update(fn func(tx *LedgerTx) error) (uint64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	tx := &LedgerTx{state: r.state.clone(), touched: make(map[string]struct{})}
	if err := fn(tx); err != nil {
		return r.revision, err
	}
	tx.reorder()
	if err := tx.state.validate(); err != nil {
		return r.revision, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "ledger invariant violated")
	}

	r.state = tx.state
	r.revision++
	return r.revision, nil
}

// View runs fn under the read lock with a consistent view of the ledger.
func (r *LedgerRepository) View(fn func(v LedgerView)) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn(LedgerView{state: r.state, revision: r.revision})
}

// Revision returns the number of committed mutations so far.
func (r *LedgerRepository) Revision() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.revision
}

// Clear drops every subject, student and backlog record.
func (r *LedgerRepository) Clear() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state = newLedgerState()
	r.revision++
	return r.revision
}

// Snapshot captures the ledger in serializable form.
func (r *LedgerRepository) Snapshot() models.LedgerSnapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snap := models.LedgerSnapshot{
		Revision:     r.revision,
		SubjectOrder: append([]string(nil), r.state.subjectOrder...),
		Subjects:     make([]models.SubjectMeta, 0, len(r.state.subjects)),
		Students:     make([]models.StudentRecord, 0, len(r.state.students)),
		TakenAt:      r.now().UTC(),
	}
	for _, name := range r.state.subjectOrder {
		snap.Subjects = append(snap.Subjects, r.state.subjects[name].Clone())
	}
	for _, roll := range sortedKeys(r.state.students) {
		snap.Students = append(snap.Students, r.state.students[roll].Clone())
	}
	if r.state.info != nil {
		info := r.state.info.Clone()
		snap.StudentInfo = &info
	}
	return snap
}

// Restore replaces the ledger with a snapshot after validating it.
func (r *LedgerRepository) Restore(snap models.LedgerSnapshot) error {
	state := newLedgerState()
	state.subjectOrder = append([]string(nil), snap.SubjectOrder...)
	for _, meta := range snap.Subjects {
		state.subjects[meta.Name] = meta.Clone()
	}
	for _, rec := range snap.Students {
		state.students[rec.RollNo] = rec.Clone()
	}
	if snap.StudentInfo != nil {
		info := snap.StudentInfo.Clone()
		state.info = &info
	}
	if err := state.validate(); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "snapshot is inconsistent")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.state = state
	if snap.Revision > r.revision {
		r.revision = snap.Revision
	}
	r.revision++
	return nil
}

// validate checks that subject datasets and student records agree: every
// referenced roll has a record and every record lists exactly the subjects
// that reference it, once each, in global order.
func (s *ledgerState) validate() error {
	if len(s.subjectOrder) != len(s.subjects) {
		return fmt.Errorf("subject order lists %d subjects, ledger holds %d", len(s.subjectOrder), len(s.subjects))
	}
	position := make(map[string]int, len(s.subjectOrder))
	for i, name := range s.subjectOrder {
		if _, ok := s.subjects[name]; !ok {
			return fmt.Errorf("subject %q ordered but missing", name)
		}
		if _, dup := position[name]; dup {
			return fmt.Errorf("subject %q ordered twice", name)
		}
		position[name] = i
	}

	expected := make(map[string]int, len(s.students))
	for name, meta := range s.subjects {
		for _, roll := range meta.RollOrder {
			rec, ok := s.students[roll]
			if !ok {
				return fmt.Errorf("subject %q references unknown roll %q", name, roll)
			}
			if rec.Subject(name) < 0 {
				return fmt.Errorf("roll %q lacks entry for subject %q", roll, name)
			}
			expected[roll]++
		}
	}

	for roll, rec := range s.students {
		if len(rec.Subjects) != expected[roll] {
			return fmt.Errorf("roll %q has %d subject entries, %d datasets reference it", roll, len(rec.Subjects), expected[roll])
		}
		last := -1
		for _, sub := range rec.Subjects {
			pos, ok := position[sub.SubjectName]
			if !ok {
				return fmt.Errorf("roll %q has orphaned subject %q", roll, sub.SubjectName)
			}
			if pos <= last {
				return fmt.Errorf("roll %q subjects out of order or duplicated at %q", roll, sub.SubjectName)
			}
			last = pos
		}
	}
	return nil
}

// LedgerTx is a pending batch of ledger mutations.
type LedgerTx struct {
	state   *ledgerState
	touched map[string]struct{}
}

// Student returns the record as seen by the transaction. Changes are kept
// only after PutStudent.
func (tx *LedgerTx) Student(roll string) (models.StudentRecord, bool) {
	rec, ok := tx.state.students[roll]
	if !ok {
		return models.StudentRecord{}, false
	}
	return rec.Clone(), true
}

// PutStudent stores rec, creating the record when absent.
func (tx *LedgerTx) PutStudent(rec models.StudentRecord) {
	if rec.Subjects == nil {
		rec.Subjects = []models.SubjectMarks{}
	}
	tx.state.students[rec.RollNo] = rec
	tx.touched[rec.RollNo] = struct{}{}
}

// EnsureStudent creates a placeholder record with no subjects when the roll
// is unknown. It reports whether a record was created.
func (tx *LedgerTx) EnsureStudent(roll string) bool {
	if _, ok := tx.state.students[roll]; ok {
		return false
	}
	tx.PutStudent(models.StudentRecord{RollNo: roll, Subjects: []models.SubjectMarks{}})
	return true
}

// RemoveStudent deletes the record and its references from every subject.
func (tx *LedgerTx) RemoveStudent(roll string) bool {
	if _, ok := tx.state.students[roll]; !ok {
		return false
	}
	delete(tx.state.students, roll)
	delete(tx.touched, roll)
	for name, meta := range tx.state.subjects {
		meta.RollOrder = removeString(meta.RollOrder, roll)
		delete(meta.Extras, roll)
		tx.state.subjects[name] = meta
	}
	if tx.state.info != nil {
		tx.state.info.RollOrder = removeString(tx.state.info.RollOrder, roll)
		delete(tx.state.info.Extras, roll)
	}
	return true
}

// Subject returns the stored subject metadata.
func (tx *LedgerTx) Subject(name string) (models.SubjectMeta, bool) {
	meta, ok := tx.state.subjects[name]
	return meta, ok
}

// ReplaceSubject installs meta, dropping every entry of a prior dataset with
// the same name first. New subjects join the end of the global order. It
// reports whether a prior dataset was replaced.
func (tx *LedgerTx) ReplaceSubject(meta models.SubjectMeta) bool {
	_, replaced := tx.state.subjects[meta.Name]
	if replaced {
		for roll, rec := range tx.state.students {
			if idx := rec.Subject(meta.Name); idx >= 0 {
				rec.Subjects = append(rec.Subjects[:idx], rec.Subjects[idx+1:]...)
				tx.state.students[roll] = rec
				tx.touched[roll] = struct{}{}
			}
		}
	} else {
		tx.state.subjectOrder = append(tx.state.subjectOrder, meta.Name)
	}
	meta.RollOrder = nil
	tx.state.subjects[meta.Name] = meta
	return replaced
}

// SetMarks upserts the student's entry for marks.SubjectName, creating the
// student when new. The subject must already be installed. It reports
// whether the student was created.
func (tx *LedgerTx) SetMarks(roll string, marks models.SubjectMarks) (bool, error) {
	meta, ok := tx.state.subjects[marks.SubjectName]
	if !ok {
		return false, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("subject %s not loaded", marks.SubjectName))
	}

	created := tx.EnsureStudent(roll)
	rec := tx.state.students[roll]
	if idx := rec.Subject(marks.SubjectName); idx >= 0 {
		rec.Subjects[idx] = marks
	} else {
		rec.Subjects = append(rec.Subjects, marks)
		meta.RollOrder = append(meta.RollOrder, roll)
		tx.state.subjects[marks.SubjectName] = meta
	}
	tx.state.students[roll] = rec
	tx.touched[roll] = struct{}{}
	return created, nil
}

// SetSubjectExtras stores unrecognized cell values for the preview table.
func (tx *LedgerTx) SetSubjectExtras(subject, roll string, extra map[string]string) {
	meta, ok := tx.state.subjects[subject]
	if !ok || len(extra) == 0 {
		return
	}
	if meta.Extras == nil {
		meta.Extras = make(map[string]map[string]string)
	}
	meta.Extras[roll] = extra
	tx.state.subjects[subject] = meta
}

// SetSubjectWarnings records the normalization issues of a subject dataset.
func (tx *LedgerTx) SetSubjectWarnings(subject string, warnings []appErrors.Issue) {
	meta, ok := tx.state.subjects[subject]
	if !ok {
		return
	}
	meta.Warnings = warnings
	tx.state.subjects[subject] = meta
}

// StudentInfo returns the stored student-info metadata.
func (tx *LedgerTx) StudentInfo() (*models.StudentInfoMeta, bool) {
	return tx.state.info, tx.state.info != nil
}

// SetStudentInfo replaces the student-info metadata.
func (tx *LedgerTx) SetStudentInfo(meta models.StudentInfoMeta) {
	tx.state.info = &meta
}

// SubjectOrder returns the global first-seen subject order.
func (tx *LedgerTx) SubjectOrder() []string {
	return append([]string(nil), tx.state.subjectOrder...)
}

// reorder sorts the subjects of touched records by global subject order.
func (tx *LedgerTx) reorder() {
	position := make(map[string]int, len(tx.state.subjectOrder))
	for i, name := range tx.state.subjectOrder {
		position[name] = i
	}
	for roll := range tx.touched {
		rec, ok := tx.state.students[roll]
		if !ok {
			continue
		}
		sort.SliceStable(rec.Subjects, func(i, j int) bool {
			return position[rec.Subjects[i].SubjectName] < position[rec.Subjects[j].SubjectName]
		})
		tx.state.students[roll] = rec
	}
}

// LedgerView is a read-only view handed out under the read lock. Every
// accessor returns copies.
type LedgerView struct {
	state    *ledgerState
	revision uint64
}

// Revision returns the revision the view was taken at.
func (v LedgerView) Revision() uint64 { return v.revision }

// HasSubjects reports whether at least one subject is loaded.
func (v LedgerView) HasSubjects() bool { return len(v.state.subjectOrder) > 0 }

// SubjectOrder returns subject names in global first-seen order.
func (v LedgerView) SubjectOrder() []string {
	return append([]string(nil), v.state.subjectOrder...)
}

// Subject returns a copy of the subject metadata.
func (v LedgerView) Subject(name string) (models.SubjectMeta, bool) {
	meta, ok := v.state.subjects[name]
	if !ok {
		return models.SubjectMeta{}, false
	}
	return meta.Clone(), true
}

// Student returns a copy of the record.
func (v LedgerView) Student(roll string) (models.StudentRecord, bool) {
	rec, ok := v.state.students[roll]
	if !ok {
		return models.StudentRecord{}, false
	}
	return rec.Clone(), true
}

// RollNumbers returns every known roll number sorted lexicographically.
func (v LedgerView) RollNumbers() []string {
	return sortedKeys(v.state.students)
}

// StudentCount returns the number of records.
func (v LedgerView) StudentCount() int { return len(v.state.students) }

// StudentInfo returns a copy of the student-info metadata.
func (v LedgerView) StudentInfo() (models.StudentInfoMeta, bool) {
	if v.state.info == nil {
		return models.StudentInfoMeta{}, false
	}
	return v.state.info.Clone(), true
}

func sortedKeys(m map[string]models.StudentRecord) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func removeString(list []string, target string) []string {
	out := list[:0]
	for _, s := range list {
		if s != target {
			out = append(out, s)
		}
	}
	return out
}
