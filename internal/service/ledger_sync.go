package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/noah-isme/progress-report-api/internal/models"
	"github.com/noah-isme/progress-report-api/internal/repository"
	appErrors "github.com/noah-isme/progress-report-api/pkg/errors"
)

// SnapshotStore persists ledger snapshots.
type SnapshotStore interface {
	Save(ctx context.Context, key string, snap models.LedgerSnapshot) error
	Load(ctx context.Context, key string) (*models.LedgerSnapshot, error)
	Delete(ctx context.Context, key string) error
}

// LedgerSync fans a committed ledger change out to the optional snapshot
// store, the preview cache and the ledger gauge. Failures there are logged
// and never undo the commit.
type LedgerSync struct {
	ledger  *repository.LedgerRepository
	store   SnapshotStore
	key     string
	cache   *CacheService
	metrics *MetricsService
	logger  *zap.Logger
}

// NewLedgerSync wires the collaborators; store and cache may be nil.
func NewLedgerSync(ledger *repository.LedgerRepository, store SnapshotStore, key string, cache *CacheService, metrics *MetricsService, logger *zap.Logger) *LedgerSync {
	if logger == nil {
		logger = zap.NewNop()
	}
	if key == "" {
		key = "default"
	}
	return &LedgerSync{ledger: ledger, store: store, key: key, cache: cache, metrics: metrics, logger: logger}
}

// Committed runs after every successful ledger mutation.
func (s *LedgerSync) Committed(ctx context.Context) {
	if s == nil {
		return
	}
	var students int
	s.ledger.View(func(v repository.LedgerView) { students = v.StudentCount() })
	s.metrics.SetLedgerStudents(students)

	if err := s.cache.InvalidatePreviews(ctx); err != nil {
		s.logger.Warn("preview cache invalidation failed", zap.Error(err))
	}
	if s.store == nil {
		return
	}
	snap := s.ledger.Snapshot()
	if err := s.store.Save(ctx, s.key, snap); err != nil {
		s.logger.Error("ledger snapshot save failed", zap.Uint64("revision", snap.Revision), zap.Error(err))
		return
	}
	s.logger.Debug("ledger snapshot saved", zap.Uint64("revision", snap.Revision))
}

// Cleared runs after the ledger was reset.
func (s *LedgerSync) Cleared(ctx context.Context) {
	if s == nil {
		return
	}
	s.metrics.SetLedgerStudents(0)
	if err := s.cache.InvalidatePreviews(ctx); err != nil {
		s.logger.Warn("preview cache invalidation failed", zap.Error(err))
	}
	if s.store == nil {
		return
	}
	if err := s.store.Delete(ctx, s.key); err != nil {
		s.logger.Error("ledger snapshot delete failed", zap.Error(err))
	}
}

// Restore loads the persisted snapshot into the ledger. A missing snapshot
// leaves the ledger empty.
func (s *LedgerSync) Restore(ctx context.Context) error {
	if s == nil || s.store == nil {
		return nil
	}
	snap, err := s.store.Load(ctx, s.key)
	if err != nil {
		if errors.Is(err, appErrors.ErrNotFound) {
			return nil
		}
		return err
	}
	if err := s.ledger.Restore(*snap); err != nil {
		return err
	}
	s.metrics.SetLedgerStudents(len(snap.Students))
	s.logger.Info("ledger restored from snapshot",
		zap.Uint64("revision", snap.Revision),
		zap.Int("subjects", len(snap.Subjects)),
		zap.Int("students", len(snap.Students)))
	return nil
}
