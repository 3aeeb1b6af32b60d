package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/progress-report-api/internal/models"
	appErrors "github.com/noah-isme/progress-report-api/pkg/errors"
)

const snapshotSchema = `CREATE TABLE IF NOT EXISTS ledger_snapshots (
	key TEXT PRIMARY KEY,
	revision BIGINT NOT NULL,
	payload JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
)`

// QueryObserver receives query timings.
type QueryObserver interface {
	ObserveDBQuery(label string, duration time.Duration)
}

// SnapshotRepository persists ledger snapshots to Postgres.
type SnapshotRepository struct {
	db      *sqlx.DB
	metrics QueryObserver
}

// NewSnapshotRepository constructs the repository; metrics may be nil.
func NewSnapshotRepository(db *sqlx.DB, metrics QueryObserver) *SnapshotRepository {
	return &SnapshotRepository{db: db, metrics: metrics}
}

// EnsureSchema creates the snapshot table when missing.
func (r *SnapshotRepository) EnsureSchema(ctx context.Context) error {
	defer r.observe("snapshot_schema", time.Now())
	if _, err := r.db.ExecContext(ctx, snapshotSchema); err != nil {
		return fmt.Errorf("ensure snapshot schema: %w", err)
	}
	return nil
}

// Save upserts the snapshot under key. An older revision never overwrites a
// newer one.
func (r *SnapshotRepository) Save(ctx context.Context, key string, snap models.LedgerSnapshot) error {
	defer r.observe("snapshot_save", time.Now())
	const query = `INSERT INTO ledger_snapshots (key, revision, payload, updated_at)
VALUES (:key, :revision, :payload, :updated_at)
ON CONFLICT (key) DO UPDATE SET revision = EXCLUDED.revision, payload = EXCLUDED.payload, updated_at = EXCLUDED.updated_at
WHERE ledger_snapshots.revision <= EXCLUDED.revision`
	record := models.SnapshotRecord{
		Key:       key,
		Revision:  int64(snap.Revision),
		Payload:   snap,
		UpdatedAt: time.Now().UTC(),
	}
	if _, err := r.db.NamedExecContext(ctx, query, record); err != nil {
		return fmt.Errorf("save ledger snapshot: %w", err)
	}
	return nil
}

// Load returns the snapshot stored under key.
func (r *SnapshotRepository) Load(ctx context.Context, key string) (*models.LedgerSnapshot, error) {
	defer r.observe("snapshot_load", time.Now())
	const query = `SELECT key, revision, payload, updated_at FROM ledger_snapshots WHERE key = $1`
	var record models.SnapshotRecord
	if err := r.db.GetContext(ctx, &record, query, key); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("snapshot %s not found", key))
		}
		return nil, fmt.Errorf("load ledger snapshot: %w", err)
	}
	return &record.Payload, nil
}

// Delete removes the snapshot stored under key.
func (r *SnapshotRepository) Delete(ctx context.Context, key string) error {
	defer r.observe("snapshot_delete", time.Now())
	if _, err := r.db.ExecContext(ctx, `DELETE FROM ledger_snapshots WHERE key = $1`, key); err != nil {
		return fmt.Errorf("delete ledger snapshot: %w", err)
	}
	return nil
}

// Ping checks connectivity for readiness probes.
func (r *SnapshotRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SnapshotRepository) observe(label string, start time.Time) {
	if r.metrics != nil {
		r.metrics.ObserveDBQuery(label, time.Since(start))
	}
}
