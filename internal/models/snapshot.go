package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// LedgerSnapshot is the serializable form of the whole ledger.
type LedgerSnapshot struct {
	Revision     uint64           `json:"revision"`
	SubjectOrder []string         `json:"subject_order"`
	Subjects     []SubjectMeta    `json:"subjects"`
	StudentInfo  *StudentInfoMeta `json:"student_info,omitempty"`
	Students     []StudentRecord  `json:"students"`
	TakenAt      time.Time        `json:"taken_at"`
}

// Value marshals the snapshot to JSON for a JSONB column.
func (s LedgerSnapshot) Value() (driver.Value, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("marshal ledger snapshot: %w", err)
	}
	return data, nil
}

// Scan unmarshals a JSONB payload into the snapshot.
func (s *LedgerSnapshot) Scan(value interface{}) error {
	if value == nil {
		*s = LedgerSnapshot{}
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported type %T for LedgerSnapshot", value)
	}
	if len(data) == 0 {
		*s = LedgerSnapshot{}
		return nil
	}
	if err := json.Unmarshal(data, s); err != nil {
		return fmt.Errorf("unmarshal ledger snapshot: %w", err)
	}
	return nil
}

// SnapshotRecord is the persisted row wrapping a snapshot.
type SnapshotRecord struct {
	Key       string         `db:"key"`
	Revision  int64          `db:"revision"`
	Payload   LedgerSnapshot `db:"payload"`
	UpdatedAt time.Time      `db:"updated_at"`
}
