// Package rawlog keeps the literal upstream payloads of each capture run for audit.
package rawlog

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/JustJay7/pje-capture/internal/capturelog"
	"github.com/JustJay7/pje-capture/internal/database"
	"gorm.io/gorm"
)

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Entry is one captured unit: a case's complementary payloads, or a failure
type Entry struct {
	RunID          string             `json:"run_id"`
	CaptureType    string             `json:"capture_type"`
	Court          string             `json:"court"`
	Instance       string             `json:"instance"`
	CaseExternalID int64              `json:"case_external_id,omitempty"`
	Status         string             `json:"status"`
	Payload        json.RawMessage    `json:"payload,omitempty"`
	Entries        []capturelog.Entry `json:"entries,omitempty"`
	Error          string             `json:"error,omitempty"`
	CreatedAt      time.Time          `json:"created_at"`
}

type Store interface {
	Append(ctx context.Context, e Entry) error
	ListByRun(ctx context.Context, runID string) ([]Entry, error)
}

// DBStore keeps raw logs in the relational raw_logs table
type DBStore struct {
	db *gorm.DB
}

func NewDBStore(db *gorm.DB) *DBStore {
	return &DBStore{db: db}
}

func (s *DBStore) Append(ctx context.Context, e Entry) error {
	entries, err := json.Marshal(e.Entries)
	if err != nil {
		return fmt.Errorf("encode raw log entries: %w", err)
	}
	row := database.RawLog{
		RunID:          e.RunID,
		CaptureType:    e.CaptureType,
		Court:          e.Court,
		Instance:       e.Instance,
		CaseExternalID: e.CaseExternalID,
		Status:         e.Status,
		Payload:        string(e.Payload),
		Entries:        string(entries),
		Error:          e.Error,
	}
	if !e.CreatedAt.IsZero() {
		row.CreatedAt = e.CreatedAt
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("save raw log: %w", err)
	}
	return nil
}

func (s *DBStore) ListByRun(ctx context.Context, runID string) ([]Entry, error) {
	var rows []database.RawLog
	if err := s.db.WithContext(ctx).Where("run_id = ?", runID).Order("id ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list raw logs: %w", err)
	}

	out := make([]Entry, 0, len(rows))
	for _, r := range rows {
		e := Entry{
			RunID:          r.RunID,
			CaptureType:    r.CaptureType,
			Court:          r.Court,
			Instance:       r.Instance,
			CaseExternalID: r.CaseExternalID,
			Status:         r.Status,
			Error:          r.Error,
			CreatedAt:      r.CreatedAt,
		}
		if r.Payload != "" {
			e.Payload = json.RawMessage(r.Payload)
		}
		if r.Entries != "" && r.Entries != "null" {
			if err := json.Unmarshal([]byte(r.Entries), &e.Entries); err != nil {
				return nil, fmt.Errorf("decode raw log %d entries: %w", r.ID, err)
			}
		}
		out = append(out, e)
	}
	return out, nil
}
