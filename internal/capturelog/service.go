package capturelog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/JustJay7/pje-capture/internal/database"
	"github.com/JustJay7/pje-capture/pkg/logger"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

var ErrNotFound = errors.New("capture log not found")

// Service manages the CaptureLog row of each run
type Service struct {
	db  *gorm.DB
	log *logger.Logger
	now func() time.Time
}

func NewService(db *gorm.DB, log *logger.Logger) *Service {
	return &Service{db: db, log: log, now: time.Now}
}

// StartRequest identifies what a run captures and for whom
type StartRequest struct {
	Type          string
	AttorneyID    uint
	CredentialIDs []uint
	CourtID       uint
}

// Create stores a pending CaptureLog with a fresh run id
func (s *Service) Create(ctx context.Context, req StartRequest) (*database.CaptureLog, error) {
	ids := make([]string, len(req.CredentialIDs))
	for i, id := range req.CredentialIDs {
		ids[i] = strconv.FormatUint(uint64(id), 10)
	}

	row := &database.CaptureLog{
		RunID:         uuid.NewString(),
		Type:          req.Type,
		AttorneyID:    req.AttorneyID,
		CredentialIDs: strings.Join(ids, ","),
		CourtID:       req.CourtID,
		Status:        database.CaptureStatusPending,
	}
	if err := s.db.WithContext(ctx).Create(row).Error; err != nil {
		return nil, fmt.Errorf("create capture log: %w", err)
	}
	return row, nil
}

// Begin moves a pending log to in_progress
func (s *Service) Begin(ctx context.Context, id uint) error {
	now := s.now()
	return s.update(ctx, id, map[string]any{
		"status":     database.CaptureStatusInProgress,
		"started_at": &now,
	})
}

// Start creates a log and marks it in progress
func (s *Service) Start(ctx context.Context, req StartRequest) (*database.CaptureLog, error) {
	row, err := s.Create(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := s.Begin(ctx, row.ID); err != nil {
		return nil, err
	}
	return s.Get(ctx, row.ID)
}

// SetAttorney records the attorney once the session has identified it
func (s *Service) SetAttorney(ctx context.Context, id, attorneyID uint) error {
	return s.update(ctx, id, map[string]any{"attorney_id": attorneyID})
}

func (s *Service) Complete(ctx context.Context, id uint, result any) error {
	body, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode capture result: %w", err)
	}
	now := s.now()
	s.log.Debug("Marking capture log completed", "id", id)
	return s.update(ctx, id, map[string]any{
		"status":      database.CaptureStatusCompleted,
		"finished_at": &now,
		"result":      string(body),
	})
}

func (s *Service) Fail(ctx context.Context, id uint, cause error) error {
	now := s.now()
	text := ""
	if cause != nil {
		text = cause.Error()
	}
	s.log.Debug("Marking capture log failed", "id", id, "error", text)
	return s.update(ctx, id, map[string]any{
		"status":      database.CaptureStatusFailed,
		"finished_at": &now,
		"error_text":  text,
	})
}

func (s *Service) update(ctx context.Context, id uint, values map[string]any) error {
	res := s.db.WithContext(ctx).Model(&database.CaptureLog{}).Where("id = ?", id).Updates(values)
	if res.Error != nil {
		return fmt.Errorf("update capture log %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("capture log %d: %w", id, ErrNotFound)
	}
	return nil
}

func (s *Service) Get(ctx context.Context, id uint) (*database.CaptureLog, error) {
	var row database.CaptureLog
	if err := s.db.WithContext(ctx).First(&row, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("capture log %d: %w", id, ErrNotFound)
		}
		return nil, err
	}
	return &row, nil
}

// ListFilter narrows List; zero values match everything
type ListFilter struct {
	Type   string
	Status string
	Page   int
	Limit  int
}

// List returns one page of logs, newest first, plus the total matching count
func (s *Service) List(ctx context.Context, f ListFilter) ([]database.CaptureLog, int64, error) {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 {
		f.Limit = 20
	}

	filter := func(tx *gorm.DB) *gorm.DB {
		if f.Type != "" {
			tx = tx.Where("type = ?", f.Type)
		}
		if f.Status != "" {
			tx = tx.Where("status = ?", f.Status)
		}
		return tx
	}

	var total int64
	if err := s.db.WithContext(ctx).Model(&database.CaptureLog{}).Scopes(filter).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []database.CaptureLog
	err := s.db.WithContext(ctx).Scopes(filter).
		Order("created_at DESC").Order("id DESC").
		Offset((f.Page - 1) * f.Limit).Limit(f.Limit).
		Find(&rows).Error
	if err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}
