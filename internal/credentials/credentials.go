// Package credentials loads attorney logins and court settings for capture runs.
package credentials

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/JustJay7/pje-capture/internal/database"
	"github.com/JustJay7/pje-capture/internal/driver"
	"gorm.io/gorm"
)

var ErrNotFound = errors.New("not found")

type Lookup interface {
	GetCredential(ctx context.Context, id uint) (*driver.Credential, error)
	GetCourtConfig(ctx context.Context, id uint) (*driver.CourtConfig, error)
	ListCourtConfigs(ctx context.Context) ([]driver.CourtConfig, error)
}

// Repository reads the credentials and court_configs tables
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// GetCredential returns an active credential; inactive rows are reported as not found
func (r *Repository) GetCredential(ctx context.Context, id uint) (*driver.Credential, error) {
	var row database.Credential
	err := r.db.WithContext(ctx).Where("id = ? AND active = ?", id, true).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("credential %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load credential %d: %w", id, err)
	}
	return &driver.Credential{
		ID:         row.ID,
		AttorneyID: row.AttorneyID,
		Login:      row.Login,
		Secret:     row.Secret,
	}, nil
}

func (r *Repository) GetCourtConfig(ctx context.Context, id uint) (*driver.CourtConfig, error) {
	var row database.CourtConfig
	err := r.db.WithContext(ctx).Where("id = ? AND active = ?", id, true).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("court config %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load court config %d: %w", id, err)
	}
	court := toCourtConfig(row)
	return &court, nil
}

func (r *Repository) ListCourtConfigs(ctx context.Context) ([]driver.CourtConfig, error) {
	var rows []database.CourtConfig
	if err := r.db.WithContext(ctx).Where("active = ?", true).Order("code, instance").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list court configs: %w", err)
	}
	out := make([]driver.CourtConfig, 0, len(rows))
	for _, row := range rows {
		out = append(out, toCourtConfig(row))
	}
	return out, nil
}

func toCourtConfig(row database.CourtConfig) driver.CourtConfig {
	// zero leaves the timeout to the driver
	timeout := time.Duration(row.TimeoutSeconds) * time.Second
	return driver.CourtConfig{
		ID:        row.ID,
		System:    row.System,
		CourtType: row.CourtType,
		Code:      row.Code,
		Instance:  row.Instance,
		BaseURL:   row.BaseURL,
		LoginURL:  row.LoginURL,
		APIURL:    row.APIURL,
		Timeout:   timeout,
	}
}
