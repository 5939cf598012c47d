package credentials

import (
	"context"
	"testing"
	"time"

	"github.com/JustJay7/pje-capture/internal/database"
	"github.com/JustJay7/pje-capture/internal/driver"
	"github.com/stretchr/testify/require"
)

func TestRepository(t *testing.T) {
	ctx := context.Background()
	db, err := database.OpenMemory()
	require.NoError(t, err)
	repo := NewRepository(db)

	cred := database.Credential{AttorneyID: 3, Login: "12345678901", Secret: "s3cret", Active: true}
	require.NoError(t, db.Create(&cred).Error)
	inactive := database.Credential{AttorneyID: 3, Login: "x", Active: true}
	require.NoError(t, db.Create(&inactive).Error)
	require.NoError(t, db.Model(&inactive).Update("active", false).Error)

	court := database.CourtConfig{Code: "TRT3", Instance: driver.FirstInstance, System: "pje", CourtType: "trt", BaseURL: "https://pje.trt3.jus.br", TimeoutSeconds: 30, Active: true}
	require.NoError(t, db.Create(&court).Error)
	second := database.CourtConfig{Code: "TRT3", Instance: driver.SecondInstance, System: "pje", CourtType: "trt", Active: true}
	require.NoError(t, db.Create(&second).Error)

	got, err := repo.GetCredential(ctx, cred.ID)
	require.NoError(t, err)
	require.Equal(t, &driver.Credential{ID: cred.ID, AttorneyID: 3, Login: "12345678901", Secret: "s3cret"}, got)

	_, err = repo.GetCredential(ctx, inactive.ID)
	require.ErrorIs(t, err, ErrNotFound)
	_, err = repo.GetCredential(ctx, 999)
	require.ErrorIs(t, err, ErrNotFound)

	cfg, err := repo.GetCourtConfig(ctx, court.ID)
	require.NoError(t, err)
	require.Equal(t, 30*time.Second, cfg.Timeout)
	require.Equal(t, "pje", cfg.System)

	_, err = repo.GetCourtConfig(ctx, 999)
	require.ErrorIs(t, err, ErrNotFound)

	all, err := repo.ListCourtConfigs(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	require.Equal(t, driver.FirstInstance, all[0].Instance)
	require.Zero(t, all[1].Timeout)
}
