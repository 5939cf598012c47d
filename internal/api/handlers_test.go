package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/JustJay7/pje-capture/internal/capture"
	"github.com/JustJay7/pje-capture/internal/config"
	"github.com/JustJay7/pje-capture/internal/database"
	"github.com/JustJay7/pje-capture/internal/driver"
	"github.com/JustJay7/pje-capture/internal/driver/drivertest"
	"github.com/JustJay7/pje-capture/pkg/logger"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

type testAPI struct {
	router   *gin.Engine
	handlers *Handlers
	portal   *drivertest.Portal
	credID   uint
	courtID  uint
}

func setupTestAPI(t *testing.T) *testAPI {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := database.OpenMemory()
	require.NoError(t, err)

	court := database.CourtConfig{Code: "TRT3", Instance: driver.FirstInstance, System: "pje", CourtType: "trt", Active: true}
	require.NoError(t, db.Create(&court).Error)
	cred := database.Credential{CourtID: court.ID, Login: "12345678901", Secret: "secret", Active: true}
	require.NoError(t, db.Create(&cred).Error)

	portal := drivertest.NewPortal()
	registry := driver.NewRegistry()
	require.NoError(t, registry.Register("pje", portal.Constructor()))

	captures := capture.NewService(capture.Deps{
		DB:       db,
		Registry: registry,
		Policy:   config.DefaultCapturePolicy(),
		Sleep:    func(context.Context, time.Duration) error { return nil },
	})

	router := gin.New()
	h := NewHandlers(context.Background(), db, captures, registry, logger.NewNop())
	SetupRoutes(router, h)
	return &testAPI{router: router, handlers: h, portal: portal, credID: cred.ID, courtID: court.ID}
}

func (a *testAPI) do(t *testing.T, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)

	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return w, out
}

func TestStartCaptureRunsInBackground(t *testing.T) {
	a := setupTestAPI(t)
	a.portal.Hearings[database.HearingDesignated] = []driver.Hearing{{ID: 1, CaseID: 10, CaseNumber: "0000010-11.2024.5.03.0001", Status: database.HearingDesignated}}

	body := fmt.Sprintf(`{"credential_id": %d, "court_id": %d, "params": {"from": "2024-03-01", "to": "2024-03-31"}}`, a.credID, a.courtID)
	w, out := a.do(t, http.MethodPost, "/api/captures/audiencias", body)
	require.Equal(t, http.StatusAccepted, w.Code)
	require.Equal(t, true, out["success"])

	data := out["data"].(map[string]any)
	require.Equal(t, capture.TypeHearings, data["type"])
	require.Equal(t, database.CaptureStatusPending, data["status"])
	id := uint(data["id"].(float64))

	a.handlers.Wait()

	w, out = a.do(t, http.MethodGet, fmt.Sprintf("/api/captures/%d", id), "")
	require.Equal(t, http.StatusOK, w.Code)
	row := out["data"].(map[string]any)
	require.Equal(t, database.CaptureStatusCompleted, row["status"])
	require.Equal(t, 1, a.portal.Opened)
	require.Equal(t, 1, a.portal.Closed)
}

func TestStartCaptureValidation(t *testing.T) {
	a := setupTestAPI(t)

	w, out := a.do(t, http.MethodPost, "/api/captures/everything", `{}`)
	require.Equal(t, http.StatusNotFound, w.Code)
	require.Equal(t, false, out["success"])

	w, _ = a.do(t, http.MethodPost, "/api/captures/audiencias", `{"court_id": 1}`)
	require.Equal(t, http.StatusBadRequest, w.Code)

	body := fmt.Sprintf(`{"credential_id": %d, "court_id": %d, "params": {"from": "first of march"}}`, a.credID, a.courtID)
	w, out = a.do(t, http.MethodPost, "/api/captures/audiencias", body)
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, "invalid from date", out["error"])
	require.Zero(t, a.portal.Opened)
}

func TestListCaptures(t *testing.T) {
	a := setupTestAPI(t)
	body := fmt.Sprintf(`{"credential_id": %d, "court_id": %d}`, a.credID, a.courtID)
	for _, kind := range []string{"pendentes", "pericias", "pendentes"} {
		w, _ := a.do(t, http.MethodPost, "/api/captures/"+kind, body)
		require.Equal(t, http.StatusAccepted, w.Code)
	}
	a.handlers.Wait()

	w, out := a.do(t, http.MethodGet, "/api/captures?type=pendentes&limit=1", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, out["data"], 1)
	pagination := out["pagination"].(map[string]any)
	require.EqualValues(t, 2, pagination["total"])
	require.EqualValues(t, 1, pagination["limit"])
}

func TestGetCaptureNotFound(t *testing.T) {
	a := setupTestAPI(t)

	w, _ := a.do(t, http.MethodGet, "/api/captures/999", "")
	require.Equal(t, http.StatusNotFound, w.Code)

	w, _ = a.do(t, http.MethodGet, "/api/captures/abc", "")
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHealthCheck(t *testing.T) {
	a := setupTestAPI(t)

	w, out := a.do(t, http.MethodGet, "/api/health", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "healthy", out["status"])
	require.Equal(t, []any{"pje"}, out["systems"])
}
