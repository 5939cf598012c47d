package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/JustJay7/pje-capture/internal/capture"
	"github.com/JustJay7/pje-capture/internal/capturelog"
	"github.com/JustJay7/pje-capture/internal/database"
	"github.com/JustJay7/pje-capture/internal/driver"
	"github.com/JustJay7/pje-capture/pkg/logger"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Handlers holds all HTTP handlers
type Handlers struct {
	db       *gorm.DB
	captures *capture.Service
	registry *driver.Registry
	logger   *logger.Logger

	// runs started by the API live under ctx, not under their request
	ctx  context.Context
	runs sync.WaitGroup
}

// NewHandlers creates a new handlers instance; background runs are cancelled with ctx
func NewHandlers(ctx context.Context, db *gorm.DB, captures *capture.Service, registry *driver.Registry, logger *logger.Logger) *Handlers {
	return &Handlers{
		db:       db,
		captures: captures,
		registry: registry,
		logger:   logger,
		ctx:      ctx,
	}
}

// Wait blocks until every background run has finished
func (h *Handlers) Wait() {
	h.runs.Wait()
}

type captureParams struct {
	From            string   `json:"from"`
	To              string   `json:"to"`
	HearingStatus   string   `json:"hearing_status"`
	DeadlineFilters []string `json:"deadline_filters"`
	SkipTimeline    bool     `json:"skip_timeline"`
	SkipParties     bool     `json:"skip_parties"`
}

type startCaptureRequest struct {
	CredentialID uint          `json:"credential_id" binding:"required"`
	CourtID      uint          `json:"court_id" binding:"required"`
	Params       captureParams `json:"params"`
}

func (p captureParams) toParams() (capture.Params, error) {
	from, err := driver.ParseTimestamp(p.From)
	if err != nil {
		return capture.Params{}, errors.New("invalid from date")
	}
	to, err := driver.ParseTimestamp(p.To)
	if err != nil {
		return capture.Params{}, errors.New("invalid to date")
	}
	return capture.Params{
		From:            from,
		To:              to,
		HearingStatus:   strings.ToUpper(p.HearingStatus),
		DeadlineFilters: p.DeadlineFilters,
		SkipTimeline:    p.SkipTimeline,
		SkipParties:     p.SkipParties,
	}, nil
}

// StartCapture creates the CaptureLog of a run and executes the run in the background
func (h *Handlers) StartCapture(c *gin.Context) {
	captureType := c.Param("type")
	if !capture.ValidType(captureType) {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error":   "Unknown capture type: " + captureType,
			"types":   capture.Types,
		})
		return
	}

	var body startCaptureRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   err.Error(),
		})
		return
	}
	params, err := body.Params.toParams()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   err.Error(),
		})
		return
	}

	req := capture.Request{CredentialID: body.CredentialID, CourtID: body.CourtID, Params: params}
	logRow, err := h.captures.Prepare(c.Request.Context(), captureType, req)
	if err != nil {
		h.logger.Error("Failed to create capture log", "type", captureType, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   "Failed to start capture",
		})
		return
	}
	req.LogID = logRow.ID

	h.runs.Add(1)
	go func() {
		defer h.runs.Done()
		if _, err := h.captures.Run(h.ctx, captureType, req); err != nil {
			h.logger.Warn("Background capture failed", "log_id", logRow.ID, "run_id", logRow.RunID, "error", err)
		}
	}()

	c.JSON(http.StatusAccepted, gin.H{
		"success": true,
		"data": gin.H{
			"id":     logRow.ID,
			"run_id": logRow.RunID,
			"type":   captureType,
			"status": logRow.Status,
		},
	})
}

// ListCaptures returns capture logs, newest first
func (h *Handlers) ListCaptures(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if limit > 100 {
		limit = 100
	}

	rows, total, err := h.captures.Logs().List(c.Request.Context(), capturelog.ListFilter{
		Type:   c.Query("type"),
		Status: c.Query("status"),
		Page:   page,
		Limit:  limit,
	})
	if err != nil {
		h.logger.Error("Failed to list capture logs", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   "Failed to list captures",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    rows,
		"pagination": gin.H{
			"page":  page,
			"limit": limit,
			"total": total,
		},
	})
}

// GetCapture returns one capture log
func (h *Handlers) GetCapture(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "Invalid capture ID",
		})
		return
	}

	row, err := h.captures.Logs().Get(c.Request.Context(), uint(id))
	if errors.Is(err, capturelog.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error":   "Capture not found",
		})
		return
	}
	if err != nil {
		h.logger.Error("Failed to load capture log", "id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   "Failed to load capture",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    row,
	})
}

// HealthCheck returns the health status
func (h *Handlers) HealthCheck(c *gin.Context) {
	var count int64
	dbHealthy := h.db.Model(&database.CaptureLog{}).Count(&count).Error == nil

	code, status := http.StatusOK, "healthy"
	if !dbHealthy {
		code, status = http.StatusServiceUnavailable, "unhealthy"
	}
	c.JSON(code, gin.H{
		"status":   status,
		"database": dbHealthy,
		"systems":  h.registry.Systems(),
		"time":     time.Now().Unix(),
	})
}
