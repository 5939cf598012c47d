package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/JustJay7/pje-capture/internal/api"
	"github.com/JustJay7/pje-capture/internal/capture"
	"github.com/JustJay7/pje-capture/internal/config"
	"github.com/JustJay7/pje-capture/internal/driver"
	"github.com/JustJay7/pje-capture/pkg/logger"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type Server struct {
	cfg      *config.Config
	logger   *logger.Logger
	router   *gin.Engine
	handlers *api.Handlers
	// cancel stops the capture runs started through the API
	cancel context.CancelFunc
}

func New(cfg *config.Config, db *gorm.DB, captures *capture.Service, registry *driver.Registry, logger *logger.Logger) *Server {
	if cfg.LogLevel == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(loggingMiddleware(logger))
	router.Use(corsMiddleware())

	ctx, cancel := context.WithCancel(context.Background())
	handlers := api.NewHandlers(ctx, db, captures, registry, logger)
	api.SetupRoutes(router, handlers)

	return &Server{
		cfg:      cfg,
		logger:   logger,
		router:   router,
		handlers: handlers,
		cancel:   cancel,
	}
}

// Handler exposes the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until SIGINT or SIGTERM, then stops accepting requests and
// cancels the capture runs still in flight.
func (s *Server) Run() error {
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", s.cfg.Host, s.cfg.Port),
		Handler:      s.router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errs := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs <- err
		}
	}()

	s.logger.Info("Server started", "address", srv.Addr)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errs:
		s.cancel()
		return fmt.Errorf("listen on %s: %w", srv.Addr, err)
	case sig := <-quit:
		s.logger.Info("Shutting down server...", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	shutdownErr := srv.Shutdown(ctx)

	// each cancelled run closes its session and marks its capture log failed
	s.cancel()
	s.handlers.Wait()

	if shutdownErr != nil {
		s.logger.Error("Server forced to shutdown", "error", shutdownErr)
		return shutdownErr
	}
	s.logger.Info("Server exited gracefully")
	return nil
}

// loggingMiddleware logs one line per request; 5xx responses are logged as errors
func loggingMiddleware(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		if raw := c.Request.URL.RawQuery; raw != "" {
			path += "?" + raw
		}

		c.Next()

		kv := []interface{}{
			"client_ip", c.ClientIP(),
			"method", c.Request.Method,
			"path", path,
			"status", c.Writer.Status(),
			"latency", time.Since(start).String(),
		}
		if len(c.Errors) > 0 {
			kv = append(kv, "errors", c.Errors.String())
		}

		switch status := c.Writer.Status(); {
		case status >= http.StatusInternalServerError:
			log.Error("HTTP Request", kv...)
		case status >= http.StatusBadRequest:
			log.Warn("HTTP Request", kv...)
		default:
			log.Info("HTTP Request", kv...)
		}
	}
}

// corsMiddleware lets browser dashboards on other origins read the API
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, Accept, Origin")
		h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
