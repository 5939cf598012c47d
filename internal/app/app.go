// Package app builds the capture dependencies shared by the server and the CLI.
package app

import (
	"context"
	"fmt"

	"github.com/JustJay7/pje-capture/internal/capture"
	"github.com/JustJay7/pje-capture/internal/config"
	"github.com/JustJay7/pje-capture/internal/driver"
	"github.com/JustJay7/pje-capture/internal/driver/pje"
	"github.com/JustJay7/pje-capture/internal/storage/objectstore"
	"github.com/JustJay7/pje-capture/internal/storage/rawlog"
	"github.com/JustJay7/pje-capture/pkg/logger"
	"gorm.io/gorm"
)

// Registry registers every driver this build supports
func Registry(cfg *config.Config, log *logger.Logger) (*driver.Registry, error) {
	auth := &pje.BrowserAuthenticator{
		Headless:    cfg.HeadlessMode,
		UserAgent:   cfg.UserAgent,
		BrowserPath: cfg.BrowserPath,
		Logger:      log,
	}
	if cfg.TwoFAuthURL != "" {
		auth.OTP = pje.NewTwoFAuthClient(cfg.TwoFAuthURL, cfg.TwoFAuthToken, cfg.TwoFAuthAccountID)
	}

	reg := driver.NewRegistry()
	if err := pje.Register(reg, pje.Options{
		Authenticator:    auth,
		Logger:           log,
		RateLimitBackoff: cfg.RateLimitBackoff,
		Timeout:          cfg.ScraperTimeout,
	}); err != nil {
		return nil, err
	}
	return reg, nil
}

// Build returns the capture dependencies for cfg. The returned func closes the
// stores that hold connections.
func Build(ctx context.Context, cfg *config.Config, db *gorm.DB, log *logger.Logger) (capture.Deps, func(), error) {
	closers := []func(){}
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	reg, err := Registry(cfg, log)
	if err != nil {
		return capture.Deps{}, closeAll, err
	}

	deps := capture.Deps{
		DB:       db,
		Registry: reg,
		Logger:   log,
		Policy:   cfg.CapturePolicy(),
	}

	if cfg.S3Endpoint != "" {
		store, err := objectstore.NewMinioStore(objectstore.ConnectionInfo{
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			Region:    cfg.S3Region,
			Bucket:    cfg.S3Bucket,
			UseSSL:    cfg.S3UseSSL,
			PublicURL: cfg.S3PublicURL,
		})
		if err != nil {
			return capture.Deps{}, closeAll, err
		}
		if err := store.EnsureBucket(ctx); err != nil {
			return capture.Deps{}, closeAll, fmt.Errorf("ensure bucket %s: %w", cfg.S3Bucket, err)
		}
		deps.Uploader = store
		log.Info("Object store configured", "endpoint", cfg.S3Endpoint, "bucket", cfg.S3Bucket)
	} else if cfg.DownloadDocuments {
		log.Warn("DOWNLOAD_DOCUMENTS is set without S3_ENDPOINT, documents will not be downloaded")
	}

	if cfg.MongoURI != "" {
		store, err := rawlog.ConnectMongo(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return capture.Deps{}, closeAll, err
		}
		closers = append(closers, func() {
			if err := store.Close(context.Background()); err != nil {
				log.Warn("Failed to close raw log store", "error", err)
			}
		})
		deps.RawLogs = store
		log.Info("Raw logs stored in MongoDB", "database", cfg.MongoDatabase)
	}

	return deps, closeAll, nil
}
