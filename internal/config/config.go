package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// Server settings
	Host string
	Port string

	// Database settings
	DatabasePath string

	// Logging settings
	LogLevel  string
	LogFormat string

	// Browser settings used by portal logins
	ScraperTimeout time.Duration
	HeadlessMode   bool
	UserAgent      string
	BrowserPath    string

	// Capture policy
	RecaptureThreshold time.Duration
	RequestDelay       time.Duration
	PanelPageDelay     time.Duration
	MaxPages           int
	ProgressEvery      int
	RateLimitBackoff   time.Duration
	DownloadDocuments  bool

	// Two-factor relay
	TwoFAuthURL       string
	TwoFAuthToken     string
	TwoFAuthAccountID string

	// Object store
	S3Endpoint  string
	S3AccessKey string
	S3SecretKey string
	S3Region    string
	S3Bucket    string
	S3UseSSL    bool
	S3PublicURL string

	// Raw capture log store; an empty URI keeps raw logs in the relational database
	MongoURI      string
	MongoDatabase string
}

// CapturePolicy is the subset of settings the capture engine consumes
type CapturePolicy struct {
	RecaptureThreshold time.Duration
	RequestDelay       time.Duration
	PanelPageDelay     time.Duration
	MaxPages           int
	ProgressEvery      int
	RateLimitBackoff   time.Duration
	DownloadDocuments  bool
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("error loading .env file: %w", err)
		}
	}

	cfg := &Config{
		Host:              getEnv("HOST", "0.0.0.0"),
		Port:              getEnv("PORT", "8080"),
		DatabasePath:      getEnv("DATABASE_PATH", "./data/capture.db"),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		LogFormat:         getEnv("LOG_FORMAT", "json"),
		UserAgent:         getEnv("USER_AGENT", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"),
		BrowserPath:       getEnv("ROD_BROWSER_PATH", ""),
		TwoFAuthURL:       getEnv("TWOFAUTH_API_URL", ""),
		TwoFAuthToken:     getEnv("TWOFAUTH_API_TOKEN", ""),
		TwoFAuthAccountID: getEnv("TWOFAUTH_ACCOUNT_ID", ""),
		S3Endpoint:        getEnv("S3_ENDPOINT", ""),
		S3AccessKey:       getEnv("S3_ACCESS_KEY", ""),
		S3SecretKey:       getEnv("S3_SECRET_KEY", ""),
		S3Region:          getEnv("S3_REGION", "us-east-1"),
		S3Bucket:          getEnv("S3_BUCKET", "capture-documents"),
		S3PublicURL:       getEnv("S3_PUBLIC_URL", ""),
		MongoURI:          getEnv("MONGO_URI", ""),
		MongoDatabase:     getEnv("MONGO_DATABASE", "capture"),
	}

	var err error

	scraperTimeout, err := strconv.Atoi(getEnv("SCRAPER_TIMEOUT", "60"))
	if err != nil {
		return nil, fmt.Errorf("invalid SCRAPER_TIMEOUT: %w", err)
	}
	cfg.ScraperTimeout = time.Duration(scraperTimeout) * time.Second

	cfg.HeadlessMode = getEnv("HEADLESS_MODE", "true") == "true"
	cfg.S3UseSSL = getEnv("S3_USE_SSL", "true") == "true"
	cfg.DownloadDocuments = getEnv("DOWNLOAD_DOCUMENTS", "false") == "true"

	thresholdHours, err := strconv.Atoi(getEnv("RECAPTURE_THRESHOLD_HOURS", "24"))
	if err != nil {
		return nil, fmt.Errorf("invalid RECAPTURE_THRESHOLD_HOURS: %w", err)
	}
	cfg.RecaptureThreshold = time.Duration(thresholdHours) * time.Hour

	requestDelay, err := strconv.Atoi(getEnv("REQUEST_DELAY_MS", "300"))
	if err != nil {
		return nil, fmt.Errorf("invalid REQUEST_DELAY_MS: %w", err)
	}
	cfg.RequestDelay = time.Duration(requestDelay) * time.Millisecond

	panelDelay, err := strconv.Atoi(getEnv("PANEL_PAGE_DELAY_MS", "300"))
	if err != nil {
		return nil, fmt.Errorf("invalid PANEL_PAGE_DELAY_MS: %w", err)
	}
	cfg.PanelPageDelay = time.Duration(panelDelay) * time.Millisecond

	cfg.MaxPages, err = strconv.Atoi(getEnv("MAX_PAGES", "100"))
	if err != nil {
		return nil, fmt.Errorf("invalid MAX_PAGES: %w", err)
	}

	cfg.ProgressEvery, err = strconv.Atoi(getEnv("PROGRESS_EVERY", "10"))
	if err != nil {
		return nil, fmt.Errorf("invalid PROGRESS_EVERY: %w", err)
	}

	backoff, err := strconv.Atoi(getEnv("RATE_LIMIT_BACKOFF_SECONDS", "5"))
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_BACKOFF_SECONDS: %w", err)
	}
	cfg.RateLimitBackoff = time.Duration(backoff) * time.Second

	return cfg, nil
}

// CapturePolicy returns the capture engine settings
func (c *Config) CapturePolicy() CapturePolicy {
	return CapturePolicy{
		RecaptureThreshold: c.RecaptureThreshold,
		RequestDelay:       c.RequestDelay,
		PanelPageDelay:     c.PanelPageDelay,
		MaxPages:           c.MaxPages,
		ProgressEvery:      c.ProgressEvery,
		RateLimitBackoff:   c.RateLimitBackoff,
		DownloadDocuments:  c.DownloadDocuments,
	}
}

// DefaultCapturePolicy mirrors the defaults applied by Load
func DefaultCapturePolicy() CapturePolicy {
	return CapturePolicy{
		RecaptureThreshold: 24 * time.Hour,
		RequestDelay:       300 * time.Millisecond,
		PanelPageDelay:     300 * time.Millisecond,
		MaxPages:           100,
		ProgressEvery:      10,
		RateLimitBackoff:   5 * time.Second,
	}
}

// getEnv returns the value of an environment variable or a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
