// Package api provides the HTTP API of segmentlab: uploading recordings,
// browsing and labeling segments, training runs, auto-labeling and exports.
package api

import (
	"fmt"
	"time"

	"github.com/tphakala/segmentlab/internal/conf"
	"github.com/tphakala/segmentlab/internal/logger"
)

// GetLogger returns the api package logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("api")
}

// Default constants for the HTTP server.
const (
	DefaultListen          = ":8080"
	DefaultReadTimeout     = 5 * time.Minute // large uploads
	DefaultWriteTimeout    = 5 * time.Minute // archive downloads
	DefaultIdleTimeout     = 120 * time.Second
	DefaultShutdownTimeout = 10 * time.Second
	DefaultUploadLimitMB   = 1024

	// DefaultPerPage is the segment page size; the labeling view uses LabelingPerPage.
	DefaultPerPage  = 10
	LabelingPerPage = 50
	MaxPerPage      = 500
)

// Config holds the HTTP server configuration.
type Config struct {
	Listen          string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// BodyLimit is the maximum request body size in echo notation, e.g. "1024M".
	BodyLimit string
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Listen:          DefaultListen,
		ReadTimeout:     DefaultReadTimeout,
		WriteTimeout:    DefaultWriteTimeout,
		IdleTimeout:     DefaultIdleTimeout,
		ShutdownTimeout: DefaultShutdownTimeout,
		BodyLimit:       fmt.Sprintf("%dM", DefaultUploadLimitMB),
	}
}

// ConfigFromSettings creates a Config from the application settings.
func ConfigFromSettings(settings *conf.Settings) *Config {
	cfg := DefaultConfig()
	if settings == nil {
		return cfg
	}
	if settings.WebServer.Listen != "" {
		cfg.Listen = settings.WebServer.Listen
	}
	if settings.WebServer.UploadLimitMB > 0 {
		cfg.BodyLimit = fmt.Sprintf("%dM", settings.WebServer.UploadLimitMB)
	}
	return cfg
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Listen == "" {
		return fmt.Errorf("listen address is required")
	}
	if c.ReadTimeout <= 0 {
		return fmt.Errorf("read timeout must be positive")
	}
	if c.WriteTimeout <= 0 {
		return fmt.Errorf("write timeout must be positive")
	}
	return nil
}
