// Package config loads scan-workbench settings from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/joho/godotenv"

	"github.com/ironsheep/scan-workbench/internal/logging"
)

// Config holds backend and workbench settings.
type Config struct {
	// LogLevel is one of debug, info, warn, error.
	LogLevel string

	// Tesseract configuration
	OCRLanguage    string
	TessdataPrefix string

	// Longest side in pixels of generated thumbnails and previews.
	ThumbnailSize int
	PreviewSize   int

	// ExportDir receives saved results files.
	ExportDir string

	// BackendCommand is the backend executable the workbench spawns.
	BackendCommand string
}

// Load reads configuration from environment variables. Callers that support
// .env files load them before calling Load.
func Load() (*Config, error) {
	cfg := &Config{
		LogLevel:       getEnvOrDefault("SCAN_LOG_LEVEL", "info"),
		OCRLanguage:    getEnvOrDefault("SCAN_OCR_LANGUAGE", "eng"),
		TessdataPrefix: os.Getenv("SCAN_TESSDATA_PREFIX"),
		ExportDir:      getEnvOrDefault("SCAN_EXPORT_DIR", "."),
		BackendCommand: getEnvOrDefault("SCAN_BACKEND_COMMAND", "scan-backend"),
	}

	var err error
	if cfg.ThumbnailSize, err = getEnvAsIntOrDefault("SCAN_THUMBNAIL_SIZE", 200); err != nil {
		return nil, err
	}
	if cfg.PreviewSize, err = getEnvAsIntOrDefault("SCAN_PREVIEW_SIZE", 1200); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// Validate checks if configuration is valid
func (c *Config) Validate() error {
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("SCAN_LOG_LEVEL: %w", err)
	}
	if c.ThumbnailSize < 1 {
		return fmt.Errorf("SCAN_THUMBNAIL_SIZE must be positive, got %d", c.ThumbnailSize)
	}
	if c.PreviewSize < 1 {
		return fmt.Errorf("SCAN_PREVIEW_SIZE must be positive, got %d", c.PreviewSize)
	}
	if c.OCRLanguage == "" {
		return fmt.Errorf("SCAN_OCR_LANGUAGE is required")
	}
	return nil
}

// Level returns the parsed log level.
func (c *Config) Level() logging.Level {
	level, _ := logging.ParseLevel(c.LogLevel)
	return level
}

// LoadDotenv seeds the environment from .env files without overriding
// variables that are already set. With no arguments it reads ./.env. Missing
// files are not an error; unreadable or malformed ones are.
func LoadDotenv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load %s: %w", f, err)
		}
	}
	return nil
}

// getEnvOrDefault gets environment variable or returns default
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsIntOrDefault gets environment variable as int or returns default.
// A set but unparsable value is an error.
func getEnvAsIntOrDefault(key string, defaultValue int) (int, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue, nil
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", key, valueStr)
	}
	return value, nil
}
