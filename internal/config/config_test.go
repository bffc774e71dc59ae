package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ironsheep/scan-workbench/internal/logging"
)

var allKeys = []string{
	"SCAN_LOG_LEVEL",
	"SCAN_OCR_LANGUAGE",
	"SCAN_TESSDATA_PREFIX",
	"SCAN_THUMBNAIL_SIZE",
	"SCAN_PREVIEW_SIZE",
	"SCAN_EXPORT_DIR",
	"SCAN_BACKEND_COMMAND",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range allKeys {
		t.Setenv(key, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel: got %q, want info", cfg.LogLevel)
	}
	if cfg.OCRLanguage != "eng" {
		t.Errorf("OCRLanguage: got %q, want eng", cfg.OCRLanguage)
	}
	if cfg.TessdataPrefix != "" {
		t.Errorf("TessdataPrefix: got %q, want empty", cfg.TessdataPrefix)
	}
	if cfg.ThumbnailSize != 200 {
		t.Errorf("ThumbnailSize: got %d, want 200", cfg.ThumbnailSize)
	}
	if cfg.PreviewSize != 1200 {
		t.Errorf("PreviewSize: got %d, want 1200", cfg.PreviewSize)
	}
	if cfg.ExportDir != "." {
		t.Errorf("ExportDir: got %q, want .", cfg.ExportDir)
	}
	if cfg.BackendCommand != "scan-backend" {
		t.Errorf("BackendCommand: got %q, want scan-backend", cfg.BackendCommand)
	}
	if cfg.Level() != logging.LevelInfo {
		t.Errorf("Level: got %v, want INFO", cfg.Level())
	}
}

func TestLoad_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("SCAN_LOG_LEVEL", "debug")
	t.Setenv("SCAN_OCR_LANGUAGE", "deu")
	t.Setenv("SCAN_TESSDATA_PREFIX", "/usr/share/tessdata")
	t.Setenv("SCAN_THUMBNAIL_SIZE", "128")
	t.Setenv("SCAN_PREVIEW_SIZE", "800")
	t.Setenv("SCAN_EXPORT_DIR", "/tmp/out")
	t.Setenv("SCAN_BACKEND_COMMAND", "/opt/bin/scan-backend")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Level() != logging.LevelDebug {
		t.Errorf("Level: got %v, want DEBUG", cfg.Level())
	}
	if cfg.OCRLanguage != "deu" || cfg.TessdataPrefix != "/usr/share/tessdata" {
		t.Errorf("OCR settings: got %q / %q", cfg.OCRLanguage, cfg.TessdataPrefix)
	}
	if cfg.ThumbnailSize != 128 || cfg.PreviewSize != 800 {
		t.Errorf("sizes: got %d / %d", cfg.ThumbnailSize, cfg.PreviewSize)
	}
	if cfg.ExportDir != "/tmp/out" || cfg.BackendCommand != "/opt/bin/scan-backend" {
		t.Errorf("paths: got %q / %q", cfg.ExportDir, cfg.BackendCommand)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		key, value string
		wantInErr  string
	}{
		{"SCAN_THUMBNAIL_SIZE", "big", "SCAN_THUMBNAIL_SIZE"},
		{"SCAN_THUMBNAIL_SIZE", "0", "SCAN_THUMBNAIL_SIZE"},
		{"SCAN_PREVIEW_SIZE", "-5", "SCAN_PREVIEW_SIZE"},
		{"SCAN_LOG_LEVEL", "chatty", "SCAN_LOG_LEVEL"},
	}

	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.value)

			_, err := Load()
			if err == nil {
				t.Fatal("Load should fail")
			}
			if !strings.Contains(err.Error(), tt.wantInErr) {
				t.Errorf("error %q should mention %s", err, tt.wantInErr)
			}
		})
	}
}

func TestLoadDotenv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("SCAN_OCR_LANGUAGE=deu\nSCAN_EXPORT_DIR=/from/file\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("SCAN_OCR_LANGUAGE", "")
	os.Unsetenv("SCAN_OCR_LANGUAGE")
	t.Setenv("SCAN_EXPORT_DIR", "/from/env")

	if err := LoadDotenv(path); err != nil {
		t.Fatalf("LoadDotenv failed: %v", err)
	}
	if got := os.Getenv("SCAN_OCR_LANGUAGE"); got != "deu" {
		t.Errorf("SCAN_OCR_LANGUAGE: got %q, want deu", got)
	}
	if got := os.Getenv("SCAN_EXPORT_DIR"); got != "/from/env" {
		t.Errorf("set variables must win over the file, got %q", got)
	}
}

func TestLoadDotenv_MissingFile(t *testing.T) {
	if err := LoadDotenv(filepath.Join(t.TempDir(), "absent.env")); err != nil {
		t.Errorf("missing file: got %v, want nil", err)
	}
}

func TestLoadDotenv_Unreadable(t *testing.T) {
	dir := t.TempDir()
	err := LoadDotenv(dir)
	if err == nil {
		t.Fatal("reading a directory should fail")
	}
	if !strings.Contains(err.Error(), dir) {
		t.Errorf("error should name the file: %v", err)
	}
}
