package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/ironsheep/scan-workbench/internal/config"
	"github.com/ironsheep/scan-workbench/internal/gateway"
	"github.com/ironsheep/scan-workbench/internal/logging"
	"github.com/ironsheep/scan-workbench/internal/ocr"
	"github.com/ironsheep/scan-workbench/internal/server"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "--version", "-v", "version":
			fmt.Printf("scan-backend %s\n", Version)
			fmt.Printf("  Build time: %s\n", BuildTime)
			fmt.Printf("  Git commit: %s\n", GitCommit)
			fmt.Printf("  Tesseract:  %s\n", ocr.NewTesseract("", "").Version())
			return
		case "--help", "-h", "help":
			fmt.Println("scan-backend - image and OCR backend for scan-workbench")
			fmt.Println()
			fmt.Println("Usage: scan-backend [options]")
			fmt.Println()
			fmt.Println("Options:")
			fmt.Println("  --version, -v    Print version information")
			fmt.Println("  --help, -h       Print this help message")
			fmt.Println()
			fmt.Println("Environment variables (also read from .env):")
			fmt.Println("  SCAN_LOG_LEVEL=info          debug, info, warn or error")
			fmt.Println("  SCAN_OCR_LANGUAGE=eng        Tesseract language code")
			fmt.Println("  SCAN_TESSDATA_PREFIX=        Tesseract language data directory")
			fmt.Println("  SCAN_THUMBNAIL_SIZE=200      Longest side of load_image previews")
			fmt.Println("  SCAN_PREVIEW_SIZE=1200       Longest side of preprocess_image previews")
			fmt.Println("  SCAN_EXPORT_DIR=.            Directory save_results writes to")
			fmt.Println()
			fmt.Println("The backend speaks JSON-RPC 2.0 over stdin/stdout, one message per line.")
			return
		}
	}

	// stdout carries the protocol; everything else goes to stderr.
	log.SetOutput(os.Stderr)

	if err := config.LoadDotenv(); err != nil {
		log.Printf("Warning: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := logging.NewLogger("scan-backend", cfg.Level())
	logger.Info("starting", "version", Version, "commit", GitCommit, "language", cfg.OCRLanguage)

	local := gateway.NewLocal(
		ocr.NewTesseract(cfg.OCRLanguage, cfg.TessdataPrefix),
		gateway.Options{
			ThumbnailSize: cfg.ThumbnailSize,
			PreviewSize:   cfg.PreviewSize,
			ExportDir:     cfg.ExportDir,
		},
		logger.With("local"),
	)
	defer local.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := server.New(local, Version, logger)
	if err := srv.Run(ctx); err != nil && ctx.Err() == nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}
