package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/ironsheep/scan-workbench/internal/config"
	"github.com/ironsheep/scan-workbench/internal/export"
	"github.com/ironsheep/scan-workbench/internal/gateway"
	"github.com/ironsheep/scan-workbench/internal/logging"
	"github.com/ironsheep/scan-workbench/internal/model"
	"github.com/ironsheep/scan-workbench/internal/ocr"
	"github.com/ironsheep/scan-workbench/internal/session"
	"github.com/ironsheep/scan-workbench/internal/workbench"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// backend is a gateway that must be shut down after use.
type backend interface {
	gateway.Gateway
	Close() error
}

func main() {
	os.Exit(run())
}

func run() int {
	regionsFile := flag.String("regions", "", "YAML or JSON manifest of regions per image")
	format := flag.String("format", "csv", "Export format: txt or csv")
	local := flag.Bool("local", false, "Run the backend in process instead of spawning SCAN_BACKEND_COMMAND")
	stdout := flag.Bool("stdout", false, "Write results to stdout instead of saving a file")
	verbose := flag.Bool("verbose", false, "Enable debug logging")
	version := flag.Bool("version", false, "Print version information")
	flag.Usage = printUsage
	flag.Parse()

	if *version {
		fmt.Printf("scan-workbench %s\n", Version)
		fmt.Printf("  Build time: %s\n", BuildTime)
		fmt.Printf("  Git commit: %s\n", GitCommit)
		return 0
	}

	log.SetOutput(os.Stderr)
	if err := config.LoadDotenv(); err != nil {
		log.Printf("Warning: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Printf("Failed to load configuration: %v", err)
		return 2
	}
	level := cfg.Level()
	if *verbose {
		level = logging.LevelDebug
	}
	logger := logging.NewLogger("scan-workbench", level)

	exportFormat, err := model.ParseExportFormat(*format)
	if err != nil {
		logger.Error("bad -format", "error", err)
		return 2
	}

	var m *manifest
	if *regionsFile != "" {
		if m, err = loadManifest(*regionsFile); err != nil {
			logger.Error("bad -regions", "error", err)
			return 2
		}
	}

	paths := flag.Args()
	if m != nil {
		paths = append(paths, m.paths()...)
	}
	if len(paths) == 0 {
		printUsage()
		return 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	gw, err := openBackend(ctx, cfg, *local, logger)
	if err != nil {
		logger.Error("failed to start backend", "error", err)
		return 1
	}
	defer gw.Close()

	sess := session.New()
	unsubscribe := sess.Subscribe(func(e session.Event) {
		logger.Debug("session changed", "what", e.Type, "images", e.View.Total)
	})
	defer unsubscribe()

	wb := workbench.New(sess, gw, logger.With("workbench"))
	status := 0

	if _, err := wb.Ingest(ctx, paths); err != nil {
		logger.Warn("some images failed to load", "error", err)
		status = 1
	}

	for _, img := range sess.Images() {
		if m == nil {
			// Without a manifest each image is read as one region.
			err = sess.SetRegions(img.ID, []model.Region{{
				ID: model.NewID(), Width: float64(img.Width), Height: float64(img.Height),
			}})
		} else if entry, ok := m.lookup(img); ok {
			err = entry.apply(sess, img.ID)
		} else {
			logger.Warn("no regions for image", "image", img.Name)
			continue
		}
		if err != nil {
			logger.Error("failed to set regions", "image", img.Name, "error", err)
			status = 1
		}
	}

	if err := wb.ProcessAll(ctx); err != nil {
		logger.Warn("some regions failed", "error", err)
		status = 1
	}

	if *stdout {
		if err := export.Write(os.Stdout, sess.Cards(), exportFormat); err != nil {
			logger.Error("failed to write results", "error", err)
			return 1
		}
		return status
	}

	path, err := wb.Export(ctx, exportFormat)
	if err != nil {
		logger.Error("failed to save results", "error", err)
		return 1
	}
	fmt.Println(path)
	return status
}

// openBackend starts the in-process backend or spawns the configured
// backend command.
func openBackend(ctx context.Context, cfg *config.Config, local bool, logger *logging.Logger) (backend, error) {
	if local {
		return gateway.NewLocal(
			ocr.NewTesseract(cfg.OCRLanguage, cfg.TessdataPrefix),
			gateway.Options{
				ThumbnailSize: cfg.ThumbnailSize,
				PreviewSize:   cfg.PreviewSize,
				ExportDir:     cfg.ExportDir,
			},
			logger.With("local"),
		), nil
	}
	return gateway.Spawn(ctx, cfg.BackendCommand, nil, logger.With("client"))
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "scan-workbench - batch OCR of table regions in scanned images")
	fmt.Fprintln(os.Stderr)
	fmt.Fprintln(os.Stderr, "Usage: scan-workbench [options] [image ...]")
	fmt.Fprintln(os.Stderr)
	fmt.Fprintln(os.Stderr, "Images listed in the -regions manifest are loaded too. Without a")
	fmt.Fprintln(os.Stderr, "manifest every image is recognized as a single region.")
	fmt.Fprintln(os.Stderr)
	fmt.Fprintln(os.Stderr, "Options:")
	flag.PrintDefaults()
}
