package gateway

import (
	"context"
	"fmt"
	"image"
	"path/filepath"
	"sync"
	"time"

	"github.com/ironsheep/scan-workbench/internal/export"
	"github.com/ironsheep/scan-workbench/internal/imaging"
	"github.com/ironsheep/scan-workbench/internal/logging"
	"github.com/ironsheep/scan-workbench/internal/model"
	"github.com/ironsheep/scan-workbench/internal/ocr"
)

// Recognizer extracts text from an image. *ocr.Tesseract implements it.
type Recognizer interface {
	Recognize(ctx context.Context, img image.Image, opts ocr.Options) (*ocr.Result, error)
}

// Options configure a Local backend.
type Options struct {
	// ThumbnailSize is the longest side of LoadImage previews.
	ThumbnailSize int

	// PreviewSize is the longest side of PreprocessImage previews.
	PreviewSize int

	// ExportDir receives SaveResults files.
	ExportDir string

	// Now stamps export file names. Defaults to time.Now.
	Now func() time.Time
}

// DefaultOptions returns the stock preview sizes and the working directory
// as export target.
func DefaultOptions() Options {
	return Options{ThumbnailSize: 200, PreviewSize: 1200, ExportDir: "."}
}

// Local runs the backend in process.
//
// Full-resolution images are cached by path after their first use in
// LoadImageFull, ProcessRegion or PreprocessImage. LoadImage decodes
// without caching so a large batch of thumbnails does not pin every scan in
// memory.
type Local struct {
	recognizer Recognizer
	opts       Options
	cache      *imaging.ImageCache
	log        *logging.Logger

	mu    sync.RWMutex
	paths map[string]string // image id -> source path
}

// NewLocal creates an in-process backend. Zero option fields take their
// defaults.
func NewLocal(recognizer Recognizer, opts Options, log *logging.Logger) *Local {
	def := DefaultOptions()
	if opts.ThumbnailSize <= 0 {
		opts.ThumbnailSize = def.ThumbnailSize
	}
	if opts.PreviewSize <= 0 {
		opts.PreviewSize = def.PreviewSize
	}
	if opts.ExportDir == "" {
		opts.ExportDir = def.ExportDir
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if log == nil {
		log = logging.Discard()
	}
	return &Local{
		recognizer: recognizer,
		opts:       opts,
		cache:      imaging.NewImageCache(),
		log:        log,
		paths:      make(map[string]string),
	}
}

// LoadImage decodes path, builds a thumbnail and registers a new image id.
func (l *Local) LoadImage(ctx context.Context, path string) (*model.ImageRecord, error) {
	if path == "" {
		return nil, NewInvalidArgumentError(OpLoadImage, fmt.Errorf("%w: path is required", ErrInvalidArgument))
	}
	if err := ctx.Err(); err != nil {
		return nil, NewBackendError(OpLoadImage, "cancelled", err)
	}

	img, err := imaging.Decode(path)
	if err != nil {
		return nil, NewBackendError(OpLoadImage, "failed to read image", err)
	}
	preview, err := imaging.EncodeDataURL(imaging.Fit(img, l.opts.ThumbnailSize))
	if err != nil {
		return nil, NewBackendError(OpLoadImage, "failed to encode thumbnail", err)
	}

	bounds := img.Bounds()
	record := &model.ImageRecord{
		ID:          model.NewID(),
		Name:        filepath.Base(path),
		SourcePath:  path,
		PreviewData: preview,
		Width:       bounds.Dx(),
		Height:      bounds.Dy(),
	}

	l.mu.Lock()
	l.paths[record.ID] = path
	l.mu.Unlock()

	l.log.Debug("image loaded", "id", record.ID, "path", path, "width", record.Width, "height", record.Height)
	return record, nil
}

// LoadImageFull returns path at full resolution as a PNG data URL.
func (l *Local) LoadImageFull(ctx context.Context, path string) (string, error) {
	if path == "" {
		return "", NewInvalidArgumentError(OpLoadImageFull, fmt.Errorf("%w: path is required", ErrInvalidArgument))
	}
	if err := ctx.Err(); err != nil {
		return "", NewBackendError(OpLoadImageFull, "cancelled", err)
	}

	img, err := l.cache.Load(path)
	if err != nil {
		return "", NewBackendError(OpLoadImageFull, "failed to read image", err)
	}
	data, err := imaging.EncodeDataURL(img)
	if err != nil {
		return "", NewBackendError(OpLoadImageFull, "failed to encode image", err)
	}
	return data, nil
}

// ProcessRegion crops the region out of the registered image, rotates and
// preprocesses the crop, and recognizes it.
//
// The rectangle is clamped to the image; a rectangle with nothing left after
// clamping is an invalid argument.
func (l *Local) ProcessRegion(ctx context.Context, req RegionRequest) (*model.RegionResult, error) {
	if err := req.Validate(); err != nil {
		return nil, NewInvalidArgumentError(OpProcessRegion, err)
	}

	l.mu.RLock()
	path, ok := l.paths[req.ImageID]
	l.mu.RUnlock()
	if !ok {
		return nil, NewInvalidArgumentError(OpProcessRegion,
			fmt.Errorf("%w: image id not found: %s", ErrInvalidArgument, req.ImageID))
	}

	img, err := l.cache.Load(path)
	if err != nil {
		return nil, NewBackendError(OpProcessRegion, "failed to read image", err)
	}

	r := req.Region
	crop, err := imaging.CropRegion(img, r.X, r.Y, r.Width, r.Height)
	if err != nil {
		return nil, NewInvalidArgumentError(OpProcessRegion, fmt.Errorf("%w: %v", ErrInvalidArgument, err))
	}
	prepared := imaging.Preprocess(imaging.Rotate(crop, req.RotationDegrees), req.Settings)

	if err := ctx.Err(); err != nil {
		return nil, NewBackendError(OpProcessRegion, "cancelled", err)
	}
	if l.recognizer == nil {
		return nil, NewBackendError(OpProcessRegion, "no OCR engine configured", nil)
	}

	start := time.Now()
	recognized, err := l.recognizer.Recognize(ctx, prepared, ocr.Options{NumericOnly: r.NumericHint})
	if err != nil {
		return nil, NewBackendError(OpProcessRegion, "OCR failed", err)
	}

	result := &model.RegionResult{
		RegionID: r.ID,
		RawText:  recognized.Text,
		Cells:    ocr.Grid(recognized.Text, recognized.Words),
	}
	l.log.Debug("region processed",
		"image", req.ImageID,
		"region", r.ID,
		"rows", len(result.Cells),
		"words", len(recognized.Words),
		"elapsed", time.Since(start).Round(time.Millisecond))
	return result, nil
}

// PreprocessImage returns a preview of path with settings applied, scaled to
// fit PreviewSize.
func (l *Local) PreprocessImage(ctx context.Context, path string, settings model.ProcessingSettings) (string, error) {
	if path == "" {
		return "", NewInvalidArgumentError(OpPreprocessImage, fmt.Errorf("%w: path is required", ErrInvalidArgument))
	}
	if err := settings.Validate(); err != nil {
		return "", NewInvalidArgumentError(OpPreprocessImage, err)
	}
	if err := ctx.Err(); err != nil {
		return "", NewBackendError(OpPreprocessImage, "cancelled", err)
	}

	img, err := l.cache.Load(path)
	if err != nil {
		return "", NewBackendError(OpPreprocessImage, "failed to read image", err)
	}
	preview := imaging.Fit(imaging.Preprocess(img, settings), l.opts.PreviewSize)
	data, err := imaging.EncodeDataURL(preview)
	if err != nil {
		return "", NewBackendError(OpPreprocessImage, "failed to encode preview", err)
	}
	return data, nil
}

// SaveResults writes cards into ExportDir.
func (l *Local) SaveResults(ctx context.Context, cards []model.OutputCard, format model.ExportFormat) (string, error) {
	if _, err := model.ParseExportFormat(string(format)); err != nil {
		return "", NewInvalidArgumentError(OpSaveResults, err)
	}
	if err := ctx.Err(); err != nil {
		return "", NewBackendError(OpSaveResults, "cancelled", err)
	}

	path, err := export.Save(cards, format, l.opts.ExportDir, l.opts.Now())
	if err != nil {
		return "", classify(OpSaveResults, "failed to save results", err)
	}
	l.log.Info("results saved", "path", path, "cards", len(cards), "format", format)
	return path, nil
}

// Forget drops the id registration and the cached pixels of an image.
func (l *Local) Forget(imageID string) {
	l.mu.Lock()
	path, ok := l.paths[imageID]
	delete(l.paths, imageID)
	l.mu.Unlock()
	if ok {
		l.cache.Evict(path)
	}
}

// Close releases cached images.
func (l *Local) Close() error {
	l.cache.Clear()
	return nil
}
