package gateway

import (
	"context"
	"fmt"

	"github.com/ironsheep/scan-workbench/internal/model"
)

// Operation names used in Error.Op.
const (
	OpLoadImage       = "loadImage"
	OpLoadImageFull   = "loadImageFull"
	OpProcessRegion   = "processRegion"
	OpPreprocessImage = "preprocessImage"
	OpSaveResults     = "saveResults"
)

// Gateway is the request/response boundary to the processing backend.
//
// Every call may block for as long as the backend works; callers that need
// to keep going use Go to run calls as Tasks. Failures are *Error values.
// Nothing is retried.
type Gateway interface {
	// LoadImage decodes the file at path and returns a new record with a
	// fresh id and a thumbnail preview. The backend remembers the id so
	// ProcessRegion can find the file.
	LoadImage(ctx context.Context, path string) (*model.ImageRecord, error)

	// LoadImageFull returns the full-resolution image as a data URL.
	LoadImageFull(ctx context.Context, path string) (string, error)

	// ProcessRegion crops, rotates, preprocesses and recognizes one region.
	ProcessRegion(ctx context.Context, req RegionRequest) (*model.RegionResult, error)

	// PreprocessImage returns a preview of path with settings applied.
	PreprocessImage(ctx context.Context, path string, settings model.ProcessingSettings) (string, error)

	// SaveResults writes cards in format and returns the destination path.
	SaveResults(ctx context.Context, cards []model.OutputCard, format model.ExportFormat) (string, error)
}

// RegionRequest asks the backend to recognize one region of a loaded image.
// The rectangle is in unrotated image pixels; the crop is rotated clockwise
// by RotationDegrees before preprocessing.
type RegionRequest struct {
	ImageID         string
	Region          model.Region
	RotationDegrees int
	Settings        model.ProcessingSettings
}

// NewRegionRequest builds a request with blur 0 and thresholding disabled.
func NewRegionRequest(imageID string, region model.Region, rotation int) RegionRequest {
	return RegionRequest{
		ImageID:         imageID,
		Region:          region,
		RotationDegrees: rotation,
		Settings:        model.DefaultSettings(),
	}
}

// WithSettings returns a copy of r using settings.
func (r RegionRequest) WithSettings(settings model.ProcessingSettings) RegionRequest {
	r.Settings = settings
	return r
}

// Validate checks the request without consulting the backend.
func (r RegionRequest) Validate() error {
	if r.ImageID == "" {
		return fmt.Errorf("%w: image id is required", model.ErrInvalidArgument)
	}
	if err := r.Region.Validate(); err != nil {
		return err
	}
	return r.Settings.Validate()
}
