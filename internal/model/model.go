package model

import (
	"errors"
	"fmt"
	"math"

	"github.com/google/uuid"
)

// Threshold modes. Values 0-255 select a fixed binarization level.
const (
	ThresholdDisabled = -2
	ThresholdOtsu     = -1
	ThresholdMax      = 255
)

var (
	// ErrInvalidArgument is matched by every validation error in this package.
	ErrInvalidArgument = errors.New("invalid argument")

	ErrInvalidSettings = fmt.Errorf("%w: processing settings", ErrInvalidArgument)
	ErrInvalidRegion   = fmt.Errorf("%w: region", ErrInvalidArgument)
	ErrInvalidFormat   = fmt.Errorf("%w: export format", ErrInvalidArgument)
)

// NewID returns a fresh opaque identifier for an image or region.
func NewID() string {
	return uuid.New().String()
}

// ProcessingSettings controls how an image is prepared before recognition.
type ProcessingSettings struct {
	// BlurRadius is the Gaussian blur radius in pixels. Zero disables blur.
	BlurRadius float64 `json:"blurRadius" yaml:"blurRadius"`

	// Threshold is ThresholdDisabled, ThresholdOtsu, or a fixed level 0-255.
	Threshold int `json:"threshold" yaml:"threshold"`
}

// DefaultSettings returns the settings an image without explicit settings uses.
func DefaultSettings() ProcessingSettings {
	return ProcessingSettings{BlurRadius: 0, Threshold: ThresholdDisabled}
}

// Validate reports ErrInvalidSettings when the blur radius is negative or
// not finite, or the threshold is outside {-2, -1, 0..255}.
func (s ProcessingSettings) Validate() error {
	if math.IsNaN(s.BlurRadius) || math.IsInf(s.BlurRadius, 0) || s.BlurRadius < 0 {
		return fmt.Errorf("%w: blur radius %v must be a finite number >= 0", ErrInvalidSettings, s.BlurRadius)
	}
	if s.Threshold < ThresholdDisabled || s.Threshold > ThresholdMax {
		return fmt.Errorf("%w: threshold %d must be -2, -1 or 0-255", ErrInvalidSettings, s.Threshold)
	}
	return nil
}

// IsIdentity reports whether the settings leave the image untouched.
func (s ProcessingSettings) IsIdentity() bool {
	return s.BlurRadius <= 0 && s.Threshold == ThresholdDisabled
}

// ImageRecord is one queued image.
type ImageRecord struct {
	ID              string              `json:"id"`
	Name            string              `json:"name"`
	SourcePath      string              `json:"sourcePath"`
	PreviewData     string              `json:"previewData"`
	Width           int                 `json:"width"`
	Height          int                 `json:"height"`
	RotationDegrees int                 `json:"rotationDegrees"`
	Settings        *ProcessingSettings `json:"processingSettings,omitempty"`
}

// EffectiveSettings returns the record's settings, or the defaults when none
// were set.
func (r ImageRecord) EffectiveSettings() ProcessingSettings {
	if r.Settings == nil {
		return DefaultSettings()
	}
	return *r.Settings
}

// Clone returns a copy that shares no memory with r.
func (r ImageRecord) Clone() ImageRecord {
	if r.Settings != nil {
		s := *r.Settings
		r.Settings = &s
	}
	return r
}

// Region is a user-drawn rectangle in unrotated image pixel space.
type Region struct {
	ID          string  `json:"id"`
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
	Width       float64 `json:"width"`
	Height      float64 `json:"height"`
	Label       string  `json:"label,omitempty"`
	NumericHint bool    `json:"isNumericHint,omitempty"`
}

// Validate reports ErrInvalidRegion for an empty id or negative/non-finite
// geometry.
func (r Region) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidRegion)
	}
	for _, v := range []float64{r.X, r.Y, r.Width, r.Height} {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return fmt.Errorf("%w: %s has geometry (%v,%v %vx%v)", ErrInvalidRegion, r.ID, r.X, r.Y, r.Width, r.Height)
		}
	}
	return nil
}

// OcrCell is one cell of a recognized table grid.
type OcrCell struct {
	Text           string  `json:"text"`
	OriginalText   string  `json:"originalText"`
	Confidence     float64 `json:"confidenceScore"`
	ManuallyEdited bool    `json:"manuallyEdited,omitempty"`
}

// RegionResult is the recognition output for one region.
type RegionResult struct {
	RegionID string      `json:"regionId"`
	RawText  string      `json:"rawText"`
	Cells    [][]OcrCell `json:"cells"`
}

// Clone returns a deep copy of the result.
func (r RegionResult) Clone() RegionResult {
	if r.Cells == nil {
		return r
	}
	cells := make([][]OcrCell, len(r.Cells))
	for i, row := range r.Cells {
		cells[i] = append([]OcrCell(nil), row...)
	}
	r.Cells = cells
	return r
}

// OutputCard aggregates the results for one image, one entry per region.
type OutputCard struct {
	ImageID   string         `json:"imageId"`
	ImageName string         `json:"imageName"`
	Results   []RegionResult `json:"results"`
}

// Clone returns a deep copy of the card.
func (c OutputCard) Clone() OutputCard {
	results := make([]RegionResult, len(c.Results))
	for i, r := range c.Results {
		results[i] = r.Clone()
	}
	c.Results = results
	return c
}

// WithResult returns a copy of c where the entry for result.RegionID is
// replaced in place, or appended when the region has no entry yet.
func (c OutputCard) WithResult(result RegionResult) OutputCard {
	out := c.Clone()
	for i := range out.Results {
		if out.Results[i].RegionID == result.RegionID {
			out.Results[i] = result.Clone()
			return out
		}
	}
	out.Results = append(out.Results, result.Clone())
	return out
}

// ExportFormat is the file format accepted by SaveResults.
type ExportFormat string

const (
	FormatTXT ExportFormat = "txt"
	FormatCSV ExportFormat = "csv"
)

// ParseExportFormat accepts exactly "txt" or "csv".
func ParseExportFormat(s string) (ExportFormat, error) {
	switch ExportFormat(s) {
	case FormatTXT, FormatCSV:
		return ExportFormat(s), nil
	default:
		return "", fmt.Errorf("%w: %q (want \"txt\" or \"csv\")", ErrInvalidFormat, s)
	}
}
