package imaging

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"

	"github.com/disintegration/imaging"
)

// PNGDataURLPrefix prefixes every data URL produced by EncodeDataURL.
const PNGDataURLPrefix = "data:image/png;base64,"

// CropRegion extracts the rectangle (x, y, width, height) from img.
//
// Coordinates are in the pixel space of img as decoded, before any rotation.
// Fractional values are rounded to the nearest pixel. The rectangle is
// clamped to the image so a region drawn slightly past the edge still
// yields the visible part; a rectangle that is empty after clamping is an
// error.
func CropRegion(img image.Image, x, y, width, height float64) (image.Image, error) {
	bounds := img.Bounds()

	x1 := bounds.Min.X + int(math.Round(x))
	y1 := bounds.Min.Y + int(math.Round(y))
	x2 := x1 + int(math.Round(width))
	y2 := y1 + int(math.Round(height))

	rect := image.Rect(x1, y1, x2, y2).Intersect(bounds)
	if rect.Empty() {
		return nil, fmt.Errorf("crop region (%v,%v %vx%v) is empty within image bounds %dx%d",
			x, y, width, height, bounds.Dx(), bounds.Dy())
	}

	return imaging.Crop(img, rect), nil
}

// Rotate turns img clockwise by degrees. Quarter turns are exact; other
// angles enlarge the canvas and fill the corners with white, which reads as
// paper to the recognizer.
func Rotate(img image.Image, degrees int) image.Image {
	degrees = ((degrees % 360) + 360) % 360
	switch degrees {
	case 0:
		return img
	case 90:
		return imaging.Rotate270(img)
	case 180:
		return imaging.Rotate180(img)
	case 270:
		return imaging.Rotate90(img)
	default:
		// imaging.Rotate turns counter-clockwise
		return imaging.Rotate(img, float64(360-degrees), color.White)
	}
}

// Fit scales img down so that neither side exceeds maxSide, preserving the
// aspect ratio. Images already small enough are returned unchanged.
func Fit(img image.Image, maxSide int) image.Image {
	b := img.Bounds()
	if maxSide <= 0 || (b.Dx() <= maxSide && b.Dy() <= maxSide) {
		return img
	}
	return imaging.Fit(img, maxSide, maxSide, imaging.Lanczos)
}

// EncodeDataURL encodes img as a base64 PNG data URL.
func EncodeDataURL(img image.Image) (string, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", fmt.Errorf("failed to encode image: %w", err)
	}
	return PNGDataURLPrefix + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
