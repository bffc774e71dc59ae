package imaging

import (
	"image"
	"image/color"
	"math"

	"github.com/anthonynsimon/bild/blur"
	"github.com/anthonynsimon/bild/effect"
	"github.com/anthonynsimon/bild/segment"
	"github.com/lucasb-eyer/go-colorful"

	"github.com/ironsheep/scan-workbench/internal/model"
)

// medianRadius is the radius of the denoising pass applied before blur and
// binarization.
const medianRadius = 1.0

// Preprocess prepares an image for recognition according to settings.
//
// When the settings are the identity (no blur, threshold disabled) img is
// returned as is. Otherwise the image is converted to perceptual lightness,
// median filtered, optionally Gaussian blurred, and optionally binarized
// with either a fixed level or the Otsu level of the filtered image.
//
// Settings are assumed valid; see model.ProcessingSettings.Validate.
func Preprocess(img image.Image, settings model.ProcessingSettings) image.Image {
	if settings.IsIdentity() {
		return img
	}

	var out image.Image = effect.Median(Lightness(img), medianRadius)

	if settings.BlurRadius > 0 {
		out = blur.Gaussian(out, settings.BlurRadius)
	}

	gray := grayOf(out)
	switch {
	case settings.Threshold == model.ThresholdDisabled:
		return gray
	case settings.Threshold == model.ThresholdOtsu:
		return segment.Threshold(gray, OtsuLevel(gray))
	default:
		return segment.Threshold(gray, uint8(settings.Threshold))
	}
}

// grayOf copies the filtered image into a *image.Gray. The bild filters
// return RGBA with equal channels, so the values are carried over as they
// are rather than mapped through L* a second time.
func grayOf(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok {
		return g
	}
	b := img.Bounds()
	gray := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			gray.Set(x-b.Min.X, y-b.Min.Y, img.At(x, y))
		}
	}
	return gray
}

// Lightness converts img to grayscale using CIE L*, so that binarization
// levels are spread evenly over perceived brightness. Fully transparent
// pixels become white.
func Lightness(img image.Image) *image.Gray {
	b := img.Bounds()
	gray := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))

	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			gray.SetGray(x-b.Min.X, y-b.Min.Y, color.Gray{Y: lightness(img.At(x, y))})
		}
	}
	return gray
}

func lightness(c color.Color) uint8 {
	cf, ok := colorful.MakeColor(c)
	if !ok {
		return 255
	}
	l, _, _ := cf.Lab()
	l = math.Max(0, math.Min(1, l))
	return uint8(math.Round(l * 255))
}

// OtsuLevel returns the binarization level that maximizes the between-class
// variance of gray's histogram. Pixels below the level belong to the dark
// class. A uniform image yields 0.
func OtsuLevel(gray *image.Gray) uint8 {
	var hist [256]int
	b := gray.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			hist[gray.GrayAt(x, y).Y]++
		}
	}

	total := b.Dx() * b.Dy()
	var sum float64
	for i, n := range hist {
		sum += float64(i * n)
	}

	var (
		sumB  float64
		wB    int
		best  float64
		level = -1
	)
	for t := 0; t < 256; t++ {
		wB += hist[t]
		if wB == 0 {
			continue
		}
		wF := total - wB
		if wF == 0 {
			break
		}
		sumB += float64(t * hist[t])
		mB := sumB / float64(wB)
		mF := (sum - sumB) / float64(wF)
		between := float64(wB) * float64(wF) * (mB - mF) * (mB - mF)
		if between > best {
			best = between
			level = t
		}
	}

	// t is the last value of the dark class; the threshold starts one above
	if level < 0 {
		return 0
	}
	if level >= 255 {
		return 255
	}
	return uint8(level + 1)
}
