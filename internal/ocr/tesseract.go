package ocr

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"

	"github.com/otiai10/gosseract/v2"
)

// numericWhitelist restricts recognition for regions hinted as numeric.
const numericWhitelist = "0123456789.,-+/%$€£()"

// Bounds represents a rectangular bounding box in pixel coordinates.
type Bounds struct {
	X1 int `json:"x1"` // Left edge
	Y1 int `json:"y1"` // Top edge
	X2 int `json:"x2"` // Right edge
	Y2 int `json:"y2"` // Bottom edge
}

// Word is one recognized word with its location and confidence.
type Word struct {
	// Text is the recognized word.
	Text string `json:"text"`

	// Confidence is the OCR confidence score (0.0 to 1.0).
	Confidence float64 `json:"confidence"`

	// Bounds is the bounding box around this word in the recognized image.
	Bounds Bounds `json:"bounds"`
}

// Result contains the text recognized in one image.
type Result struct {
	// Text is all recognized text with original line breaks.
	Text string `json:"text"`

	// Words contains the individual words in reading order. It may be empty
	// when word boxes are unavailable; Text is still set in that case.
	Words []Word `json:"words"`
}

// Options tune a single recognition call.
type Options struct {
	// NumericOnly restricts the character set to digits and number
	// punctuation.
	NumericOnly bool
}

// Tesseract recognizes text with the Tesseract engine through gosseract.
//
// A new engine client is created for every call, so a Tesseract value is
// safe for concurrent use.
type Tesseract struct {
	// Language is the Tesseract language code, e.g. "eng".
	Language string

	// TessdataPrefix overrides the directory Tesseract loads language data
	// from. Empty uses the engine default.
	TessdataPrefix string
}

// NewTesseract creates a recognizer for the given language. An empty
// language selects English.
func NewTesseract(language, tessdataPrefix string) *Tesseract {
	if language == "" {
		language = "eng"
	}
	return &Tesseract{Language: language, TessdataPrefix: tessdataPrefix}
}

// Recognize performs OCR on img.
//
// The image is treated as a single block of text, which suits user-drawn
// regions around a paragraph or a table. Word confidences from Tesseract's
// 0-100 scale are normalized to 0-1. If word boxes cannot be extracted the
// result still carries the full text.
//
// Tesseract cannot be interrupted once started; ctx is checked before the
// engine runs.
func (t *Tesseract) Recognize(ctx context.Context, img image.Image, opts Options) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode image for OCR: %w", err)
	}

	client := gosseract.NewClient()
	defer client.Close()

	if t.TessdataPrefix != "" {
		if err := client.SetTessdataPrefix(t.TessdataPrefix); err != nil {
			return nil, fmt.Errorf("failed to set tessdata path: %w", err)
		}
	}
	if err := client.SetLanguage(t.Language); err != nil {
		return nil, fmt.Errorf("failed to set language: %w", err)
	}
	if err := client.SetPageSegMode(gosseract.PSM_SINGLE_BLOCK); err != nil {
		return nil, fmt.Errorf("failed to set page segmentation mode: %w", err)
	}
	if opts.NumericOnly {
		if err := client.SetWhitelist(numericWhitelist); err != nil {
			return nil, fmt.Errorf("failed to set whitelist: %w", err)
		}
	}
	if err := client.SetImageFromBytes(buf.Bytes()); err != nil {
		return nil, fmt.Errorf("failed to set image: %w", err)
	}

	text, err := client.Text()
	if err != nil {
		return nil, fmt.Errorf("OCR failed: %w", err)
	}

	boxes, err := client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		return &Result{Text: text, Words: []Word{}}, nil
	}

	words := make([]Word, 0, len(boxes))
	for _, box := range boxes {
		if box.Word == "" {
			continue
		}
		words = append(words, Word{
			Text:       box.Word,
			Confidence: float64(box.Confidence) / 100.0,
			Bounds: Bounds{
				X1: box.Box.Min.X,
				Y1: box.Box.Min.Y,
				X2: box.Box.Max.X,
				Y2: box.Box.Max.Y,
			},
		})
	}

	return &Result{Text: text, Words: words}, nil
}

// Version returns the version of the linked Tesseract library.
func (t *Tesseract) Version() string {
	client := gosseract.NewClient()
	defer client.Close()
	return client.Version()
}
