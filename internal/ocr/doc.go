// Package ocr recognizes text in scanned regions and arranges it as a table.
//
// Tesseract wraps the Tesseract engine through gosseract/v2. Each call runs a
// fresh engine client on a PNG-encoded copy of the image in single-block page
// segmentation mode; regions hinted as numeric restrict the character set.
//
// # Prerequisites
//
// Tesseract must be installed on the system:
//   - Ubuntu/Debian: apt-get install tesseract-ocr tesseract-ocr-eng
//   - macOS: brew install tesseract
//
// # Column Detection
//
// DetectColumns treats recognized lines as fixed-width text. A character
// position that is blank in every line is a gap, and each gap at least two
// positions wide splits the table at its midpoint. Grid combines that table
// with word confidences to build the cell grid returned for a region.
package ocr
