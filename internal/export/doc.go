// Package export writes OCR output cards to TXT or CSV files.
package export
