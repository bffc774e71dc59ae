package export

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/ironsheep/scan-workbench/internal/model"
)

// filePrefix names every results file written by Save.
const filePrefix = "ocr-results"

// csvHeader is the first record of every CSV export.
var csvHeader = []string{"image_name", "region_id", "row", "column", "text", "confidence", "manually_edited"}

// Save writes cards to a new file in dir and returns its path.
//
// The file is named ocr-results-<timestamp>.<format>. An existing file is
// never overwritten; a numeric suffix is added instead.
func Save(cards []model.OutputCard, format model.ExportFormat, dir string, now time.Time) (string, error) {
	if _, err := model.ParseExportFormat(string(format)); err != nil {
		return "", err
	}
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create export directory: %w", err)
	}

	f, path, err := create(dir, now, format)
	if err != nil {
		return "", err
	}

	w := bufio.NewWriter(f)
	if err := Write(w, cards, format); err != nil {
		f.Close()
		os.Remove(path)
		return "", err
	}
	if err := w.Flush(); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("failed to write results: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("failed to close results file: %w", err)
	}
	return path, nil
}

func create(dir string, now time.Time, format model.ExportFormat) (*os.File, string, error) {
	base := filePrefix + "-" + now.Format("20060102-150405")
	for i := 0; i < 100; i++ {
		name := base
		if i > 0 {
			name += "-" + strconv.Itoa(i)
		}
		path := filepath.Join(dir, name+"."+string(format))
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			return f, path, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return nil, "", fmt.Errorf("failed to create results file: %w", err)
		}
	}
	return nil, "", fmt.Errorf("failed to create results file: too many exports named %s", base)
}

// Write renders cards in the given format.
func Write(w io.Writer, cards []model.OutputCard, format model.ExportFormat) error {
	switch format {
	case model.FormatTXT:
		return WriteTXT(w, cards)
	case model.FormatCSV:
		return WriteCSV(w, cards)
	default:
		_, err := model.ParseExportFormat(string(format))
		return err
	}
}

// WriteTXT renders cards as plain text: one section per image, one block per
// region, cells of a row separated by tabs.
func WriteTXT(w io.Writer, cards []model.OutputCard) error {
	for i, card := range cards {
		if i > 0 {
			if _, err := io.WriteString(w, "\n"); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintf(w, "=== %s ===\n", cardTitle(card)); err != nil {
			return err
		}
		for _, result := range card.Results {
			if _, err := fmt.Fprintf(w, "\n[%s]\n", result.RegionID); err != nil {
				return err
			}
			for _, row := range result.Cells {
				texts := make([]string, len(row))
				for j, cell := range row {
					texts[j] = cell.Text
				}
				if _, err := fmt.Fprintln(w, strings.Join(texts, "\t")); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// WriteCSV renders cards as one CSV record per cell. Row and column numbers
// start at 1.
func WriteCSV(w io.Writer, cards []model.OutputCard) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, card := range cards {
		name := cardTitle(card)
		for _, result := range card.Results {
			for r, row := range result.Cells {
				for c, cell := range row {
					record := []string{
						name,
						result.RegionID,
						strconv.Itoa(r + 1),
						strconv.Itoa(c + 1),
						cell.Text,
						strconv.FormatFloat(cell.Confidence, 'f', 3, 64),
						strconv.FormatBool(cell.ManuallyEdited),
					}
					if err := cw.Write(record); err != nil {
						return err
					}
				}
			}
		}
	}
	cw.Flush()
	return cw.Error()
}

func cardTitle(card model.OutputCard) string {
	if card.ImageName != "" {
		return card.ImageName
	}
	return card.ImageID
}
