package ocr

import (
	"strings"

	"github.com/ironsheep/scan-workbench/internal/model"
)

// minColumnGap is the narrowest run of blank character columns that
// separates two table columns.
const minColumnGap = 2

// Lines splits recognized text into its non-blank lines. Leading and
// trailing whitespace is kept so column positions stay aligned.
func Lines(text string) []string {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		lines = append(lines, line)
	}
	return lines
}

// DetectColumns splits lines into a table using character positions that
// are blank in every line.
//
// Each run of at least two blank positions is split at its midpoint. When no
// such run exists every line becomes a single-cell row. Cells are trimmed,
// and lines shorter than a split point yield empty trailing cells, so every
// row has the same number of cells.
func DetectColumns(lines []string) [][]string {
	if len(lines) == 0 {
		return [][]string{}
	}

	rows := make([][]rune, len(lines))
	width := 0
	for i, line := range lines {
		rows[i] = []rune(line)
		if len(rows[i]) > width {
			width = len(rows[i])
		}
	}

	blank := make([]bool, width)
	for col := 0; col < width; col++ {
		blank[col] = true
		for _, row := range rows {
			if col < len(row) && row[col] != ' ' {
				blank[col] = false
				break
			}
		}
	}

	var splits []int
	inGap := false
	gapStart := 0
	for col, isBlank := range blank {
		switch {
		case isBlank && !inGap:
			inGap = true
			gapStart = col
		case !isBlank && inGap:
			inGap = false
			if gap := col - gapStart; gap >= minColumnGap {
				splits = append(splits, gapStart+gap/2)
			}
		}
	}

	table := make([][]string, len(rows))
	if len(splits) == 0 {
		for i, line := range lines {
			table[i] = []string{strings.TrimSpace(line)}
		}
		return table
	}

	for i, row := range rows {
		cells := make([]string, 0, len(splits)+1)
		prev := 0
		for _, split := range splits {
			end := split
			if end > len(row) {
				end = len(row)
			}
			if prev > end {
				prev = end
			}
			cells = append(cells, strings.TrimSpace(string(row[prev:end])))
			prev = end
		}
		last := ""
		if prev < len(row) {
			last = strings.TrimSpace(string(row[prev:]))
		}
		table[i] = append(cells, last)
	}
	return table
}

// Grid builds the cell grid for a recognized region.
//
// Cells take their confidence from the words they contain: words are
// consumed in reading order and a cell's score is the mean of its words.
// Empty cells, and cells left over once the words run out, score 0. When
// the engine reported no words at all, every non-empty cell scores 0.
func Grid(text string, words []Word) [][]model.OcrCell {
	table := DetectColumns(Lines(text))

	next := 0
	grid := make([][]model.OcrCell, len(table))
	for i, row := range table {
		cells := make([]model.OcrCell, len(row))
		for j, cellText := range row {
			n := len(strings.Fields(cellText))
			var sum float64
			var used int
			for k := 0; k < n && next < len(words); k++ {
				sum += words[next].Confidence
				used++
				next++
			}
			confidence := 0.0
			if used > 0 {
				confidence = clampUnit(sum / float64(used))
			}
			cells[j] = model.OcrCell{
				Text:         cellText,
				OriginalText: cellText,
				Confidence:   confidence,
			}
		}
		grid[i] = cells
	}
	return grid
}

func clampUnit(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
