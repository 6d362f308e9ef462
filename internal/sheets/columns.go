package sheets

import (
	"fmt"
	"strings"
)

// HeaderRow describes the row chosen as the sheet's column labels.
type HeaderRow struct {
	Index    int // 0-based row index in the grid
	LeftCol  int // 0-based leftmost used column of the sheet
	NonEmpty int
}

// ExtractColumns returns the labels of the sheet's header row: the first row with the
// most non-empty cells. Labels cover LeftCol..LeftCol+NonEmpty-1; blank cells in that span
// are named "Column N" with N the 1-based column index.
func ExtractColumns(wb *Workbook, sheetName string) ([]string, error) {
	grid, ok := wb.grids[sheetName]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSheet, sheetName)
	}

	header, ok := DetectHeaderRow(grid)
	if !ok {
		return nil, &NoHeaderRowError{Sheet: sheetName}
	}

	row := grid[header.Index]
	columns := make([]string, 0, header.NonEmpty)
	for c := header.LeftCol; c < header.LeftCol+header.NonEmpty; c++ {
		label := ""
		if c < len(row) {
			label = strings.TrimSpace(row[c])
		}
		if label == "" {
			label = fmt.Sprintf("Column %d", c+1)
		}
		columns = append(columns, label)
	}
	return columns, nil
}

// DetectHeaderRow scans the used range top to bottom. ok is false when every cell is empty.
func DetectHeaderRow(grid [][]string) (HeaderRow, bool) {
	leftCol := -1
	for _, row := range grid {
		for c, cell := range row {
			if !isEmpty(cell) && (leftCol < 0 || c < leftCol) {
				leftCol = c
			}
		}
	}
	if leftCol < 0 {
		return HeaderRow{}, false
	}

	best := HeaderRow{Index: -1, LeftCol: leftCol}
	for r, row := range grid {
		count := 0
		for _, cell := range row {
			if !isEmpty(cell) {
				count++
			}
		}
		if count > best.NonEmpty {
			best.NonEmpty = count
			best.Index = r
		}
	}
	return best, true
}

func isEmpty(cell string) bool {
	return strings.TrimSpace(cell) == ""
}
