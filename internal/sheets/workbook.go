package sheets

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"github.com/extrame/xls"
	"github.com/xuri/excelize/v2"
)

const (
	FormatXLSX = "xlsx"
	FormatXLS  = "xls"
)

var oleSignature = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}

// Workbook is a decoded spreadsheet: ordered sheet names plus one cell grid per sheet.
// It is immutable after Decode.
type Workbook struct {
	Format     string
	SheetNames []string
	grids      map[string][][]string
}

// Sheet is a sheet name with its inferred column labels.
type Sheet struct {
	Name    string
	Columns []string
	// Err is the column extraction error, a *NoHeaderRowError for blank sheets.
	Err error
}

func Decode(content []byte) (*Workbook, error) {
	if len(content) == 0 {
		return nil, &DecodeError{Format: "unknown", Err: errors.New("empty input")}
	}
	if bytes.HasPrefix(content, oleSignature) {
		return decodeXLS(content)
	}
	return decodeXLSX(content)
}

func DecodeFile(path string) (*Workbook, error) {
	blob, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Decode(blob)
}

func decodeXLSX(content []byte) (*Workbook, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return nil, &DecodeError{Format: FormatXLSX, Err: err}
	}
	defer f.Close()

	wb := &Workbook{Format: FormatXLSX, grids: map[string][][]string{}}
	for _, name := range f.GetSheetList() {
		rows, err := f.GetRows(name)
		if err != nil {
			return nil, &DecodeError{Format: FormatXLSX, Err: fmt.Errorf("sheet %q: %w", name, err)}
		}
		wb.SheetNames = append(wb.SheetNames, name)
		wb.grids[name] = rows
	}
	if len(wb.SheetNames) == 0 {
		return nil, &DecodeError{Format: FormatXLSX, Err: errors.New("no worksheet found")}
	}
	return wb, nil
}

func decodeXLS(content []byte) (wb *Workbook, err error) {
	// The BIFF reader panics on some truncated streams.
	defer func() {
		if r := recover(); r != nil {
			wb = nil
			err = &DecodeError{Format: FormatXLS, Err: fmt.Errorf("corrupt workbook: %v", r)}
		}
	}()

	book, err := xls.OpenReader(bytes.NewReader(content), "utf-8")
	if err != nil {
		return nil, &DecodeError{Format: FormatXLS, Err: err}
	}
	if book.NumSheets() == 0 {
		return nil, &DecodeError{Format: FormatXLS, Err: errors.New("no worksheet found")}
	}

	wb = &Workbook{Format: FormatXLS, grids: map[string][][]string{}}
	for i := 0; i < book.NumSheets(); i++ {
		sheet := book.GetSheet(i)
		if sheet == nil {
			continue
		}
		grid := make([][]string, 0, int(sheet.MaxRow)+1)
		for r := 0; r <= int(sheet.MaxRow); r++ {
			row := sheet.Row(r)
			if row == nil {
				grid = append(grid, nil)
				continue
			}
			cells := make([]string, row.LastCol())
			for c := row.FirstCol(); c < row.LastCol(); c++ {
				cells[c] = row.Col(c)
			}
			grid = append(grid, cells)
		}
		wb.SheetNames = append(wb.SheetNames, sheet.Name)
		wb.grids[sheet.Name] = grid
	}
	return wb, nil
}

// Rows returns a copy of the sheet's cell grid, top-left anchored at A1.
func (w *Workbook) Rows(sheetName string) ([][]string, error) {
	grid, ok := w.grids[sheetName]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSheet, sheetName)
	}
	out := make([][]string, len(grid))
	for i, row := range grid {
		out[i] = append([]string(nil), row...)
	}
	return out, nil
}

func (w *Workbook) HasSheet(name string) bool {
	_, ok := w.grids[name]
	return ok
}

// Sheets extracts every sheet's columns in workbook order.
func (w *Workbook) Sheets() []Sheet {
	out := make([]Sheet, 0, len(w.SheetNames))
	for _, name := range w.SheetNames {
		columns, err := ExtractColumns(w, name)
		out = append(out, Sheet{Name: name, Columns: columns, Err: err})
	}
	return out
}
