package export

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"claimpoint/internal"
	"claimpoint/internal/mapping"
	"claimpoint/internal/sheets"
	"claimpoint/internal/util"
)

// ClaimRow is one data row of a source sheet with its mapped canonical values.
type ClaimRow struct {
	Sheet  string
	Row    int // 1-based row number in the source sheet
	Values map[internal.CanonicalField]any
}

var dateFields = map[internal.CanonicalField]bool{
	internal.FieldDateOfBirth:    true,
	internal.FieldServiceBegDate: true,
	internal.FieldServiceEndDate: true,
	internal.FieldPaidDate:       true,
}

var amountFields = map[internal.CanonicalField]bool{
	internal.FieldBilled: true,
	internal.FieldPaid:   true,
}

// MapRows applies mappings to every data row under each mapped sheet's header row. Sheets
// are visited in workbook order; rows with no mapped value are skipped. When several
// sources feed one field, the first non-empty one in mapping order wins.
func MapRows(wb *sheets.Workbook, mappings mapping.SheetMappings) ([]ClaimRow, error) {
	var out []ClaimRow
	for _, sheet := range wb.SheetNames {
		m := mappings[sheet]
		if m.Len() == 0 {
			continue
		}

		grid, err := wb.Rows(sheet)
		if err != nil {
			return nil, err
		}
		header, ok := sheets.DetectHeaderRow(grid)
		if !ok {
			continue
		}
		columns, err := sheets.ExtractColumns(wb, sheet)
		if err != nil {
			return nil, err
		}
		index := map[string]int{}
		for i, label := range columns {
			if _, dup := index[label]; !dup {
				index[label] = header.LeftCol + i
			}
		}

		for r := header.Index + 1; r < len(grid); r++ {
			values := map[internal.CanonicalField]any{}
			for _, p := range m.Pairs() {
				field := internal.CanonicalField(p.Target)
				if _, set := values[field]; set {
					continue
				}
				col, ok := index[p.Source]
				if !ok || col >= len(grid[r]) {
					continue
				}
				cell := util.CleanCell(grid[r][col])
				if cell == "" {
					continue
				}
				values[field] = convert(field, cell)
			}
			if len(values) == 0 {
				continue
			}
			out = append(out, ClaimRow{Sheet: sheet, Row: r + 1, Values: values})
		}
	}
	return out, nil
}

func convert(field internal.CanonicalField, cell string) any {
	switch {
	case dateFields[field]:
		if d, err := util.ParseDate(cell); err == nil {
			return util.FormatDate(d)
		}
	case amountFields[field]:
		if amount, ok := parseAmount(cell); ok {
			return amount
		}
	}
	return cell
}

func parseAmount(cell string) (float64, bool) {
	s := strings.NewReplacer("$", "", ",", "", " ", "").Replace(cell)
	negative := strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")")
	s = strings.Trim(s, "()")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	if negative {
		v = -v
	}
	return v, true
}

// WriteXLSX writes rows under a header of source position columns plus every canonical
// field in display order.
func WriteXLSX(rows []ClaimRow, outputPath string) error {
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)

	headers := []string{"source_sheet", "source_row"}
	for _, field := range internal.CanonicalFields {
		headers = append(headers, string(field))
	}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	for i, row := range rows {
		r := i + 2
		set := func(col int, value any) {
			cell, _ := excelize.CoordinatesToCellName(col, r)
			_ = f.SetCellValue(sheet, cell, value)
		}

		set(1, row.Sheet)
		set(2, row.Row)
		for j, field := range internal.CanonicalFields {
			if v, ok := row.Values[field]; ok {
				set(j+3, v)
			}
		}
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return err
	}
	if err := f.SaveAs(outputPath); err != nil {
		return fmt.Errorf("write %s: %w", outputPath, err)
	}
	return nil
}
