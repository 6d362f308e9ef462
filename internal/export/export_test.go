package export

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"claimpoint/internal"
	"claimpoint/internal/mapping"
	"claimpoint/internal/sheets"
)

func mkWorkbook(t *testing.T, name string, rows [][]any) *sheets.Workbook {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	require.NoError(t, f.SetSheetName(f.GetSheetName(0), name))
	for r, row := range rows {
		for c, v := range row {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+1)
			require.NoError(t, f.SetCellValue(name, cell, v))
		}
	}
	buf := bytes.NewBuffer(nil)
	_, err := f.WriteTo(buf)
	require.NoError(t, err)
	wb, err := sheets.Decode(buf.Bytes())
	require.NoError(t, err)
	return wb
}

func TestMapRowsAndWrite(t *testing.T) {
	wb := mkWorkbook(t, "Claims", [][]any{
		{"Monthly claims report"},
		{},
		{"Claim #", "Paid Dt", "Paid Amt", "Alt Claim"},
		{"C-1", "01/15/2024", "$1,250.50", ""},
		{"", "", "", ""},
		{"", "2024-02-01", "(10.00)", "C-2"},
	})
	mappings := mapping.SheetMappings{
		"Claims": mapping.NewColumnMapping(
			mapping.Pair{Source: "Claim #", Target: "ClaimNo"},
			mapping.Pair{Source: "Alt Claim", Target: "ClaimNo"},
			mapping.Pair{Source: "Paid Dt", Target: "PaidDate"},
			mapping.Pair{Source: "Paid Amt", Target: "Paid"},
		),
	}

	rows, err := MapRows(wb, mappings)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, 4, rows[0].Row)
	assert.Equal(t, "C-1", rows[0].Values[internal.FieldClaimNo])
	assert.Equal(t, "2024-01-15", rows[0].Values[internal.FieldPaidDate])
	assert.Equal(t, 1250.5, rows[0].Values[internal.FieldPaid])

	assert.Equal(t, 6, rows[1].Row)
	assert.Equal(t, "C-2", rows[1].Values[internal.FieldClaimNo])
	assert.Equal(t, -10.0, rows[1].Values[internal.FieldPaid])

	out := filepath.Join(t.TempDir(), "out", "claims.xlsx")
	require.NoError(t, WriteXLSX(rows, out))

	f, err := excelize.OpenFile(out)
	require.NoError(t, err)
	defer f.Close()
	got, err := f.GetRows(f.GetSheetName(0))
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "source_sheet", got[0][0])
	assert.Equal(t, "Benefit Type", got[0][2])
	assert.Equal(t, "Paid", got[0][len(got[0])-1])
	assert.Equal(t, "Claims", got[1][0])
	assert.Equal(t, "4", got[1][1])
}

func TestMapRowsSkipsUnmappedSheets(t *testing.T) {
	wb := mkWorkbook(t, "Claims", [][]any{{"Claim #"}, {"C-1"}})
	rows, err := MapRows(wb, mapping.SheetMappings{"Claims": &mapping.ColumnMapping{}})
	require.NoError(t, err)
	assert.Empty(t, rows)
}
