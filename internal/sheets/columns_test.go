package sheets

import (
	"errors"
	"slices"
	"testing"
)

func columnsOf(t *testing.T, wb *Workbook, sheet string) []string {
	t.Helper()
	columns, err := ExtractColumns(wb, sheet)
	if err != nil {
		t.Fatalf("extract %s: %v", sheet, err)
	}
	return columns
}

func TestDetectHeaderRowSkipsTitleRows(t *testing.T) {
	grid := [][]string{{"Title"}, {}, {"A", "B", "C"}, {"1", "2", "3"}}
	header, ok := DetectHeaderRow(grid)
	if !ok {
		t.Fatalf("no header row")
	}
	if header != (HeaderRow{Index: 2, LeftCol: 0, NonEmpty: 3}) {
		t.Fatalf("unexpected header: %+v", header)
	}
}

func TestDetectHeaderRowEmpty(t *testing.T) {
	if _, ok := DetectHeaderRow([][]string{{}, {"", "  "}}); ok {
		t.Fatalf("blank grid has a header row")
	}
}

func TestExtractColumns(t *testing.T) {
	wb := decode(t, mkXLSX(t, map[string][][]any{
		"Claims": {
			{"Monthly claims report"},
			{},
			{"Claim #", "Member", "Paid Amount"},
			{"C-1", "M-1", 10.5},
		},
	}, "Claims"))

	got := columnsOf(t, wb, "Claims")
	if want := []string{"Claim #", "Member", "Paid Amount"}; !slices.Equal(got, want) {
		t.Fatalf("got %v want %v", got, want)
	}
}

func TestExtractColumnsSyntheticLabels(t *testing.T) {
	// Used range starts at column B; the header row has a gap in column C.
	wb := decode(t, mkXLSX(t, map[string][][]any{
		"S": {
			{nil, "Claim", nil, "Paid"},
			{nil, "x", "y", nil},
		},
	}, "S"))

	got := columnsOf(t, wb, "S")
	if want := []string{"Claim", "Column 3"}; !slices.Equal(got, want) {
		t.Fatalf("got %v want %v", got, want)
	}
}

func TestExtractColumnsWhitespaceCellIsBlank(t *testing.T) {
	wb := &Workbook{
		SheetNames: []string{"S"},
		grids: map[string][][]string{
			"S": {
				{"Claim", "   ", "Paid", "Notes"},
				{"x", "y", "z"},
			},
		},
	}

	header, ok := DetectHeaderRow(wb.grids["S"])
	if !ok || header.Index != 0 || header.NonEmpty != 3 {
		t.Fatalf("unexpected header: %+v", header)
	}
	got := columnsOf(t, wb, "S")
	if want := []string{"Claim", "Column 2", "Paid"}; !slices.Equal(got, want) {
		t.Fatalf("got %v want %v", got, want)
	}
}

func TestExtractColumnsLengthMatchesHeaderCount(t *testing.T) {
	wb := decode(t, mkXLSX(t, map[string][][]any{
		"S": {
			{"a", "b"},
			{"c", "d", "e", "f"},
			{"g", "h", "i", "j"},
		},
	}, "S"))

	got := columnsOf(t, wb, "S")
	if want := []string{"c", "d", "e", "f"}; !slices.Equal(got, want) {
		t.Fatalf("got %v want %v", got, want)
	}
}

func TestExtractColumnsNoHeaderRow(t *testing.T) {
	wb := decode(t, mkXLSX(t, map[string][][]any{"Data": {{"x"}}, "Blank": nil}, "Data", "Blank"))

	_, err := ExtractColumns(wb, "Blank")
	if !errors.Is(err, ErrNoHeaderRow) {
		t.Fatalf("blank sheet: %v", err)
	}
	var headerErr *NoHeaderRowError
	if !errors.As(err, &headerErr) || headerErr.Sheet != "Blank" {
		t.Fatalf("want NoHeaderRowError for Blank, got %v", err)
	}

	if _, err := ExtractColumns(wb, "Missing"); !errors.Is(err, ErrUnknownSheet) {
		t.Fatalf("missing sheet: %v", err)
	}

	sheets := wb.Sheets()
	if len(sheets) != 2 {
		t.Fatalf("len=%d", len(sheets))
	}
	if !slices.Equal(sheets[0].Columns, []string{"x"}) || sheets[0].Err != nil {
		t.Fatalf("Data: %+v", sheets[0])
	}
	if len(sheets[1].Columns) != 0 || !errors.Is(sheets[1].Err, ErrNoHeaderRow) {
		t.Fatalf("Blank: %+v", sheets[1])
	}
}
