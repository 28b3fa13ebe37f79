package sheetfill

import (
	"testing"

	"github.com/xuri/excelize/v2"
)

const testSheet = "Sheet1"

// buildWorkbook writes cell text into a fresh single-sheet workbook and
// returns its bytes.
func buildWorkbook(t *testing.T, cells map[string]string) []byte {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()

	for cell, text := range cells {
		if err := f.SetCellStr(testSheet, cell, text); err != nil {
			t.Fatalf("set cell %s: %v", cell, err)
		}
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("serialize workbook: %v", err)
	}
	return buf.Bytes()
}

// sheetCell reads one cell's rendered text from workbook bytes.
func sheetCell(t *testing.T, data []byte, cell string) string {
	t.Helper()

	f, err := OpenWorkbook(data)
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer f.Close()

	value, err := f.GetCellValue(testSheet, cell)
	if err != nil {
		t.Fatalf("get cell %s: %v", cell, err)
	}
	return value
}

func sheetRowCount(t *testing.T, data []byte) int {
	t.Helper()

	f, err := OpenWorkbook(data)
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows(testSheet)
	if err != nil {
		t.Fatalf("get rows: %v", err)
	}
	return len(rows)
}

func testCatalog(custom ...string) *Catalog {
	return NewCatalog(custom...)
}
