package sheetfill

import (
	"bytes"

	"github.com/xuri/excelize/v2"
)

// OpenWorkbook parses template bytes into a workbook. Callers own the file
// and must Close it.
func OpenWorkbook(data []byte) (*excelize.File, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, NewError(KindTemplateInvalid, "template workbook is not readable", err)
	}
	return f, nil
}

// gridCell is one non-empty template cell. Cells are produced in sheet
// order, then row, then column, which fixes issue ordering downstream.
type gridCell struct {
	Sheet string
	Row   int
	Col   int
	Text  string
}

func readCells(f *excelize.File) ([]gridCell, error) {
	var cells []gridCell
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return nil, NewError(KindTemplateInvalid, "template sheet is not readable", err)
		}
		for ri, row := range rows {
			for ci, text := range row {
				if text == "" {
					continue
				}
				cells = append(cells, gridCell{Sheet: sheet, Row: ri + 1, Col: ci + 1, Text: text})
			}
		}
	}
	return cells, nil
}

// scanPlaceholders derives typed placeholders from cell text. List heads and
// terminators only count when they occupy their cell alone; embedded ones
// are authoring errors reported by the validator and ignored here.
func scanPlaceholders(cells []gridCell) []Placeholder {
	var placeholders []Placeholder
	for _, cell := range cells {
		if token, ok := SoleToken(cell.Text); ok && token.Kind != KindScalar {
			placeholders = append(placeholders, Placeholder{
				Raw:   token.Raw,
				Kind:  token.Kind,
				Field: token.Field,
				Sheet: cell.Sheet,
				Row:   cell.Row,
				Col:   cell.Col,
			})
			continue
		}
		for _, token := range ParseTokens(cell.Text) {
			if token.Kind != KindScalar {
				continue
			}
			placeholders = append(placeholders, Placeholder{
				Raw:   token.Raw,
				Kind:  token.Kind,
				Field: token.Field,
				Sheet: cell.Sheet,
				Row:   cell.Row,
				Col:   cell.Col,
			})
		}
	}
	return placeholders
}

func cellName(col, row int) string {
	name, _ := excelize.CoordinatesToCellName(col, row)
	return name
}

func sheetTailRow(f *excelize.File, sheet string) int {
	rows, err := f.GetRows(sheet)
	if err != nil {
		return 0
	}
	return len(rows)
}
