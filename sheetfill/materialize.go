package sheetfill

import (
	"fmt"
	"os"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Materialize binds a template against one student's context: list groups
// are expanded first, then scalar placeholders are substituted over the
// shifted grid, and the workbook is serialized. Any failure discards the
// whole workbook; a partially expanded grid is never returned.
func Materialize(tpl Template, bc BindingContext, catalog *Catalog) ([]byte, error) {
	f, err := OpenWorkbook(tpl.Data)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	cells, err := readCells(f)
	if err != nil {
		return nil, err
	}
	plans, err := BuildPlans(scanPlaceholders(cells))
	if err != nil {
		return nil, err
	}
	listCells, err := expandLists(f, plans, bc)
	if err != nil {
		return nil, err
	}
	if err := applyScalars(f, bc, catalog, listCells); err != nil {
		return nil, err
	}
	if err := applyOrientation(f, tpl.Orientation); err != nil {
		return nil, err
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, NewError(KindInternal, "serialize materialized workbook", err)
	}
	return buf.Bytes(), nil
}

// applyScalars substitutes scalar placeholders in a single pass after all
// row expansion is done, so coordinates are read post-shift. Cells written
// from list records are skipped: record values are literal text even when
// they contain brace markup. Leftover list markers (heads of empty
// unterminated tables, orphan terminators) blank to empty string here.
func applyScalars(f *excelize.File, bc BindingContext, catalog *Catalog, listCells map[string]bool) error {
	cells, err := readCells(f)
	if err != nil {
		return err
	}

	for _, cell := range cells {
		if listCells[cellKey(cell.Sheet, cell.Col, cell.Row)] {
			continue
		}
		token, sole := SoleToken(cell.Text)
		if sole && token.Kind != KindScalar {
			if err := clearCell(f, cell.Sheet, cell.Col, cell.Row); err != nil {
				return err
			}
			continue
		}

		tokens := ParseTokens(cell.Text)
		if len(tokens) == 0 {
			continue
		}

		if sole && catalog.IsImage(token.Field) {
			if err := clearCell(f, cell.Sheet, cell.Col, cell.Row); err != nil {
				return err
			}
			ref, _ := bc.Scalars[token.Field].(ImageRef)
			if err := placeImage(f, cell.Sheet, cell.Col, cell.Row, ref); err != nil {
				return err
			}
			continue
		}

		value, numeric, err := resolveScalarCell(cell, tokens, bc, catalog)
		if err != nil {
			return err
		}
		if sole && numeric != nil {
			if err := setCell(f, cell.Sheet, cell.Col, cell.Row, *numeric); err != nil {
				return err
			}
			continue
		}
		if err := setCell(f, cell.Sheet, cell.Col, cell.Row, value); err != nil {
			return err
		}
	}
	return nil
}

// resolveScalarCell substitutes every scalar token embedded in the cell's
// text. A cell holding exactly one numeric placeholder keeps its numeric
// type so spreadsheet formatting still applies.
func resolveScalarCell(cell gridCell, tokens []Token, bc BindingContext, catalog *Catalog) (string, *float64, error) {
	text := cell.Text
	var numeric *float64

	for _, token := range tokens {
		if token.Kind != KindScalar {
			text = strings.Replace(text, token.Raw, "", 1)
			continue
		}
		value, ok := bc.Scalars[token.Field]
		if !ok && !token.Field.IsCustom() {
			return "", nil, NewError(KindUnresolvableField,
				fmt.Sprintf("%s!%s: field %q has no catalog entry", cell.Sheet, cellName(cell.Col, cell.Row), token.Field), nil)
		}
		if f, isNumber := value.(float64); isNumber && len(tokens) == 1 {
			numeric = &f
		}
		text = strings.Replace(text, token.Raw, formatValue(value), 1)
	}
	return text, numeric, nil
}

// placeImage embeds a signature picture anchored at the placeholder cell.
// A missing reference or unreadable file leaves the cell empty; a reviewer
// who has not signed must not fail the export.
func placeImage(f *excelize.File, sheet string, col, row int, ref ImageRef) error {
	if ref.Missing() {
		return nil
	}
	if _, err := os.Stat(ref.Path); err != nil {
		return nil
	}
	cell := cellName(col, row)
	if err := f.AddPicture(sheet, cell, ref.Path, &excelize.GraphicOptions{AutoFit: true}); err != nil {
		return NewError(KindInternal, fmt.Sprintf("place signature image at %s!%s", sheet, cell), err)
	}
	return nil
}

func applyOrientation(f *excelize.File, orientation Orientation) error {
	if orientation == "" {
		return nil
	}
	value := string(orientation)
	for _, sheet := range f.GetSheetList() {
		if err := f.SetPageLayout(sheet, &excelize.PageLayoutOptions{Orientation: &value}); err != nil {
			return NewError(KindInternal, "set page orientation", err)
		}
	}
	return nil
}
