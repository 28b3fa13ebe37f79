package sheetfill

import (
	"fmt"

	"github.com/xuri/excelize/v2"
)

// expandLists grows or shrinks every list group in place. Plans must be
// ordered top-to-bottom (BuildPlans guarantees this) so each group sees the
// row shift produced by groups above it. Row inserts duplicate the last
// template row of the block, which carries its styling, merges and sibling
// column content downward; the shift applies to the whole sheet so footers
// and signature blocks below the table stay aligned.
//
// The returned set holds every cell written from a list record. Record
// values are literal text, so the scalar pass must not re-parse them.
func expandLists(f *excelize.File, plans []ExpansionPlan, bc BindingContext) (map[string]bool, error) {
	shift := make(map[string]int)
	written := make(map[string]bool)

	for _, plan := range plans {
		sheet := plan.Sheet
		anchor := plan.AnchorRow + shift[sheet]
		term := plan.TerminatorRow
		if term > 0 {
			term += shift[sheet]
		}

		n := len(bc.Records)
		m := term - anchor
		if term == 0 {
			m = sheetTailRow(f, sheet) - anchor + 1
			if m < 1 {
				m = 1
			}
		}

		if n > m {
			inserts := n - m
			srcRow := anchor + m - 1
			for i := 0; i < inserts; i++ {
				if err := f.DuplicateRowTo(sheet, srcRow, srcRow+1); err != nil {
					return nil, NewError(KindInternal, fmt.Sprintf("insert row below %s!%d", sheet, srcRow), err)
				}
				srcRow++
			}
			if term > 0 {
				term += inserts
			}
			shift[sheet] += inserts
		}

		for i := 0; i < n; i++ {
			row := anchor + i
			for _, col := range plan.Columns {
				if err := setCell(f, sheet, col.Col, row, bc.Records[i][col.Field]); err != nil {
					return nil, err
				}
				written[cellKey(sheet, col.Col, row)] = true
			}
		}

		// Unused reserved rows and the terminator row itself are blanked in
		// every list-bound column, whatever N turned out to be.
		if term > 0 {
			for row := anchor + n; row <= term; row++ {
				for _, col := range plan.Columns {
					if err := clearCell(f, sheet, col.Col, row); err != nil {
						return nil, err
					}
				}
			}
		}
	}
	return written, nil
}

func cellKey(sheet string, col, row int) string {
	return sheet + "!" + cellName(col, row)
}

func setCell(f *excelize.File, sheet string, col, row int, value any) error {
	cell := cellName(col, row)
	var err error
	switch v := value.(type) {
	case nil:
		err = f.SetCellStr(sheet, cell, "")
	case int:
		err = f.SetCellInt(sheet, cell, v)
	case float64:
		err = f.SetCellFloat(sheet, cell, v, -1, 64)
	case string:
		err = f.SetCellStr(sheet, cell, v)
	default:
		err = f.SetCellStr(sheet, cell, formatValue(value))
	}
	if err != nil {
		return NewError(KindInternal, fmt.Sprintf("write cell %s!%s", sheet, cell), err)
	}
	return nil
}

func clearCell(f *excelize.File, sheet string, col, row int) error {
	cell := cellName(col, row)
	if err := f.SetCellStr(sheet, cell, ""); err != nil {
		return NewError(KindInternal, fmt.Sprintf("clear cell %s!%s", sheet, cell), err)
	}
	return nil
}
