package sheetfill

import (
	"fmt"
	"sort"
)

// Issue is one template authoring problem. Advisory issues do not block
// saving the template or exporting with it; they may resolve themselves as
// custom fields are configured later.
type Issue struct {
	Message  string
	Advisory bool
}

func (i Issue) String() string { return i.Message }

// Blocking filters issues that must stop an export.
func Blocking(issues []Issue) []Issue {
	var blocking []Issue
	for _, issue := range issues {
		if !issue.Advisory {
			blocking = append(blocking, issue)
		}
	}
	return blocking
}

// IssueMessages flattens issues to their persisted string form.
func IssueMessages(issues []Issue) []string {
	messages := make([]string, len(issues))
	for i, issue := range issues {
		messages[i] = issue.Message
	}
	return messages
}

// Validate scans a template's cells and reports structural issues without
// touching any student data. It never mutates the template; re-running it on
// identical bytes against the same catalog yields identical issues. The
// returned error is reserved for unreadable workbook bytes.
func Validate(data []byte, catalog *Catalog) ([]Issue, error) {
	f, err := OpenWorkbook(data)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	cells, err := readCells(f)
	if err != nil {
		return nil, err
	}
	return validateCells(cells, catalog), nil
}

type positionedIssue struct {
	sheet string
	row   int
	col   int
	issue Issue
}

func validateCells(cells []gridCell, catalog *Catalog) []Issue {
	var found []positionedIssue
	report := func(sheet string, row, col int, advisory bool, format string, args ...any) {
		found = append(found, positionedIssue{
			sheet: sheet,
			row:   row,
			col:   col,
			issue: Issue{
				Message:  fmt.Sprintf("%s!%s: %s", sheet, cellName(col, row), fmt.Sprintf(format, args...)),
				Advisory: advisory,
			},
		})
	}

	for _, cell := range cells {
		if _, ok := SoleToken(cell.Text); ok {
			continue
		}
		for _, token := range ParseTokens(cell.Text) {
			switch token.Kind {
			case KindListHead:
				report(cell.Sheet, cell.Row, cell.Col, false, "list placeholder %s must occupy a cell by itself", token.Raw)
			case KindListTerminator:
				report(cell.Sheet, cell.Row, cell.Col, false, "list terminator must occupy a cell by itself")
			}
		}
	}

	placeholders := scanPlaceholders(cells)
	for _, ph := range placeholders {
		switch ph.Kind {
		case KindScalar:
			checkFieldKey(ph, catalog, report)
		case KindListHead:
			checkFieldKey(ph, catalog, report)
		}
	}

	bindings := matchListBindings(placeholders)
	type groupKey struct {
		sheet  string
		anchor int
	}
	terminators := make(map[groupKey]int)
	flagged := make(map[groupKey]bool)
	for _, b := range bindings {
		for _, dup := range b.DuplicateHeads {
			report(dup.Sheet, dup.Row, dup.Col, false, "nested/duplicate list binding for %s", dup.Raw)
		}
		for _, orphan := range b.OrphanTerms {
			report(orphan.Sheet, orphan.Row, orphan.Col, true, "terminator without matching list head")
		}
		if b.AnchorRow == 0 {
			continue
		}
		key := groupKey{sheet: b.Sheet, anchor: b.AnchorRow}
		if prev, seen := terminators[key]; seen {
			if prev != b.TerminatorRow && !flagged[key] {
				report(b.Sheet, b.AnchorRow, b.Col, false, "list columns anchored at row %d disagree on terminator row", b.AnchorRow)
				flagged[key] = true
			}
		} else {
			terminators[key] = b.TerminatorRow
		}
	}

	sort.SliceStable(found, func(i, j int) bool {
		if found[i].sheet != found[j].sheet {
			return found[i].sheet < found[j].sheet
		}
		if found[i].row != found[j].row {
			return found[i].row < found[j].row
		}
		return found[i].col < found[j].col
	})

	issues := make([]Issue, 0, len(found))
	for _, pi := range found {
		issues = append(issues, pi.issue)
	}
	return issues
}

func checkFieldKey(ph Placeholder, catalog *Catalog, report func(string, int, int, bool, string, ...any)) {
	key := ph.Field
	if key == "" {
		report(ph.Sheet, ph.Row, ph.Col, false, "empty field reference in %s", ph.Raw)
		return
	}

	if key.IsCustom() {
		if !catalog.CustomDefined(key) {
			report(ph.Sheet, ph.Row, ph.Col, true, "custom field %q is not configured", key.CustomName())
		}
		return
	}

	switch ph.Kind {
	case KindScalar:
		if catalog.ScalarAllowed(key) {
			return
		}
		if catalog.ListAllowed(key) {
			report(ph.Sheet, ph.Row, ph.Col, false, "list field %q is not usable in a scalar binding", key)
			return
		}
		report(ph.Sheet, ph.Row, ph.Col, false, "unknown field %q", key)
	case KindListHead:
		if catalog.ListAllowed(key) {
			return
		}
		if catalog.ScalarAllowed(key) {
			report(ph.Sheet, ph.Row, ph.Col, false, "scalar field %q is not usable in a list binding", key)
			return
		}
		report(ph.Sheet, ph.Row, ph.Col, false, "unknown field %q", key)
	}
}
