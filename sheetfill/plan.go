package sheetfill

import (
	"fmt"
	"sort"
)

// columnBinding is one matched list block in a column: a head paired with
// the first terminator below it. A column may carry several blocks stacked
// top to bottom; each block gets its own binding.
type columnBinding struct {
	Sheet         string
	Col           int
	Field         FieldKey
	AnchorRow     int
	TerminatorRow int // 0 when unterminated

	// Authoring problems found while matching.
	DuplicateHeads []Placeholder // heads inside a still-open block
	OrphanTerms    []Placeholder // terminators with no open head
}

// matchListBindings pairs each list head with the first terminator strictly
// below it in the same column. A head after a closed block opens a fresh
// binding; a head inside an open block and a terminator with no open head
// are recorded, not dropped, so the validator can report them.
func matchListBindings(placeholders []Placeholder) []columnBinding {
	type colKey struct {
		sheet string
		col   int
	}

	byColumn := make(map[colKey][]Placeholder)
	var order []colKey
	for _, ph := range placeholders {
		if ph.Kind == KindScalar {
			continue
		}
		key := colKey{sheet: ph.Sheet, col: ph.Col}
		if _, seen := byColumn[key]; !seen {
			order = append(order, key)
		}
		byColumn[key] = append(byColumn[key], ph)
	}

	var bindings []columnBinding
	for _, key := range order {
		tokens := byColumn[key]
		sort.Slice(tokens, func(i, j int) bool { return tokens[i].Row < tokens[j].Row })

		var cur *columnBinding
		open := false
		flush := func() {
			if cur != nil {
				bindings = append(bindings, *cur)
				cur = nil
			}
		}
		for _, ph := range tokens {
			switch ph.Kind {
			case KindListHead:
				if open {
					cur.DuplicateHeads = append(cur.DuplicateHeads, ph)
					continue
				}
				flush()
				cur = &columnBinding{Sheet: key.sheet, Col: key.col, Field: ph.Field, AnchorRow: ph.Row}
				open = true
			case KindListTerminator:
				if !open {
					if cur == nil {
						cur = &columnBinding{Sheet: key.sheet, Col: key.col}
					}
					cur.OrphanTerms = append(cur.OrphanTerms, ph)
					continue
				}
				cur.TerminatorRow = ph.Row
				open = false
			}
		}
		flush()
	}
	return bindings
}

// BuildPlans groups list-bound columns by shared anchor row into expansion
// plans. Anchor and terminator disagreements should have been rejected by
// validation; they are re-checked here so a stale template can never produce
// a partially expanded grid.
func BuildPlans(placeholders []Placeholder) ([]ExpansionPlan, error) {
	bindings := matchListBindings(placeholders)

	type groupKey struct {
		sheet  string
		anchor int
	}
	groups := make(map[groupKey]*ExpansionPlan)
	var order []groupKey

	for _, b := range bindings {
		if b.AnchorRow == 0 {
			continue
		}
		if len(b.DuplicateHeads) > 0 {
			return nil, NewError(KindExpansionConflict,
				fmt.Sprintf("%s!%s: duplicate list binding in column", b.Sheet, cellName(b.Col, b.DuplicateHeads[0].Row)), nil)
		}
		key := groupKey{sheet: b.Sheet, anchor: b.AnchorRow}
		plan, ok := groups[key]
		if !ok {
			plan = &ExpansionPlan{Sheet: b.Sheet, AnchorRow: b.AnchorRow, TerminatorRow: b.TerminatorRow}
			groups[key] = plan
			order = append(order, key)
		} else if plan.TerminatorRow != b.TerminatorRow {
			return nil, NewError(KindExpansionConflict,
				fmt.Sprintf("%s: list columns anchored at row %d disagree on terminator row", b.Sheet, b.AnchorRow), nil)
		}
		plan.Columns = append(plan.Columns, PlanColumn{Col: b.Col, Field: b.Field})
	}

	plans := make([]ExpansionPlan, 0, len(order))
	for _, key := range order {
		plan := groups[key]
		sort.Slice(plan.Columns, func(i, j int) bool { return plan.Columns[i].Col < plan.Columns[j].Col })
		plans = append(plans, *plan)
	}
	// Top-to-bottom per sheet so an earlier expansion's row shift is applied
	// before a later group's rows are touched.
	sort.SliceStable(plans, func(i, j int) bool {
		if plans[i].Sheet != plans[j].Sheet {
			return plans[i].Sheet < plans[j].Sheet
		}
		return plans[i].AnchorRow < plans[j].AnchorRow
	})
	return plans, nil
}
