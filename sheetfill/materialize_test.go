package sheetfill

import (
	"strings"
	"testing"
	"time"
)

func awardNamed(name string, hours float64) Award {
	return Award{
		ContestName: name,
		Year:        "2024",
		Category:    "contest",
		Level:       "provincial",
		AwardTier:   "first",
		SelfHours:   hours,
		FirstHours:  hours,
		Status:      StatusApproved,
	}
}

func materializeTemplate(t *testing.T, data []byte, student Student, custom ...string) []byte {
	t.Helper()

	catalog := testCatalog(custom...)
	tpl := Template{Key: "tpl", Data: data}
	out, err := Materialize(tpl, Resolve(student, catalog, ResolveOptions{}), catalog)
	if err != nil {
		t.Fatalf("materialize: %v", err)
	}
	return out
}

// Records overflow the reserved block: head at row 5, terminator at row 8
// leaves three reserved rows; five records push the footer at row 9 down to
// row 11 and the terminator content is gone.
func TestExpandOverflowShiftsFooter(t *testing.T) {
	data := buildWorkbook(t, map[string]string{
		"B5": "{{list:contest_name}}",
		"B8": "{{/list}}",
		"A9": "footer",
		"B9": "untouched sibling",
	})
	student := Student{Awards: []Award{
		awardNamed("one", 1), awardNamed("two", 2), awardNamed("three", 3),
		awardNamed("four", 4), awardNamed("five", 5),
	}}

	out := materializeTemplate(t, data, student)

	for i, want := range []string{"one", "two", "three", "four", "five"} {
		if got := sheetCell(t, out, cellName(2, 5+i)); got != want {
			t.Errorf("B%d = %q, want %q", 5+i, got, want)
		}
	}
	// Terminator shifted from row 8 to row 10 and blanked.
	if got := sheetCell(t, out, "B10"); got != "" {
		t.Errorf("shifted terminator cell = %q, want empty", got)
	}
	if got := sheetCell(t, out, "A11"); got != "footer" {
		t.Errorf("A11 = %q, want footer shifted down by 2", got)
	}
	if got := sheetCell(t, out, "B11"); got != "untouched sibling" {
		t.Errorf("B11 = %q, want sibling content shifted intact", got)
	}
}

// Records fit inside the reserved block: the row count is unchanged, spare
// rows and the terminator are blanked.
func TestExpandUnderflowKeepsRowCount(t *testing.T) {
	data := buildWorkbook(t, map[string]string{
		"B5":  "{{list:contest_name}}",
		"B6":  "stale text",
		"B8":  "{{/list}}",
		"A10": "footer",
	})
	student := Student{Awards: []Award{awardNamed("only", 2)}}

	before := sheetRowCount(t, data)
	out := materializeTemplate(t, data, student)

	if got := sheetRowCount(t, out); got != before {
		t.Errorf("row count = %d, want %d", got, before)
	}
	if got := sheetCell(t, out, "B5"); got != "only" {
		t.Errorf("B5 = %q", got)
	}
	for _, cell := range []string{"B6", "B7", "B8"} {
		if got := sheetCell(t, out, cell); got != "" {
			t.Errorf("%s = %q, want cleared", cell, got)
		}
	}
	if got := sheetCell(t, out, "A10"); got != "footer" {
		t.Errorf("footer moved: A10 = %q", got)
	}
}

func TestExpandZeroRecordsBlanksBlock(t *testing.T) {
	data := buildWorkbook(t, map[string]string{
		"B5": "{{list:contest_name}}",
		"B7": "{{/list}}",
	})

	out := materializeTemplate(t, data, Student{})

	for _, cell := range []string{"B5", "B6", "B7"} {
		if got := sheetCell(t, out, cell); got != "" {
			t.Errorf("%s = %q, want empty table", cell, got)
		}
	}
}

// Without a terminator the block expands into the sheet tail, appending
// rows as needed.
func TestExpandUnboundedTail(t *testing.T) {
	data := buildWorkbook(t, map[string]string{
		"B5": "{{list:contest_name}}",
	})
	student := Student{Awards: []Award{
		awardNamed("one", 1), awardNamed("two", 2), awardNamed("three", 3),
	}}

	out := materializeTemplate(t, data, student)

	for i, want := range []string{"one", "two", "three"} {
		if got := sheetCell(t, out, cellName(2, 5+i)); got != want {
			t.Errorf("B%d = %q, want %q", 5+i, got, want)
		}
	}
}

// Sibling list columns share the anchor and expand together; seq renumbers
// in emitted order.
func TestExpandSiblingColumnsAndSeq(t *testing.T) {
	data := buildWorkbook(t, map[string]string{
		"A3": "{{list:seq}}",
		"B3": "{{list:contest_name}}",
		"A5": "{{/list}}",
		"B5": "{{/list}}",
	})
	student := Student{Awards: []Award{
		awardNamed("alpha", 1), awardNamed("beta", 2), awardNamed("gamma", 3),
	}}

	out := materializeTemplate(t, data, student)

	for i := 0; i < 3; i++ {
		row := 3 + i
		if got := sheetCell(t, out, cellName(1, row)); got != []string{"1", "2", "3"}[i] {
			t.Errorf("seq at row %d = %q", row, got)
		}
	}
	if got := sheetCell(t, out, "B4"); got != "beta" {
		t.Errorf("B4 = %q", got)
	}
}

// Two independent tables on one sheet: the first group's expansion shifts
// the second group's anchor before it runs.
func TestExpandMultipleGroupsTopToBottom(t *testing.T) {
	data := buildWorkbook(t, map[string]string{
		"B2": "{{list:contest_name}}",
		"B3": "{{/list}}",
		"D6": "{{list:award_tier}}",
		"D7": "{{/list}}",
	})
	student := Student{Awards: []Award{
		awardNamed("one", 1), awardNamed("two", 2), awardNamed("three", 3),
	}}

	out := materializeTemplate(t, data, student)

	// First group gained two rows, pushing the second group down.
	if got := sheetCell(t, out, "B4"); got != "three" {
		t.Errorf("B4 = %q, want third record of first group", got)
	}
	for i, want := range []string{"first", "first", "first"} {
		if got := sheetCell(t, out, cellName(4, 8+i)); got != want {
			t.Errorf("D%d = %q, want %q", 8+i, got, want)
		}
	}
}

// Two stacked tables can share a column; the first block's growth shifts
// the second block's anchor and terminator down before it expands.
func TestExpandStackedBlocksSameColumn(t *testing.T) {
	data := buildWorkbook(t, map[string]string{
		"B2": "{{list:contest_name}}",
		"B4": "{{/list}}",
		"B7": "{{list:award_tier}}",
		"B9": "{{/list}}",
	})
	student := Student{Awards: []Award{
		awardNamed("one", 1), awardNamed("two", 2), awardNamed("three", 3),
	}}

	out := materializeTemplate(t, data, student)

	for i, want := range []string{"one", "two", "three"} {
		if got := sheetCell(t, out, cellName(2, 2+i)); got != want {
			t.Errorf("B%d = %q, want %q", 2+i, got, want)
		}
	}
	if got := sheetCell(t, out, "B5"); got != "" {
		t.Errorf("first block's shifted terminator = %q, want blank", got)
	}
	for i := 0; i < 3; i++ {
		if got := sheetCell(t, out, cellName(2, 8+i)); got != "first" {
			t.Errorf("B%d = %q, want award tier from second block", 8+i, got)
		}
	}
	if got := sheetCell(t, out, "B11"); got != "" {
		t.Errorf("second block's shifted terminator = %q, want blank", got)
	}
}

// Record values are emitted verbatim: brace markup typed into student data
// is plain text, not a placeholder.
func TestListValueWithBraceMarkupIsLiteral(t *testing.T) {
	data := buildWorkbook(t, map[string]string{
		"B2": "{{list:contest_name}}",
		"B4": "{{/list}}",
	})
	student := Student{Awards: []Award{awardNamed("凤凰杯{{award_tier}}组竞赛", 2)}}

	out := materializeTemplate(t, data, student)

	if got := sheetCell(t, out, "B2"); got != "凤凰杯{{award_tier}}组竞赛" {
		t.Errorf("B2 = %q, want the literal contest name", got)
	}
}

// Scenario B: scalar embedded in literal text renders inline.
func TestScalarEmbeddedInText(t *testing.T) {
	data := buildWorkbook(t, map[string]string{
		"A1": "合计：{{total_approved_hours}}学时",
	})
	student := Student{Awards: []Award{
		awardNamed("a", 5), awardNamed("b", 7),
	}}

	out := materializeTemplate(t, data, student)

	if got := sheetCell(t, out, "A1"); got != "合计：12学时" {
		t.Errorf("A1 = %q, want 合计：12学时", got)
	}
}

// Scenario C: an unset custom field renders empty, not as the literal
// placeholder text.
func TestCustomFieldMissingValueRendersEmpty(t *testing.T) {
	data := buildWorkbook(t, map[string]string{
		"B2": "{{list:custom.sponsor}}",
		"B4": "{{/list}}",
	})
	award := awardNamed("x", 1)
	student := Student{Awards: []Award{award}}

	out := materializeTemplate(t, data, student, "sponsor")

	if got := sheetCell(t, out, "B2"); got != "" {
		t.Errorf("B2 = %q, want empty string", got)
	}
	if strings.Contains(sheetCell(t, out, "B2"), "{{") {
		t.Error("placeholder literal leaked into output")
	}
}

func TestOrphanTerminatorBlankedInOutput(t *testing.T) {
	data := buildWorkbook(t, map[string]string{
		"E9": "{{/list}}",
	})

	out := materializeTemplate(t, data, Student{})

	if got := sheetCell(t, out, "E9"); got != "" {
		t.Errorf("E9 = %q, want blank", got)
	}
}

func TestMaterializeUnresolvableFieldFails(t *testing.T) {
	data := buildWorkbook(t, map[string]string{"A1": "{{name}}"})
	catalog := testCatalog()
	bc := Resolve(Student{Name: "x"}, catalog, ResolveOptions{})
	delete(bc.Scalars, FieldName)

	_, err := Materialize(Template{Key: "tpl", Data: data}, bc, catalog)
	if err == nil {
		t.Fatal("expected unresolvable field error")
	}
	if KindFromError(err) != KindUnresolvableField {
		t.Errorf("kind = %q, want unresolvable_field", KindFromError(err))
	}
}

func TestMaterializeDateAndNumberFormatting(t *testing.T) {
	data := buildWorkbook(t, map[string]string{
		"A1": "{{list:award_date}}",
		"B1": "{{list:recommended_hours}}",
	})
	award := awardNamed("x", 0)
	award.SelfHours = 6.5
	award.FirstHours = 6.5
	award.AwardedOn = time.Date(2024, 5, 20, 0, 0, 0, 0, time.UTC)
	student := Student{Awards: []Award{award}}

	out := materializeTemplate(t, data, student)

	if got := sheetCell(t, out, "A1"); got != "2024-05-20" {
		t.Errorf("A1 = %q", got)
	}
	if got := sheetCell(t, out, "B1"); got != "6.5" {
		t.Errorf("B1 = %q", got)
	}
}
