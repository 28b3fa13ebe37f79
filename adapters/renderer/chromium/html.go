package chromium

import (
	"bytes"
	"fmt"
	"html"
	"strings"

	"github.com/flosch/pongo2/v6"
	"github.com/goliatone/go-sheetfill/sheetfill"
	"github.com/xuri/excelize/v2"
)

var pageShell = pongo2.Must(pongo2.FromString(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{ title }}</title>
<style>
@page { size: {{ page_size }}; margin: 12mm; }
body { font-family: "Noto Sans CJK SC", "SimSun", sans-serif; font-size: 11pt; }
table { border-collapse: collapse; width: 100%; margin-bottom: 8mm; }
td { border: 0.5pt solid #333; padding: 2pt 4pt; vertical-align: middle; }
</style>
</head>
<body>
{{ body | safe }}
</body>
</html>`))

// workbookHTML serializes every sheet of an XLSX workbook into one HTML
// page of tables. Merged regions become rowspan/colspan attributes and the
// covered cells are dropped.
func workbookHTML(workbook []byte, orientation sheetfill.Orientation) (string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(workbook))
	if err != nil {
		return "", sheetfill.NewError(sheetfill.KindValidation, "workbook is not a readable spreadsheet", err)
	}
	defer f.Close()

	var body strings.Builder
	for _, sheet := range f.GetSheetList() {
		table, err := sheetTable(f, sheet)
		if err != nil {
			return "", err
		}
		body.WriteString(table)
	}

	pageSize := "A4 portrait"
	if orientation == sheetfill.OrientationLandscape {
		pageSize = "A4 landscape"
	}

	out, err := pageShell.Execute(pongo2.Context{
		"title":     "export",
		"page_size": pageSize,
		"body":      body.String(),
	})
	if err != nil {
		return "", sheetfill.NewError(sheetfill.KindInternal, "render html page shell", err)
	}
	return out, nil
}

type mergeSpan struct {
	rowSpan int
	colSpan int
}

type cellRef struct {
	row int
	col int
}

func sheetTable(f *excelize.File, sheet string) (string, error) {
	rows, err := f.GetRows(sheet)
	if err != nil {
		return "", sheetfill.NewError(sheetfill.KindInternal, fmt.Sprintf("read sheet %q", sheet), err)
	}

	spans, covered, err := sheetMerges(f, sheet)
	if err != nil {
		return "", err
	}

	width := 0
	for _, row := range rows {
		if len(row) > width {
			width = len(row)
		}
	}

	var b strings.Builder
	b.WriteString("<table>\n")
	for ri, row := range rows {
		b.WriteString("<tr>")
		for ci := 0; ci < width; ci++ {
			ref := cellRef{row: ri + 1, col: ci + 1}
			if covered[ref] {
				continue
			}
			text := ""
			if ci < len(row) {
				text = row[ci]
			}
			b.WriteString("<td")
			if span, ok := spans[ref]; ok {
				if span.rowSpan > 1 {
					fmt.Fprintf(&b, ` rowspan="%d"`, span.rowSpan)
				}
				if span.colSpan > 1 {
					fmt.Fprintf(&b, ` colspan="%d"`, span.colSpan)
				}
			}
			b.WriteString(">")
			if text == "" {
				b.WriteString("&nbsp;")
			} else {
				b.WriteString(html.EscapeString(text))
			}
			b.WriteString("</td>")
		}
		b.WriteString("</tr>\n")
	}
	b.WriteString("</table>\n")
	return b.String(), nil
}

// sheetMerges maps each merge region's top-left cell to its span and marks
// every other cell of the region as covered.
func sheetMerges(f *excelize.File, sheet string) (map[cellRef]mergeSpan, map[cellRef]bool, error) {
	merges, err := f.GetMergeCells(sheet)
	if err != nil {
		return nil, nil, sheetfill.NewError(sheetfill.KindInternal, fmt.Sprintf("read merges of sheet %q", sheet), err)
	}

	spans := make(map[cellRef]mergeSpan, len(merges))
	covered := make(map[cellRef]bool)
	for _, merge := range merges {
		startCol, startRow, err := excelize.CellNameToCoordinates(merge.GetStartAxis())
		if err != nil {
			return nil, nil, err
		}
		endCol, endRow, err := excelize.CellNameToCoordinates(merge.GetEndAxis())
		if err != nil {
			return nil, nil, err
		}
		spans[cellRef{row: startRow, col: startCol}] = mergeSpan{
			rowSpan: endRow - startRow + 1,
			colSpan: endCol - startCol + 1,
		}
		for r := startRow; r <= endRow; r++ {
			for c := startCol; c <= endCol; c++ {
				if r == startRow && c == startCol {
					continue
				}
				covered[cellRef{row: r, col: c}] = true
			}
		}
	}
	return spans, covered, nil
}
