// Package sheetfill binds spreadsheet templates against per-student
// certification data. Administrator-authored workbooks carry typed
// placeholders: {{field}} for inline scalar substitution, {{list:field}}
// marking the anchor of a vertically expanding table column, and {{/list}}
// terminating the reserved block. Templates are validated on upload, list
// rows are grown or shrunk in place at export time, and the materialized
// workbook is handed to a bounded pool of external renderers to produce the
// final paginated document.
package sheetfill
