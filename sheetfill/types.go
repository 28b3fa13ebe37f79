package sheetfill

import (
	"context"
	"time"
)

// Orientation is the page orientation of a rendered document.
type Orientation string

const (
	OrientationPortrait  Orientation = "portrait"
	OrientationLandscape Orientation = "landscape"
)

// Template is an administrator-authored workbook plus metadata. Templates are
// replaced wholesale on re-upload; the store never mutates one in place.
type Template struct {
	Key         string
	Name        string
	Orientation Orientation
	Data        []byte
	Issues      []Issue
	UploadedAt  time.Time
}

// TemplateStore persists templates keyed by string. Get must return a
// consistent snapshot: the returned Data must not alias bytes a concurrent
// Put could overwrite.
type TemplateStore interface {
	Put(ctx context.Context, tpl Template) error
	Get(ctx context.Context, key string) (Template, error)
	Delete(ctx context.Context, key string) error
	List(ctx context.Context) ([]Template, error)
}

// PlaceholderKind classifies a template placeholder token.
type PlaceholderKind string

const (
	KindScalar         PlaceholderKind = "scalar"
	KindListHead       PlaceholderKind = "list_head"
	KindListTerminator PlaceholderKind = "list_terminator"
)

// Placeholder is a classified template token with its cell coordinates.
// Placeholders are derived by scanning cell text and never persisted.
type Placeholder struct {
	Raw   string
	Kind  PlaceholderKind
	Field FieldKey
	Sheet string
	Row   int
	Col   int
}

// ImageRef points at an uploaded signature image on disk. Image bytes are
// read lazily when the workbook is materialized, not at resolve time.
type ImageRef struct {
	Path string
}

// Missing reports whether no image was uploaded for this reference.
func (r ImageRef) Missing() bool { return r.Path == "" }

// Record holds one award row's resolved values keyed by list field.
type Record map[FieldKey]any

// BindingContext is the resolved, read-only view of one student's export
// data. It is built fresh per export and must never be shared across
// concurrent exports.
type BindingContext struct {
	Scalars map[FieldKey]any
	Records []Record
}

// PlanColumn is one list-bound column inside an expansion group.
type PlanColumn struct {
	Col   int
	Field FieldKey
}

// ExpansionPlan describes one list group: the columns that expand together
// from a shared anchor row down to an optional terminator row.
type ExpansionPlan struct {
	Sheet         string
	AnchorRow     int
	TerminatorRow int // 0 when the group has no terminator
	Columns       []PlanColumn
}

// AvailableRows is the number of rows reserved between anchor and
// terminator. Groups without a terminator report 0; their capacity is the
// sheet tail, computed against the live grid at expansion time.
func (p ExpansionPlan) AvailableRows() int {
	if p.TerminatorRow == 0 {
		return 0
	}
	return p.TerminatorRow - p.AnchorRow
}

// RenderJob is a materialized workbook queued for external rendering. A job
// is a value object consumed exactly once.
type RenderJob struct {
	Workbook    []byte
	Orientation Orientation
	Deadline    time.Time
}

// Document is a rendered export artifact.
type Document struct {
	Bytes       []byte
	ContentType string
	Filename    string
}

// RenderEngine converts a materialized workbook into a paginated document.
// Engines are owned by pool handles; one job occupies an engine at a time.
type RenderEngine interface {
	Render(ctx context.Context, job RenderJob) ([]byte, error)
	Close() error
}

// EngineFactory creates renderer engines for the pool, including
// replacements for crashed ones.
type EngineFactory func() (RenderEngine, error)

// Logger provides logging hooks.
type Logger interface {
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Errorf(format string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Debugf(string, ...any) {}
func (nopLogger) Infof(string, ...any)  {}
func (nopLogger) Errorf(string, ...any) {}
