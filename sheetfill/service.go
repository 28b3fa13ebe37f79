package sheetfill

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultRenderTimeout bounds a single renderer invocation.
const DefaultRenderTimeout = 60 * time.Second

// PDFContentType is the content type of rendered documents.
const PDFContentType = "application/pdf"

// Service coordinates template management and the export pipeline.
type Service interface {
	UploadTemplate(ctx context.Context, tpl Template) ([]Issue, error)
	TemplateIssues(ctx context.Context, key string) ([]Issue, error)
	DeleteTemplate(ctx context.Context, key string) error
	Export(ctx context.Context, templateKey string, student Student) (Document, error)
}

// ServiceConfig supplies dependencies for Service.
type ServiceConfig struct {
	Store         TemplateStore
	Catalog       *Catalog
	Pool          *RendererPool
	Logger        Logger
	Resolve       ResolveOptions
	RenderTimeout time.Duration
	Now           func() time.Time
	IDGenerator   func() string
}

type service struct {
	store         TemplateStore
	catalog       *Catalog
	pool          *RendererPool
	logger        Logger
	resolve       ResolveOptions
	renderTimeout time.Duration
	now           func() time.Time
	idGenerator   func() string
}

// NewService creates a Service with the provided configuration.
func NewService(cfg ServiceConfig) (Service, error) {
	if cfg.Store == nil {
		return nil, NewError(KindValidation, "service requires a template store", nil)
	}
	if cfg.Catalog == nil {
		return nil, NewError(KindValidation, "service requires a field catalog", nil)
	}
	if cfg.Pool == nil {
		return nil, NewError(KindValidation, "service requires a renderer pool", nil)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = nopLogger{}
	}
	timeout := cfg.RenderTimeout
	if timeout <= 0 {
		timeout = DefaultRenderTimeout
	}
	nowFn := cfg.Now
	if nowFn == nil {
		nowFn = time.Now
	}
	idGen := cfg.IDGenerator
	if idGen == nil {
		idGen = uuid.NewString
	}

	return &service{
		store:         cfg.Store,
		catalog:       cfg.Catalog,
		pool:          cfg.Pool,
		logger:        logger,
		resolve:       cfg.Resolve,
		renderTimeout: timeout,
		now:           nowFn,
		idGenerator:   idGen,
	}, nil
}

// UploadTemplate validates and stores a template wholesale, returning the
// issue list. Authoring issues never block the upload; the administrator
// fixes them against the returned list, and Export refuses until the
// blocking ones are gone. Only unreadable workbook bytes reject the upload.
func (s *service) UploadTemplate(ctx context.Context, tpl Template) ([]Issue, error) {
	if tpl.Key == "" {
		return nil, NewError(KindValidation, "template key is required", nil)
	}
	if tpl.Orientation == "" {
		tpl.Orientation = OrientationPortrait
	}

	issues, err := Validate(tpl.Data, s.catalog)
	if err != nil {
		return nil, err
	}
	tpl.Issues = issues
	tpl.UploadedAt = s.now()

	if err := s.store.Put(ctx, tpl); err != nil {
		return nil, err
	}
	s.logger.Infof("template %q stored with %d issue(s)", tpl.Key, len(issues))
	return issues, nil
}

// TemplateIssues recomputes validation issues against the current catalog,
// so references to custom fields configured after upload settle without a
// re-upload.
func (s *service) TemplateIssues(ctx context.Context, key string) ([]Issue, error) {
	tpl, err := s.store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	return Validate(tpl.Data, s.catalog)
}

func (s *service) DeleteTemplate(ctx context.Context, key string) error {
	return s.store.Delete(ctx, key)
}

// Export drives the full pipeline: load a template snapshot, re-validate,
// resolve the student's binding context, expand and materialize the
// workbook, then render it on a pooled external renderer.
func (s *service) Export(ctx context.Context, templateKey string, student Student) (Document, error) {
	exportID := s.idGenerator()

	tpl, err := s.store.Get(ctx, templateKey)
	if err != nil {
		return Document{}, err
	}

	issues, err := Validate(tpl.Data, s.catalog)
	if err != nil {
		return Document{}, err
	}
	if blocking := Blocking(issues); len(blocking) > 0 {
		return Document{}, NewError(KindTemplateInvalid,
			fmt.Sprintf("template %q has %d validation issue(s), first: %s", templateKey, len(blocking), blocking[0].Message), nil)
	}

	bc := Resolve(student, s.catalog, s.resolve)
	workbook, err := Materialize(tpl, bc, s.catalog)
	if err != nil {
		s.logger.Errorf("export %s: materialize failed: %v", exportID, err)
		return Document{}, err
	}

	job := RenderJob{
		Workbook:    workbook,
		Orientation: tpl.Orientation,
		Deadline:    s.now().Add(s.renderTimeout),
	}
	rendered, err := s.render(ctx, exportID, job)
	if err != nil {
		s.logger.Errorf("export %s: render failed: %v", exportID, err)
		return Document{}, err
	}

	s.logger.Infof("export %s: template=%q student=%q rendered %d bytes", exportID, templateKey, student.StudentNo, len(rendered))
	return Document{
		Bytes:       rendered,
		ContentType: PDFContentType,
		Filename:    exportFilename(tpl, student),
	}, nil
}

// render acquires a pooled handle and runs the job under the render
// deadline. A crashed renderer is discarded and the job retried once on a
// fresh handle; timeouts, pool exhaustion and caller cancellation surface
// to the caller without internal retries, so a saturated converter is not
// hammered further and an abandoned request stops immediately.
func (s *service) render(ctx context.Context, exportID string, job RenderJob) ([]byte, error) {
	rendered, err := s.renderOnce(ctx, job)
	if KindFromError(err) == KindRendererCrashed {
		s.logger.Infof("export %s: renderer crashed, retrying on a fresh handle", exportID)
		rendered, err = s.renderOnce(ctx, job)
	}
	return rendered, err
}

func (s *service) renderOnce(ctx context.Context, job RenderJob) ([]byte, error) {
	handle, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}

	renderCtx, cancel := context.WithDeadline(ctx, job.Deadline)
	defer cancel()

	rendered, err := handle.Render(renderCtx, job)
	if err != nil {
		// Crashed or wedged engines must not return to the pool.
		s.pool.Discard(handle)
		if renderCtx.Err() == context.Canceled || KindFromError(err) == KindCanceled {
			return nil, NewError(KindCanceled, "render canceled by caller", err)
		}
		if renderCtx.Err() == context.DeadlineExceeded {
			return nil, NewError(KindRendererTimeout, "renderer exceeded deadline", err)
		}
		if kind := KindFromError(err); kind == KindRendererCrashed || kind == KindRendererTimeout {
			return nil, err
		}
		return nil, NewError(KindRendererCrashed, "renderer failed", err)
	}
	s.pool.Release(handle)
	return rendered, nil
}

func exportFilename(tpl Template, student Student) string {
	base := tpl.Name
	if base == "" {
		base = tpl.Key
	}
	if student.StudentNo != "" {
		base += "-" + student.StudentNo
	}
	base = strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '-'
		}
		return r
	}, base)
	return base + ".pdf"
}
