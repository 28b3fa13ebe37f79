package sheetfill

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type memoryStore struct {
	mu        sync.RWMutex
	templates map[string]Template
}

func newMemoryStore() *memoryStore {
	return &memoryStore{templates: make(map[string]Template)}
}

func (s *memoryStore) Put(ctx context.Context, tpl Template) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	tpl.Data = append([]byte(nil), tpl.Data...)
	s.templates[tpl.Key] = tpl
	return nil
}

func (s *memoryStore) Get(ctx context.Context, key string) (Template, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	tpl, ok := s.templates[key]
	if !ok {
		return Template{}, NewError(KindTemplateNotFound, "template "+key+" not found", nil)
	}
	tpl.Data = append([]byte(nil), tpl.Data...)
	return tpl, nil
}

func (s *memoryStore) Delete(ctx context.Context, key string) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.templates, key)
	return nil
}

func (s *memoryStore) List(ctx context.Context) ([]Template, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	templates := make([]Template, 0, len(s.templates))
	for _, tpl := range s.templates {
		templates = append(templates, tpl)
	}
	return templates, nil
}

func newTestService(t *testing.T, factory EngineFactory, custom ...string) (Service, *memoryStore) {
	t.Helper()

	store := newMemoryStore()
	pool, err := NewRendererPool(PoolConfig{Size: 2, Factory: factory, AcquireTimeout: time.Second})
	if err != nil {
		t.Fatalf("new pool: %v", err)
	}
	t.Cleanup(pool.Close)

	svc, err := NewService(ServiceConfig{
		Store:   store,
		Catalog: testCatalog(custom...),
		Pool:    pool,
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc, store
}

func uploadTestTemplate(t *testing.T, svc Service, key string, cells map[string]string) []Issue {
	t.Helper()

	issues, err := svc.UploadTemplate(context.Background(), Template{
		Key:  key,
		Name: "劳动学时认定表",
		Data: buildWorkbook(t, cells),
	})
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	return issues
}

func TestServiceExportPipeline(t *testing.T) {
	factory := &fakeFactory{}
	svc, _ := newTestService(t, factory.new)

	uploadTestTemplate(t, svc, "cert", map[string]string{
		"A1": "学生：{{name}}",
		"B3": "{{list:contest_name}}",
		"B5": "{{/list}}",
	})

	doc, err := svc.Export(context.Background(), "cert", Student{
		StudentNo: "20240001",
		Name:      "李四",
		Awards:    []Award{awardNamed("网络安全竞赛", 4)},
	})
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if string(doc.Bytes) != "pdf" {
		t.Errorf("document bytes = %q", doc.Bytes)
	}
	if doc.ContentType != PDFContentType {
		t.Errorf("content type = %q", doc.ContentType)
	}
	if doc.Filename != "劳动学时认定表-20240001.pdf" {
		t.Errorf("filename = %q", doc.Filename)
	}
}

func TestServiceExportTemplateNotFound(t *testing.T) {
	factory := &fakeFactory{}
	svc, _ := newTestService(t, factory.new)

	_, err := svc.Export(context.Background(), "missing", Student{})
	if KindFromError(err) != KindTemplateNotFound {
		t.Fatalf("kind = %q, want template_not_found", KindFromError(err))
	}
}

func TestServiceExportRefusesInvalidTemplate(t *testing.T) {
	factory := &fakeFactory{}
	svc, _ := newTestService(t, factory.new)

	issues := uploadTestTemplate(t, svc, "broken", map[string]string{
		"A1": "{{no_such_field}}",
	})
	if len(issues) != 1 {
		t.Fatalf("upload issues = %v", issues)
	}

	_, err := svc.Export(context.Background(), "broken", Student{})
	if KindFromError(err) != KindTemplateInvalid {
		t.Fatalf("kind = %q, want template_invalid", KindFromError(err))
	}
}

// Advisory issues (unconfigured custom fields) block neither upload nor
// export.
func TestServiceExportAllowsAdvisoryIssues(t *testing.T) {
	factory := &fakeFactory{}
	svc, _ := newTestService(t, factory.new)

	issues := uploadTestTemplate(t, svc, "advisory", map[string]string{
		"A1": "{{custom.sponsor}}",
	})
	if len(issues) != 1 || !issues[0].Advisory {
		t.Fatalf("upload issues = %v", issues)
	}

	if _, err := svc.Export(context.Background(), "advisory", Student{}); err != nil {
		t.Fatalf("export: %v", err)
	}
}

func TestServiceCrashedRendererRetriedOnce(t *testing.T) {
	var calls int
	var mu sync.Mutex
	factory := &fakeFactory{
		render: func(ctx context.Context, job RenderJob) ([]byte, error) {
			mu.Lock()
			calls++
			first := calls == 1
			mu.Unlock()
			if first {
				return nil, NewError(KindRendererCrashed, "converter died", nil)
			}
			return []byte("pdf"), nil
		},
	}
	svc, _ := newTestService(t, factory.new)

	uploadTestTemplate(t, svc, "cert", map[string]string{"A1": "{{name}}"})

	doc, err := svc.Export(context.Background(), "cert", Student{Name: "x"})
	if err != nil {
		t.Fatalf("export after crash retry: %v", err)
	}
	if string(doc.Bytes) != "pdf" {
		t.Errorf("bytes = %q", doc.Bytes)
	}
	// Crashed engine was replaced, not reused.
	if factory.created.Load() != 2 {
		t.Errorf("engines created = %d, want 2", factory.created.Load())
	}
}

func TestServiceCrashedTwiceSurfaces(t *testing.T) {
	factory := &fakeFactory{
		render: func(ctx context.Context, job RenderJob) ([]byte, error) {
			return nil, errors.New("converter died")
		},
	}
	svc, _ := newTestService(t, factory.new)

	uploadTestTemplate(t, svc, "cert", map[string]string{"A1": "{{name}}"})

	_, err := svc.Export(context.Background(), "cert", Student{Name: "x"})
	if KindFromError(err) != KindRendererCrashed {
		t.Fatalf("kind = %q, want renderer_crashed", KindFromError(err))
	}
}

// A caller that abandons the request must get a canceled error, not a
// crash, and the job must never be re-rendered on a second handle.
func TestServiceCanceledExportNotRetried(t *testing.T) {
	started := make(chan struct{}, 2)
	factory := &fakeFactory{
		render: func(ctx context.Context, job RenderJob) ([]byte, error) {
			started <- struct{}{}
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}
	svc, _ := newTestService(t, factory.new)

	uploadTestTemplate(t, svc, "cert", map[string]string{"A1": "{{name}}"})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := svc.Export(ctx, "cert", Student{Name: "x"})
		done <- err
	}()

	<-started
	cancel()

	err := <-done
	if KindFromError(err) != KindCanceled {
		t.Fatalf("kind = %q, want canceled", KindFromError(err))
	}
	select {
	case <-started:
		t.Fatal("render invoked again after cancellation")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestServiceRendererTimeout(t *testing.T) {
	factory := &fakeFactory{
		render: func(ctx context.Context, job RenderJob) ([]byte, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}
	store := newMemoryStore()
	pool, err := NewRendererPool(PoolConfig{Size: 1, Factory: factory.new, AcquireTimeout: time.Second})
	if err != nil {
		t.Fatalf("new pool: %v", err)
	}
	t.Cleanup(pool.Close)

	svc, err := NewService(ServiceConfig{
		Store:         store,
		Catalog:       testCatalog(),
		Pool:          pool,
		RenderTimeout: 20 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	if _, err := svc.UploadTemplate(context.Background(), Template{Key: "cert", Data: buildWorkbook(t, map[string]string{"A1": "{{name}}"})}); err != nil {
		t.Fatalf("upload: %v", err)
	}

	_, err = svc.Export(context.Background(), "cert", Student{Name: "x"})
	if KindFromError(err) != KindRendererTimeout {
		t.Fatalf("kind = %q, want renderer_timeout", KindFromError(err))
	}
	if !Retryable(err) {
		t.Error("renderer timeout must be retryable")
	}
}

// Re-upload while an export holds a snapshot must not corrupt it: the
// loaded bytes are copies, so the export completes against the old version.
func TestServiceSnapshotIsolation(t *testing.T) {
	release := make(chan struct{})
	rendered := make(chan []byte, 1)
	factory := &fakeFactory{
		render: func(ctx context.Context, job RenderJob) ([]byte, error) {
			<-release
			rendered <- job.Workbook
			return []byte("pdf"), nil
		},
	}
	svc, _ := newTestService(t, factory.new)

	uploadTestTemplate(t, svc, "cert", map[string]string{"A1": "version one {{name}}"})

	done := make(chan error, 1)
	go func() {
		_, err := svc.Export(context.Background(), "cert", Student{Name: "x"})
		done <- err
	}()

	// Replace the template while the first export is paused inside render.
	time.Sleep(20 * time.Millisecond)
	uploadTestTemplate(t, svc, "cert", map[string]string{"A1": "version two {{name}}"})
	close(release)

	if err := <-done; err != nil {
		t.Fatalf("export: %v", err)
	}
	workbook := <-rendered
	if got := sheetCell(t, workbook, "A1"); got != "version one x" {
		t.Errorf("export saw %q, want the version-one snapshot", got)
	}
}

func TestServiceTemplateIssuesRecomputed(t *testing.T) {
	factory := &fakeFactory{}
	store := newMemoryStore()
	pool, err := NewRendererPool(PoolConfig{Size: 1, Factory: factory.new})
	if err != nil {
		t.Fatalf("new pool: %v", err)
	}
	t.Cleanup(pool.Close)

	data := buildWorkbook(t, map[string]string{"A1": "{{custom.sponsor}}"})

	before, err := NewService(ServiceConfig{Store: store, Catalog: testCatalog(), Pool: pool})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	issues, err := before.UploadTemplate(context.Background(), Template{Key: "cert", Data: data})
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if len(issues) != 1 {
		t.Fatalf("upload issues = %v", issues)
	}

	// Same store, catalog now defines the custom field: the advisory issue
	// disappears without a re-upload.
	after, err := NewService(ServiceConfig{Store: store, Catalog: testCatalog("sponsor"), Pool: pool})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	issues, err = after.TemplateIssues(context.Background(), "cert")
	if err != nil {
		t.Fatalf("issues: %v", err)
	}
	if len(issues) != 0 {
		t.Errorf("issues after configuring custom field = %v", issues)
	}
}
