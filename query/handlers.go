package query

import (
	"context"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-sheetfill/sheetfill"
)

// TemplateIssuesHandler returns a template's current issues.
type TemplateIssuesHandler struct {
	Service sheetfill.Service
}

func NewTemplateIssuesHandler(svc sheetfill.Service) *TemplateIssuesHandler {
	return &TemplateIssuesHandler{Service: svc}
}

func (h *TemplateIssuesHandler) Query(ctx context.Context, msg TemplateIssues) ([]sheetfill.Issue, error) {
	if h == nil || h.Service == nil {
		return nil, errors.New("templating service is required", errors.CategoryInternal).
			WithTextCode("SERVICE_REQUIRED")
	}
	return h.Service.TemplateIssues(ctx, msg.Key)
}

// ListTemplatesHandler returns every stored template.
type ListTemplatesHandler struct {
	Store sheetfill.TemplateStore
}

func NewListTemplatesHandler(store sheetfill.TemplateStore) *ListTemplatesHandler {
	return &ListTemplatesHandler{Store: store}
}

func (h *ListTemplatesHandler) Query(ctx context.Context, _ ListTemplates) ([]sheetfill.Template, error) {
	if h == nil || h.Store == nil {
		return nil, errors.New("template store is required", errors.CategoryInternal).
			WithTextCode("STORE_REQUIRED")
	}
	return h.Store.List(ctx)
}
