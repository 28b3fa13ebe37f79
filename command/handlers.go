// Package command exposes the templating service as message handlers for
// go-command dispatchers.
package command

import (
	"context"

	gcmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-sheetfill/sheetfill"
)

// UploadTemplateHandler stores templates.
type UploadTemplateHandler struct {
	Service sheetfill.Service
}

func NewUploadTemplateHandler(svc sheetfill.Service) *UploadTemplateHandler {
	return &UploadTemplateHandler{Service: svc}
}

func (h *UploadTemplateHandler) Execute(ctx context.Context, msg UploadTemplate) error {
	if h == nil || h.Service == nil {
		return errors.New("templating service is required", errors.CategoryInternal).
			WithTextCode("SERVICE_REQUIRED")
	}
	issues, err := h.Service.UploadTemplate(ctx, msg.Template)
	if err != nil {
		return err
	}
	if msg.Result != nil {
		*msg.Result = issues
	}
	if res := gcmd.ResultFromContext[[]sheetfill.Issue](ctx); res != nil {
		res.Store(issues)
	}
	return nil
}

// DeleteTemplateHandler removes templates.
type DeleteTemplateHandler struct {
	Service sheetfill.Service
}

func NewDeleteTemplateHandler(svc sheetfill.Service) *DeleteTemplateHandler {
	return &DeleteTemplateHandler{Service: svc}
}

func (h *DeleteTemplateHandler) Execute(ctx context.Context, msg DeleteTemplate) error {
	if h == nil || h.Service == nil {
		return errors.New("templating service is required", errors.CategoryInternal).
			WithTextCode("SERVICE_REQUIRED")
	}
	return h.Service.DeleteTemplate(ctx, msg.Key)
}

// RunExportHandler renders documents.
type RunExportHandler struct {
	Service sheetfill.Service
}

func NewRunExportHandler(svc sheetfill.Service) *RunExportHandler {
	return &RunExportHandler{Service: svc}
}

func (h *RunExportHandler) Execute(ctx context.Context, msg RunExport) error {
	if h == nil || h.Service == nil {
		return errors.New("templating service is required", errors.CategoryInternal).
			WithTextCode("SERVICE_REQUIRED")
	}
	doc, err := h.Service.Export(ctx, msg.TemplateKey, msg.Student)
	if err != nil {
		return err
	}
	if msg.Result != nil {
		*msg.Result = doc
	}
	if res := gcmd.ResultFromContext[sheetfill.Document](ctx); res != nil {
		res.Store(doc)
	}
	return nil
}
