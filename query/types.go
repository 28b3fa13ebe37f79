// Package query exposes read-side operations as go-command query messages.
package query

import (
	"github.com/goliatone/go-errors"
)

// TemplateIssues requests the current validation issues of a template,
// recomputed against the active field catalog.
type TemplateIssues struct {
	Key string
}

func (TemplateIssues) Type() string { return "template:issues" }

func (msg TemplateIssues) Validate() error {
	if msg.Key == "" {
		return errors.New("template key is required", errors.CategoryValidation).
			WithTextCode("TEMPLATE_KEY_REQUIRED")
	}
	return nil
}

// ListTemplates requests every stored template.
type ListTemplates struct{}

func (ListTemplates) Type() string { return "template:list" }

func (ListTemplates) Validate() error { return nil }
