package command

import (
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-sheetfill/sheetfill"
)

// UploadTemplate stores a template workbook and reports its issues.
type UploadTemplate struct {
	Template sheetfill.Template
	Result   *[]sheetfill.Issue
}

func (UploadTemplate) Type() string { return "template:upload" }

func (msg UploadTemplate) Validate() error {
	if msg.Template.Key == "" {
		return errors.New("template key is required", errors.CategoryValidation).
			WithTextCode("TEMPLATE_KEY_REQUIRED")
	}
	if len(msg.Template.Data) == 0 {
		return errors.New("template data is required", errors.CategoryValidation).
			WithTextCode("TEMPLATE_DATA_REQUIRED")
	}
	return nil
}

// DeleteTemplate removes a stored template.
type DeleteTemplate struct {
	Key string
}

func (DeleteTemplate) Type() string { return "template:delete" }

func (msg DeleteTemplate) Validate() error {
	if msg.Key == "" {
		return errors.New("template key is required", errors.CategoryValidation).
			WithTextCode("TEMPLATE_KEY_REQUIRED")
	}
	return nil
}

// RunExport binds a student's data against a template and renders it.
type RunExport struct {
	TemplateKey string
	Student     sheetfill.Student
	Result      *sheetfill.Document
}

func (RunExport) Type() string { return "export:run" }

func (msg RunExport) Validate() error {
	if msg.TemplateKey == "" {
		return errors.New("template key is required", errors.CategoryValidation).
			WithTextCode("TEMPLATE_KEY_REQUIRED")
	}
	if msg.Student.StudentNo == "" {
		return errors.New("student number is required", errors.CategoryValidation).
			WithTextCode("STUDENT_NO_REQUIRED")
	}
	return nil
}
