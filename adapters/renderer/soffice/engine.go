// Package soffice renders workbooks with a headless LibreOffice process.
//
// Each engine owns a private user profile directory so concurrent engines
// never contend on LibreOffice's profile lock.
package soffice

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/goliatone/go-sheetfill/sheetfill"
)

// Engine converts an XLSX workbook to PDF via `soffice --headless`.
type Engine struct {
	Command string
	Args    []string
	Env     []string

	profileDir string
	workDir    string
}

// NewEngine prepares an engine with its own profile directory. The process
// itself is launched per render call.
func NewEngine() (*Engine, error) {
	profile, err := os.MkdirTemp("", "soffice-profile-")
	if err != nil {
		return nil, sheetfill.NewError(sheetfill.KindInternal, "create renderer profile dir", err)
	}
	work, err := os.MkdirTemp("", "soffice-work-")
	if err != nil {
		_ = os.RemoveAll(profile)
		return nil, sheetfill.NewError(sheetfill.KindInternal, "create renderer work dir", err)
	}
	return &Engine{profileDir: profile, workDir: work}, nil
}

// Factory adapts NewEngine to the pool's factory signature.
func Factory() (sheetfill.RenderEngine, error) {
	return NewEngine()
}

// Render writes the workbook to the engine's work directory, runs the
// conversion, and reads back the produced PDF.
func (e *Engine) Render(ctx context.Context, job sheetfill.RenderJob) ([]byte, error) {
	if e == nil {
		return nil, sheetfill.NewError(sheetfill.KindInternal, "soffice engine is nil", nil)
	}
	if len(job.Workbook) == 0 {
		return nil, sheetfill.NewError(sheetfill.KindValidation, "render job has no workbook bytes", nil)
	}
	if ctx == nil {
		ctx = context.Background()
	}

	inputPath := filepath.Join(e.workDir, "input.xlsx")
	outputPath := filepath.Join(e.workDir, "input.pdf")
	if err := os.WriteFile(inputPath, job.Workbook, 0o600); err != nil {
		return nil, sheetfill.NewError(sheetfill.KindInternal, "write workbook for conversion", err)
	}
	defer os.Remove(inputPath)
	defer os.Remove(outputPath)

	cmdPath := strings.TrimSpace(e.Command)
	if cmdPath == "" {
		cmdPath = "soffice"
	}

	args := append([]string{}, e.Args...)
	args = append(args,
		fmt.Sprintf("-env:UserInstallation=file://%s", e.profileDir),
		"--headless",
		"--norestore",
		"--convert-to", "pdf:calc_pdf_Export",
		"--outdir", e.workDir,
		inputPath,
	)
	cmd := exec.CommandContext(ctx, cmdPath, args...)
	if len(e.Env) > 0 {
		cmd.Env = append(os.Environ(), e.Env...)
	}

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		message := strings.TrimSpace(stderr.String())
		if message == "" {
			message = "soffice conversion failed"
		}
		return nil, sheetfill.NewError(sheetfill.KindRendererCrashed, message, err)
	}

	pdf, err := os.ReadFile(outputPath)
	if err != nil {
		return nil, sheetfill.NewError(sheetfill.KindRendererCrashed, "soffice produced no output", err)
	}
	if len(pdf) == 0 {
		return nil, sheetfill.NewError(sheetfill.KindRendererCrashed, "soffice produced an empty document", nil)
	}
	return pdf, nil
}

// Close removes the engine's scratch directories.
func (e *Engine) Close() error {
	if e == nil {
		return nil
	}
	var errs []error
	if e.workDir != "" {
		errs = append(errs, os.RemoveAll(e.workDir))
	}
	if e.profileDir != "" {
		errs = append(errs, os.RemoveAll(e.profileDir))
	}
	return errors.Join(errs...)
}
