// Package chromium renders workbooks to PDF with a shared headless
// Chromium instance. The workbook is serialized to an HTML page and printed
// through the DevTools protocol.
package chromium

import (
	"context"
	"errors"
	"sync"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/goliatone/go-sheetfill/sheetfill"
)

// Engine owns one browser process; each render runs in its own tab.
type Engine struct {
	BrowserPath string
	Args        map[string]any

	initOnce      sync.Once
	allocCtx      context.Context
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
}

// Factory adapts the engine to the pool's factory signature.
func Factory() (sheetfill.RenderEngine, error) {
	return &Engine{}, nil
}

// Render serializes the workbook to HTML and prints it to PDF. The job's
// orientation controls the printed page orientation.
func (e *Engine) Render(ctx context.Context, job sheetfill.RenderJob) ([]byte, error) {
	if e == nil {
		return nil, sheetfill.NewError(sheetfill.KindInternal, "chromium engine is nil", nil)
	}
	if len(job.Workbook) == 0 {
		return nil, sheetfill.NewError(sheetfill.KindValidation, "render job has no workbook bytes", nil)
	}
	if ctx == nil {
		ctx = context.Background()
	}

	htmlPage, err := workbookHTML(job.Workbook, job.Orientation)
	if err != nil {
		return nil, err
	}

	if err := e.ensureBrowser(); err != nil {
		return nil, sheetfill.NewError(sheetfill.KindRendererCrashed, "chromium engine init failed", err)
	}

	tabCtx, cancelTab := chromedp.NewContext(e.browserCtx)
	defer cancelTab()

	execCtx, cancelReq := context.WithCancel(tabCtx)
	defer cancelReq()
	go func() {
		select {
		case <-ctx.Done():
			cancelReq()
		case <-execCtx.Done():
		}
	}()

	var pdf []byte
	actions := []chromedp.Action{
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			tree, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return err
			}
			return page.SetDocumentContent(tree.Frame.ID, htmlPage).Do(ctx)
		}),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.ActionFunc(func(ctx context.Context) error {
			params := page.PrintToPDF().
				WithLandscape(job.Orientation == sheetfill.OrientationLandscape).
				WithPrintBackground(true).
				WithPreferCSSPageSize(true)
			var err error
			pdf, _, err = params.Do(ctx)
			return err
		}),
	}

	if err := chromedp.Run(execCtx, actions...); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, sheetfill.NewError(sheetfill.KindRendererCrashed, "chromium pdf render failed", err)
	}
	return pdf, nil
}

// Close releases the browser when it has been started.
func (e *Engine) Close() error {
	if e == nil {
		return nil
	}
	if e.browserCancel != nil {
		e.browserCancel()
	}
	if e.allocCancel != nil {
		e.allocCancel()
	}
	return nil
}

func (e *Engine) ensureBrowser() error {
	e.initOnce.Do(func() {
		options := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
		if e.BrowserPath != "" {
			options = append(options, chromedp.ExecPath(e.BrowserPath))
		}
		for name, value := range e.Args {
			options = append(options, chromedp.Flag(name, value))
		}
		e.allocCtx, e.allocCancel = chromedp.NewExecAllocator(context.Background(), options...)
		e.browserCtx, e.browserCancel = chromedp.NewContext(e.allocCtx)
	})
	if e.allocCtx == nil || e.browserCtx == nil {
		return errors.New("chromium allocator unavailable")
	}
	return nil
}
