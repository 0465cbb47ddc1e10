// -----------------------------------------------------------------------
// PDF Renderer - print-to-PDF capture with configured defaults
// -----------------------------------------------------------------------

package render

import (
	"bytes"
	"context"
	"fmt"

	"github.com/pdfcpu/pdfcpu/pkg/api"

	"github.com/ternarybob/folio/internal/common"
	"github.com/ternarybob/folio/internal/interfaces"
	"github.com/ternarybob/folio/internal/models"
)

// PDFRenderer turns a loaded page into PDF bytes. Service-level defaults
// (paper format, margins, print-background) fill in whatever the job omits.
type PDFRenderer struct {
	cfg common.PDFConfig
}

// NewPDFRenderer creates a PDF renderer with the given defaults.
func NewPDFRenderer(cfg common.PDFConfig) *PDFRenderer {
	return &PDFRenderer{cfg: cfg}
}

func (r *PDFRenderer) Kind() models.JobKind {
	return models.JobKindPDF
}

// Capture prints the page and validates the result before it is persisted.
func (r *PDFRenderer) Capture(ctx context.Context, session interfaces.BrowserSession, opts *models.RenderOptions) ([]byte, error) {
	merged := r.withDefaults(opts.PDF)

	buf, err := session.PDF(ctx, &merged)
	if err != nil {
		return nil, err
	}
	if len(buf) == 0 {
		return nil, fmt.Errorf("%w: browser produced an empty PDF", common.ErrRenderFailed)
	}

	if err := api.Validate(bytes.NewReader(buf), nil); err != nil {
		return nil, fmt.Errorf("%w: malformed PDF: %v", common.ErrRenderFailed, err)
	}
	return buf, nil
}

// withDefaults merges the service defaults into a copy of the job options.
// Explicit width/height still beat the default format.
func (r *PDFRenderer) withDefaults(opts models.PDFOptions) models.PDFOptions {
	if opts.Format == "" && opts.Width == "" && opts.Height == "" {
		opts.Format = r.cfg.DefaultFormat
	}
	if opts.MarginTop == "" {
		opts.MarginTop = r.cfg.DefaultMargin.Top
	}
	if opts.MarginRight == "" {
		opts.MarginRight = r.cfg.DefaultMargin.Right
	}
	if opts.MarginBottom == "" {
		opts.MarginBottom = r.cfg.DefaultMargin.Bottom
	}
	if opts.MarginLeft == "" {
		opts.MarginLeft = r.cfg.DefaultMargin.Left
	}
	if opts.PrintBackground == nil {
		def := r.cfg.PrintBackground
		opts.PrintBackground = &def
	}
	return opts
}

var _ interfaces.Renderer = (*PDFRenderer)(nil)
