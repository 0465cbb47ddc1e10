package interfaces

import (
	"context"

	"github.com/ternarybob/folio/internal/models"
)

// BrowserSession is one isolated page inside a headless browser. Sessions are
// owned by a single worker attempt and must be closed on every exit path.
type BrowserSession interface {
	// Navigate loads a remote URL and waits for the page to settle.
	Navigate(ctx context.Context, url string) error

	// SetContent replaces the document with the given HTML and waits for the
	// page to settle.
	SetContent(ctx context.Context, html string) error

	// WaitVisible blocks until the CSS selector matches a visible node.
	WaitVisible(ctx context.Context, selector string) error

	// InjectCSS appends a stylesheet to the current document.
	InjectCSS(ctx context.Context, css string) error

	// PDF produces PDF bytes from the current page.
	PDF(ctx context.Context, opts *models.PDFOptions) ([]byte, error)

	// Screenshot produces PNG/JPEG bytes from the current page.
	Screenshot(ctx context.Context, opts *models.ScreenshotOptions) ([]byte, error)

	// Close releases the page and, for dedicated browsers, the browser itself.
	// The shared pool browser is never closed by a session.
	Close()
}

// BrowserPool lazily launches and shares one long-lived headless browser.
// Sessions are per-job and never shared.
type BrowserPool interface {
	// Session opens a new isolated page on the shared browser, applying the
	// per-job viewport, user agent, headers and color scheme.
	Session(ctx context.Context, opts *models.BrowserOptions) (BrowserSession, error)

	// Close tears the shared browser down on shutdown.
	Close() error
}

// SessionFactory opens the browser session for one job, branching to a
// dedicated browser when the job carries its own launch options.
type SessionFactory func(ctx context.Context, opts *models.BrowserOptions) (BrowserSession, error)

// Renderer is the capability that turns a loaded page into artifact bytes.
// The PDF and screenshot subsystems are the two instances.
type Renderer interface {
	Kind() models.JobKind
	Capture(ctx context.Context, session BrowserSession, opts *models.RenderOptions) ([]byte, error)
}
