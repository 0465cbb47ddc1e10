// -----------------------------------------------------------------------
// Browser Pool - one lazily launched headless browser per render kind
// -----------------------------------------------------------------------

package render

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/folio/internal/common"
	"github.com/ternarybob/folio/internal/interfaces"
	"github.com/ternarybob/folio/internal/models"
)

// launchTestTimeout bounds the startup probe of a freshly launched browser.
const launchTestTimeout = 30 * time.Second

// Pool shares one long-lived headless browser across the workers of a single
// render kind. The browser is launched on first demand; concurrent first-use
// requests coalesce behind the pool mutex. Sessions are per-job tabs and are
// never shared.
type Pool struct {
	kind   models.JobKind
	cfg    common.BrowserConfig
	logger arbor.ILogger

	mu         sync.Mutex
	browserCtx context.Context
	cancels    []context.CancelFunc
	launched   bool
}

// NewPool creates an unlaunched pool for the given kind.
func NewPool(kind models.JobKind, cfg common.BrowserConfig, logger arbor.ILogger) *Pool {
	return &Pool{
		kind:   kind,
		cfg:    cfg,
		logger: logger,
	}
}

// browser returns the shared browser context, launching it on first use.
func (p *Pool) browser() (context.Context, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.launched {
		return p.browserCtx, nil
	}

	start := time.Now()
	opts := allocatorOptions(p.cfg.LaunchOptions.Headless, p.cfg.LaunchOptions.Args, "")

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	// Startup probe so a broken Chrome install fails here, not mid-render.
	testCtx, testCancel := context.WithTimeout(browserCtx, launchTestTimeout)
	defer testCancel()
	if err := chromedp.Run(testCtx, chromedp.Navigate("about:blank")); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("browser failed startup test: %w", err)
	}

	p.browserCtx = browserCtx
	p.cancels = []context.CancelFunc{browserCancel, allocCancel}
	p.launched = true

	p.logger.Info().
		Str("kind", string(p.kind)).
		Bool("headless", p.cfg.LaunchOptions.Headless).
		Dur("startup_time", time.Since(start)).
		Msg("Shared browser launched")

	return p.browserCtx, nil
}

// Session opens a new isolated tab on the shared browser.
func (p *Pool) Session(ctx context.Context, opts *models.BrowserOptions) (interfaces.BrowserSession, error) {
	browserCtx, err := p.browser()
	if err != nil {
		return nil, err
	}
	return newSession(browserCtx, opts, p.cfg.DefaultViewport, p.logger)
}

// Close tears the shared browser down.
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.launched {
		return nil
	}
	for _, cancel := range p.cancels {
		cancel()
	}
	p.browserCtx = nil
	p.cancels = nil
	p.launched = false

	p.logger.Info().Str("kind", string(p.kind)).Msg("Shared browser closed")
	return nil
}

var _ interfaces.BrowserPool = (*Pool)(nil)

// NewDedicatedSession launches a private browser for one job carrying its own
// launch options. The browser lives for the duration of the session and is
// torn down by Close.
func NewDedicatedSession(ctx context.Context, opts *models.BrowserOptions, viewport common.ViewportConfig, logger arbor.ILogger) (interfaces.BrowserSession, error) {
	launch := opts.Launch
	if launch == nil {
		return nil, fmt.Errorf("job carries no launch options")
	}

	allocOpts := allocatorOptions(launch.Headless, launch.Args, opts.UserAgent)
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), allocOpts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	testCtx, testCancel := context.WithTimeout(browserCtx, launchTestTimeout)
	defer testCancel()
	if err := chromedp.Run(testCtx, chromedp.Navigate("about:blank")); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("dedicated browser failed startup test: %w", err)
	}

	logger.Debug().Bool("headless", launch.Headless).Msg("Dedicated browser launched")

	return newSession(browserCtx, opts, viewport, logger, browserCancel, allocCancel)
}
