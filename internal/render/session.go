// -----------------------------------------------------------------------
// Browser Session - one isolated chromedp page driven by a single worker
// -----------------------------------------------------------------------

package render

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/folio/internal/common"
	"github.com/ternarybob/folio/internal/models"
)

// settleDelay is the quiescence window after navigation or set-content before
// the page is considered loaded.
const settleDelay = 500 * time.Millisecond

// chromeSession drives one browser tab. Close cancels the tab context and,
// for dedicated browsers, the browser and allocator contexts as well.
type chromeSession struct {
	ctx     context.Context
	cancels []context.CancelFunc
	logger  arbor.ILogger
}

// newSession creates a tab on the given browser context and applies the
// per-job page environment.
func newSession(parent context.Context, opts *models.BrowserOptions, viewport common.ViewportConfig, logger arbor.ILogger, extraCancels ...context.CancelFunc) (*chromeSession, error) {
	tabCtx, tabCancel := chromedp.NewContext(parent)

	s := &chromeSession{
		ctx:     tabCtx,
		cancels: append([]context.CancelFunc{tabCancel}, extraCancels...),
		logger:  logger,
	}

	if err := s.applyEnvironment(opts, viewport); err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to prepare page environment: %w", err)
	}
	return s, nil
}

// run executes chromedp actions on the tab while honoring the caller's
// deadline and cancellation.
func (s *chromeSession) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(s.ctx)
	defer cancel()

	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(runCtx, actions...)
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

// applyEnvironment sets viewport, user agent, extra headers and emulated
// media features for the tab.
func (s *chromeSession) applyEnvironment(opts *models.BrowserOptions, viewport common.ViewportConfig) error {
	width, height := viewport.Width, viewport.Height
	if opts.ViewportWidth > 0 {
		width = opts.ViewportWidth
	}
	if opts.ViewportHeight > 0 {
		height = opts.ViewportHeight
	}

	actions := []chromedp.Action{
		chromedp.EmulateViewport(int64(width), int64(height)),
	}

	if opts.UserAgent != "" {
		actions = append(actions, emulation.SetUserAgentOverride(opts.UserAgent))
	}

	if len(opts.ExtraHeaders) > 0 {
		headers := make(network.Headers, len(opts.ExtraHeaders))
		for k, v := range opts.ExtraHeaders {
			headers[k] = v
		}
		actions = append(actions, network.Enable(), network.SetExtraHTTPHeaders(headers))
	}

	features := []*emulation.MediaFeature{
		{Name: "prefers-reduced-motion", Value: "reduce"},
	}
	if opts.ColorScheme != "" {
		features = append(features, &emulation.MediaFeature{Name: "prefers-color-scheme", Value: opts.ColorScheme})
	}
	actions = append(actions, emulation.SetEmulatedMedia().WithFeatures(features))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.run(ctx, actions...)
}

// Navigate loads a remote URL and waits for the page to settle.
func (s *chromeSession) Navigate(ctx context.Context, url string) error {
	return s.run(ctx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(settleDelay),
	)
}

// SetContent replaces the document with the given HTML and waits for the
// page to settle.
func (s *chromeSession) SetContent(ctx context.Context, html string) error {
	return s.run(ctx,
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			tree, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return fmt.Errorf("failed to read frame tree: %w", err)
			}
			return page.SetDocumentContent(tree.Frame.ID, html).Do(ctx)
		}),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(settleDelay),
	)
}

// WaitVisible blocks until the CSS selector matches a visible node.
func (s *chromeSession) WaitVisible(ctx context.Context, selector string) error {
	return s.run(ctx, chromedp.WaitVisible(selector, chromedp.ByQuery))
}

// InjectCSS appends a stylesheet to the current document head.
func (s *chromeSession) InjectCSS(ctx context.Context, css string) error {
	script := fmt.Sprintf(`(() => {
		const style = document.createElement('style');
		style.textContent = %q;
		document.head.appendChild(style);
	})()`, css)
	return s.run(ctx, chromedp.Evaluate(script, nil))
}

// PDF produces PDF bytes from the current page. Explicit width/height win
// over the paper format; dimensions and margins are CSS-style lengths.
func (s *chromeSession) PDF(ctx context.Context, opts *models.PDFOptions) ([]byte, error) {
	params, err := buildPrintParams(opts)
	if err != nil {
		return nil, err
	}

	var buf []byte
	err = s.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		data, _, err := params.Do(ctx)
		if err != nil {
			return err
		}
		buf = data
		return nil
	}))
	if err != nil {
		return nil, fmt.Errorf("print to PDF failed: %w", err)
	}
	return buf, nil
}

// buildPrintParams translates PDFOptions into CDP print parameters. All
// dimensions reach the protocol in inches.
func buildPrintParams(opts *models.PDFOptions) (*page.PrintToPDFParams, error) {
	params := page.PrintToPDF().
		WithLandscape(opts.Landscape).
		WithPrintBackground(opts.PrintBackgroundOrDefault(false))

	switch {
	case opts.Width != "" && opts.Height != "":
		w, err := models.ParseDimension(opts.Width)
		if err != nil {
			return nil, fmt.Errorf("invalid pdf width: %w", err)
		}
		h, err := models.ParseDimension(opts.Height)
		if err != nil {
			return nil, fmt.Errorf("invalid pdf height: %w", err)
		}
		params = params.WithPaperWidth(w).WithPaperHeight(h)
	case opts.Format != "":
		size, ok := models.PaperFormats[opts.Format]
		if !ok {
			return nil, fmt.Errorf("unknown paper format %q", opts.Format)
		}
		params = params.WithPaperWidth(size[0]).WithPaperHeight(size[1])
	}

	for _, m := range []struct {
		value string
		with  func(float64) *page.PrintToPDFParams
	}{
		{opts.MarginTop, params.WithMarginTop},
		{opts.MarginRight, params.WithMarginRight},
		{opts.MarginBottom, params.WithMarginBottom},
		{opts.MarginLeft, params.WithMarginLeft},
	} {
		if m.value == "" {
			continue
		}
		v, err := models.ParseDimension(m.value)
		if err != nil {
			return nil, fmt.Errorf("invalid pdf margin: %w", err)
		}
		params = m.with(v)
	}

	if opts.Scale > 0 {
		params = params.WithScale(opts.Scale)
	}
	if opts.DisplayHeaderFooter {
		params = params.WithDisplayHeaderFooter(true).
			WithHeaderTemplate(opts.HeaderTemplate).
			WithFooterTemplate(opts.FooterTemplate)
	}

	return params, nil
}

// Screenshot produces PNG or JPEG bytes from the current page. A clip wins
// over full-page capture; full-page is the default.
func (s *chromeSession) Screenshot(ctx context.Context, opts *models.ScreenshotOptions) ([]byte, error) {
	format := page.CaptureScreenshotFormatPng
	if opts.Type == "jpeg" {
		format = page.CaptureScreenshotFormatJpeg
	}

	var buf []byte
	err := s.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		if opts.OmitBackground && opts.Type != "jpeg" {
			if err := emulation.SetDefaultBackgroundColorOverride().
				WithColor(&cdp.RGBA{R: 0, G: 0, B: 0, A: 0}).Do(ctx); err != nil {
				return fmt.Errorf("failed to clear background: %w", err)
			}
		}

		params := page.CaptureScreenshot().WithFormat(format).WithFromSurface(true)
		if opts.Type == "jpeg" && opts.Quality > 0 {
			params = params.WithQuality(int64(opts.Quality))
		}

		scale := 1.0
		if opts.ScaleMode == "device" {
			if err := chromedp.Evaluate("window.devicePixelRatio", &scale).Do(ctx); err != nil {
				return fmt.Errorf("failed to read device pixel ratio: %w", err)
			}
		}

		switch {
		case opts.Clip != nil:
			params = params.WithClip(&page.Viewport{
				X:      opts.Clip.X,
				Y:      opts.Clip.Y,
				Width:  opts.Clip.Width,
				Height: opts.Clip.Height,
				Scale:  scale,
			})
		case opts.FullPageOrDefault():
			_, _, _, _, _, contentSize, err := page.GetLayoutMetrics().Do(ctx)
			if err != nil {
				return fmt.Errorf("failed to read layout metrics: %w", err)
			}
			params = params.WithCaptureBeyondViewport(true).WithClip(&page.Viewport{
				X:      contentSize.X,
				Y:      contentSize.Y,
				Width:  contentSize.Width,
				Height: contentSize.Height,
				Scale:  scale,
			})
		}

		data, err := params.Do(ctx)
		if err != nil {
			return err
		}
		buf = data
		return nil
	}))
	if err != nil {
		return nil, fmt.Errorf("screenshot failed: %w", err)
	}
	return buf, nil
}

// Close cancels the tab and any dedicated browser contexts.
func (s *chromeSession) Close() {
	for _, cancel := range s.cancels {
		cancel()
	}
}

// allocatorOptions builds the Chrome exec allocator flags from launch
// configuration. Extra args are "--name=value" or "--flag" strings.
func allocatorOptions(headless bool, args []string, userAgent string) []chromedp.ExecAllocatorOption {
	opts := append(
		chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", headless),
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	if userAgent != "" {
		opts = append(opts, chromedp.UserAgent(userAgent))
	}
	for _, arg := range args {
		name := strings.TrimLeft(arg, "-")
		if name == "" {
			continue
		}
		if i := strings.IndexByte(name, '='); i >= 0 {
			opts = append(opts, chromedp.Flag(name[:i], name[i+1:]))
		} else {
			opts = append(opts, chromedp.Flag(name, true))
		}
	}
	return opts
}
