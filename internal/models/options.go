// -----------------------------------------------------------------------
// Render Options - per-job browser, PDF, screenshot and queue tunables
// -----------------------------------------------------------------------

package models

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	MinPriority     = 1
	MaxPriority     = 10
	DefaultPriority = 5
)

// PaperFormats maps the supported PDF paper formats to their size in inches.
var PaperFormats = map[string][2]float64{
	"A3":     {11.69, 16.54},
	"A4":     {8.27, 11.69},
	"A5":     {5.83, 8.27},
	"Letter": {8.5, 11.0},
	"Legal":  {8.5, 14.0},
}

// LaunchOptions overrides the shared browser for a single job. A job carrying
// launch options is rendered in a dedicated browser instance.
type LaunchOptions struct {
	Headless bool     `json:"headless"`
	Args     []string `json:"args,omitempty"`
}

// BrowserOptions configures navigation and the page environment.
type BrowserOptions struct {
	TimeoutMs        int               `json:"timeoutMs,omitempty" validate:"omitempty,min=0,max=120000"`
	ViewportWidth    int               `json:"viewportWidth,omitempty" validate:"omitempty,min=1,max=10000"`
	ViewportHeight   int               `json:"viewportHeight,omitempty" validate:"omitempty,min=1,max=10000"`
	UserAgent        string            `json:"userAgent,omitempty"`
	ExtraHeaders     map[string]string `json:"extraHeaders,omitempty"`
	WaitForSelector  string            `json:"waitForSelector,omitempty"`
	WaitAfterMs      int               `json:"waitAfterMs,omitempty" validate:"omitempty,min=0,max=60000"`
	DisableAnimation bool              `json:"disableAnimations,omitempty"`
	ColorScheme      string            `json:"colorScheme,omitempty" validate:"omitempty,oneof=light dark no-preference"`
	Launch           *LaunchOptions    `json:"launchOptions,omitempty"`
}

// PDFOptions configures the print-to-PDF capture. Format and explicit
// width/height are mutually exclusive; explicit dimensions win.
type PDFOptions struct {
	Format              string  `json:"format,omitempty" validate:"omitempty,oneof=A3 A4 A5 Letter Legal"`
	Width               string  `json:"width,omitempty"`
	Height              string  `json:"height,omitempty"`
	Landscape           bool    `json:"landscape,omitempty"`
	MarginTop           string  `json:"marginTop,omitempty"`
	MarginRight         string  `json:"marginRight,omitempty"`
	MarginBottom        string  `json:"marginBottom,omitempty"`
	MarginLeft          string  `json:"marginLeft,omitempty"`
	PrintBackground     *bool   `json:"printBackground,omitempty"`
	Scale               float64 `json:"scale,omitempty" validate:"omitempty,gt=0,lte=2"`
	HeaderTemplate      string  `json:"headerTemplate,omitempty"`
	FooterTemplate      string  `json:"footerTemplate,omitempty"`
	DisplayHeaderFooter bool    `json:"displayHeaderFooter,omitempty"`
}

// ClipRect is a pixel rectangle for partial screenshots.
type ClipRect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width" validate:"gt=0"`
	Height float64 `json:"height" validate:"gt=0"`
}

// ScreenshotOptions configures raster capture. Clip and FullPage are mutually
// exclusive; clip wins.
type ScreenshotOptions struct {
	Type           string    `json:"type,omitempty" validate:"omitempty,oneof=png jpeg"`
	Quality        int       `json:"quality,omitempty" validate:"omitempty,min=0,max=100"`
	FullPage       *bool     `json:"fullPage,omitempty"`
	Clip           *ClipRect `json:"clip,omitempty"`
	OmitBackground bool      `json:"omitBackground,omitempty"`
	ScaleMode      string    `json:"scale,omitempty" validate:"omitempty,oneof=css device"`
}

// QueueOptions carries the caller-chosen scheduling priority.
type QueueOptions struct {
	Priority int `json:"priority,omitempty" validate:"omitempty,min=1,max=10"`
}

// RenderOptions groups every per-job tunable.
type RenderOptions struct {
	Browser    BrowserOptions    `json:"browser,omitempty"`
	PDF        PDFOptions        `json:"pdf,omitempty"`
	Screenshot ScreenshotOptions `json:"screenshot,omitempty"`
	Queue      QueueOptions      `json:"queue,omitempty"`
}

// Normalize resolves the documented option conflicts in place:
// explicit PDF dimensions beat the paper format, a screenshot clip beats
// full-page, JPEG quality only applies to JPEG output, and priority is
// clamped into [MinPriority, MaxPriority].
func (o *RenderOptions) Normalize() {
	if o.PDF.Width != "" || o.PDF.Height != "" {
		o.PDF.Format = ""
	}
	if o.Screenshot.Clip != nil {
		o.Screenshot.FullPage = nil
	}
	if o.Screenshot.Type == "" {
		o.Screenshot.Type = "png"
	}
	if o.Screenshot.Type != "jpeg" {
		o.Screenshot.Quality = 0
	}
	if o.Queue.Priority == 0 {
		o.Queue.Priority = DefaultPriority
	}
	if o.Queue.Priority < MinPriority {
		o.Queue.Priority = MinPriority
	}
	if o.Queue.Priority > MaxPriority {
		o.Queue.Priority = MaxPriority
	}
}

// PrintBackgroundOrDefault returns the effective print-background flag,
// falling back to the service default when the job did not specify one.
func (p *PDFOptions) PrintBackgroundOrDefault(def bool) bool {
	if p.PrintBackground == nil {
		return def
	}
	return *p.PrintBackground
}

// FullPageOrDefault returns the effective full-page flag (default true when no
// clip is set).
func (s *ScreenshotOptions) FullPageOrDefault() bool {
	if s.Clip != nil {
		return false
	}
	if s.FullPage == nil {
		return true
	}
	return *s.FullPage
}

// Extension returns the artifact file extension for the job kind and options.
func (o *RenderOptions) Extension(kind JobKind) string {
	if kind == JobKindPDF {
		return "pdf"
	}
	if o.Screenshot.Type == "jpeg" {
		return "jpeg"
	}
	return "png"
}

// ParseDimension converts a CSS-style length ("100", "100px", "8.5in",
// "21cm", "297mm") into inches. Bare numbers are pixels at 96 DPI.
func ParseDimension(v string) (float64, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0, fmt.Errorf("empty dimension")
	}

	unit := "px"
	num := v
	for _, u := range []string{"px", "in", "cm", "mm"} {
		if strings.HasSuffix(v, u) {
			unit = u
			num = strings.TrimSuffix(v, u)
			break
		}
	}

	f, err := strconv.ParseFloat(strings.TrimSpace(num), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid dimension %q: %w", v, err)
	}
	if f <= 0 {
		return 0, fmt.Errorf("dimension %q must be positive", v)
	}

	switch unit {
	case "px":
		return f / 96.0, nil
	case "in":
		return f, nil
	case "cm":
		return f / 2.54, nil
	case "mm":
		return f / 25.4, nil
	}
	return 0, fmt.Errorf("unsupported unit in %q", v)
}
