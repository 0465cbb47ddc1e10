//go:build integration

// Exercises the real Chrome pipeline. Requires a local Chrome install:
//
//	go test -tags integration ./internal/render/
package render

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/folio/internal/common"
	"github.com/ternarybob/folio/internal/models"
)

func integrationPool(t *testing.T, kind models.JobKind) *Pool {
	t.Helper()
	cfg := common.DefaultConfig().Browser
	pool := NewPool(kind, cfg, arbor.NewLogger())
	t.Cleanup(func() { pool.Close() })
	return pool
}

func TestIntegrationInlineHTMLToPDF(t *testing.T) {
	pool := integrationPool(t, models.JobKindPDF)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	session, err := pool.Session(ctx, &models.BrowserOptions{})
	require.NoError(t, err)
	defer session.Close()

	require.NoError(t, session.SetContent(ctx, `<html><body><h1>Invoice 42</h1></body></html>`))

	renderer := NewPDFRenderer(common.DefaultConfig().PDF)
	opts := models.RenderOptions{}
	opts.Normalize()

	buf, err := renderer.Capture(ctx, session, &opts)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(buf, []byte("%PDF")), "capture must produce a PDF header")
}

func TestIntegrationFullPageScreenshot(t *testing.T) {
	pool := integrationPool(t, models.JobKindScreenshot)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	session, err := pool.Session(ctx, &models.BrowserOptions{ViewportWidth: 800, ViewportHeight: 600})
	require.NoError(t, err)
	defer session.Close()

	// Page taller than the viewport; full-page capture must include it all.
	require.NoError(t, session.SetContent(ctx, `<html><body style="margin:0"><div style="height:2000px;background:linear-gradient(red,blue)"></div></body></html>`))

	renderer := NewScreenshotRenderer()
	opts := models.RenderOptions{}
	opts.Normalize()

	buf, err := renderer.Capture(ctx, session, &opts)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(buf, []byte("\x89PNG")), "capture must produce a PNG header")
}

func TestIntegrationWaitForSelector(t *testing.T) {
	pool := integrationPool(t, models.JobKindScreenshot)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	session, err := pool.Session(ctx, &models.BrowserOptions{})
	require.NoError(t, err)
	defer session.Close()

	page := `<html><body>
		<div id="late" style="display:none">ready</div>
		<script>setTimeout(() => { document.getElementById("late").style.display = "block"; }, 300);</script>
	</body></html>`
	require.NoError(t, session.SetContent(ctx, page))
	require.NoError(t, session.WaitVisible(ctx, "#late"))
}

func TestIntegrationDedicatedBrowser(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	opts := &models.BrowserOptions{
		Launch: &models.LaunchOptions{Headless: true, Args: []string{"--no-sandbox"}},
	}
	session, err := NewDedicatedSession(ctx, opts, common.ViewportConfig{Width: 1280, Height: 800}, arbor.NewLogger())
	require.NoError(t, err)
	defer session.Close()

	require.NoError(t, session.SetContent(ctx, `<p>dedicated</p>`))
}
