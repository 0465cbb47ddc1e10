// -----------------------------------------------------------------------
// Screenshot Renderer - raster capture of a loaded page
// -----------------------------------------------------------------------

package render

import (
	"context"
	"fmt"

	"github.com/ternarybob/folio/internal/common"
	"github.com/ternarybob/folio/internal/interfaces"
	"github.com/ternarybob/folio/internal/models"
)

// ScreenshotRenderer turns a loaded page into PNG or JPEG bytes.
type ScreenshotRenderer struct{}

// NewScreenshotRenderer creates a screenshot renderer.
func NewScreenshotRenderer() *ScreenshotRenderer {
	return &ScreenshotRenderer{}
}

func (r *ScreenshotRenderer) Kind() models.JobKind {
	return models.JobKindScreenshot
}

func (r *ScreenshotRenderer) Capture(ctx context.Context, session interfaces.BrowserSession, opts *models.RenderOptions) ([]byte, error) {
	buf, err := session.Screenshot(ctx, &opts.Screenshot)
	if err != nil {
		return nil, err
	}
	if len(buf) == 0 {
		return nil, fmt.Errorf("%w: browser produced an empty screenshot", common.ErrRenderFailed)
	}
	return buf, nil
}

var _ interfaces.Renderer = (*ScreenshotRenderer)(nil)
