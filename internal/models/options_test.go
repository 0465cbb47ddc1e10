package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	t.Run("explicit dimensions clear format", func(t *testing.T) {
		opts := RenderOptions{PDF: PDFOptions{Format: "A4", Width: "8.5in", Height: "11in"}}
		opts.Normalize()
		assert.Empty(t, opts.PDF.Format)
		assert.Equal(t, "8.5in", opts.PDF.Width)
	})

	t.Run("clip clears full page", func(t *testing.T) {
		full := true
		opts := RenderOptions{Screenshot: ScreenshotOptions{
			FullPage: &full,
			Clip:     &ClipRect{Width: 100, Height: 100},
		}}
		opts.Normalize()
		assert.Nil(t, opts.Screenshot.FullPage)
		assert.NotNil(t, opts.Screenshot.Clip)
	})

	t.Run("quality dropped for png", func(t *testing.T) {
		opts := RenderOptions{Screenshot: ScreenshotOptions{Type: "png", Quality: 90}}
		opts.Normalize()
		assert.Equal(t, 0, opts.Screenshot.Quality)
	})

	t.Run("quality kept for jpeg", func(t *testing.T) {
		opts := RenderOptions{Screenshot: ScreenshotOptions{Type: "jpeg", Quality: 90}}
		opts.Normalize()
		assert.Equal(t, 90, opts.Screenshot.Quality)
	})

	t.Run("screenshot type defaults to png", func(t *testing.T) {
		opts := RenderOptions{}
		opts.Normalize()
		assert.Equal(t, "png", opts.Screenshot.Type)
	})

	t.Run("priority defaults and clamps", func(t *testing.T) {
		tests := []struct {
			name string
			in   int
			want int
		}{
			{"zero gets default", 0, DefaultPriority},
			{"below minimum clamps up", -3, MinPriority},
			{"above maximum clamps down", 99, MaxPriority},
			{"valid value kept", 7, 7},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				opts := RenderOptions{Queue: QueueOptions{Priority: tt.in}}
				opts.Normalize()
				assert.Equal(t, tt.want, opts.Queue.Priority)
			})
		}
	})
}

func TestParseDimension(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    float64
		wantErr bool
	}{
		{"bare number is pixels", "96", 1.0, false},
		{"pixels", "192px", 2.0, false},
		{"inches", "8.5in", 8.5, false},
		{"centimeters", "2.54cm", 1.0, false},
		{"millimeters", "25.4mm", 1.0, false},
		{"whitespace tolerated", " 96 ", 1.0, false},
		{"empty", "", 0, true},
		{"garbage", "abc", 0, true},
		{"negative", "-5in", 0, true},
		{"zero", "0mm", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseDimension(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.InDelta(t, tt.want, got, 0.0001)
		})
	}
}

func TestValidateKey(t *testing.T) {
	assert.NoError(t, ValidateKey("invoice_2024-01"))
	assert.NoError(t, ValidateKey("a"))
	assert.Error(t, ValidateKey(""))
	assert.Error(t, ValidateKey("has space"))
	assert.Error(t, ValidateKey("slash/key"))
	assert.Error(t, ValidateKey("dot.key"))

	long := make([]byte, 256)
	for i := range long {
		long[i] = 'a'
	}
	assert.Error(t, ValidateKey(string(long)))
	assert.NoError(t, ValidateKey(string(long[:255])))
}

func TestFullPageOrDefault(t *testing.T) {
	var opts ScreenshotOptions
	assert.True(t, opts.FullPageOrDefault())

	f := false
	opts.FullPage = &f
	assert.False(t, opts.FullPageOrDefault())

	opts.FullPage = nil
	opts.Clip = &ClipRect{Width: 10, Height: 10}
	assert.False(t, opts.FullPageOrDefault())
}

func TestExtension(t *testing.T) {
	pdf := RenderOptions{}
	assert.Equal(t, "pdf", pdf.Extension(JobKindPDF))

	shot := RenderOptions{}
	assert.Equal(t, "png", shot.Extension(JobKindScreenshot))

	shot.Screenshot.Type = "jpeg"
	assert.Equal(t, "jpeg", shot.Extension(JobKindScreenshot))
}

func TestStatusIsTerminal(t *testing.T) {
	assert.False(t, JobStatusQueued.IsTerminal())
	assert.False(t, JobStatusProcessing.IsTerminal())
	assert.True(t, JobStatusCompleted.IsTerminal())
	assert.True(t, JobStatusFailed.IsTerminal())
	assert.True(t, JobStatusCancelled.IsTerminal())
}
