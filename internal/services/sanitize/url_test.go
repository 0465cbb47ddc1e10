package sanitize

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ternarybob/folio/internal/common"
)

func TestURLValidatorProduction(t *testing.T) {
	v := NewURLValidator(false)

	tests := []struct {
		name    string
		url     string
		wantErr bool
	}{
		{"https allowed", "https://example.com/page", false},
		{"http allowed", "http://example.com", false},
		{"public ip allowed", "http://93.184.216.34/", false},
		{"ftp rejected", "ftp://example.com/file", true},
		{"file rejected", "file:///etc/passwd", true},
		{"no host", "https://", true},
		{"localhost rejected", "http://localhost:8080/admin", true},
		{"localhost subdomain rejected", "http://foo.localhost/", true},
		{"loopback rejected", "http://127.0.0.1/", true},
		{"private 10 rejected", "http://10.0.0.5/", true},
		{"private 192.168 rejected", "http://192.168.1.1/", true},
		{"link local rejected", "http://169.254.169.254/latest/meta-data", true},
		{"unspecified rejected", "http://0.0.0.0/", true},
		{"ipv6 loopback rejected", "http://[::1]/", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(tt.url)
			if tt.wantErr {
				assert.ErrorIs(t, err, common.ErrUnsafeSource)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestURLValidatorDevelopmentRelaxesPrivateRanges(t *testing.T) {
	v := NewURLValidator(true)

	assert.NoError(t, v.Validate("http://localhost:3000/preview"))
	assert.NoError(t, v.Validate("http://127.0.0.1:8080/"))
	assert.NoError(t, v.Validate("http://192.168.1.20/dash"))

	// Scheme rules still apply in development.
	assert.ErrorIs(t, v.Validate("file:///etc/passwd"), common.ErrUnsafeSource)
	assert.ErrorIs(t, v.Validate("ftp://example.com"), common.ErrUnsafeSource)
}
