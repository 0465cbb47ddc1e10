// -----------------------------------------------------------------------
// URL Validator - guards remote fetches against internal targets
// -----------------------------------------------------------------------

package sanitize

import (
	"fmt"
	"net"
	"net/url"
	"strings"

	"github.com/ternarybob/folio/internal/common"
	"github.com/ternarybob/folio/internal/interfaces"
)

// URLValidator accepts only http and https URLs and, outside development,
// refuses targets that resolve into the service's own network.
type URLValidator struct {
	allowPrivate bool
}

// NewURLValidator creates a validator. allowPrivate relaxes the loopback and
// private-range checks for local development.
func NewURLValidator(allowPrivate bool) *URLValidator {
	return &URLValidator{allowPrivate: allowPrivate}
}

// Validate returns ErrUnsafeSource when the URL must not be fetched.
func (v *URLValidator) Validate(rawURL string) error {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return fmt.Errorf("%w: malformed url: %v", common.ErrUnsafeSource, err)
	}

	scheme := strings.ToLower(parsed.Scheme)
	if scheme != "http" && scheme != "https" {
		return fmt.Errorf("%w: scheme %q is not allowed", common.ErrUnsafeSource, parsed.Scheme)
	}

	host := parsed.Hostname()
	if host == "" {
		return fmt.Errorf("%w: url has no host", common.ErrUnsafeSource)
	}

	if v.allowPrivate {
		return nil
	}

	if isBlockedHost(host) {
		return fmt.Errorf("%w: host %q targets an internal address", common.ErrUnsafeSource, host)
	}
	return nil
}

// isBlockedHost reports whether the host names a loopback, private or
// link-local address. Hostnames are checked literally; resolution happens in
// the browser and the literal check covers the direct-IP vectors.
func isBlockedHost(host string) bool {
	lower := strings.ToLower(host)
	if lower == "localhost" || strings.HasSuffix(lower, ".localhost") {
		return true
	}

	ip := net.ParseIP(host)
	if ip == nil {
		return false
	}
	return ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast() || ip.IsUnspecified()
}

var _ interfaces.URLValidator = (*URLValidator)(nil)
