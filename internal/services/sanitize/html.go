// -----------------------------------------------------------------------
// HTML Sanitizer - strips active content from submitted documents
// -----------------------------------------------------------------------

package sanitize

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/ternarybob/folio/internal/interfaces"
)

// removedElements are dropped wholesale from submitted HTML.
var removedElements = []string{"script", "iframe", "object", "embed"}

// HTMLSanitizer rewrites inline and uploaded documents so they carry no
// executable content when the page loads in the browser.
type HTMLSanitizer struct{}

// NewHTMLSanitizer creates a sanitizer.
func NewHTMLSanitizer() *HTMLSanitizer {
	return &HTMLSanitizer{}
}

// Sanitize removes script-bearing elements, inline event handler attributes
// and javascript: URLs, and returns the rewritten document.
func (s *HTMLSanitizer) Sanitize(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("failed to parse html: %w", err)
	}

	for _, tag := range removedElements {
		doc.Find(tag).Remove()
	}

	doc.Find("*").Each(func(_ int, sel *goquery.Selection) {
		for _, node := range sel.Nodes {
			kept := node.Attr[:0]
			for _, attr := range node.Attr {
				name := strings.ToLower(attr.Key)
				if strings.HasPrefix(name, "on") {
					continue
				}
				if (name == "href" || name == "src" || name == "action") &&
					strings.HasPrefix(strings.ToLower(strings.TrimSpace(attr.Val)), "javascript:") {
					continue
				}
				kept = append(kept, attr)
			}
			node.Attr = kept
		}
	})

	out, err := doc.Html()
	if err != nil {
		return "", fmt.Errorf("failed to serialize html: %w", err)
	}
	return out, nil
}

var _ interfaces.HTMLSanitizer = (*HTMLSanitizer)(nil)
