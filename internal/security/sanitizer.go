// Package security provides HTML sanitization for user-supplied content.
package security

import (
	"github.com/microcosm-cc/bluemonday"
)

// Sanitizer strips unsafe markup from post and comment bodies before storage.
type Sanitizer interface {
	Sanitize(rawHTML string) string
}

type contentSanitizer struct {
	policy *bluemonday.Policy
}

// NewContentSanitizer builds an allowlist policy for blog content: basic
// formatting tags, links with forced rel/target hardening, https-only images.
// Script, style and iframe tags and all on* event attributes are removed.
func NewContentSanitizer() Sanitizer {
	p := bluemonday.NewPolicy()

	p.AllowElements(
		"p", "br", "ul", "ol", "li",
		"h1", "h2", "h3", "h4",
		"blockquote", "pre", "code",
		"strong", "em",
	)

	p.AllowAttrs("href").OnElements("a")
	p.AllowRelativeURLs(false)
	p.AddTargetBlankToFullyQualifiedLinks(true)
	p.RequireNoReferrerOnLinks(true)

	p.AllowAttrs("src", "alt").OnElements("img")
	p.AllowURLSchemes("https")

	return &contentSanitizer{policy: p}
}

func (s *contentSanitizer) Sanitize(rawHTML string) string {
	return s.policy.Sanitize(rawHTML)
}
