package posts

import (
	"fmt"
	"regexp"
	"strings"
)

var nonWordRunPattern = regexp.MustCompile(`[^\p{L}\p{N}_]+`)

// GenerateUniqueSlug derives a URL-safe slug from the title: lowercase,
// every run of non-word characters collapsed to a single hyphen, leading
// and trailing hyphens trimmed. When the base collides with an existing
// slug, the first free integer suffix (_1, _2, ...) is appended.
// Pure and deterministic for a fixed title and slug set.
func GenerateUniqueSlug(title string, existing map[string]struct{}) string {
	base := strings.Trim(nonWordRunPattern.ReplaceAllString(strings.ToLower(title), "-"), "-")
	slug := base
	for suffix := 1; ; suffix++ {
		if _, taken := existing[slug]; !taken {
			return slug
		}
		slug = fmt.Sprintf("%s_%d", base, suffix)
	}
}
