package core

import (
	"regexp"
	"strings"

	"github.com/google/uuid"
)

var (
	slugWhitespace = regexp.MustCompile(`\s+`)
	slugDisallowed = regexp.MustCompile(`[^a-z0-9\-가-힣]`)
	slugHyphenRun  = regexp.MustCompile(`-{2,}`)
)

// CreateSlug turns a title into a URL-safe identifier: whitespace runs become
// single hyphens, anything outside lowercase ASCII letters, digits, hyphens
// and Hangul syllables is stripped, and hyphen runs are collapsed. A title
// that yields nothing (blank, or made entirely of stripped characters) falls
// back to a fresh UUID so the slug is still unique and non-empty.
func CreateSlug(title string) string {
	slug := strings.ToLower(strings.TrimSpace(title))

	slug = slugWhitespace.ReplaceAllString(slug, "-")
	slug = slugDisallowed.ReplaceAllString(slug, "")
	slug = slugHyphenRun.ReplaceAllString(slug, "-")
	slug = strings.Trim(slug, "-")

	if slug == "" {
		return uuid.NewString()
	}

	return slug
}
