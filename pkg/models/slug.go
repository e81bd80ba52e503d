package models

import "strings"

// Slug lowercases a display name and replaces every non-alphanumeric
// character with a dash, trimming dashes from the ends. Client identifiers
// and graph keys are both derived from company names this way.
func Slug(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteRune('-')
		}
	}
	return strings.Trim(b.String(), "-")
}
