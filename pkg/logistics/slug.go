package logistics

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Slugify derives the identity key of a routes map from its name.
// Diacritics are stripped, letters lowercased, and every run of characters
// outside [a-z0-9] collapses into a single hyphen. The result is a pure
// function of name.
func Slugify(name string) string {
	// transform.Chain is stateful, so build one per call.
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, name)
	if err != nil {
		folded = name
	}

	var b strings.Builder
	b.Grow(len(folded))
	pendingDash := false
	for _, r := range strings.ToLower(folded) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if pendingDash && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingDash = false
			b.WriteRune(r)
			continue
		}
		pendingDash = true
	}
	return b.String()
}
