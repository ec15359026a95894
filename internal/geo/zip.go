package geo

import (
	"regexp"
	"strings"
)

var zipPattern = regexp.MustCompile(`^\d{5}$`)

// IsZIP reports whether text is exactly a 5-digit ZIP code.
func IsZIP(text string) bool {
	return zipPattern.MatchString(strings.TrimSpace(text))
}

// NormalizeZIP cleans a ZIP cell exported from a spreadsheet. "14526.0" becomes "14526",
// ZIP+4 forms are cut to five characters.
func NormalizeZIP(raw string) string {
	z := strings.TrimSpace(raw)
	if i := strings.IndexByte(z, '.'); i >= 0 {
		z = z[:i]
	}
	if i := strings.IndexByte(z, '-'); i >= 0 {
		z = z[:i]
	}
	if len(z) > 5 {
		z = z[:5]
	}
	return z
}
