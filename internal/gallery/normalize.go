package gallery

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// RemoveDiacritics removes diacritical marks from a string (e.g., "Jiří" -> "Jiri").
func RemoveDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	result, _, _ := transform.String(t, s)
	return result
}

// NormalizeLabel normalizes an identity label for comparison (lowercase, no
// diacritics, spaces for dashes and underscores). Reference image filenames
// like "jan-novak.jpg" and a display name "Jan Novák" map to the same key.
func NormalizeLabel(label string) string {
	label = RemoveDiacritics(label)
	label = strings.ToLower(label)
	label = strings.ReplaceAll(label, "-", " ")
	label = strings.ReplaceAll(label, "_", " ")
	return strings.TrimSpace(label)
}

// DisplayLabel is the presentation form of an identity label: upper-cased,
// matching the attendance rows the original CSV consumers expect.
func DisplayLabel(label string) string {
	return strings.ToUpper(strings.TrimSpace(label))
}
