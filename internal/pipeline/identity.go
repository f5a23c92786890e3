package pipeline

import (
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// MaxNameLen bounds the stored band name, in bytes.
const MaxNameLen = 64

// sanitizeName returns a bounded, printable copy of a device-reported name.
// Ill-formed UTF-8 is replaced, control characters are removed, the result
// is NFC-normalized and cut at a rune boundary to at most max bytes.
func sanitizeName(name string, max int) string {
	t := transform.Chain(
		runes.ReplaceIllFormed(),
		runes.Remove(runes.Predicate(unicode.IsControl)),
		norm.NFC,
	)
	clean, _, err := transform.String(t, name)
	if err != nil {
		return ""
	}

	if len(clean) <= max {
		return clean
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(clean[cut]) {
		cut--
	}
	return clean[:cut]
}
