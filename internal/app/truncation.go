package app

import "unicode/utf8"

// truncateBytes cuts s to at most maxBytes without splitting a rune. A
// non-positive limit leaves s unchanged.
func truncateBytes(s string, maxBytes int) string {
	if maxBytes <= 0 || len(s) <= maxBytes {
		return s
	}
	cut := maxBytes
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
