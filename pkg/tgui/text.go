package tgui

import "unicode/utf8"

// TruncRunes returns s cut to at most n runes, with "…" appended when cut.
// Button labels use it to stay readable on phones.
func TruncRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n-1 {
			return s[:pos] + "…"
		}
		i++
	}
	return s
}
