package tgui

import "unicode/utf8"

// TruncRunes cuts s to at most n runes, marking the cut with "…".
func TruncRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	i, seen := 0, 0
	for i = range s {
		if seen == n-1 {
			break
		}
		seen++
	}
	return s[:i] + "…"
}
