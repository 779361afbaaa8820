// Package text holds small string helpers for log and error output.
package text

import "strings"

// Truncate shortens s to at most max runes, marking the cut with "...".
func Truncate(s string, max int) string {
	if max <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}

// Snippet collapses whitespace runs into single spaces and truncates the
// result, for quoting upstream bodies in errors.
func Snippet(s string, max int) string {
	return Truncate(strings.Join(strings.Fields(s), " "), max)
}
