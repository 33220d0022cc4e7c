// Package strings shortens verdict messages for one-line display in logs,
// tables and report summaries.
package strings

import (
	"strings"
)

// SummaryWidth is the message width of the campaign summary table.
const SummaryWidth = 60

// minWidth leaves room for one character and the ellipsis.
const minWidth = 4

// FirstLine returns the first non-empty line of s, trimmed.
func FirstLine(s string) string {
	for line := range strings.SplitSeq(s, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			return line
		}
	}
	return ""
}

// Summary returns the first line of s with its whitespace collapsed, cut
// to width runes with a trailing "...".
func Summary(s string, width int) string {
	width = max(width, minWidth)
	line := strings.Join(strings.Fields(FirstLine(s)), " ")
	runes := []rune(line)
	if len(runes) <= width {
		return line
	}
	return string(runes[:width-3]) + "..."
}
