package ir

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// NormalizeText prepares definition source for comparison with a cached build.
//
// The text is NFC normalized, non-breaking spaces become plain spaces, runs of
// spaces and tabs collapse to a single space, and trailing blanks are trimmed
// from every line. Line structure is preserved.
func NormalizeText(s string) string {
	s = norm.NFC.String(s)

	var b strings.Builder
	b.Grow(len(s))

	lines := strings.Split(s, "\n")
	for i, line := range lines {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(collapseBlanks(line))
	}
	return b.String()
}

func collapseBlanks(line string) string {
	var b strings.Builder
	pending := false
	for _, r := range line {
		if r == ' ' || r == '\t' || r == '\u00a0' {
			pending = true
			continue
		}
		if pending {
			b.WriteByte(' ')
			pending = false
		}
		b.WriteRune(r)
	}
	return b.String()
}
