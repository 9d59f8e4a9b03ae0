package report

import (
	"strings"

	ansi "github.com/leaanthony/go-ansi-parser"
)

// Scrub removes terminal escape sequences and control characters other than
// newline and tab from s.
func Scrub(s string) string {
	if ansi.HasEscapeCodes(s) {
		if cleaned, err := ansi.Cleanse(s); err == nil {
			s = cleaned
		}
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r == '\n' || r == '\t':
			return r
		case r == '\r':
			return -1
		case r < 0x20 || r == 0x7f || (r >= 0x80 && r < 0xa0):
			return -1
		}
		return r
	}, s)
}
