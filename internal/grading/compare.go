package grading

import (
	"strings"
)

const (
	tracebackHeader = "Traceback (most recent call last):"
	blankLineMarker = "<BLANKLINE>"
)

// Compare reports whether got matches the expected output of an example.
// Matching is verbatim except that trailing whitespace on each line and
// trailing blank lines are ignored, "<BLANKLINE>" in want stands for an empty
// line, and an expected traceback matches on its final exception line only.
func Compare(want, got string) bool {
	w := normalize(want)
	g := normalize(got)
	if strings.HasPrefix(w, tracebackHeader) {
		return strings.HasPrefix(g, tracebackHeader) && exceptionLine(w) == exceptionLine(g)
	}
	return w == g
}

func normalize(s string) string {
	lines := strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n")
	for i, l := range lines {
		l = strings.TrimRight(l, " \t")
		if l == blankLineMarker {
			l = ""
		}
		lines[i] = l
	}
	for len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return strings.Join(lines, "\n")
}

// exceptionLine is the first unindented line after the traceback header:
// "ValueError: bad value".
func exceptionLine(s string) string {
	lines := strings.Split(s, "\n")
	for _, l := range lines[1:] {
		if l == "" || l[0] == ' ' || l[0] == '\t' || l == "..." {
			continue
		}
		return l
	}
	return ""
}
