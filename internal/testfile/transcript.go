package testfile

import (
	"fmt"
	"strings"
)

const (
	promptPS1 = ">>>"
	promptPS2 = "..."
)

// Example is one prompt of an interactive transcript: the source typed after
// ">>> " (plus "... " continuation lines) and the output expected before the
// next prompt.
type Example struct {
	Source string
	Want   string
	Line   int // 1-based line of the ">>>" prompt within the case code
}

// ParseTranscript splits a case's code into examples. The code is dedented
// first; text before the first prompt is ignored; expected output ends at a
// blank line or the next prompt.
func ParseTranscript(code string) ([]Example, error) {
	lines := strings.Split(dedent(code), "\n")

	var examples []Example
	for i := 0; i < len(lines); {
		line := lines[i]
		if !isPrompt(line, promptPS1) {
			i++
			continue
		}

		ex := Example{Line: i + 1}
		source := []string{stripPrompt(line, promptPS1)}
		i++
		for i < len(lines) && isPrompt(lines[i], promptPS2) {
			source = append(source, stripPrompt(lines[i], promptPS2))
			i++
		}

		var want []string
		for i < len(lines) && strings.TrimSpace(lines[i]) != "" && !isPrompt(lines[i], promptPS1) {
			want = append(want, lines[i])
			i++
		}

		ex.Source = strings.Join(source, "\n")
		if strings.TrimSpace(ex.Source) == "" {
			return nil, fmt.Errorf("line %d: empty prompt", ex.Line)
		}
		if len(want) > 0 {
			ex.Want = strings.Join(want, "\n") + "\n"
		}
		examples = append(examples, ex)
	}

	if len(examples) == 0 {
		return nil, fmt.Errorf("no %q prompt found in case code", promptPS1)
	}
	return examples, nil
}

// FormatTranscript is the inverse of ParseTranscript for a list of examples.
func FormatTranscript(examples []Example) string {
	var b strings.Builder
	for i, ex := range examples {
		if i > 0 {
			b.WriteByte('\n')
		}
		for j, line := range strings.Split(ex.Source, "\n") {
			if j == 0 {
				b.WriteString(promptPS1 + " ")
			} else {
				b.WriteString(promptPS2 + " ")
			}
			b.WriteString(line)
			b.WriteByte('\n')
		}
		b.WriteString(ex.Want)
	}
	return strings.TrimSuffix(b.String(), "\n")
}

func isPrompt(line, prompt string) bool {
	trimmed := strings.TrimLeft(line, " \t")
	return trimmed == prompt || strings.HasPrefix(trimmed, prompt+" ")
}

func stripPrompt(line, prompt string) string {
	trimmed := strings.TrimLeft(line, " \t")
	return strings.TrimPrefix(strings.TrimPrefix(trimmed, prompt), " ")
}

// dedent removes the longest common leading whitespace of non-blank lines.
func dedent(s string) string {
	lines := strings.Split(s, "\n")
	prefix := ""
	first := true
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		indent := line[:len(line)-len(strings.TrimLeft(line, " \t"))]
		if first {
			prefix, first = indent, false
			continue
		}
		for !strings.HasPrefix(indent, prefix) {
			prefix = prefix[:len(prefix)-1]
		}
	}
	if prefix == "" {
		return s
	}
	for i, line := range lines {
		lines[i] = strings.TrimPrefix(line, prefix)
	}
	return strings.Join(lines, "\n")
}
