package testfile

import (
	"bytes"
	"fmt"
	"strings"
	"unicode"
)

// Format renders t as a test file. Parse(Format(t)) yields a record equal to t.
func Format(t *Test) []byte {
	var b bytes.Buffer
	if t.OKFormat {
		b.WriteString(okFormatName + " = True\n\n")
	}

	b.WriteString(RecordName + " = {\n")
	fmt.Fprintf(&b, "    'name': %s,\n", pyRepr(t.Name))
	if t.Points == nil {
		b.WriteString("    'points': None,\n")
	} else {
		fmt.Fprintf(&b, "    'points': %s,\n", t.Points.String())
	}
	b.WriteString("    'suites': [\n")
	for _, s := range t.Suites {
		b.WriteString("        {\n")
		b.WriteString("            'cases': [\n")
		for _, c := range s.Cases {
			b.WriteString("                {\n")
			fmt.Fprintf(&b, "                    'code': %s,\n", pyRepr(c.Code))
			fmt.Fprintf(&b, "                    'hidden': %s,\n", pyBool(c.Hidden))
			fmt.Fprintf(&b, "                    'locked': %s,\n", pyBool(c.Locked))
			b.WriteString("                },\n")
		}
		b.WriteString("            ],\n")
		fmt.Fprintf(&b, "            'scored': %s,\n", pyBool(s.Scored))
		fmt.Fprintf(&b, "            'setup': %s,\n", pyRepr(s.Setup))
		fmt.Fprintf(&b, "            'teardown': %s,\n", pyRepr(s.Teardown))
		fmt.Fprintf(&b, "            'type': %s,\n", pyRepr(string(s.Type)))
		b.WriteString("        },\n")
	}
	b.WriteString("    ],\n")
	b.WriteString("}\n")
	return b.Bytes()
}

func pyBool(v bool) string {
	if v {
		return "True"
	}
	return "False"
}

// pyRepr quotes s the way Python's repr does for str.
func pyRepr(s string) string {
	quote := byte('\'')
	if strings.ContainsRune(s, '\'') && !strings.ContainsRune(s, '"') {
		quote = '"'
	}

	var b strings.Builder
	b.WriteByte(quote)
	for _, r := range s {
		switch {
		case r == '\\':
			b.WriteString(`\\`)
		case r == rune(quote):
			b.WriteByte('\\')
			b.WriteByte(quote)
		case r == '\n':
			b.WriteString(`\n`)
		case r == '\r':
			b.WriteString(`\r`)
		case r == '\t':
			b.WriteString(`\t`)
		case r < 0x20 || r == 0x7f:
			fmt.Fprintf(&b, `\x%02x`, r)
		case r > 0x7f && !unicode.IsPrint(r):
			if r > 0xffff {
				fmt.Fprintf(&b, `\U%08x`, r)
			} else {
				fmt.Fprintf(&b, `\u%04x`, r)
			}
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte(quote)
	return b.String()
}
