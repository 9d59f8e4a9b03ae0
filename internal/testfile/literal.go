package testfile

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

// The literal reader understands module-level assignments of Python literals:
// strings (with r/u prefixes, single, double and triple quotes, implicit
// concatenation), numbers, True/False/None, lists, tuples and dicts with string
// keys. Comments and line continuations inside brackets are skipped.

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokNewline
	tokName
	tokString
	tokNumber
	tokPunct
)

type token struct {
	kind tokenKind
	text string // name, punctuation, number text or decoded string
	line int
}

// SyntaxError reports a malformed test file.
type SyntaxError struct {
	Path string
	Line int
	Msg  string
}

func (e *SyntaxError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s:%d: %s", e.Path, e.Line, e.Msg)
	}
	return fmt.Sprintf("line %d: %s", e.Line, e.Msg)
}

type lexer struct {
	src   string
	pos   int
	line  int
	depth int // bracket nesting; newlines inside brackets are insignificant
}

func (l *lexer) errorf(format string, args ...any) error {
	return &SyntaxError{Line: l.line, Msg: fmt.Sprintf(format, args...)}
}

func (l *lexer) next() (token, error) {
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		switch {
		case c == '\n':
			l.pos++
			l.line++
			if l.depth == 0 {
				return token{kind: tokNewline, line: l.line - 1}, nil
			}
		case c == ' ' || c == '\t' || c == '\r' || c == '\f':
			l.pos++
		case c == '\\' && l.pos+1 < len(l.src) && l.src[l.pos+1] == '\n':
			l.pos += 2
			l.line++
		case c == '#':
			for l.pos < len(l.src) && l.src[l.pos] != '\n' {
				l.pos++
			}
		default:
			return l.scan()
		}
	}
	return token{kind: tokEOF, line: l.line}, nil
}

func (l *lexer) scan() (token, error) {
	c := l.src[l.pos]
	start := l.pos

	switch {
	case strings.IndexByte("{}[]():,=", c) >= 0:
		l.pos++
		switch c {
		case '{', '[', '(':
			l.depth++
		case '}', ']', ')':
			if l.depth > 0 {
				l.depth--
			}
		}
		return token{kind: tokPunct, text: string(c), line: l.line}, nil

	case c == '\'' || c == '"':
		return l.scanString(false)

	case isNameStart(c):
		for l.pos < len(l.src) && isNameChar(l.src[l.pos]) {
			l.pos++
		}
		word := l.src[start:l.pos]
		if l.pos < len(l.src) && (l.src[l.pos] == '\'' || l.src[l.pos] == '"') {
			switch strings.ToLower(word) {
			case "r":
				return l.scanString(true)
			case "u":
				return l.scanString(false)
			case "b", "br", "rb", "f", "fr", "rf":
				return token{}, l.errorf("unsupported string prefix %q", word)
			}
		}
		return token{kind: tokName, text: word, line: l.line}, nil

	case c == '-' || c == '+' || c == '.' || (c >= '0' && c <= '9'):
		l.pos++
		for l.pos < len(l.src) {
			d := l.src[l.pos]
			if (d >= '0' && d <= '9') || d == '.' || d == '_' || d == 'e' || d == 'E' ||
				((d == '-' || d == '+') && (l.src[l.pos-1] == 'e' || l.src[l.pos-1] == 'E')) {
				l.pos++
				continue
			}
			break
		}
		return token{kind: tokNumber, text: strings.ReplaceAll(l.src[start:l.pos], "_", ""), line: l.line}, nil
	}

	r, _ := utf8.DecodeRuneInString(l.src[l.pos:])
	return token{}, l.errorf("unexpected character %q", r)
}

func (l *lexer) scanString(raw bool) (token, error) {
	startLine := l.line
	quote := l.src[l.pos]
	triple := strings.HasPrefix(l.src[l.pos:], strings.Repeat(string(quote), 3))
	if triple {
		l.pos += 3
	} else {
		l.pos++
	}

	var b strings.Builder
	for {
		if l.pos >= len(l.src) {
			return token{}, &SyntaxError{Line: startLine, Msg: "unterminated string literal"}
		}
		c := l.src[l.pos]

		if c == quote {
			if !triple {
				l.pos++
				break
			}
			if strings.HasPrefix(l.src[l.pos:], strings.Repeat(string(quote), 3)) {
				l.pos += 3
				break
			}
		}

		if c == '\n' {
			if !triple {
				return token{}, l.errorf("newline in single-quoted string")
			}
			l.line++
		}

		if c == '\\' && l.pos+1 < len(l.src) {
			if raw {
				b.WriteByte(c)
				b.WriteByte(l.src[l.pos+1])
				if l.src[l.pos+1] == '\n' {
					l.line++
				}
				l.pos += 2
				continue
			}
			n, err := l.unescape(&b)
			if err != nil {
				return token{}, err
			}
			l.pos += n
			continue
		}

		b.WriteByte(c)
		l.pos++
	}

	return token{kind: tokString, text: b.String(), line: startLine}, nil
}

// unescape decodes the escape sequence at l.pos and returns its length.
func (l *lexer) unescape(b *strings.Builder) (int, error) {
	e := l.src[l.pos+1]
	switch e {
	case '\n':
		l.line++
		return 2, nil
	case '\\', '\'', '"':
		b.WriteByte(e)
	case 'n':
		b.WriteByte('\n')
	case 't':
		b.WriteByte('\t')
	case 'r':
		b.WriteByte('\r')
	case 'a':
		b.WriteByte('\a')
	case 'b':
		b.WriteByte('\b')
	case 'f':
		b.WriteByte('\f')
	case 'v':
		b.WriteByte('\v')
	case '0', '1', '2', '3', '4', '5', '6', '7':
		// One to three octal digits, as in Python.
		n := 1
		for n < 3 && l.pos+1+n < len(l.src) && isOctal(l.src[l.pos+1+n]) {
			n++
		}
		v, _ := strconv.ParseUint(l.src[l.pos+1:l.pos+1+n], 8, 32)
		b.WriteRune(rune(v))
		return 1 + n, nil
	case 'x', 'u', 'U':
		width := map[byte]int{'x': 2, 'u': 4, 'U': 8}[e]
		if l.pos+2+width > len(l.src) {
			return 0, l.errorf("truncated \\%c escape", e)
		}
		v, err := strconv.ParseUint(l.src[l.pos+2:l.pos+2+width], 16, 32)
		if err != nil {
			return 0, l.errorf("invalid \\%c escape", e)
		}
		b.WriteRune(rune(v))
		return 2 + width, nil
	default:
		// Python keeps unknown escapes verbatim.
		b.WriteByte('\\')
		b.WriteByte(e)
	}
	return 2, nil
}

func isOctal(c byte) bool {
	return c >= '0' && c <= '7'
}

func isNameStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isNameChar(c byte) bool {
	return isNameStart(c) || (c >= '0' && c <= '9')
}

// parser builds a generic value tree: string, decimal.Decimal, bool, nil,
// []any and map[string]any.
type parser struct {
	lex *lexer
	tok token
}

func newParser(src string) (*parser, error) {
	p := &parser{lex: &lexer{src: src, line: 1}}
	if err := p.advance(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *parser) advance() error {
	tok, err := p.lex.next()
	if err != nil {
		return err
	}
	p.tok = tok
	return nil
}

func (p *parser) errorf(format string, args ...any) error {
	return &SyntaxError{Line: p.tok.line, Msg: fmt.Sprintf(format, args...)}
}

func (p *parser) expect(punct string) error {
	if p.tok.kind != tokPunct || p.tok.text != punct {
		return p.errorf("expected %q, got %s", punct, p.describe())
	}
	return p.advance()
}

func (p *parser) describe() string {
	switch p.tok.kind {
	case tokEOF:
		return "end of file"
	case tokNewline:
		return "end of line"
	case tokString:
		return "string"
	default:
		return strconv.Quote(p.tok.text)
	}
}

// assignments parses "name = literal" statements until EOF.
func (p *parser) assignments() (map[string]any, map[string]int, error) {
	values := make(map[string]any)
	lines := make(map[string]int)

	for {
		for p.tok.kind == tokNewline {
			if err := p.advance(); err != nil {
				return nil, nil, err
			}
		}
		if p.tok.kind == tokEOF {
			return values, lines, nil
		}
		if p.tok.kind != tokName {
			return nil, nil, p.errorf("expected assignment, got %s", p.describe())
		}

		name, line := p.tok.text, p.tok.line
		if err := p.advance(); err != nil {
			return nil, nil, err
		}
		if err := p.expect("="); err != nil {
			return nil, nil, err
		}
		v, err := p.value()
		if err != nil {
			return nil, nil, err
		}
		if _, dup := values[name]; dup {
			return nil, nil, &SyntaxError{Line: line, Msg: fmt.Sprintf("%s assigned more than once", name)}
		}
		values[name] = v
		lines[name] = line

		if p.tok.kind != tokNewline && p.tok.kind != tokEOF {
			return nil, nil, p.errorf("unexpected %s after value", p.describe())
		}
	}
}

func (p *parser) value() (any, error) {
	switch p.tok.kind {
	case tokString:
		var b strings.Builder
		for p.tok.kind == tokString {
			b.WriteString(p.tok.text)
			if err := p.advance(); err != nil {
				return nil, err
			}
		}
		return b.String(), nil

	case tokNumber:
		text := p.tok.text
		d, err := decimal.NewFromString(strings.TrimPrefix(text, "+"))
		if err != nil {
			return nil, p.errorf("invalid number %q", text)
		}
		return d, p.advance()

	case tokName:
		var v any
		switch p.tok.text {
		case "True":
			v = true
		case "False":
			v = false
		case "None":
			v = nil
		default:
			return nil, p.errorf("unsupported name %q in literal", p.tok.text)
		}
		return v, p.advance()

	case tokPunct:
		switch p.tok.text {
		case "[":
			return p.sequence("]")
		case "(":
			return p.parenthesized()
		case "{":
			return p.dict()
		}
	}
	return nil, p.errorf("unexpected %s", p.describe())
}

func (p *parser) sequence(closer string) ([]any, error) {
	if err := p.advance(); err != nil {
		return nil, err
	}
	items := []any{}
	for !(p.tok.kind == tokPunct && p.tok.text == closer) {
		v, err := p.value()
		if err != nil {
			return nil, err
		}
		items = append(items, v)
		if p.tok.kind == tokPunct && p.tok.text == "," {
			if err := p.advance(); err != nil {
				return nil, err
			}
			continue
		}
		if !(p.tok.kind == tokPunct && p.tok.text == closer) {
			return nil, p.errorf("expected \",\" or %q, got %s", closer, p.describe())
		}
	}
	return items, p.advance()
}

// parenthesized handles both grouping, as in ('a'\n 'b'), and tuples.
func (p *parser) parenthesized() (any, error) {
	if err := p.advance(); err != nil {
		return nil, err
	}
	if p.tok.kind == tokPunct && p.tok.text == ")" {
		return []any{}, p.advance()
	}
	first, err := p.value()
	if err != nil {
		return nil, err
	}
	if p.tok.kind == tokPunct && p.tok.text == ")" {
		return first, p.advance()
	}
	if err := p.expect(","); err != nil {
		return nil, err
	}
	items := []any{first}
	for !(p.tok.kind == tokPunct && p.tok.text == ")") {
		v, err := p.value()
		if err != nil {
			return nil, err
		}
		items = append(items, v)
		if p.tok.kind == tokPunct && p.tok.text == "," {
			if err := p.advance(); err != nil {
				return nil, err
			}
			continue
		}
		if !(p.tok.kind == tokPunct && p.tok.text == ")") {
			return nil, p.errorf("expected \",\" or \")\", got %s", p.describe())
		}
	}
	return items, p.advance()
}

func (p *parser) dict() (map[string]any, error) {
	if err := p.advance(); err != nil {
		return nil, err
	}
	m := make(map[string]any)
	for !(p.tok.kind == tokPunct && p.tok.text == "}") {
		if p.tok.kind != tokString {
			return nil, p.errorf("dict keys must be strings, got %s", p.describe())
		}
		keyLine := p.tok.line
		k, err := p.value()
		if err != nil {
			return nil, err
		}
		key := k.(string)
		if err := p.expect(":"); err != nil {
			return nil, err
		}
		v, err := p.value()
		if err != nil {
			return nil, err
		}
		if _, dup := m[key]; dup {
			return nil, &SyntaxError{Line: keyLine, Msg: fmt.Sprintf("duplicate key %q", key)}
		}
		m[key] = v
		if p.tok.kind == tokPunct && p.tok.text == "," {
			if err := p.advance(); err != nil {
				return nil, err
			}
			continue
		}
		if !(p.tok.kind == tokPunct && p.tok.text == "}") {
			return nil, p.errorf("expected \",\" or \"}\", got %s", p.describe())
		}
	}
	return m, p.advance()
}
