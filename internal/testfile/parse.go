package testfile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/shopspring/decimal"
)

// RecordName is the variable every test file assigns its record to.
const RecordName = "test"

const okFormatName = "OK_FORMAT"

// Parse reads one test file.
func Parse(src []byte) (*Test, error) {
	p, err := newParser(string(src))
	if err != nil {
		return nil, err
	}
	values, lines, err := p.assignments()
	if err != nil {
		return nil, err
	}

	raw, ok := values[RecordName]
	if !ok {
		return nil, &SyntaxError{Line: 1, Msg: fmt.Sprintf("file does not define %q", RecordName)}
	}
	for name := range values {
		if name != RecordName && name != okFormatName {
			return nil, &SyntaxError{Line: lines[name], Msg: fmt.Sprintf("unexpected assignment to %q", name)}
		}
	}

	t, err := decodeTest(raw)
	if err != nil {
		return nil, &SyntaxError{Line: lines[RecordName], Msg: err.Error()}
	}

	if v, ok := values[okFormatName]; ok {
		b, isBool := v.(bool)
		if !isBool {
			return nil, &SyntaxError{Line: lines[okFormatName], Msg: "OK_FORMAT must be True or False"}
		}
		t.OKFormat = b
	}
	return t, nil
}

// ParseFile reads the test file at path.
func ParseFile(path string) (*Test, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read test file: %w", err)
	}
	t, err := Parse(src)
	if err != nil {
		var se *SyntaxError
		if errors.As(err, &se) {
			se.Path = path
		}
		return nil, err
	}
	return t, nil
}

// File pairs a parsed record with where it came from.
type File struct {
	Path string
	Test *Test
}

// LoadDir parses every *.py file directly inside dir, sorted by file name.
// Files starting with "__" (such as __init__.py) are skipped.
func LoadDir(dir string) ([]File, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.py"))
	if err != nil {
		return nil, fmt.Errorf("failed to list test files: %w", err)
	}
	sort.Strings(matches)

	var files []File
	var errs []error
	for _, path := range matches {
		if len(filepath.Base(path)) > 2 && filepath.Base(path)[:2] == "__" {
			continue
		}
		t, err := ParseFile(path)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		files = append(files, File{Path: path, Test: t})
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return files, nil
}

func decodeTest(raw any) (*Test, error) {
	m, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%s must be a dict", RecordName)
	}

	t := &Test{}

	name, err := stringField(m, "name", "", true)
	if err != nil {
		return nil, err
	}
	if name == "" {
		return nil, fmt.Errorf("'name' must not be empty")
	}
	t.Name = name

	if v, ok := m["points"]; ok && v != nil {
		d, isNum := v.(decimal.Decimal)
		if !isNum {
			return nil, fmt.Errorf("'points' must be a number or None")
		}
		if d.IsNegative() {
			return nil, fmt.Errorf("'points' must not be negative")
		}
		t.Points = &d
	}

	rawSuites, ok := m["suites"]
	if !ok {
		return nil, fmt.Errorf("missing 'suites'")
	}
	suites, ok := rawSuites.([]any)
	if !ok {
		return nil, fmt.Errorf("'suites' must be a list")
	}
	for i, rs := range suites {
		s, err := decodeSuite(rs)
		if err != nil {
			return nil, fmt.Errorf("suite %d: %w", i, err)
		}
		t.Suites = append(t.Suites, s)
	}
	return t, nil
}

func decodeSuite(raw any) (Suite, error) {
	m, ok := raw.(map[string]any)
	if !ok {
		return Suite{}, fmt.Errorf("must be a dict")
	}

	var s Suite
	var err error
	if s.Scored, err = boolField(m, "scored", true); err != nil {
		return Suite{}, err
	}
	if s.Setup, err = stringField(m, "setup", "", false); err != nil {
		return Suite{}, err
	}
	if s.Teardown, err = stringField(m, "teardown", "", false); err != nil {
		return Suite{}, err
	}
	typ, err := stringField(m, "type", string(SuiteDoctest), false)
	if err != nil {
		return Suite{}, err
	}
	if SuiteType(typ) != SuiteDoctest {
		return Suite{}, fmt.Errorf("unsupported suite type %q", typ)
	}
	s.Type = SuiteType(typ)

	rawCases, ok := m["cases"]
	if !ok {
		return Suite{}, fmt.Errorf("missing 'cases'")
	}
	cases, ok := rawCases.([]any)
	if !ok {
		return Suite{}, fmt.Errorf("'cases' must be a list")
	}
	for i, rc := range cases {
		cm, ok := rc.(map[string]any)
		if !ok {
			return Suite{}, fmt.Errorf("case %d: must be a dict", i)
		}
		var c Case
		if c.Code, err = stringField(cm, "code", "", true); err != nil {
			return Suite{}, fmt.Errorf("case %d: %w", i, err)
		}
		if c.Hidden, err = boolField(cm, "hidden", false); err != nil {
			return Suite{}, fmt.Errorf("case %d: %w", i, err)
		}
		if c.Locked, err = boolField(cm, "locked", false); err != nil {
			return Suite{}, fmt.Errorf("case %d: %w", i, err)
		}
		s.Cases = append(s.Cases, c)
	}
	return s, nil
}

func stringField(m map[string]any, key, def string, required bool) (string, error) {
	v, ok := m[key]
	if !ok {
		if required {
			return "", fmt.Errorf("missing '%s'", key)
		}
		return def, nil
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("'%s' must be a string", key)
	}
	return s, nil
}

func boolField(m map[string]any, key string, def bool) (bool, error) {
	v, ok := m[key]
	if !ok {
		return def, nil
	}
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("'%s' must be True or False", key)
	}
	return b, nil
}
