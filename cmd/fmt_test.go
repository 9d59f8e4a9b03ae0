package cmd

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/zinc-sig/otterbox/internal/testfile"
)

const compactRecord = `test = {'name': 'q1', 'points': None, 'suites': [{'cases': [{'code': '>>> x == 2\nTrue', 'hidden': False, 'locked': False}], 'scored': True, 'setup': '', 'teardown': '', 'type': 'doctest'}]}
`

func resetFmtFlags() {
	fmtWrite = false
	fmtDiff = false
}

func TestFmtCommand(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "q1.py")
	if err := os.WriteFile(path, []byte(compactRecord), 0644); err != nil {
		t.Fatal(err)
	}
	canonical := filepath.Join(dir, "q2.py")
	src, err := os.ReadFile(filepath.Join(sampleBundle, "tests", "q2.py"))
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(canonical, testfile.Format(mustParse(t, src)), 0644); err != nil {
		t.Fatal(err)
	}

	t.Run("lists files that differ", func(t *testing.T) {
		resetFmtFlags()
		out, err := executeCommand(t, "fmt", dir)
		if err != nil {
			t.Fatal(err)
		}
		if strings.TrimSpace(out) != path {
			t.Errorf("output = %q, want only %s", out, path)
		}
	})

	t.Run("diff", func(t *testing.T) {
		resetFmtFlags()
		out, err := executeCommand(t, "fmt", "-d", path)
		if err != nil {
			t.Fatal(err)
		}
		for _, want := range []string{"--- " + path + ".orig", "+++ " + path, "-test = {'name': 'q1'"} {
			if !strings.Contains(out, want) {
				t.Errorf("diff missing %q:\n%s", want, out)
			}
		}
		got, _ := os.ReadFile(path)
		if string(got) != compactRecord {
			t.Error("-d must not modify the file")
		}
	})

	t.Run("write", func(t *testing.T) {
		resetFmtFlags()
		if _, err := executeCommand(t, "fmt", "-w", path); err != nil {
			t.Fatal(err)
		}
		got, err := os.ReadFile(path)
		if err != nil {
			t.Fatal(err)
		}
		if !mustParse(t, got).Equal(mustParse(t, []byte(compactRecord))) {
			t.Error("rewritten record changed content")
		}

		resetFmtFlags()
		out, err := executeCommand(t, "fmt", dir)
		if err != nil {
			t.Fatal(err)
		}
		if out != "" {
			t.Errorf("expected formatted tree to be clean, got %q", out)
		}
	})

	resetFmtFlags()
}

func TestFmtCommandInvalidFile(t *testing.T) {
	resetFmtFlags()
	path := filepath.Join(t.TempDir(), "bad.py")
	if err := os.WriteFile(path, []byte("test = {'name': \n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := executeCommand(t, "fmt", path); err == nil {
		t.Error("expected a parse error")
	}
}

func mustParse(t *testing.T, src []byte) *testfile.Test {
	t.Helper()
	test, err := testfile.Parse(src)
	if err != nil {
		t.Fatal(err)
	}
	return test
}
