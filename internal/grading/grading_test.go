package grading

import (
	"context"
	"errors"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/zinc-sig/otterbox/internal/testfile"
)

// fakeInterpreter answers each example by looking its source up in outputs.
type fakeInterpreter struct {
	outputs  map[string]string
	errors   map[string]string
	err      error
	sessions []*Session
}

func (f *fakeInterpreter) Run(ctx context.Context, s *Session) (*Transcript, error) {
	f.sessions = append(f.sessions, s)
	if f.err != nil {
		return nil, f.err
	}
	t := &Transcript{}
	for _, c := range s.Cases {
		ct := CaseTranscript{ID: c.ID, Error: f.errors[c.ID]}
		for _, src := range c.Examples {
			ct.Outputs = append(ct.Outputs, f.outputs[src])
		}
		t.Cases = append(t.Cases, ct)
	}
	return t, nil
}

func loadSample(t *testing.T, names ...string) []*testfile.Test {
	t.Helper()
	var tests []*testfile.Test
	for _, name := range names {
		test, err := testfile.ParseFile(filepath.Join("..", "..", "testdata", "bundle", "tests", name+".py"))
		if err != nil {
			t.Fatalf("failed to parse %s: %v", name, err)
		}
		tests = append(tests, test)
	}
	return tests
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func TestGradeSampleTests(t *testing.T) {
	// negate returns its argument unchanged.
	fake := &fakeInterpreter{outputs: map[string]string{
		"isinstance(x, int)": "True\n",
		"x == 2":             "True\n",
		"negate(True)":       "True\n",
		"negate(False)":      "False\n",
		`negate("")`:         "''\n",
		"negate(1)":          "1\n",
	}}
	g := &Grader{Interpreter: fake}

	results, err := g.Grade(context.Background(), loadSample(t, "q1", "q2"))
	if err != nil {
		t.Fatalf("Grade failed: %v", err)
	}

	q1 := results.Test("q1")
	if !q1.Passed() || !q1.Score.Equal(dec("1")) || !q1.Possible.Equal(dec("1")) {
		t.Errorf("q1 = %s/%s passed=%v, want 1/1 passed", q1.Score, q1.Possible, q1.Passed())
	}
	q2 := results.Test("q2")
	if q2.Passed() || !q2.Score.IsZero() || !q2.Possible.Equal(dec("2")) {
		t.Errorf("q2 = %s/%s passed=%v, want 0/2 failed", q2.Score, q2.Possible, q2.Passed())
	}

	score, possible := results.Total()
	if !score.Equal(dec("1")) || !possible.Equal(dec("3")) {
		t.Errorf("Total() = %s/%s, want 1/3", score, possible)
	}
	if results.PublicPassed() {
		t.Error("PublicPassed() = true with failing public cases")
	}

	if got := q1.Summary(false); got != "q1 results: All test cases passed!" {
		t.Errorf("q1 summary = %q", got)
	}

	wantFirst := "q2 results:\n" +
		"    q2 - 1 result:\n" +
		"        ❌ Test case failed\n" +
		"        Trying:\n" +
		"            negate(True)\n" +
		"        Expecting:\n" +
		"            False\n" +
		"        " + separator + "\n" +
		"        Line 2, in q2 0\n" +
		"        Failed example:\n" +
		"            negate(True)\n" +
		"        Expected:\n" +
		"            False\n" +
		"        Got:\n" +
		"            True\n" +
		"\n" +
		"    q2 - 2 result:\n"
	full := q2.Summary(false)
	if !strings.HasPrefix(full, wantFirst) {
		t.Errorf("q2 summary does not start with the first failure report:\n%s", full)
	}
	if !strings.Contains(full, "q2 - 4 result:") {
		t.Error("full summary is missing the hidden case")
	}

	public := q2.Summary(true)
	if strings.Contains(public, "q2 - 3 result:") || strings.Contains(public, "q2 - 4 result:") {
		t.Errorf("public summary leaks hidden cases:\n%s", public)
	}
	if !strings.Contains(public, "q2 - 2 result:") {
		t.Error("public summary is missing a public failure")
	}
}

func TestGradeSession(t *testing.T) {
	seed := 42
	fake := &fakeInterpreter{}
	g := &Grader{Interpreter: fake, Seed: &seed, Preamble: "x = 2\n", Dir: "/work"}
	tests := []*testfile.Test{{
		Name: "q9",
		Suites: []testfile.Suite{
			{Scored: true, Setup: ">>> import math", Teardown: ">>> del math", Cases: []testfile.Case{
				{Code: ">>> x\n2"},
				{Code: ">>> y = 1\n>>> y + x\n3"},
			}},
			{Scored: false, Cases: []testfile.Case{{Code: ">>> 1"}}},
		},
	}}

	if _, err := g.Grade(context.Background(), tests); err != nil {
		t.Fatalf("Grade failed: %v", err)
	}
	if len(fake.sessions) != 1 {
		t.Fatalf("interpreter called %d times, want 1", len(fake.sessions))
	}
	s := fake.sessions[0]
	if s.Dir != "/work" || s.Preamble != "x = 2\n" || s.Seed == nil || *s.Seed != 42 {
		t.Errorf("session = dir %q preamble %q seed %v", s.Dir, s.Preamble, s.Seed)
	}

	var ids []string
	for _, c := range s.Cases {
		ids = append(ids, c.ID)
	}
	if got := strings.Join(ids, ","); got != "q9/0/0,q9/0/1,q9/1/0" {
		t.Errorf("case ids = %s", got)
	}
	second := s.Cases[1]
	if strings.Join(second.Examples, "|") != "y = 1|y + x" {
		t.Errorf("examples = %q", second.Examples)
	}
	if len(second.Setup) != 1 || second.Setup[0] != "import math" {
		t.Errorf("setup = %q", second.Setup)
	}
	if len(second.Teardown) != 1 || second.Teardown[0] != "del math" {
		t.Errorf("teardown = %q", second.Teardown)
	}
	if s.Cases[2].Setup != nil || s.Cases[2].Teardown != nil {
		t.Error("empty hooks should not produce statements")
	}
}

func TestGradeScoring(t *testing.T) {
	pass := testfile.Case{Code: ">>> ok()\nTrue"}
	fail := testfile.Case{Code: ">>> bad()\nTrue"}
	suite := func(scored bool, cases ...testfile.Case) testfile.Suite {
		return testfile.Suite{Scored: scored, Cases: cases, Type: testfile.SuiteDoctest}
	}

	tests := []struct {
		name         string
		points       *decimal.Decimal
		suites       []testfile.Suite
		wantScore    string
		wantPossible string
	}{
		{
			name:         "default weight",
			suites:       []testfile.Suite{suite(true, pass, pass)},
			wantScore:    "1",
			wantPossible: "1",
		},
		{
			name:         "failed case fails suite",
			points:       decPtr("4"),
			suites:       []testfile.Suite{suite(true, pass, fail)},
			wantScore:    "0",
			wantPossible: "4",
		},
		{
			name:         "split over scored suites",
			points:       decPtr("3"),
			suites:       []testfile.Suite{suite(true, pass), suite(true, fail), suite(true, pass)},
			wantScore:    "2",
			wantPossible: "3",
		},
		{
			name:         "unscored suites ignored",
			points:       decPtr("2.5"),
			suites:       []testfile.Suite{suite(true, pass), suite(false, fail)},
			wantScore:    "2.5",
			wantPossible: "2.5",
		},
		{
			name:         "nothing scored",
			points:       decPtr("5"),
			suites:       []testfile.Suite{suite(false, pass)},
			wantScore:    "0",
			wantPossible: "0",
		},
		{
			name:         "hidden and locked cases count",
			points:       decPtr("1"),
			suites:       []testfile.Suite{suite(true, pass, testfile.Case{Code: fail.Code, Hidden: true, Locked: true})},
			wantScore:    "0",
			wantPossible: "1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeInterpreter{outputs: map[string]string{"ok()": "True\n", "bad()": "False\n"}}
			g := &Grader{Interpreter: fake}
			results, err := g.Grade(context.Background(), []*testfile.Test{{Name: "q", Points: tt.points, Suites: tt.suites}})
			if err != nil {
				t.Fatalf("Grade failed: %v", err)
			}
			r := results.Tests[0]
			if !r.Score.Equal(dec(tt.wantScore)) || !r.Possible.Equal(dec(tt.wantPossible)) {
				t.Errorf("got %s/%s, want %s/%s", r.Score, r.Possible, tt.wantScore, tt.wantPossible)
			}
		})
	}
}

func TestGradeCaseFailures(t *testing.T) {
	tests := []*testfile.Test{{
		Name: "q",
		Suites: []testfile.Suite{
			{Scored: true, Cases: []testfile.Case{
				{Code: ">>> boom()\n3"},
				{Code: "no prompt here"},
				{Code: ">>> fine()\n1"},
			}},
			{Scored: true, Setup: "not a transcript", Cases: []testfile.Case{{Code: ">>> fine()\n1"}}},
		},
	}}
	fake := &fakeInterpreter{
		outputs: map[string]string{
			"boom()": "Traceback (most recent call last):\nZeroDivisionError: division by zero\n",
			"fine()": "1\n",
		},
		errors: map[string]string{"q/0/2": "setup failed:\nTraceback (most recent call last):\nNameError: name 'np' is not defined\n"},
	}

	results, err := (&Grader{Interpreter: fake}).Grade(context.Background(), tests)
	if err != nil {
		t.Fatalf("Grade failed: %v", err)
	}
	if got := len(fake.sessions[0].Cases); got != 2 {
		t.Errorf("sent %d cases, want 2 (unparsable cases are failed up front)", got)
	}

	cases := results.Tests[0].Suites[0].Cases
	checks := []struct {
		index int
		want  string
	}{
		{0, "Exception raised:\n            Traceback (most recent call last):\n            ZeroDivisionError: division by zero"},
		{1, "invalid test case: no \">>>\" prompt found"},
		{2, "setup failed:"},
	}
	for _, c := range checks {
		if cases[c.index].Passed {
			t.Errorf("case %d passed", c.index)
		}
		if !strings.Contains(cases[c.index].Message, c.want) {
			t.Errorf("case %d message = %q, want it to contain %q", c.index, cases[c.index].Message, c.want)
		}
	}

	hooked := results.Tests[0].Suites[1].Cases[0]
	if hooked.Passed || !strings.Contains(hooked.Message, "invalid suite setup") {
		t.Errorf("suite with broken setup: passed=%v message=%q", hooked.Passed, hooked.Message)
	}
	if hooked.Index != 3 {
		t.Errorf("case index = %d, want 3 (numbered across suites)", hooked.Index)
	}
}

func TestGradeInterpreterError(t *testing.T) {
	fake := &fakeInterpreter{err: ErrInterpreter}
	_, err := (&Grader{Interpreter: fake}).Grade(context.Background(), loadSample(t, "q1"))
	if !errors.Is(err, ErrInterpreter) {
		t.Fatalf("err = %v, want ErrInterpreter", err)
	}
}

func TestGradeWithoutCasesSkipsInterpreter(t *testing.T) {
	fake := &fakeInterpreter{err: errors.New("should not run")}
	tests := []*testfile.Test{{Name: "q", Suites: []testfile.Suite{{Scored: true}}}}
	results, err := (&Grader{Interpreter: fake}).Grade(context.Background(), tests)
	if err != nil {
		t.Fatalf("Grade failed: %v", err)
	}
	if len(fake.sessions) != 0 {
		t.Error("interpreter was called without cases")
	}
	if !results.Tests[0].Passed() {
		t.Error("a suite without cases should pass")
	}
}

func TestCompare(t *testing.T) {
	tests := []struct {
		name string
		want string
		got  string
		ok   bool
	}{
		{"exact", "True\n", "True\n", true},
		{"trailing spaces", "(2, 3)\n", "(2, 3)   \n", true},
		{"trailing blank lines", "1\n", "1\n\n\n", true},
		{"crlf", "a\nb\n", "a\r\nb\r\n", true},
		{"blankline marker", "a\n<BLANKLINE>\nb\n", "a\n\nb\n", true},
		{"nothing expected", "", "", true},
		{"unexpected output", "", "1\n", false},
		{"different value", "False\n", "True\n", false},
		{"leading whitespace matters", "1\n", " 1\n", false},
		{
			"traceback matches exception line",
			"Traceback (most recent call last):\n  ...\nValueError: bad\n",
			"Traceback (most recent call last):\n  File \"<example 0>\", line 1\nValueError: bad\n",
			true,
		},
		{
			"traceback with other exception",
			"Traceback (most recent call last):\nValueError: bad\n",
			"Traceback (most recent call last):\nTypeError: bad\n",
			false,
		},
		{"traceback expected but none raised", "Traceback (most recent call last):\nValueError: bad\n", "1\n", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Compare(tt.want, tt.got); got != tt.ok {
				t.Errorf("Compare(%q, %q) = %v, want %v", tt.want, tt.got, got, tt.ok)
			}
		})
	}
}

func requirePython(t *testing.T) *PythonInterpreter {
	t.Helper()
	if _, err := exec.LookPath("python3"); err != nil {
		t.Skip("python3 not available")
	}
	return NewPythonInterpreter()
}

func TestPythonInterpreterGradesSubmission(t *testing.T) {
	py := requirePython(t)
	g := &Grader{
		Interpreter: py,
		Preamble:    "x = 2\n\ndef negate(b):\n    return not b\n\nprint('noise from the submission')\n",
		Dir:         t.TempDir(),
	}

	results, err := g.Grade(context.Background(), loadSample(t, "q1", "q2"))
	if err != nil {
		t.Fatalf("Grade failed: %v", err)
	}
	score, possible := results.Total()
	if !score.Equal(dec("3")) || !possible.Equal(dec("3")) {
		for _, r := range results.Tests {
			t.Log(r.Summary(false))
		}
		t.Fatalf("Total() = %s/%s, want 3/3", score, possible)
	}
}

func TestPythonInterpreterReportsFailures(t *testing.T) {
	py := requirePython(t)
	g := &Grader{
		Interpreter: py,
		Preamble:    "def negate(b):\n    if b == '':\n        raise ValueError('empty')\n    return not b\n",
		Dir:         t.TempDir(),
	}

	results, err := g.Grade(context.Background(), loadSample(t, "q2"))
	if err != nil {
		t.Fatalf("Grade failed: %v", err)
	}
	q2 := results.Test("q2")
	if !q2.Score.IsZero() {
		t.Errorf("score = %s, want 0", q2.Score)
	}
	full := q2.Summary(false)
	if !strings.Contains(full, "q2 - 3 result:") || !strings.Contains(full, "ValueError: empty") {
		t.Errorf("full summary is missing the raised error:\n%s", full)
	}
	if got := q2.Summary(true); got != "q2 results: All test cases passed!" {
		t.Errorf("public summary = %q", got)
	}
}

func TestPythonInterpreterIsDeterministic(t *testing.T) {
	py := requirePython(t)
	seed := 42
	tests := []*testfile.Test{{
		Name: "rand",
		Suites: []testfile.Suite{{Scored: true, Cases: []testfile.Case{
			{Code: ">>> import random\n>>> random.randint(0, 1000)\n654"},
			{Code: ">>> import random\n>>> random.randint(0, 1000)\n654"},
		}}},
	}}

	for run := 0; run < 2; run++ {
		g := &Grader{Interpreter: py, Seed: &seed, Preamble: "import random\nrandom.random()\n", Dir: t.TempDir()}
		results, err := g.Grade(context.Background(), tests)
		if err != nil {
			t.Fatalf("run %d: Grade failed: %v", run, err)
		}
		if r := results.Tests[0]; !r.Passed() {
			t.Fatalf("run %d: reseeded cases failed:\n%s", run, r.Summary(false))
		}
	}
}

func TestPythonInterpreterFailure(t *testing.T) {
	py := requirePython(t)
	py.Python = "python3-does-not-exist"
	tests := []*testfile.Test{{Name: "q", Suites: []testfile.Suite{{Scored: true, Cases: []testfile.Case{{Code: ">>> 1\n1"}}}}}}

	_, err := (&Grader{Interpreter: py, Dir: t.TempDir()}).Grade(context.Background(), tests)
	if !errors.Is(err, ErrInterpreter) {
		t.Fatalf("err = %v, want ErrInterpreter", err)
	}
}
