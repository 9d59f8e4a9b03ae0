// Package grading evaluates test case records against a submission.
//
// A Grader turns every case into a session case, sends all of them to an
// Interpreter in one call and compares what came back with the expected
// transcript. A mismatch is a scoring outcome; only a failure of the
// interpreter itself is returned as an error.
package grading

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/zinc-sig/otterbox/internal/logging"
	"github.com/zinc-sig/otterbox/internal/testfile"
)

// Grader grades test records with one interpreter session.
type Grader struct {
	Interpreter Interpreter
	// Seed reseeds the random state before every case; nil leaves it alone.
	Seed *int
	// Preamble is the learner's code, run at the start of every case.
	Preamble string
	// Dir is where cases run; the submission and data assets live there.
	Dir    string
	Logger *logging.Logger
}

// pending links a session case back to the case it was built from.
type pending struct {
	test, suite, cas int
	examples         []testfile.Example
}

// Grade evaluates tests in order.
func (g *Grader) Grade(ctx context.Context, tests []*testfile.Test) (*Results, error) {
	logger := g.Logger
	if logger == nil {
		logger = logging.Nop()
	}

	results := &Results{Tests: make([]TestResult, len(tests))}
	session := &Session{Dir: g.Dir, Seed: g.Seed, Preamble: g.Preamble}
	var queue []pending

	for ti, t := range tests {
		tr := &results.Tests[ti]
		tr.Name = t.Name
		tr.Suites = make([]SuiteResult, len(t.Suites))

		index := 0
		for si, s := range t.Suites {
			sr := &tr.Suites[si]
			sr.Scored = s.Scored
			sr.Cases = make([]CaseResult, len(s.Cases))

			setup, setupErr := parseHook(s.Setup)
			teardown, teardownErr := parseHook(s.Teardown)

			for ci, c := range s.Cases {
				cr := &sr.Cases[ci]
				cr.Index = index
				cr.Hidden = c.Hidden
				cr.Locked = c.Locked
				index++

				if setupErr != nil {
					cr.fail(t.Name, fmt.Sprintf("invalid suite setup: %v\n", setupErr))
					continue
				}
				if teardownErr != nil {
					cr.fail(t.Name, fmt.Sprintf("invalid suite teardown: %v\n", teardownErr))
					continue
				}
				examples, err := testfile.ParseTranscript(c.Code)
				if err != nil {
					cr.fail(t.Name, fmt.Sprintf("invalid test case: %v\n", err))
					continue
				}

				sc := SessionCase{
					ID:       fmt.Sprintf("%s/%d/%d", t.Name, si, ci),
					Setup:    setup,
					Teardown: teardown,
				}
				for _, ex := range examples {
					sc.Examples = append(sc.Examples, ex.Source)
				}
				session.Cases = append(session.Cases, sc)
				queue = append(queue, pending{test: ti, suite: si, cas: ci, examples: examples})
			}
		}
	}

	if len(session.Cases) > 0 {
		logger.Debug("starting interpreter session", "cases", len(session.Cases), "dir", g.Dir)
		transcript, err := g.Interpreter.Run(ctx, session)
		if err != nil {
			return nil, err
		}
		for i, p := range queue {
			name := tests[p.test].Name
			cr := &results.Tests[p.test].Suites[p.suite].Cases[p.cas]
			judge(cr, name, p.examples, transcript.Cases[i])
		}
	}

	for ti, t := range tests {
		results.Tests[ti].score(t.Points)
		logger.Debug("graded test",
			"test", t.Name,
			"score", results.Tests[ti].Score.String(),
			"possible", results.Tests[ti].Possible.String())
	}
	return results, nil
}

func parseHook(code string) ([]string, error) {
	if strings.TrimSpace(code) == "" {
		return nil, nil
	}
	examples, err := testfile.ParseTranscript(code)
	if err != nil {
		return nil, err
	}
	sources := make([]string, len(examples))
	for i, ex := range examples {
		sources[i] = ex.Source
	}
	return sources, nil
}

func judge(cr *CaseResult, test string, examples []testfile.Example, ct CaseTranscript) {
	if ct.Error != "" {
		cr.fail(test, ct.Error)
		return
	}

	var log strings.Builder
	for i, ex := range examples {
		got := ""
		if i < len(ct.Outputs) {
			got = ct.Outputs[i]
		}
		writeTrying(&log, ex)
		if Compare(ex.Want, got) {
			log.WriteString("ok\n")
			continue
		}
		writeFailure(&log, test, cr.Index, ex, got)
		cr.fail(test, log.String())
		return
	}
	cr.Passed = true
}

const separator = "**********************************************************************"

func writeTrying(b *strings.Builder, ex testfile.Example) {
	b.WriteString("Trying:\n")
	b.WriteString(indent(ex.Source, 4))
	if ex.Want == "" {
		b.WriteString("Expecting nothing\n")
		return
	}
	b.WriteString("Expecting:\n")
	b.WriteString(indent(ex.Want, 4))
}

func writeFailure(b *strings.Builder, test string, index int, ex testfile.Example, got string) {
	b.WriteString(separator + "\n")
	// Line numbers count the docstring's leading newline, as doctest does.
	fmt.Fprintf(b, "Line %d, in %s %d\n", ex.Line+1, test, index)
	b.WriteString("Failed example:\n")
	b.WriteString(indent(ex.Source, 4))

	if strings.HasPrefix(got, tracebackHeader) && !strings.HasPrefix(ex.Want, tracebackHeader) {
		b.WriteString("Exception raised:\n")
		b.WriteString(indent(got, 4))
		return
	}
	if ex.Want == "" {
		b.WriteString("Expected nothing\n")
	} else {
		b.WriteString("Expected:\n")
		b.WriteString(indent(ex.Want, 4))
	}
	if got == "" {
		b.WriteString("Got nothing\n")
	} else {
		b.WriteString("Got:\n")
		b.WriteString(indent(got, 4))
	}
}

// indent prefixes every line of s with n spaces and ends it with a newline.
func indent(s string, n int) string {
	pad := strings.Repeat(" ", n)
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	var b strings.Builder
	for _, l := range lines {
		if l != "" {
			b.WriteString(pad)
		}
		b.WriteString(l)
		b.WriteByte('\n')
	}
	return b.String()
}

// defaultPoints is the weight of a test whose points are None.
var defaultPoints = decimal.NewFromInt(1)

// score fills Possible and Score. A test's points are split evenly over its
// scored suites; a suite earns its share only when every case passed.
func (t *TestResult) score(points *decimal.Decimal) {
	possible := defaultPoints
	if points != nil {
		possible = *points
	}

	scored, passed := 0, 0
	for _, s := range t.Suites {
		if !s.Scored {
			continue
		}
		scored++
		if s.Passed() {
			passed++
		}
	}
	if scored == 0 {
		t.Possible = decimal.Zero
		t.Score = decimal.Zero
		return
	}
	t.Possible = possible
	t.Score = possible.Mul(decimal.NewFromInt(int64(passed))).Div(decimal.NewFromInt(int64(scored)))
}
