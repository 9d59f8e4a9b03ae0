package grading

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// CaseResult is the outcome of one case.
type CaseResult struct {
	// Index numbers the case within its test, across suites, from 0.
	Index  int
	Hidden bool
	Locked bool
	Passed bool
	// Message is the failure report shown to the learner; empty on success.
	Message string
}

func (c *CaseResult) fail(test, detail string) {
	c.Passed = false
	c.Message = fmt.Sprintf("    %s - %d result:\n%s", test, c.Index+1,
		indent("❌ Test case failed\n"+strings.TrimRight(detail, "\n"), 8))
}

// SuiteResult groups case outcomes.
type SuiteResult struct {
	Scored bool
	Cases  []CaseResult
}

// Passed reports whether every case of the suite passed.
func (s *SuiteResult) Passed() bool {
	for _, c := range s.Cases {
		if !c.Passed {
			return false
		}
	}
	return true
}

// TestResult is the outcome of one test record.
type TestResult struct {
	Name     string
	Score    decimal.Decimal
	Possible decimal.Decimal
	Suites   []SuiteResult
}

// Passed reports whether every case of every suite passed, scored or not.
func (t *TestResult) Passed() bool {
	return t.passed(false)
}

func (t *TestResult) passed(publicOnly bool) bool {
	for _, s := range t.Suites {
		for _, c := range s.Cases {
			if publicOnly && c.Hidden {
				continue
			}
			if !c.Passed {
				return false
			}
		}
	}
	return true
}

// HasHidden reports whether the test has any hidden case.
func (t *TestResult) HasHidden() bool {
	for _, s := range t.Suites {
		for _, c := range s.Cases {
			if c.Hidden {
				return true
			}
		}
	}
	return false
}

// Summary renders the test's results the way learners see them:
//
//	q1 results: All test cases passed!
//
// or a header followed by the report of every failing case. With publicOnly,
// hidden cases are left out entirely.
func (t *TestResult) Summary(publicOnly bool) string {
	if t.passed(publicOnly) {
		return t.Name + " results: All test cases passed!"
	}
	var b strings.Builder
	b.WriteString(t.Name + " results:")
	for _, s := range t.Suites {
		for _, c := range s.Cases {
			if c.Passed || (publicOnly && c.Hidden) {
				continue
			}
			b.WriteString("\n")
			b.WriteString(c.Message)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// Results holds the outcome of every graded test, in grading order.
type Results struct {
	Tests []TestResult
}

// Total sums scores and possible points over all tests.
func (r *Results) Total() (score, possible decimal.Decimal) {
	for _, t := range r.Tests {
		score = score.Add(t.Score)
		possible = possible.Add(t.Possible)
	}
	return score, possible
}

// Test returns the result for the named test, or nil.
func (r *Results) Test(name string) *TestResult {
	for i := range r.Tests {
		if r.Tests[i].Name == name {
			return &r.Tests[i]
		}
	}
	return nil
}

// PublicPassed reports whether every non-hidden case of every test passed.
func (r *Results) PublicPassed() bool {
	for i := range r.Tests {
		if !r.Tests[i].passed(true) {
			return false
		}
	}
	return true
}
