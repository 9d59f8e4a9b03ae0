// Package testfile reads and writes the declarative test case files shipped in
// an autograder bundle under tests/. Each file assigns one record to the name
// "test":
//
//	test = {
//	    'name': 'q1',
//	    'points': None,
//	    'suites': [{'cases': [...], 'scored': True, 'setup': '', 'teardown': '', 'type': 'doctest'}],
//	}
//
// The grading host reads these files with a Python interpreter, so the literal
// syntax accepted and produced here is the subset of Python literals the
// record needs.
package testfile

import (
	"github.com/shopspring/decimal"
)

// SuiteType names how a suite's cases are evaluated.
type SuiteType string

const (
	SuiteDoctest SuiteType = "doctest"
)

// Test is one graded question.
type Test struct {
	Name string
	// Points is nil when the file says None: the test inherits the default
	// weight chosen by the grading engine.
	Points *decimal.Decimal
	Suites []Suite

	// OKFormat records a leading "OK_FORMAT = True" marker line.
	OKFormat bool
}

// Suite is an ordered group of cases sharing setup, teardown and a scoring flag.
type Suite struct {
	Cases    []Case
	Scored   bool
	Setup    string
	Teardown string
	Type     SuiteType
}

// Case is one interactive-transcript check. Hidden cases are still scored but
// withheld from the learner-visible report.
type Case struct {
	Code   string
	Hidden bool
	Locked bool
}

// Equal reports whether two records have the same content.
func (t *Test) Equal(o *Test) bool {
	if t == nil || o == nil {
		return t == o
	}
	if t.Name != o.Name || t.OKFormat != o.OKFormat || len(t.Suites) != len(o.Suites) {
		return false
	}
	if (t.Points == nil) != (o.Points == nil) {
		return false
	}
	if t.Points != nil && !t.Points.Equal(*o.Points) {
		return false
	}
	for i := range t.Suites {
		a, b := t.Suites[i], o.Suites[i]
		if a.Scored != b.Scored || a.Setup != b.Setup || a.Teardown != b.Teardown || a.Type != b.Type {
			return false
		}
		if len(a.Cases) != len(b.Cases) {
			return false
		}
		for j := range a.Cases {
			if a.Cases[j] != b.Cases[j] {
				return false
			}
		}
	}
	return true
}

// HasHidden reports whether any case of the test is hidden.
func (t *Test) HasHidden() bool {
	for _, s := range t.Suites {
		for _, c := range s.Cases {
			if c.Hidden {
				return true
			}
		}
	}
	return false
}
