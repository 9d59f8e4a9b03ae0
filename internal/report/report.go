// Package report turns grading results into the results.json document read
// by the grading host.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/zinc-sig/otterbox/internal/config"
	"github.com/zinc-sig/otterbox/internal/grading"
)

const (
	Visible = "visible"
	Hidden  = "hidden"

	StatusPassed = "passed"
	StatusFailed = "failed"

	// PublicTestsName names the summary entry that only covers public cases.
	PublicTestsName = "Public Tests"
	// ErrorTestName names the only entry of an error report.
	ErrorTestName = "Autograder Error"
)

// Points is a decimal that encodes as a bare JSON number.
type Points struct {
	decimal.Decimal
}

func NewPoints(d decimal.Decimal) *Points {
	return &Points{Decimal: d}
}

func (p Points) MarshalJSON() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *Points) UnmarshalJSON(data []byte) error {
	return p.Decimal.UnmarshalJSON(data)
}

// Report is the results.json document.
type Report struct {
	Score            Points `json:"score"`
	StdoutVisibility string `json:"stdout_visibility"`
	Tests            []Test `json:"tests"`

	// Possible is the denominator of Score. It is not part of the document.
	Possible decimal.Decimal `json:"-"`
}

// Test is one entry of the report.
type Test struct {
	Name       string  `json:"name"`
	Score      *Points `json:"score,omitempty"`
	MaxScore   *Points `json:"max_score,omitempty"`
	Visibility string  `json:"visibility,omitempty"`
	Output     string  `json:"output"`
	Status     string  `json:"status,omitempty"`
}

// Build assembles the report for results under cfg.
//
// Every test gets an entry with its full output, hidden cases included; the
// entries are hidden from learners unless show_hidden is set. A "Public
// Tests" entry covering public cases only is prepended when show_hidden is
// off or force_public_test_summary is on.
func Build(results *grading.Results, cfg *config.Config) *Report {
	if cfg == nil {
		cfg = config.Default()
	}
	clean := func(s string) string { return s }
	if cfg.Filtering {
		clean = Scrub
	}

	visibility := Hidden
	if cfg.ShowHidden {
		visibility = Visible
	}
	r := &Report{StdoutVisibility: Hidden}
	if cfg.ShowStdout {
		r.StdoutVisibility = Visible
	}

	if !cfg.ShowHidden || cfg.ForcePublicTestSummary {
		summaries := lo.Map(results.Tests, func(t grading.TestResult, _ int) string {
			return t.Summary(true)
		})
		status := StatusFailed
		if results.PublicPassed() {
			status = StatusPassed
		}
		r.Tests = append(r.Tests, Test{
			Name:       PublicTestsName,
			Visibility: Visible,
			Output:     clean(strings.Join(summaries, "\n\n")),
			Status:     status,
		})
	}

	for _, t := range results.Tests {
		r.Tests = append(r.Tests, Test{
			Name:       t.Name,
			Score:      NewPoints(t.Score),
			MaxScore:   NewPoints(t.Possible),
			Visibility: visibility,
			Output:     clean(t.Summary(false)),
		})
	}

	score, possible := results.Total()
	if cfg.PointsPossible != nil && !possible.IsZero() {
		score = score.Mul(*cfg.PointsPossible).Div(possible)
		possible = *cfg.PointsPossible
	}
	r.Score = Points{Decimal: score}
	r.Possible = possible
	return r
}

// ErrorReport is written instead of a graded report when grading could not
// finish.
func ErrorReport(err error) *Report {
	return &Report{
		StdoutVisibility: Hidden,
		Tests: []Test{{
			Name:   ErrorTestName,
			Output: fmt.Sprintf("Otter encountered an error when grading this submission:\n\n%v", err),
		}},
	}
}

// IsError reports whether r is an error report.
func (r *Report) IsError() bool {
	return len(r.Tests) == 1 && r.Tests[0].Name == ErrorTestName && r.Tests[0].Score == nil
}

// WriteFile writes r as indented JSON to path, creating parent directories.
func (r *Report) WriteFile(path string) error {
	data, err := json.MarshalIndent(r, "", "    ")
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create %s: %w", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

// ReadFile loads a report written by WriteFile.
func ReadFile(path string) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("failed to decode report %s: %w", path, err)
	}
	for _, t := range r.Tests {
		if t.MaxScore != nil {
			r.Possible = r.Possible.Add(t.MaxScore.Decimal)
		}
	}
	return &r, nil
}
