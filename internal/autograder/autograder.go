// Package autograder runs one grading pass inside an autograder directory
// laid out the way the grading host expects:
//
//	<dir>/source      the unpacked bundle (otter_config.json, tests/, files/)
//	<dir>/submission  the learner's files
//	<dir>/results     where results.json is written
package autograder

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/zinc-sig/otterbox/internal/config"
	"github.com/zinc-sig/otterbox/internal/grading"
	"github.com/zinc-sig/otterbox/internal/logging"
	"github.com/zinc-sig/otterbox/internal/report"
	"github.com/zinc-sig/otterbox/internal/submit"
	"github.com/zinc-sig/otterbox/internal/testfile"
	"github.com/zinc-sig/otterbox/internal/upload"
)

// ResultsFile is the report's path relative to the autograder directory.
const ResultsFile = "results/results.json"

// Lang is the only config lang a run accepts.
const Lang = "python"

// RunError is a grading failure that is reported to the learner.
type RunError struct {
	Msg string
}

func (e *RunError) Error() string { return e.Msg }

// Submitter posts a finished report to the course-management host.
type Submitter interface {
	Send(ctx context.Context, runID string, r *report.Report) error
}

// Options controls a run. Only Dir is required.
type Options struct {
	Dir string
	// Overrides are applied on top of source/otter_config.json.
	Overrides map[string]any

	// Interpreter defaults to a PythonInterpreter built from Python and
	// CaseTimeout, echoing output when the config sets show_stdout.
	Interpreter grading.Interpreter
	Python      string
	CaseTimeout time.Duration
	// Submitter defaults to a client built from Submit, with token, course
	// and assignment taken from the config where Submit leaves them empty.
	Submitter   Submitter
	Submit      *submit.Config
	SubmitRetry *submit.RetryConfig
	// Uploader receives results.json when set.
	Uploader upload.Provider

	// RunID names this run in uploads and submissions; a UUID by default.
	RunID  string
	Stdout io.Writer
	Logger *logging.Logger
	// PinLogLevel keeps Logger's level; otherwise the config's log_level
	// raises it for the rest of the run.
	PinLogLevel bool
}

// Run grades the submission. The report is written to results/results.json
// even when grading fails; a failure after the config was read returns the
// error report alongside the error.
func Run(ctx context.Context, opts Options) (*report.Report, error) {
	logger := opts.Logger
	if logger == nil {
		logger = logging.Nop()
	}
	stdout := opts.Stdout
	if stdout == nil {
		stdout = io.Discard
	}
	runID := opts.RunID
	if runID == "" {
		runID = uuid.NewString()
	}

	dir, err := filepath.Abs(opts.Dir)
	if err != nil {
		return nil, err
	}
	logger = logger.With("run_id", runID, "dir", dir)

	cfg, err := config.Load(filepath.Join(dir, "source", config.FileName))
	if err != nil {
		return nil, err
	}
	if err := cfg.Merge(opts.Overrides); err != nil {
		return nil, err
	}
	if !opts.PinLogLevel && cfg.LogLevel != "" {
		if l, err := logger.AtLeast(cfg.LogLevel); err != nil {
			logger.Warn("ignoring config log level", "error", err)
		} else {
			logger = l
		}
	}
	if extra := cfg.ExtraKeys(); len(extra) > 0 {
		logger.Debug("passing through unrecognized config keys", "keys", extra)
	}

	results, gradeErr := grade(ctx, dir, cfg, opts, logger)
	var r *report.Report
	if gradeErr != nil {
		logger.Error("grading failed", "error", gradeErr)
		r = report.ErrorReport(gradeErr)
	} else {
		r = report.Build(results, cfg)
	}

	resultsPath := filepath.Join(dir, ResultsFile)
	if err := r.WriteFile(resultsPath); err != nil {
		return r, errors.Join(gradeErr, err)
	}
	if gradeErr != nil {
		return r, gradeErr
	}
	logger.Info("wrote results", "path", resultsPath, "score", r.Score.String())

	fmt.Fprint(stdout, "\n\n")
	if cfg.PrintScore {
		r.PrintScore(stdout)
	}
	if cfg.PrintSummary {
		r.PrintSummary(stdout)
	}

	var errs []error
	if err := publish(ctx, opts, cfg, runID, r, logger); err != nil {
		errs = append(errs, err)
	}
	if opts.Uploader != nil {
		artifacts := upload.Artifacts("results", runID, resultsPath)
		if err := upload.UploadAll(ctx, opts.Uploader, artifacts, logger); err != nil {
			errs = append(errs, err)
		}
	}
	return r, errors.Join(errs...)
}

func grade(ctx context.Context, dir string, cfg *config.Config, opts Options, logger *logging.Logger) (*grading.Results, error) {
	if cfg.Lang != Lang {
		return nil, &RunError{Msg: fmt.Sprintf("Unsupported language '%s': this autograder only grades '%s' submissions", cfg.Lang, Lang)}
	}

	source := filepath.Join(dir, "source")
	submission := filepath.Join(dir, "submission")

	if cfg.Zips {
		if err := unzipSubmission(ctx, submission); err != nil {
			return nil, err
		}
	}

	// Listed before the bundle's assets are copied in so helper scripts
	// shipped under files/ are not mistaken for the learner's code.
	scripts, err := learnerScripts(submission)
	if err != nil {
		return nil, err
	}
	if err := prepareFiles(source, submission); err != nil {
		return nil, err
	}

	preamble, name, err := readScripts(scripts)
	if err != nil {
		return nil, err
	}
	if cfg.AssignmentName != "" && name != cfg.AssignmentName {
		return nil, &RunError{Msg: fmt.Sprintf("Received submission for assignment '%s' (this is assignment '%s')", name, cfg.AssignmentName)}
	}

	files, err := testfile.LoadDir(filepath.Join(submission, "tests"))
	if err != nil {
		return nil, err
	}
	logger.Info("grading submission", "scripts", len(scripts), "tests", len(files))

	interp := opts.Interpreter
	if interp == nil {
		p := grading.NewPythonInterpreter()
		p.Python = cmp.Or(opts.Python, p.Python)
		p.Timeout = opts.CaseTimeout
		p.Verbose = cfg.ShowStdout
		interp = p
	}
	g := &grading.Grader{
		Interpreter: interp,
		Seed:        cfg.Seed,
		Preamble:    preamble,
		Dir:         submission,
		Logger:      logger,
	}
	return g.Grade(ctx, lo.Map(files, func(f testfile.File, _ int) *testfile.Test { return f.Test }))
}

// publish posts r to the course-management host when one is configured.
func publish(ctx context.Context, opts Options, cfg *config.Config, runID string, r *report.Report, logger *logging.Logger) error {
	s := opts.Submitter
	if s == nil {
		if opts.Submit == nil || opts.Submit.BaseURL == "" {
			return nil
		}
		sc := *opts.Submit
		sc.Token = cmp.Or(sc.Token, cfg.Token)
		sc.CourseID = cmp.Or(sc.CourseID, cfg.CourseID)
		sc.AssignmentID = cmp.Or(sc.AssignmentID, cfg.AssignmentID)
		if err := sc.Validate(); err != nil {
			logger.Warn("skipping submission", "reason", err.Error())
			return nil
		}
		s = submit.NewClient(&sc, opts.SubmitRetry, logger)
	}
	if err := s.Send(ctx, runID, r); err != nil {
		return fmt.Errorf("failed to submit results: %w", err)
	}
	return nil
}

// Clean removes the results directory so a rerun starts fresh.
func Clean(dir string) error {
	return os.RemoveAll(filepath.Join(dir, filepath.Dir(ResultsFile)))
}
