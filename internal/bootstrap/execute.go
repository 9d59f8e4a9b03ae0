package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/zinc-sig/otterbox/internal/logging"
	"github.com/zinc-sig/otterbox/internal/runner"
)

// ErrStepFailed wraps the first step that exits non-zero.
var ErrStepFailed = errors.New("bootstrap step failed")

// ExecFunc runs one process; runner.Execute in production.
type ExecFunc func(ctx context.Context, config *runner.Config) (*runner.Result, error)

// Executor runs a plan through the process runner.
type Executor struct {
	Exec    ExecFunc
	Shell   string
	Dir     string
	Verbose bool
	DryRun  bool
	Logger  *logging.Logger
}

// NewExecutor returns an executor using /bin/sh and runner.Execute.
func NewExecutor(logger *logging.Logger) *Executor {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Executor{Exec: runner.Execute, Shell: "sh", Logger: logger}
}

// Run executes the plan's steps in order. The first failure aborts the run
// before grading can begin; there is no retry. Each step is its own shell, so
// the distribution's PATH entry is carried forward here rather than by the
// installer's export.
func (e *Executor) Run(ctx context.Context, plan Plan) error {
	onPath := !plan.HasKind(KindInstaller)
	for i, step := range plan.Steps {
		log := e.Logger.With("step", step.Name, "kind", string(step.Kind), "index", i+1, "of", len(plan.Steps))
		log.Info("running bootstrap step")

		config := &runner.Config{
			Command: e.Shell,
			Args:    []string{"-c", step.Script()},
			Dir:     e.Dir,
			Stdout:  os.Stderr,
			Verbose: e.Verbose,
			DryRun:  e.DryRun,
		}
		if onPath && plan.BinDir != "" {
			config.Env = []string{"PATH=" + plan.BinDir + string(os.PathListSeparator) + os.Getenv("PATH")}
		}

		result, err := e.Exec(ctx, config)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrStepFailed, step.Name, err)
		}
		if result.ExitCode != 0 || result.Status != runner.StatusSuccess {
			log.Error("bootstrap step failed", "exit_code", result.ExitCode, "status", string(result.Status))
			return fmt.Errorf("%w: %s exited with code %d (%s)", ErrStepFailed, step.Name, result.ExitCode, result.Status)
		}
		if step.Kind == KindInstaller {
			onPath = true
		}
		log.Debug("bootstrap step done", "ms", result.ExecutionTime)
	}
	return nil
}
