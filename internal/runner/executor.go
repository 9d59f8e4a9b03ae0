package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"
	"time"
)

// Status is the outcome of a single process execution.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
	StatusTimeout Status = "timeout"
)

// Config describes one process invocation. File paths take precedence over the
// in-memory streams; an empty InputFile with a nil Stdin gives the process no stdin.
type Config struct {
	Command string
	Args    []string
	Dir     string
	Env     []string // appended to the current environment

	InputFile  string
	OutputFile string
	StderrFile string

	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	Timeout time.Duration
	Verbose bool
	DryRun  bool
}

// FullCommand returns the command line as it is reported in results.
func (c *Config) FullCommand() string {
	if len(c.Args) == 0 {
		return c.Command
	}
	return c.Command + " " + strings.Join(c.Args, " ")
}

type Result struct {
	Command       string
	Status        Status
	ExitCode      int
	ExecutionTime int64 // milliseconds
}

// Execute runs the configured process to completion. A non-zero exit code is
// reported in the result; only failures to set up or start the process are errors.
func Execute(ctx context.Context, config *Config) (*Result, error) {
	fullCommand := config.FullCommand()

	if config.Verbose {
		PrintPreExecution(fullCommand, config)
	}

	if config.DryRun {
		result := &Result{Command: fullCommand, Status: StatusSuccess}
		if config.Verbose {
			PrintPostExecution(result.Status, 0, 0, true)
		}
		return result, nil
	}

	if config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, config.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, config.Command, config.Args...)
	cmd.Dir = config.Dir
	if len(config.Env) > 0 {
		cmd.Env = append(os.Environ(), config.Env...)
	}

	switch {
	case config.InputFile != "":
		inputFile, err := os.Open(config.InputFile)
		if err != nil {
			return nil, fmt.Errorf("failed to open input file %s: %w", config.InputFile, err)
		}
		defer func() { _ = inputFile.Close() }()
		cmd.Stdin = inputFile
	case config.Stdin != nil:
		cmd.Stdin = config.Stdin
	}

	stdout, closeStdout, err := openSink(config.OutputFile, config.Stdout, "output")
	if err != nil {
		return nil, err
	}
	defer closeStdout()

	stderr, closeStderr, err := openSink(config.StderrFile, config.Stderr, "stderr")
	if err != nil {
		return nil, err
	}
	defer closeStderr()

	if config.Verbose {
		stderr = io.MultiWriter(stderr, os.Stderr)
	}
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	startTime := time.Now()
	err = cmd.Run()
	executionTime := time.Since(startTime).Milliseconds()

	result := &Result{
		Command:       fullCommand,
		Status:        StatusSuccess,
		ExecutionTime: executionTime,
	}

	if err != nil {
		var exitError *exec.ExitError
		switch {
		case errors.Is(ctx.Err(), context.DeadlineExceeded) && config.Timeout > 0:
			result.Status = StatusTimeout
			result.ExitCode = -1
		case errors.As(err, &exitError):
			result.Status = StatusFailed
			if status, ok := exitError.Sys().(syscall.WaitStatus); ok {
				result.ExitCode = status.ExitStatus()
			} else {
				result.ExitCode = 1
			}
		default:
			return nil, fmt.Errorf("failed to start command: %w", err)
		}
	}

	if config.Verbose {
		PrintPostExecution(result.Status, result.ExitCode, result.ExecutionTime, false)
	}

	return result, nil
}

// openSink resolves where a process stream goes: a file (parent directories are
// created), the given writer, or nowhere.
func openSink(path string, w io.Writer, label string) (io.Writer, func(), error) {
	if path == "" {
		if w == nil {
			return io.Discard, func() {}, nil
		}
		return w, func() {}, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, nil, fmt.Errorf("failed to create %s directory for %s: %w", label, path, err)
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create %s file %s: %w", label, path, err)
	}

	var sink io.Writer = f
	if w != nil {
		sink = io.MultiWriter(f, w)
	}
	return sink, func() { _ = f.Close() }, nil
}
