package grading

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/zinc-sig/otterbox/internal/runner"
)

//go:embed driver.py
var driverSource string

// Session is the work sent to an interpreter in one call.
type Session struct {
	// Dir is the working directory cases run in; data assets are read from it.
	Dir      string        `json:"-"`
	Seed     *int          `json:"seed"`
	Preamble string        `json:"preamble"`
	Cases    []SessionCase `json:"cases"`
}

// SessionCase is one case: run in fresh state, reseeded, setup first and
// teardown last.
type SessionCase struct {
	ID       string   `json:"id"`
	Setup    []string `json:"setup"`
	Examples []string `json:"examples"`
	Teardown []string `json:"teardown"`
}

// Transcript is what the interpreter printed for each case.
type Transcript struct {
	Cases []CaseTranscript `json:"cases"`
}

// CaseTranscript holds one output per example. Error is set when the
// preamble, setup or teardown failed; examples are then not compared.
type CaseTranscript struct {
	ID      string   `json:"id"`
	Outputs []string `json:"outputs"`
	Error   string   `json:"error"`
}

// Interpreter evaluates sessions.
type Interpreter interface {
	Run(ctx context.Context, s *Session) (*Transcript, error)
}

// ErrInterpreter wraps failures of the interpreter process itself, as opposed
// to cases that produce the wrong output.
var ErrInterpreter = errors.New("interpreter failed")

// ExecFunc runs one process; runner.Execute in production.
type ExecFunc func(ctx context.Context, config *runner.Config) (*runner.Result, error)

// PythonInterpreter runs sessions through a Python subprocess driven by an
// embedded script: the session goes in on stdin as JSON, the transcript comes
// back on stdout.
type PythonInterpreter struct {
	Python  string
	Timeout time.Duration
	Env     []string
	Verbose bool
	Exec    ExecFunc
}

// NewPythonInterpreter returns an interpreter using python3 from PATH.
func NewPythonInterpreter() *PythonInterpreter {
	return &PythonInterpreter{Python: "python3", Exec: runner.Execute}
}

// Run implements Interpreter.
func (p *PythonInterpreter) Run(ctx context.Context, s *Session) (*Transcript, error) {
	payload, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to encode session: %w", err)
	}

	script, cleanup, err := writeDriver()
	if err != nil {
		return nil, err
	}
	defer cleanup()

	var stdout, stderr bytes.Buffer
	config := &runner.Config{
		Command: p.Python,
		Args:    []string{script},
		Dir:     s.Dir,
		Env:     append([]string{"PYTHONHASHSEED=0", "PYTHONIOENCODING=utf-8"}, p.Env...),
		Stdin:   bytes.NewReader(payload),
		Stdout:  &stdout,
		Stderr:  &stderr,
		Timeout: p.Timeout,
		Verbose: p.Verbose,
	}

	run := p.Exec
	if run == nil {
		run = runner.Execute
	}
	result, err := run(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInterpreter, err)
	}
	switch result.Status {
	case runner.StatusTimeout:
		return nil, fmt.Errorf("%w: timed out after %s", ErrInterpreter, p.Timeout)
	case runner.StatusFailed:
		return nil, fmt.Errorf("%w: exit code %d: %s", ErrInterpreter, result.ExitCode, lastLine(stderr.String()))
	}

	var t Transcript
	if err := json.Unmarshal(stdout.Bytes(), &t); err != nil {
		return nil, fmt.Errorf("%w: unreadable transcript: %v", ErrInterpreter, err)
	}
	if len(t.Cases) != len(s.Cases) {
		return nil, fmt.Errorf("%w: got %d case transcripts for %d cases", ErrInterpreter, len(t.Cases), len(s.Cases))
	}
	return &t, nil
}

func writeDriver() (string, func(), error) {
	f, err := os.CreateTemp("", "otterbox-driver-*.py")
	if err != nil {
		return "", nil, fmt.Errorf("failed to create driver script: %w", err)
	}
	cleanup := func() { _ = os.Remove(f.Name()) }
	_, err = f.WriteString(driverSource)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		cleanup()
		return "", nil, fmt.Errorf("failed to write driver script: %w", err)
	}
	return f.Name(), cleanup, nil
}

func lastLine(s string) string {
	s = strings.TrimRight(s, "\n")
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}
