package runner

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func createTempFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	return path
}

func assertFileContains(t *testing.T, path, expected string) {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read file %s: %v", path, err)
	}
	if string(content) != expected {
		t.Errorf("file content mismatch\ngot:  %q\nwant: %q", content, expected)
	}
}

func TestExecute(t *testing.T) {
	tests := []struct {
		name          string
		setupConfig   func(t *testing.T, tmpDir string) *Config
		wantExitCode  int
		wantStatus    Status
		wantError     bool
		errorContains string
		checkOutput   func(t *testing.T, tmpDir string)
	}{
		{
			name: "successful echo command",
			setupConfig: func(t *testing.T, tmpDir string) *Config {
				return &Config{
					Command:    "echo",
					Args:       []string{"hello world"},
					InputFile:  createTempFile(t, tmpDir, "input.txt", "test input\n"),
					OutputFile: filepath.Join(tmpDir, "output.txt"),
					StderrFile: filepath.Join(tmpDir, "stderr.txt"),
				}
			},
			wantStatus: StatusSuccess,
			checkOutput: func(t *testing.T, tmpDir string) {
				assertFileContains(t, filepath.Join(tmpDir, "output.txt"), "hello world\n")
				assertFileContains(t, filepath.Join(tmpDir, "stderr.txt"), "")
			},
		},
		{
			name: "cat reads input file",
			setupConfig: func(t *testing.T, tmpDir string) *Config {
				return &Config{
					Command:    "cat",
					InputFile:  createTempFile(t, tmpDir, "input.txt", "content from input"),
					OutputFile: filepath.Join(tmpDir, "output.txt"),
					StderrFile: filepath.Join(tmpDir, "stderr.txt"),
				}
			},
			wantStatus: StatusSuccess,
			checkOutput: func(t *testing.T, tmpDir string) {
				assertFileContains(t, filepath.Join(tmpDir, "output.txt"), "content from input")
			},
		},
		{
			name: "command with non-zero exit code",
			setupConfig: func(t *testing.T, tmpDir string) *Config {
				return &Config{
					Command:    "sh",
					Args:       []string{"-c", "exit 42"},
					OutputFile: filepath.Join(tmpDir, "output.txt"),
					StderrFile: filepath.Join(tmpDir, "stderr.txt"),
				}
			},
			wantExitCode: 42,
			wantStatus:   StatusFailed,
		},
		{
			name: "non-existent input file",
			setupConfig: func(t *testing.T, tmpDir string) *Config {
				return &Config{
					Command:   "echo",
					InputFile: filepath.Join(tmpDir, "nonexistent.txt"),
				}
			},
			wantError:     true,
			errorContains: "failed to open input file",
		},
		{
			name: "creates parent directories for output and stderr",
			setupConfig: func(t *testing.T, tmpDir string) *Config {
				return &Config{
					Command:    "sh",
					Args:       []string{"-c", "echo 'out' && echo 'err' >&2"},
					OutputFile: filepath.Join(tmpDir, "results", "output", "stdout.txt"),
					StderrFile: filepath.Join(tmpDir, "results", "errors", "stderr.txt"),
				}
			},
			wantStatus: StatusSuccess,
			checkOutput: func(t *testing.T, tmpDir string) {
				assertFileContains(t, filepath.Join(tmpDir, "results", "output", "stdout.txt"), "out\n")
				assertFileContains(t, filepath.Join(tmpDir, "results", "errors", "stderr.txt"), "err\n")
			},
		},
		{
			name: "runs in working directory",
			setupConfig: func(t *testing.T, tmpDir string) *Config {
				createTempFile(t, tmpDir, "marker.txt", "here")
				return &Config{
					Command:    "cat",
					Args:       []string{"marker.txt"},
					Dir:        tmpDir,
					OutputFile: filepath.Join(tmpDir, "output.txt"),
				}
			},
			wantStatus: StatusSuccess,
			checkOutput: func(t *testing.T, tmpDir string) {
				assertFileContains(t, filepath.Join(tmpDir, "output.txt"), "here")
			},
		},
		{
			name: "passes extra environment",
			setupConfig: func(t *testing.T, tmpDir string) *Config {
				return &Config{
					Command:    "sh",
					Args:       []string{"-c", "echo $BASE_IMAGE"},
					Env:        []string{"BASE_IMAGE=custom"},
					OutputFile: filepath.Join(tmpDir, "output.txt"),
				}
			},
			wantStatus: StatusSuccess,
			checkOutput: func(t *testing.T, tmpDir string) {
				assertFileContains(t, filepath.Join(tmpDir, "output.txt"), "custom\n")
			},
		},
		{
			name: "non-existent command",
			setupConfig: func(t *testing.T, tmpDir string) *Config {
				return &Config{Command: "nonexistentcommand12345"}
			},
			wantError:     true,
			errorContains: "failed to start command",
		},
		{
			name: "false command returns exit code 1",
			setupConfig: func(t *testing.T, tmpDir string) *Config {
				return &Config{Command: "false"}
			},
			wantExitCode: 1,
			wantStatus:   StatusFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmpDir := t.TempDir()
			config := tt.setupConfig(t, tmpDir)

			result, err := Execute(context.Background(), config)

			if tt.wantError {
				if err == nil {
					t.Fatal("expected error but got none")
				}
				if tt.errorContains != "" && !strings.Contains(err.Error(), tt.errorContains) {
					t.Errorf("error %q does not contain %q", err.Error(), tt.errorContains)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if result.ExitCode != tt.wantExitCode {
				t.Errorf("exit code = %d, want %d", result.ExitCode, tt.wantExitCode)
			}
			if result.Status != tt.wantStatus {
				t.Errorf("status = %s, want %s", result.Status, tt.wantStatus)
			}
			if result.ExecutionTime < 0 {
				t.Errorf("execution time should be non-negative, got %d", result.ExecutionTime)
			}

			if tt.checkOutput != nil {
				tt.checkOutput(t, tmpDir)
			}
		})
	}
}

func TestExecuteInMemoryStreams(t *testing.T) {
	var stdout, stderr bytes.Buffer
	config := &Config{
		Command: "sh",
		Args:    []string{"-c", "cat; echo oops >&2"},
		Stdin:   strings.NewReader("{\"seed\": 42}"),
		Stdout:  &stdout,
		Stderr:  &stderr,
	}

	result, err := Execute(context.Background(), config)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if result.Status != StatusSuccess {
		t.Errorf("status = %s, want %s", result.Status, StatusSuccess)
	}
	if got := stdout.String(); got != "{\"seed\": 42}" {
		t.Errorf("stdout = %q", got)
	}
	if got := stderr.String(); got != "oops\n" {
		t.Errorf("stderr = %q", got)
	}
}

func TestExecuteDryRun(t *testing.T) {
	tmpDir := t.TempDir()
	config := &Config{
		Command:    "sh",
		Args:       []string{"-c", "echo should-not-run"},
		OutputFile: filepath.Join(tmpDir, "output.txt"),
		DryRun:     true,
	}

	result, err := Execute(context.Background(), config)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if result.Status != StatusSuccess || result.ExitCode != 0 {
		t.Errorf("dry run result = %+v", result)
	}
	if _, err := os.Stat(config.OutputFile); !os.IsNotExist(err) {
		t.Errorf("dry run should not create output file")
	}
}

func TestFullCommand(t *testing.T) {
	c := &Config{Command: "bash", Args: []string{"setup.sh", "-x"}}
	if got := c.FullCommand(); got != "bash setup.sh -x" {
		t.Errorf("FullCommand() = %q", got)
	}
	c = &Config{Command: "true"}
	if got := c.FullCommand(); got != "true" {
		t.Errorf("FullCommand() = %q", got)
	}
}
