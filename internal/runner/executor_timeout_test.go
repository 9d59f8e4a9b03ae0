package runner

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"
)

func TestExecuteTimeouts(t *testing.T) {
	tests := []struct {
		name         string
		config       *Config
		ctxTimeout   time.Duration
		wantStatus   Status
		wantExitCode int
		maxDuration  time.Duration
	}{
		{
			name:         "session finishes within its limit",
			config:       &Config{Command: "sh", Args: []string{"-c", "sleep 0.1"}, Timeout: 2 * time.Second},
			wantStatus:   StatusSuccess,
			wantExitCode: 0,
			maxDuration:  2 * time.Second,
		},
		{
			name:         "session exceeds its limit",
			config:       &Config{Command: "sleep", Args: []string{"5"}, Timeout: 100 * time.Millisecond},
			wantStatus:   StatusTimeout,
			wantExitCode: -1,
			maxDuration:  2 * time.Second,
		},
		{
			name:         "stdin is still consumed under a limit",
			config:       &Config{Command: "cat", Stdin: strings.NewReader("x = 2\n"), Timeout: time.Second},
			wantStatus:   StatusSuccess,
			wantExitCode: 0,
			maxDuration:  time.Second,
		},
		{
			name:         "failing session within its limit",
			config:       &Config{Command: "sh", Args: []string{"-c", "exit 3"}, Timeout: time.Second},
			wantStatus:   StatusFailed,
			wantExitCode: 3,
			maxDuration:  time.Second,
		},
		{
			// The whole run's deadline kills the process but is not a
			// per-session timeout.
			name:        "outer deadline",
			config:      &Config{Command: "sleep", Args: []string{"5"}},
			ctxTimeout:  100 * time.Millisecond,
			wantStatus:  StatusFailed,
			maxDuration: 2 * time.Second,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			if tt.ctxTimeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, tt.ctxTimeout)
				defer cancel()
			}

			var out bytes.Buffer
			tt.config.Stdout = &out
			start := time.Now()
			result, err := Execute(ctx, tt.config)
			elapsed := time.Since(start)

			if err != nil {
				t.Fatalf("Execute() error = %v", err)
			}
			if result.Status != tt.wantStatus {
				t.Errorf("Status = %v, want %v", result.Status, tt.wantStatus)
			}
			if tt.ctxTimeout == 0 && result.ExitCode != tt.wantExitCode {
				t.Errorf("ExitCode = %d, want %d", result.ExitCode, tt.wantExitCode)
			}
			if elapsed > tt.maxDuration {
				t.Errorf("took %v, limit %v", elapsed, tt.maxDuration)
			}
			if tt.config.Stdin != nil && out.String() != "x = 2\n" {
				t.Errorf("stdout = %q", out.String())
			}
		})
	}
}

func TestVerboseBanners(t *testing.T) {
	var buf bytes.Buffer
	old := bannerOut
	bannerOut = &buf
	defer func() { bannerOut = old }()

	config := &Config{
		Command: "sh",
		Args:    []string{"-c", "exit 0"},
		Env:     []string{"PYTHONHASHSEED=0", "OTTERBOX_SEED=42"},
		Timeout: time.Second,
		Verbose: true,
		DryRun:  true,
	}
	if _, err := Execute(context.Background(), config); err != nil {
		t.Fatal(err)
	}

	out := buf.String()
	for _, want := range []string{"Process (DRY RUN)", "Command: sh -c exit 0", "Env:     PYTHONHASHSEED, OTTERBOX_SEED", "Timeout: 1s", "status     success"} {
		if !strings.Contains(out, want) {
			t.Errorf("banner missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "=0") {
		t.Error("environment values must not be printed")
	}
}
