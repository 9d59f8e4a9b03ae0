package helpers

import (
	"context"
	"fmt"
	"os"
	"time"
)

// ParseTimeout parses and validates a timeout duration string
func ParseTimeout(timeoutStr string) (time.Duration, error) {
	if timeoutStr == "" {
		return 0, nil
	}

	timeout, err := time.ParseDuration(timeoutStr)
	if err != nil {
		return 0, fmt.Errorf("invalid timeout duration: %w", err)
	}

	if timeout <= 0 {
		return 0, fmt.Errorf("timeout must be positive")
	}

	return timeout, nil
}

// WithTimeout bounds ctx by timeout; zero means no bound.
func WithTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

// CreateTempFile creates an empty temporary file for an artifact that is
// only kept long enough to upload. It returns the path and a cleanup function.
func CreateTempFile(prefix, pattern string) (string, func(), error) {
	f, err := os.CreateTemp("", fmt.Sprintf("otterbox-%s-%s", prefix, pattern))
	if err != nil {
		return "", nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	name := f.Name()
	_ = f.Close()
	return name, func() { _ = os.Remove(name) }, nil
}
