// Package upload stores autograder artifacts (built bundles, results) in
// remote object storage.
package upload

import (
	"context"
	"io"
)

// Provider stores objects under remote paths.
type Provider interface {
	// Upload copies reader to remotePath.
	Upload(ctx context.Context, reader io.Reader, remotePath string) error

	// Configure sets up the provider from a flat key/value config.
	Configure(config map[string]any) error

	// Name returns the provider name
	Name() string
}
