package upload

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"

	"github.com/zinc-sig/otterbox/internal/logging"
)

// Artifact is a local file and the remote path it is stored under.
type Artifact struct {
	Local  string
	Remote string
}

// RunPath places name under the directory for one run: "<kind>/<runID>/<name>".
func RunPath(kind, runID, name string) string {
	return path.Join(kind, runID, name)
}

// Artifacts builds one artifact per local file under the run directory,
// named after the file's base name.
func Artifacts(kind, runID string, locals ...string) []Artifact {
	out := make([]Artifact, 0, len(locals))
	for _, l := range locals {
		out = append(out, Artifact{Local: l, Remote: RunPath(kind, runID, filepath.Base(l))})
	}
	return out
}

// UploadAll uploads every artifact, continuing past failures; the returned
// error joins all of them. A nil provider uploads nothing.
func UploadAll(ctx context.Context, p Provider, artifacts []Artifact, logger *logging.Logger) error {
	if p == nil {
		return nil
	}
	if logger == nil {
		logger = logging.Nop()
	}

	var errs []error
	for _, a := range artifacts {
		if err := uploadFile(ctx, p, a); err != nil {
			errs = append(errs, err)
			continue
		}
		logger.Info("uploaded artifact", "provider", p.Name(), "local", a.Local, "remote", a.Remote)
	}
	return errors.Join(errs...)
}

func uploadFile(ctx context.Context, p Provider, a Artifact) error {
	f, err := os.Open(a.Local)
	if err != nil {
		return fmt.Errorf("failed to open %s for upload: %w", a.Local, err)
	}
	defer f.Close()

	if err := p.Upload(ctx, f, a.Remote); err != nil {
		return fmt.Errorf("failed to upload to %s: %w", a.Remote, err)
	}
	return nil
}
