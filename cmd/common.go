package cmd

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/zinc-sig/otterbox/internal/bundle"
	"github.com/zinc-sig/otterbox/internal/project"
)

// commandContext is the command's context, or Background when the command
// runs outside Execute.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// loadProject reads the project file at path. With an empty path the working
// directory is searched and a missing file yields nil.
func loadProject(path string) (*project.Project, error) {
	if path == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, err
		}
		found, err := project.Find(wd)
		if errors.Is(err, project.ErrNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		path = found
	}
	p, err := project.Load(path)
	if err != nil {
		return nil, err
	}
	logger.Debug("loaded project", "path", p.Path, "assignment", p.Name)
	return p, nil
}

// openedBundle is a bundle tree or archive ready to be checked.
type openedBundle struct {
	Manifest *bundle.Manifest
	FS       fs.FS
	close    func() error
}

func (b *openedBundle) Close() error {
	if b.close == nil {
		return nil
	}
	return b.close()
}

// openBundle opens a bundle directory or a .zip archive.
func openBundle(path string, strict bool) (*openedBundle, error) {
	st, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if st.IsDir() {
		m, err := bundle.Scan(path, bundle.ScanOptions{Strict: strict, Logger: logger})
		if err != nil {
			return nil, err
		}
		return &openedBundle{Manifest: m, FS: os.DirFS(path)}, nil
	}
	if !strings.EqualFold(filepath.Ext(path), ".zip") {
		return nil, fmt.Errorf("%s: expected a directory or a .zip archive", path)
	}

	m, err := bundle.Open(path)
	if err != nil {
		return nil, err
	}
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	return &openedBundle{Manifest: m, FS: zr, close: zr.Close}, nil
}
