package autograder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/zinc-sig/otterbox/internal/bundle"
)

// nameDirective marks the assignment a learner script belongs to:
//
//	# assignment_name: hw1
const nameDirective = "# assignment_name:"

// unzipSubmission extracts the single zip file found directly in dir.
func unzipSubmission(ctx context.Context, dir string) error {
	zips, err := filepath.Glob(filepath.Join(dir, "*.zip"))
	if err != nil {
		return err
	}
	switch len(zips) {
	case 0:
		return &RunError{Msg: "No zip file found in submission and 'zips' config is true"}
	case 1:
	default:
		return &RunError{Msg: "More than one zip file found in submission and 'zips' config is true"}
	}
	if _, err := bundle.ExtractFile(ctx, zips[0], dir); err != nil {
		return fmt.Errorf("failed to extract %s: %w", filepath.Base(zips[0]), err)
	}
	return nil
}

// learnerScripts lists the top-level Python files of the submission, sorted.
func learnerScripts(dir string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.py"))
	if err != nil {
		return nil, err
	}
	sort.Strings(matches)
	return matches, nil
}

// prepareFiles copies the bundle's data assets into the submission and
// replaces the submission's tests with the bundle's. Asset directories that
// already exist in the submission are left alone; asset files overwrite.
func prepareFiles(source, submission string) error {
	filesDir := filepath.Join(source, "files")
	entries, err := os.ReadDir(filesDir)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to read %s: %w", filesDir, err)
	}
	for _, e := range entries {
		src := filepath.Join(filesDir, e.Name())
		dst := filepath.Join(submission, e.Name())
		if e.IsDir() {
			if _, err := os.Stat(dst); err == nil {
				continue
			}
			if err := os.CopyFS(dst, os.DirFS(src)); err != nil {
				return fmt.Errorf("failed to copy %s: %w", src, err)
			}
			continue
		}
		if err := copyFile(src, dst); err != nil {
			return err
		}
	}

	tests := filepath.Join(submission, "tests")
	if err := os.RemoveAll(tests); err != nil {
		return fmt.Errorf("failed to remove %s: %w", tests, err)
	}
	if err := os.CopyFS(tests, os.DirFS(filepath.Join(source, "tests"))); err != nil {
		return fmt.Errorf("failed to copy tests: %w", err)
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	st, err := in.Stat()
	if err != nil {
		return err
	}

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, st.Mode().Perm())
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("failed to copy %s: %w", src, err)
	}
	return out.Close()
}

// readScripts concatenates scripts into one preamble and returns the first
// assignment name directive found, if any.
func readScripts(paths []string) (preamble, name string, err error) {
	var b strings.Builder
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return "", "", fmt.Errorf("failed to read submission: %w", err)
		}
		src := string(data)
		if name == "" {
			name = assignmentName(src)
		}
		b.WriteString(src)
		if !strings.HasSuffix(src, "\n") {
			b.WriteByte('\n')
		}
	}
	return b.String(), name, nil
}

func assignmentName(src string) string {
	for _, line := range strings.Split(src, "\n") {
		if rest, ok := strings.CutPrefix(strings.TrimSpace(line), nameDirective); ok {
			return strings.TrimSpace(rest)
		}
	}
	return ""
}
