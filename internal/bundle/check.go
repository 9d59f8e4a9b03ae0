package bundle

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"path"

	"github.com/zinc-sig/otterbox/internal/config"
	"github.com/zinc-sig/otterbox/internal/testfile"
)

// Contents is a bundle's decoded declarative files.
type Contents struct {
	Config       *config.Config
	Requirements []Requirement
	Environment  *EnvironmentSpec
	Tests        []testfile.File
}

// Load decodes the declarative files of the bundle rooted at fsys and reports
// every problem found, joined into one error. fsys can be a directory
// (os.DirFS) or an archive (*zip.Reader).
func Load(fsys fs.FS) (*Contents, error) {
	c := &Contents{}
	var errs []error

	if data, err := fs.ReadFile(fsys, ConfigFile); err != nil {
		errs = append(errs, err)
	} else if c.Config, err = config.Parse(data); err != nil {
		errs = append(errs, fmt.Errorf("%s: %w", ConfigFile, err))
	}

	hasReqs := false
	if data, err := fs.ReadFile(fsys, Requirements); err != nil {
		errs = append(errs, err)
	} else {
		hasReqs = true
		if c.Requirements, err = ParseRequirements(bytes.NewReader(data)); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", Requirements, err))
		}
	}

	if data, err := fs.ReadFile(fsys, Environment); err != nil {
		errs = append(errs, err)
	} else if c.Environment, err = ParseEnvironment(data); err != nil {
		errs = append(errs, err)
	} else if err := c.Environment.Validate(hasReqs); err != nil {
		errs = append(errs, fmt.Errorf("%s: %w", Environment, err))
	}

	names, err := fs.Glob(fsys, path.Join(TestsDir, "*.py"))
	if err != nil {
		errs = append(errs, err)
	}
	seen := make(map[string]string)
	for _, name := range names {
		if len(path.Base(name)) > 2 && path.Base(name)[:2] == "__" {
			continue
		}
		data, err := fs.ReadFile(fsys, name)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		t, err := testfile.Parse(data)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			continue
		}
		if prev, dup := seen[t.Name]; dup {
			errs = append(errs, fmt.Errorf("%s: test name %q already used by %s", name, t.Name, prev))
			continue
		}
		seen[t.Name] = name
		c.Tests = append(c.Tests, testfile.File{Path: name, Test: t})
	}
	if len(names) == 0 {
		errs = append(errs, fmt.Errorf("no test case files under %s/", TestsDir))
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return c, nil
}
