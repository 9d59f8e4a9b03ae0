package bundle

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
)

// Requirement is one line of requirements.txt: a package, optionally pinned
// to an exact version.
type Requirement struct {
	Name    string
	Version string
}

var packageName = regexp.MustCompile(`^[A-Za-z0-9]([A-Za-z0-9._-]*[A-Za-z0-9])?(\[[A-Za-z0-9._,-]+\])?$`)

func (r Requirement) String() string {
	if r.Version == "" {
		return r.Name
	}
	return r.Name + "==" + r.Version
}

// Pinned reports whether the requirement names an exact version.
func (r Requirement) Pinned() bool { return r.Version != "" }

// ParseRequirements reads a dependency manifest. Blank lines and comments are
// skipped; every other line must be a bare name or name==version.
func ParseRequirements(r io.Reader) ([]Requirement, error) {
	var reqs []Requirement
	var errs []error

	sc := bufio.NewScanner(r)
	for n := 1; sc.Scan(); n++ {
		line := sc.Text()
		if i := strings.Index(line, "#"); i >= 0 {
			line = line[:i]
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		req, err := parseRequirement(line)
		if err != nil {
			errs = append(errs, fmt.Errorf("line %d: %w", n, err))
			continue
		}
		reqs = append(reqs, req)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return reqs, nil
}

func parseRequirement(line string) (Requirement, error) {
	name, version, pinned := strings.Cut(line, "==")
	name = strings.TrimSpace(name)
	if !packageName.MatchString(name) {
		return Requirement{}, fmt.Errorf("%q is not a package name or exact pin", line)
	}
	if !pinned {
		return Requirement{Name: name}, nil
	}
	version = strings.TrimSpace(version)
	if version == "" || strings.ContainsAny(version, " \t,;<>=!~*") {
		return Requirement{}, fmt.Errorf("%q: only exact version pins are supported", line)
	}
	return Requirement{Name: name, Version: version}, nil
}

// FormatRequirements writes reqs one per line in order.
func FormatRequirements(w io.Writer, reqs []Requirement) error {
	bw := bufio.NewWriter(w)
	for _, r := range reqs {
		if _, err := fmt.Fprintln(bw, r.String()); err != nil {
			return err
		}
	}
	return bw.Flush()
}
