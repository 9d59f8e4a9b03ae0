package bundle

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/zinc-sig/otterbox/internal/bootstrap"
	"github.com/zinc-sig/otterbox/internal/testfile"
)

// DefaultRequirements are the packages every grading environment gets.
var DefaultRequirements = []Requirement{
	{Name: "datascience"},
	{Name: "jupyter_client"},
	{Name: "ipykernel"},
	{Name: "matplotlib"},
	{Name: "pandas"},
	{Name: "ipywidgets"},
	{Name: "scipy"},
	{Name: "seaborn"},
	{Name: "scikit-learn"},
	{Name: "jinja2"},
	{Name: "nbconvert"},
	{Name: "nbformat"},
	{Name: "dill"},
	{Name: "numpy"},
	{Name: "gspread"},
	{Name: "pypdf"},
	{Name: "otter-grader", Version: "5.5.0"},
}

// ScaffoldOptions configure Scaffold.
type ScaffoldOptions struct {
	Bootstrap bootstrap.Options
	// Force overwrites files that already exist.
	Force bool
}

// Scaffold writes a minimal bundle tree into dir: the three rendered scripts,
// both manifests, a default config and one example test. It returns the
// relative paths written.
func Scaffold(dir string, opts ScaffoldOptions) ([]string, error) {
	setup, err := bootstrap.RenderSetup(opts.Bootstrap)
	if err != nil {
		return nil, err
	}
	runAutograder, err := bootstrap.RenderRunAutograder(opts.Bootstrap)
	if err != nil {
		return nil, err
	}
	entry, err := bootstrap.RenderEntryScript(opts.Bootstrap)
	if err != nil {
		return nil, err
	}

	var reqs bytes.Buffer
	if err := FormatRequirements(&reqs, DefaultRequirements); err != nil {
		return nil, err
	}

	env := DefaultEnvironment()
	env.Name = opts.Bootstrap.EnvName
	envData, err := env.Marshal()
	if err != nil {
		return nil, err
	}

	cfg, err := json.MarshalIndent(map[string]any{
		"seed":          42,
		"show_stdout":   true,
		"show_hidden":   false,
		"token":         "",
		"course_id":     "",
		"assignment_id": "",
		"filtering":     true,
	}, "", "  ")
	if err != nil {
		return nil, err
	}

	example := &testfile.Test{
		Name: "q1",
		Suites: []testfile.Suite{{
			Cases:  []testfile.Case{{Code: ">>> 1 + 1\n2"}},
			Scored: true,
			Type:   testfile.SuiteDoctest,
		}},
	}

	files := []struct {
		rel  string
		data []byte
	}{
		{SetupScript, setup},
		{RunAutograder, runAutograder},
		{EntryScript, entry},
		{Requirements, reqs.Bytes()},
		{Environment, envData},
		{ConfigFile, append(cfg, '\n')},
		{TestsDir + "/q1.py", testfile.Format(example)},
	}

	var written []string
	for _, f := range files {
		target := filepath.Join(dir, filepath.FromSlash(f.rel))
		if !opts.Force {
			if _, err := os.Stat(target); err == nil {
				return written, fmt.Errorf("%s already exists", target)
			}
		}
		if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
			return written, err
		}
		mode := Classify(f.rel).Mode()
		if err := os.WriteFile(target, f.data, mode); err != nil {
			return written, err
		}
		if err := os.Chmod(target, mode); err != nil {
			return written, err
		}
		written = append(written, f.rel)
	}
	if err := os.MkdirAll(filepath.Join(dir, FilesDir), 0755); err != nil {
		return written, err
	}
	return written, nil
}
