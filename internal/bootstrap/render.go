package bootstrap

import (
	"bytes"
	"fmt"
	"path"
	"strings"
	"text/template"
)

var setupTemplate = template.Must(template.New("setup.sh").Parse(`#!/usr/bin/env bash
set -e

export DEBIAN_FRONTEND=noninteractive

if [ "${{.Marker}}" != "{{.GraderImage}}" ]; then
{{- range .Foreign}}
    # {{.Name}}
{{- range .Commands}}
    {{.}}
{{- end}}
{{end}}
fi
{{range .Common}}
# {{.Name}}
{{- range .Commands}}
{{.}}
{{- end}}
{{end -}}
`))

var runAutograderTemplate = template.Must(template.New("run_autograder").Parse(`#!/usr/bin/env bash

if [ "${{.Marker}}" != "{{.GraderImage}}" ]; then
    export PATH="{{.CondaPrefix}}/bin:$PATH"
    source {{.CondaPrefix}}/etc/profile.d/conda.sh
    source {{.CondaPrefix}}/etc/profile.d/mamba.sh
else
    export PATH="{{.ProvisionedPrefix}}/bin:$PATH"
    source {{.ProvisionedPrefix}}/etc/profile.d/conda.sh
    source {{.ProvisionedPrefix}}/etc/profile.d/mamba.sh
fi

mamba activate {{.EnvName}}
{{.HandOff}}
`))

var entryTemplate = template.Must(template.New("run_otter.py").Parse(`"""Runs Otter-Grader's autograding process"""

from otter.run.run_autograder import main as run_autograder

if __name__ == "__main__":
    run_autograder("{{.AutograderDir}}")
`))

// RenderSetup renders setup.sh. The marker is tested once; the foreign-only
// steps sit inside the branch and the shared steps follow it.
func RenderSetup(opts Options) ([]byte, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	data := struct {
		Marker      string
		GraderImage string
		Foreign     []Step
		Common      []Step
	}{
		Marker:      "{" + MarkerVar + "}",
		GraderImage: opts.GraderImage,
		Foreign:     foreignSteps(opts),
		Common:      commonSteps(opts),
	}
	return execute(setupTemplate, data)
}

// RenderRunAutograder renders run_autograder: pick one of the two activation
// paths by the marker, activate the environment, hand off with the fixed
// autograder directory as the only argument.
func RenderRunAutograder(opts Options) ([]byte, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	data := struct {
		Options
		Marker  string
		HandOff string
	}{
		Options: opts,
		Marker:  "{" + MarkerVar + "}",
		HandOff: HandOffCommand(opts),
	}
	return execute(runAutograderTemplate, data)
}

// RenderEntryScript renders the Python entry script used by EngineOtter.
func RenderEntryScript(opts Options) ([]byte, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return execute(entryTemplate, opts)
}

// HandOffCommand is the last line of run_autograder.
func HandOffCommand(opts Options) string {
	if opts.Engine == EngineOtterbox {
		return fmt.Sprintf("otterbox run %s", opts.AutograderDir)
	}
	return fmt.Sprintf("python %s", path.Join(opts.sourceDir(), "run_otter.py"))
}

func execute(t *template.Template, data any) ([]byte, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("failed to render %s: %w", t.Name(), err)
	}
	return bytes.ReplaceAll(buf.Bytes(), []byte("\n\n\n"), []byte("\n\n")), nil
}

// Script joins a step's commands into one shell program that stops at the
// first failing command.
func (s Step) Script() string {
	return "set -e\n" + strings.Join(s.Commands, "\n") + "\n"
}
