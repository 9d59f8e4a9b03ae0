// Package bundle builds, extracts and checks autograder bundles: the zip an
// external grading host unpacks under /autograder/source before running
// setup.sh once and run_autograder for every submission.
//
// A bundle has a fixed layout:
//
//	setup.sh            environment bootstrap
//	run_otter.py        entry script run_autograder hands off to
//	requirements.txt    pip packages, one per line
//	environment.yml     conda environment spec
//	run_autograder      activates the environment and hands off
//	otter_config.json   run parameters
//	tests/*.py          one test case file per question
//	files/...           data assets copied next to the submission
package bundle

import (
	"fmt"
	"io/fs"
	"path"
	"strings"
)

// Fixed relative paths recognized by the grading host.
const (
	SetupScript   = "setup.sh"
	EntryScript   = "run_otter.py"
	Requirements  = "requirements.txt"
	Environment   = "environment.yml"
	RunAutograder = "run_autograder"
	ConfigFile    = "otter_config.json"
	TestsDir      = "tests"
	FilesDir      = "files"
)

// Kind classifies a bundle entry by its path.
type Kind string

const (
	KindSetup         Kind = "setup"
	KindEntry         Kind = "entry"
	KindRequirements  Kind = "requirements"
	KindEnvironment   Kind = "environment"
	KindRunAutograder Kind = "run-autograder"
	KindConfig        Kind = "config"
	KindTest          Kind = "test"
	KindData          Kind = "data"
	KindUnknown       Kind = "unknown"
)

// requiredKinds must each match at least one entry.
var requiredKinds = []Kind{
	KindSetup,
	KindEntry,
	KindRequirements,
	KindEnvironment,
	KindRunAutograder,
	KindConfig,
	KindTest,
}

// Classify maps a slash-separated relative path to its role in the layout.
func Classify(rel string) Kind {
	switch rel {
	case SetupScript:
		return KindSetup
	case EntryScript:
		return KindEntry
	case Requirements:
		return KindRequirements
	case Environment:
		return KindEnvironment
	case RunAutograder:
		return KindRunAutograder
	case ConfigFile:
		return KindConfig
	}

	dir, file := path.Split(rel)
	switch {
	case dir == TestsDir+"/" && strings.HasSuffix(file, ".py"):
		return KindTest
	case strings.HasPrefix(rel, FilesDir+"/") && file != "":
		return KindData
	}
	return KindUnknown
}

// Mode is the permission an entry of kind k is archived and extracted with.
func (k Kind) Mode() fs.FileMode {
	if k == KindSetup || k == KindRunAutograder {
		return 0755
	}
	return 0644
}

// CheckPath rejects paths that could escape the extraction root.
func CheckPath(name string) error {
	if name == "" {
		return fmt.Errorf("empty path")
	}
	if strings.Contains(name, "\\") {
		return fmt.Errorf("%q: backslash in path", name)
	}
	if path.IsAbs(name) || (len(name) >= 2 && name[1] == ':') {
		return fmt.Errorf("%q: absolute path", name)
	}
	for _, seg := range strings.Split(strings.TrimSuffix(name, "/"), "/") {
		if seg == ".." {
			return fmt.Errorf("%q: parent directory segment", name)
		}
	}
	if !fs.ValidPath(strings.TrimSuffix(name, "/")) {
		return fmt.Errorf("%q: not a clean relative path", name)
	}
	return nil
}
