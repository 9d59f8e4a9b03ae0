package cmd

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/zinc-sig/otterbox/cmd/helpers"
	"github.com/zinc-sig/otterbox/internal/bundle"
)

var (
	validateStrict bool
	validateJSON   bool
)

var validateCmd = &cobra.Command{
	Use:   "validate <dir|bundle.zip>",
	Short: "Check a bundle tree or zip",
	Long: `Check that a bundle has every required entry and that its declarative
files decode: requirements.txt, environment.yml, otter_config.json and every
test case file. All problems are reported together.`,
	Args: cobra.ExactArgs(1),
	RunE: validateCommand,
}

// validation is the machine-readable result of validate --json.
type validation struct {
	Path             string   `json:"path"`
	Files            int      `json:"files"`
	Bytes            int64    `json:"bytes"`
	ContentHash      string   `json:"content_hash"`
	Tests            []string `json:"tests"`
	Requirements     int      `json:"requirements"`
	PassThroughKeys  []string `json:"pass_through_keys,omitempty"`
	SubmissionTarget bool     `json:"submission_target"`
	Errors           []string `json:"errors,omitempty"`
}

func validateCommand(cmd *cobra.Command, args []string) error {
	b, err := openBundle(args[0], validateStrict)
	if err != nil {
		return err
	}
	defer b.Close()

	v := validation{Path: args[0], Files: len(b.Manifest.Files), ContentHash: b.Manifest.ContentHash}
	for _, e := range b.Manifest.Files {
		v.Bytes += e.Size
	}

	var problems []error
	if err := bundle.Validate(b.Manifest); err != nil {
		problems = append(problems, err)
	}
	contents, err := bundle.Load(b.FS)
	if err != nil {
		problems = append(problems, err)
	}
	if contents != nil {
		for _, f := range contents.Tests {
			v.Tests = append(v.Tests, f.Test.Name)
		}
		v.Requirements = len(contents.Requirements)
		if contents.Config != nil {
			v.PassThroughKeys = contents.Config.ExtraKeys()
			v.SubmissionTarget = contents.Config.HasSubmissionTarget()
		}
	}
	problem := errors.Join(problems...)
	if problem != nil {
		v.Errors = strings.Split(problem.Error(), "\n")
	}

	if validateJSON {
		if err := helpers.OutputJSON(cmd.OutOrStdout(), v); err != nil {
			return err
		}
	} else {
		printValidation(cmd.OutOrStdout(), v)
	}
	if problem != nil {
		return fmt.Errorf("%s is not a valid bundle", args[0])
	}
	return nil
}

func printValidation(w io.Writer, v validation) {
	table := helpers.NewTable(w, "CHECK", "RESULT")
	table.Append([]string{"files", fmt.Sprintf("%d (%s)", v.Files, humanize.Bytes(uint64(v.Bytes)))})
	table.Append([]string{"tests", strings.Join(v.Tests, ", ")})
	table.Append([]string{"requirements", fmt.Sprint(v.Requirements)})
	if len(v.PassThroughKeys) > 0 {
		table.Append([]string{"pass-through keys", strings.Join(v.PassThroughKeys, ", ")})
	}
	target := "not configured"
	if v.SubmissionTarget {
		target = "configured"
	}
	table.Append([]string{"submission target", target})
	table.Append([]string{"content hash", v.ContentHash})
	table.Render()

	if len(v.Errors) == 0 {
		fmt.Fprintf(w, "✓ %s is valid\n", v.Path)
		return
	}
	for _, e := range v.Errors {
		fmt.Fprintf(w, "✗ %s\n", e)
	}
}

func init() {
	validateCmd.Flags().BoolVar(&validateStrict, "strict", false, "Fail on files outside the bundle layout")
	validateCmd.Flags().BoolVar(&validateJSON, "json", false, "Print the result as JSON")
}
