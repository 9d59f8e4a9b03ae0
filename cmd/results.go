package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/zinc-sig/otterbox/cmd/helpers"
	"github.com/zinc-sig/otterbox/internal/autograder"
	"github.com/zinc-sig/otterbox/internal/report"
)

var resultsJSON bool

var resultsCmd = &cobra.Command{
	Use:   "results [results.json|autograder-dir]",
	Short: "Print the score and summary of a finished run",
	Long: `Read a results.json written by run and print its total score line and
per-test summary. A directory is taken as an autograder directory. An error
report prints its message and exits with status 1.`,
	Example: `  otterbox results
  otterbox results /autograder/results/results.json`,
	Args: cobra.MaximumNArgs(1),
	RunE: resultsCommand,
}

func resultsCommand(cmd *cobra.Command, args []string) error {
	path := filepath.Join("/autograder", autograder.ResultsFile)
	if len(args) == 1 {
		path = args[0]
		if st, err := os.Stat(path); err == nil && st.IsDir() {
			path = filepath.Join(path, autograder.ResultsFile)
		}
	}

	r, err := report.ReadFile(path)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	if resultsJSON {
		if err := helpers.OutputJSON(w, r); err != nil {
			return err
		}
	} else if r.IsError() {
		fmt.Fprintln(w, r.Tests[0].Output)
	} else {
		r.PrintScore(w)
		r.PrintSummary(w)
	}
	if r.IsError() {
		return &exitError{code: 1}
	}
	return nil
}

func init() {
	resultsCmd.Flags().BoolVar(&resultsJSON, "json", false, "Print the report as JSON")
}
