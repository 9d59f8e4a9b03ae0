package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/zinc-sig/otterbox/cmd/helpers"
	"github.com/zinc-sig/otterbox/internal/testfile"
)

var (
	inspectJSON  bool
	inspectCases bool
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <test.py|dir>...",
	Short: "Summarize test case files",
	Long: `Parse test case files and list their questions: points, suites, and how
many cases are hidden or locked. Directories are read like a bundle's tests/.`,
	Args: cobra.MinimumNArgs(1),
	RunE: inspectCommand,
}

// testSummary is one row of inspect output.
type testSummary struct {
	Path   string `json:"path"`
	Size   int64  `json:"size"`
	Name   string `json:"name"`
	Points string `json:"points"`
	Suites int    `json:"suites"`
	Scored int    `json:"scored_suites"`
	Cases  int    `json:"cases"`
	Hidden int    `json:"hidden"`
	Locked int    `json:"locked"`

	test *testfile.Test
}

func inspectCommand(cmd *cobra.Command, args []string) error {
	files, err := collectTestFiles(args)
	if err != nil {
		return err
	}

	summaries := make([]testSummary, 0, len(files))
	for _, f := range files {
		s := summarizeTest(f.Test)
		s.Path = f.Path
		if st, err := os.Stat(f.Path); err == nil {
			s.Size = st.Size()
		}
		summaries = append(summaries, s)
	}

	if inspectJSON {
		return helpers.OutputJSON(cmd.OutOrStdout(), summaries)
	}

	w := cmd.OutOrStdout()
	table := helpers.NewTable(w, "NAME", "POINTS", "SUITES", "CASES", "HIDDEN", "LOCKED", "SIZE", "FILE")
	for _, s := range summaries {
		table.Append([]string{
			s.Name, s.Points,
			fmt.Sprintf("%d/%d", s.Scored, s.Suites),
			fmt.Sprint(s.Cases), fmt.Sprint(s.Hidden), fmt.Sprint(s.Locked),
			humanize.Bytes(uint64(s.Size)), s.Path,
		})
	}
	table.Render()

	if inspectCases {
		for _, s := range summaries {
			printCases(w, s.test)
		}
	}
	return nil
}

func summarizeTest(t *testfile.Test) testSummary {
	s := testSummary{Name: t.Name, Points: "default", Suites: len(t.Suites), test: t}
	if t.Points != nil {
		s.Points = t.Points.String()
	}
	for _, suite := range t.Suites {
		if suite.Scored {
			s.Scored++
		}
		s.Cases += len(suite.Cases)
		s.Hidden += lo.CountBy(suite.Cases, func(c testfile.Case) bool { return c.Hidden })
		s.Locked += lo.CountBy(suite.Cases, func(c testfile.Case) bool { return c.Locked })
	}
	return s
}

func printCases(w io.Writer, t *testfile.Test) {
	fmt.Fprintf(w, "\n%s%s\n", t.Name, lo.Ternary(t.HasHidden(), " (has hidden cases)", ""))
	for i, suite := range t.Suites {
		fmt.Fprintf(w, "  suite %d (%s, scored=%t)\n", i, suite.Type, suite.Scored)
		for j, c := range suite.Cases {
			flags := lo.Compact([]string{
				lo.Ternary(c.Hidden, "hidden", ""),
				lo.Ternary(c.Locked, "locked", ""),
			})
			fmt.Fprintf(w, "    case %d %v\n", j, flags)
			examples, err := testfile.ParseTranscript(c.Code)
			if err != nil {
				fmt.Fprintf(w, "      ! %v\n", err)
				continue
			}
			for _, line := range strings.Split(strings.TrimRight(testfile.FormatTranscript(examples), "\n"), "\n") {
				fmt.Fprintf(w, "      %s\n", line)
			}
		}
	}
}

// collectTestFiles parses the named files and the test files directly in the
// named directories.
func collectTestFiles(args []string) ([]testfile.File, error) {
	var files []testfile.File
	for _, arg := range args {
		st, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		if st.IsDir() {
			found, err := testfile.LoadDir(arg)
			if err != nil {
				return nil, err
			}
			if len(found) == 0 {
				return nil, fmt.Errorf("no test case files in %s", arg)
			}
			files = append(files, found...)
			continue
		}
		t, err := testfile.ParseFile(arg)
		if err != nil {
			return nil, err
		}
		files = append(files, testfile.File{Path: filepath.Clean(arg), Test: t})
	}
	return files, nil
}

func init() {
	inspectCmd.Flags().BoolVar(&inspectJSON, "json", false, "Print the summaries as JSON")
	inspectCmd.Flags().BoolVar(&inspectCases, "cases", false, "Also print every case transcript")
}
