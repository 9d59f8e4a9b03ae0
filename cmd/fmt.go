package cmd

import (
	"bytes"
	"fmt"
	"os"

	"github.com/pmezard/go-difflib/difflib"
	"github.com/spf13/cobra"

	"github.com/zinc-sig/otterbox/internal/testfile"
)

var (
	fmtWrite bool
	fmtDiff  bool
)

var fmtCmd = &cobra.Command{
	Use:   "fmt [-w] [-d] <test.py|dir>...",
	Short: "Rewrite test case files in canonical form",
	Long: `Parse test case files and render them back in canonical form. By default
the names of files whose formatting differs are listed; -d prints a unified
diff and -w rewrites the files in place. The record's content never changes.`,
	Args: cobra.MinimumNArgs(1),
	RunE: fmtCommand,
}

func fmtCommand(cmd *cobra.Command, args []string) error {
	files, err := collectTestFiles(args)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	for _, f := range files {
		orig, err := os.ReadFile(f.Path)
		if err != nil {
			return err
		}
		formatted := testfile.Format(f.Test)
		if bytes.Equal(orig, formatted) {
			continue
		}

		switch {
		case fmtDiff:
			diff, err := unifiedDiff(f.Path+".orig", f.Path, string(orig), string(formatted))
			if err != nil {
				return err
			}
			fmt.Fprint(w, diff)
		case !fmtWrite:
			fmt.Fprintln(w, f.Path)
		}

		if fmtWrite {
			st, err := os.Stat(f.Path)
			if err != nil {
				return err
			}
			if err := os.WriteFile(f.Path, formatted, st.Mode().Perm()); err != nil {
				return fmt.Errorf("failed to write %s: %w", f.Path, err)
			}
			logger.Info("formatted test file", "path", f.Path)
		}
	}
	return nil
}

func unifiedDiff(fromName, toName, a, b string) (string, error) {
	return difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(a),
		B:        difflib.SplitLines(b),
		FromFile: fromName,
		ToFile:   toName,
		Context:  3,
	})
}

func init() {
	fmtCmd.Flags().BoolVarP(&fmtWrite, "write", "w", false, "Write the result back to the files")
	fmtCmd.Flags().BoolVarP(&fmtDiff, "diff", "d", false, "Print a unified diff instead of file names")
}
