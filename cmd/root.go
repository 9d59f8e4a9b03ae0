package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/zinc-sig/otterbox/internal/logging"
)

var (
	verbose  bool
	logLevel string
	envFile  string

	logger = logging.Nop()
)

var rootCmd = &cobra.Command{
	Use:   "otterbox",
	Short: "Build, check and run autograder bundles",
	Long: `Otterbox packages autograder bundles for grading hosts and runs them.

A bundle is a zip of setup scripts, dependency manifests, test case files,
a JSON config and data assets. Otterbox scaffolds, builds, validates and
extracts bundles, renders and executes the host bootstrap, and grades
submissions inside an autograder directory.`,
	SilenceUsage:      true,
	PersistentPreRunE: setupRoot,
}

func Execute() {
	err := rootCmd.Execute()
	logger.Sync()
	if err != nil {
		var exit *exitError
		if errors.As(err, &exit) {
			os.Exit(exit.code)
		}
		os.Exit(1)
	}
}

// setupRoot loads the .env file and builds the logger before any command runs.
func setupRoot(cmd *cobra.Command, args []string) error {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load %s: %w", envFile, err)
		}
	}

	level := logLevel
	if verbose {
		level = "debug"
	}
	l, err := logging.New(level)
	if err != nil {
		return err
	}
	logger = l
	return nil
}

// exitError carries a non-zero exit status for commands whose failure is an
// answer rather than an error, like diff finding differences.
type exitError struct {
	code int
}

func (e *exitError) Error() string { return fmt.Sprintf("exit status %d", e.code) }

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging and show interpreter stderr")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Environment file loaded at startup (ignored when missing)")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(buildCmd)
	rootCmd.AddCommand(extractCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(fmtCmd)
	rootCmd.AddCommand(diffCmd)
	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(bootstrapCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(resultsCmd)
}
