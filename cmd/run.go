package cmd

import (
	"cmp"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/zinc-sig/otterbox/cmd/config"
	"github.com/zinc-sig/otterbox/cmd/helpers"
	"github.com/zinc-sig/otterbox/internal/autograder"
	"github.com/zinc-sig/otterbox/internal/upload"
)

var (
	runOverrides      config.OverrideConfig
	runUpload         config.UploadConfig
	runSubmit         config.SubmitConfig
	runFlags          config.CommonFlags
	runPython         string
	runCaseTimeoutStr string
	runCaseTimeout    time.Duration
	runID             string
	runClean          bool
	runProject        string
)

var runCmd = &cobra.Command{
	Use:   "run [autograder-dir]",
	Short: "Grade the submission in an autograder directory",
	Long: `Grade the learner's submission inside an autograder directory laid out as
source/, submission/ and results/ (default: /autograder). Test case files from
source/tests are run against the submission and results/results.json is
written, also when grading fails.

Results can be posted to a course-management host with --submit-url and
stored with an upload provider.`,
	Example: `  otterbox run
  otterbox run ./autograder --config-kv seed=7 --case-timeout 10s
  otterbox run --submit-url https://grader.example.edu --upload-provider minio`,
	Args: cobra.MaximumNArgs(1),
	PreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		if runFlags.Timeout, err = helpers.ParseTimeout(runFlags.TimeoutStr); err != nil {
			return err
		}
		if runCaseTimeout, err = helpers.ParseTimeout(runCaseTimeoutStr); err != nil {
			return fmt.Errorf("case timeout: %w", err)
		}
		return nil
	},
	RunE: runCommand,
}

func runCommand(cmd *cobra.Command, args []string) error {
	proj, err := loadProject(runProject)
	if err != nil {
		return err
	}

	dir := "/autograder"
	var baseUpload map[string]any
	var defaultProvider string
	if proj != nil {
		dir = proj.Bootstrap.AutograderDir
		defaultProvider = proj.UploadProvider
		baseUpload = proj.Upload
	}
	if len(args) == 1 {
		dir = args[0]
	}

	if runClean {
		if err := autograder.Clean(dir); err != nil {
			return fmt.Errorf("failed to clean %s: %w", dir, err)
		}
	}

	overrides, err := helpers.BuildConfigOverrides(nil, &runOverrides)
	if err != nil {
		return err
	}
	provider, uploadConf, err := helpers.SetupUploadProvider(defaultProvider, baseUpload, &runUpload)
	if err != nil {
		return err
	}
	submitConf, retryConf, err := helpers.ParseSubmitConfig(&runSubmit)
	if err != nil {
		return err
	}
	if submitConf == nil && proj != nil && proj.Submit != nil {
		submitConf = proj.Submit
	}
	if submitConf != nil && runSubmit.Token != "" {
		submitConf.Token = runSubmit.Token
	}

	id := cmp.Or(runID, uuid.NewString())
	stdout := cmd.OutOrStdout()

	// The printed summary is stored next to results.json when uploading.
	var summary *upload.Artifact
	if provider != nil {
		path, cleanup, err := helpers.CreateTempFile("summary", "*.txt")
		if err != nil {
			return err
		}
		defer cleanup()
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()
		stdout = io.MultiWriter(stdout, f)
		summary = &upload.Artifact{Local: path, Remote: upload.RunPath("results", id, "summary.txt")}
		if verbose {
			helpers.PrintUploadInfo(cmd.ErrOrStderr(), provider, uploadConf, []upload.Artifact{*summary})
		}
	}

	ctx, cancel := helpers.WithTimeout(commandContext(cmd), runFlags.Timeout)
	defer cancel()

	_, runErr := autograder.Run(ctx, autograder.Options{
		Dir:         dir,
		Overrides:   overrides,
		Python:      runPython,
		CaseTimeout: runCaseTimeout,
		Submit:      submitConf,
		SubmitRetry: retryConf,
		Uploader:    provider,
		RunID:       id,
		Stdout:      stdout,
		Logger:      logger,
		PinLogLevel: verbose || cmd.Flags().Changed("log-level"),
	})

	if summary != nil {
		if err := upload.UploadAll(ctx, provider, []upload.Artifact{*summary}, logger); err != nil {
			runErr = errors.Join(runErr, err)
		}
	}
	return runErr
}

func init() {
	runCmd.Flags().StringVar(&runPython, "python", "", "Python interpreter used to run the cases (default: python3)")
	runCmd.Flags().StringVar(&runCaseTimeoutStr, "case-timeout", "", "Time limit for each test file's session (e.g., 30s)")
	runCmd.Flags().StringVar(&runID, "run-id", "", "Identifier for uploads and submissions (default: a random UUID)")
	runCmd.Flags().BoolVar(&runClean, "clean", false, "Remove results/ before grading")
	runCmd.Flags().StringVar(&runProject, "project", "", "Path to otterbox.hcl (default: ./otterbox.hcl when present)")

	helpers.SetupCommonFlags(runCmd, &runFlags)
	helpers.SetupOverrideFlags(runCmd, &runOverrides)
	helpers.SetupUploadFlags(runCmd, &runUpload)
	helpers.SetupSubmitFlags(runCmd, &runSubmit)
}
