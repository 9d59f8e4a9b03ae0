package cmd

import (
	"path"

	"github.com/spf13/cobra"

	"github.com/zinc-sig/otterbox/cmd/config"
	"github.com/zinc-sig/otterbox/cmd/helpers"
	"github.com/zinc-sig/otterbox/internal/bootstrap"
)

var (
	bootstrapFlags     config.CommonFlags
	bootstrapDir       string
	bootstrapBaseImage string
	bootstrapProject   string
)

var bootstrapCmd = &cobra.Command{
	Use:   "bootstrap",
	Short: "Provision this host for grading",
	Long: `Run the provisioning plan for the detected base image: OS packages,
tooling and the Python distribution on foreign images, then the grading
environment. The first failing step aborts the run.`,
	Example: `  otterbox bootstrap --dry-run
  otterbox bootstrap --dir /autograder/source`,
	Args:    cobra.NoArgs,
	PreRunE: checkBaseImageFlag(&bootstrapBaseImage),
	RunE:    bootstrapCommand,
}

func bootstrapCommand(cmd *cobra.Command, args []string) error {
	timeout, err := helpers.ParseTimeout(bootstrapFlags.TimeoutStr)
	if err != nil {
		return err
	}
	plan, opts, err := resolvePlan(bootstrapProject, bootstrapBaseImage)
	if err != nil {
		return err
	}

	ctx, cancel := helpers.WithTimeout(commandContext(cmd), timeout)
	defer cancel()

	exec := bootstrap.NewExecutor(logger)
	exec.Verbose = verbose
	exec.DryRun = bootstrapFlags.DryRun
	exec.Dir = bootstrapDir
	if exec.Dir == "" {
		exec.Dir = path.Join(opts.AutograderDir, "source")
	}

	logger.Info("provisioning host", "image", plan.Image.String(), "steps", len(plan.Steps), "dry_run", exec.DryRun)
	return exec.Run(ctx, plan)
}

func init() {
	bootstrapCmd.Flags().StringVar(&bootstrapDir, "dir", "", "Working directory for the steps (default: <autograder dir>/source)")
	bootstrapCmd.Flags().StringVar(&bootstrapBaseImage, "base-image", "", "Provision as this image instead of the detected one: foreign or provisioned")
	bootstrapCmd.Flags().StringVar(&bootstrapProject, "project", "", "Path to otterbox.hcl (default: ./otterbox.hcl when present)")
	helpers.SetupCommonFlags(bootstrapCmd, &bootstrapFlags)
	helpers.SetupDryRunFlag(bootstrapCmd, &bootstrapFlags)
}
