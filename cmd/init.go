package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zinc-sig/otterbox/internal/bootstrap"
	"github.com/zinc-sig/otterbox/internal/bundle"
)

var (
	initForce       bool
	initEngine      string
	initEnvName     string
	initGraderImage string
	initProject     string
)

var initCmd = &cobra.Command{
	Use:   "init <dir>",
	Short: "Scaffold a new bundle tree",
	Long: `Write a minimal bundle tree: rendered setup.sh, run_autograder and
run_otter.py, requirements.txt, environment.yml, a default otter_config.json
and one example test. Bootstrap options come from otterbox.hcl when present.`,
	Example: `  otterbox init autograder
  otterbox init autograder --engine otterbox --env-name hw1-env`,
	Args: cobra.ExactArgs(1),
	RunE: initCommand,
}

func initCommand(cmd *cobra.Command, args []string) error {
	opts := bootstrap.DefaultOptions()
	proj, err := loadProject(initProject)
	if err != nil {
		return err
	}
	if proj != nil {
		opts = proj.Bootstrap
	}

	if cmd.Flags().Changed("engine") {
		opts.Engine = bootstrap.Engine(initEngine)
	}
	if initEnvName != "" {
		opts.EnvName = initEnvName
	}
	if initGraderImage != "" {
		opts.GraderImage = initGraderImage
	}
	if err := opts.Validate(); err != nil {
		return err
	}

	written, err := bundle.Scaffold(args[0], bundle.ScaffoldOptions{Bootstrap: opts, Force: initForce})
	for _, rel := range written {
		fmt.Fprintf(cmd.OutOrStdout(), "✓ %s\n", rel)
	}
	if err != nil {
		return err
	}
	logger.Info("scaffolded bundle", "dir", args[0], "files", len(written), "engine", string(opts.Engine))
	return nil
}

func init() {
	initCmd.Flags().BoolVarP(&initForce, "force", "f", false, "Overwrite files that already exist")
	initCmd.Flags().StringVar(&initEngine, "engine", string(bootstrap.EngineOtter), "What run_autograder hands off to: otter or otterbox")
	initCmd.Flags().StringVar(&initEnvName, "env-name", "", "Name of the provisioned environment")
	initCmd.Flags().StringVar(&initGraderImage, "grader-image", "", "Base image that is already provisioned")
	initCmd.Flags().StringVar(&initProject, "project", "", "Path to otterbox.hcl (default: ./otterbox.hcl when present)")
}
