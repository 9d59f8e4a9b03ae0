package cmd

import (
	"cmp"
	"fmt"
	"os"

	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/zinc-sig/otterbox/cmd/helpers"
	"github.com/zinc-sig/otterbox/internal/bootstrap"
)

var (
	planBaseImage string
	planProject   string
	planJSON      bool
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Show the provisioning steps for this host",
	Long: fmt.Sprintf(`Resolve the base image from the %s environment variable and print the
provisioning steps setup.sh would run. Use --base-image to preview the plan
for another image.`, bootstrap.MarkerVar),
	Example: `  otterbox plan
  otterbox plan --base-image foreign --json`,
	Args:    cobra.NoArgs,
	PreRunE: checkBaseImageFlag(&planBaseImage),
	RunE:    planCommand,
}

// resolvePlan builds the plan from the project's bootstrap options, or the
// defaults, for the image named by override or the environment.
func resolvePlan(projectPath, override string) (bootstrap.Plan, bootstrap.Options, error) {
	opts := bootstrap.DefaultOptions()
	proj, err := loadProject(projectPath)
	if err != nil {
		return bootstrap.Plan{}, opts, err
	}
	if proj != nil {
		opts = proj.Bootstrap
	}
	if err := opts.Validate(); err != nil {
		return bootstrap.Plan{}, opts, err
	}

	image := bootstrap.ResolveBaseImage(os.Getenv, opts.GraderImage)
	switch override {
	case "foreign":
		image = bootstrap.Foreign
	case "provisioned":
		image = bootstrap.Provisioned
	}
	logger.Debug("resolved base image", "image", image.String(), "marker", os.Getenv(bootstrap.MarkerVar))
	return bootstrap.NewPlan(image, opts), opts, nil
}

func checkBaseImageFlag(v *string) func(*cobra.Command, []string) error {
	return func(*cobra.Command, []string) error {
		if *v != "" && !lo.Contains([]string{"foreign", "provisioned"}, *v) {
			return fmt.Errorf("invalid base image %q: must be foreign or provisioned", *v)
		}
		return nil
	}
}

type planStepJSON struct {
	Name     string   `json:"name"`
	Kind     string   `json:"kind"`
	Commands []string `json:"commands"`
}

type planJSONOutput struct {
	Image  string         `json:"image"`
	Marker string         `json:"marker"`
	Steps  []planStepJSON `json:"steps"`
}

func planCommand(cmd *cobra.Command, args []string) error {
	plan, opts, err := resolvePlan(planProject, planBaseImage)
	if err != nil {
		return err
	}

	marker := bootstrap.MarkerValue(plan.Image, opts.GraderImage)
	w := cmd.OutOrStdout()
	if planJSON {
		return helpers.OutputJSON(w, planJSONOutput{
			Image:  plan.Image.String(),
			Marker: marker,
			Steps:  lo.Map(plan.Steps, func(s bootstrap.Step, _ int) planStepJSON {
				return planStepJSON{Name: s.Name, Kind: string(s.Kind), Commands: s.Commands}
			}),
		})
	}

	selector := bootstrap.MarkerVar + "=" + marker
	if marker == "" {
		selector = bootstrap.MarkerVar + " != " + cmp.Or(opts.GraderImage, bootstrap.DefaultGraderImage)
	}
	fmt.Fprintf(w, "Base image: %s (%s, %d steps)\n\n", plan.Image, selector, len(plan.Steps))
	for i, s := range plan.Steps {
		fmt.Fprintf(w, "%d. %s [%s]\n", i+1, s.Name, s.Kind)
		for _, c := range s.Commands {
			fmt.Fprintf(w, "   %s\n", c)
		}
	}
	return nil
}

func init() {
	planCmd.Flags().StringVar(&planBaseImage, "base-image", "", "Plan for this image instead of the detected one: foreign or provisioned")
	planCmd.Flags().StringVar(&planProject, "project", "", "Path to otterbox.hcl (default: ./otterbox.hcl when present)")
	planCmd.Flags().BoolVar(&planJSON, "json", false, "Print the plan as JSON")
}
