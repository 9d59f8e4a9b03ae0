package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/zinc-sig/otterbox/cmd/config"
	"github.com/zinc-sig/otterbox/cmd/helpers"
	"github.com/zinc-sig/otterbox/internal/bootstrap"
	"github.com/zinc-sig/otterbox/internal/bundle"
	agconfig "github.com/zinc-sig/otterbox/internal/config"
	"github.com/zinc-sig/otterbox/internal/project"
	"github.com/zinc-sig/otterbox/internal/upload"
)

var (
	buildOutput        string
	buildProject       string
	buildStrict        bool
	buildSkipValidate  bool
	buildRenderScripts bool
	buildJSON          bool
	buildFlags         config.CommonFlags
	buildOverrides     config.OverrideConfig
	buildUpload        config.UploadConfig
)

var buildCmd = &cobra.Command{
	Use:   "build [dir]",
	Short: "Package a bundle tree into a zip",
	Long: `Scan a bundle tree, check its layout and write a reproducible zip.

Without a directory argument the source and output come from otterbox.hcl.
Config overrides are written into the archived otter_config.json; the tree on
disk is not modified. The output may be given as local[:remote] to upload
the built zip under a remote path.`,
	Example: `  otterbox build autograder -o dist/hw1.zip
  otterbox build --config-kv seed=7 --config-kv show_hidden=true
  otterbox build -o dist/hw1.zip:bundles/hw1.zip --upload-provider minio`,
	Args: cobra.MaximumNArgs(1),
	RunE: buildCommand,
}

func buildCommand(cmd *cobra.Command, args []string) error {
	proj, err := loadProject(buildProject)
	if err != nil {
		return err
	}

	source, output, strict := "", "", buildStrict
	var base, uploadBase map[string]any
	var defaultProvider string
	if proj != nil {
		source, output = proj.Source, proj.Output
		if !cmd.Flags().Changed("strict") {
			strict = proj.Strict
		}
		base, uploadBase, defaultProvider = proj.Config, proj.Upload, proj.UploadProvider
	}
	if len(args) == 1 {
		source = args[0]
	}
	if source == "" {
		return fmt.Errorf("no bundle directory given and no %s found", project.FileName)
	}

	local, remote := helpers.ParseOutputPath(buildOutput)
	if local == "" {
		local = output
	}
	if local == "" {
		abs, err := filepath.Abs(source)
		if err != nil {
			return err
		}
		local = filepath.Base(abs) + ".zip"
	}

	overlay, err := buildOverlay(source, base, proj)
	if err != nil {
		return err
	}

	provider, uploadConf, err := helpers.SetupUploadProvider(defaultProvider, uploadBase, &buildUpload)
	if err != nil {
		return err
	}
	var artifacts []upload.Artifact
	if provider != nil {
		if remote != "" {
			artifacts = []upload.Artifact{{Local: local, Remote: remote}}
		} else {
			artifacts = upload.Artifacts("bundles", uuid.NewString(), local)
		}
		if verbose || buildFlags.DryRun {
			helpers.PrintUploadInfo(cmd.ErrOrStderr(), provider, uploadConf, artifacts)
		}
	}

	opts := bundle.BuildOptions{
		ScanOptions:  bundle.ScanOptions{Strict: strict, Logger: logger},
		SkipValidate: buildSkipValidate,
		Overlay:      overlay,
	}
	opts.Exclude = []string{local}
	if buildFlags.DryRun {
		m, err := bundle.Scan(source, opts.ScanOptions)
		if err != nil {
			return err
		}
		if !buildSkipValidate {
			if err := bundle.Validate(m); err != nil {
				return fmt.Errorf("invalid bundle: %w", err)
			}
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "[DRY RUN] would write %d files to %s\n", len(m.Files), local)
		return nil
	}

	ctx, cancel := helpers.WithTimeout(commandContext(cmd), buildFlags.Timeout)
	defer cancel()
	m, err := bundle.BuildFile(ctx, source, local, opts)
	if err != nil {
		return err
	}
	logger.Info("built bundle", "source", source, "output", local, "files", len(m.Files), "content_hash", m.ContentHash)

	if err := upload.UploadAll(ctx, provider, artifacts, logger); err != nil {
		return err
	}

	if buildJSON {
		return helpers.OutputJSON(cmd.OutOrStdout(), m)
	}
	size := int64(0)
	if st, err := os.Stat(local); err == nil {
		size = st.Size()
	}
	fmt.Fprint(cmd.OutOrStdout(), m.String())
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%s)\n", local, humanize.Bytes(uint64(size)))
	return nil
}

// buildOverlay collects the archive entries that differ from the tree: the
// config with overrides applied and, on request, scripts rendered from the
// project's bootstrap options.
func buildOverlay(source string, base map[string]any, proj *project.Project) (map[string][]byte, error) {
	overlay := map[string][]byte{}

	overrides, err := helpers.BuildConfigOverrides(base, &buildOverrides)
	if err != nil {
		return nil, err
	}
	if len(overrides) > 0 {
		cfg, err := agconfig.Load(filepath.Join(source, bundle.ConfigFile))
		if err != nil {
			return nil, err
		}
		if err := cfg.Merge(overrides); err != nil {
			return nil, err
		}
		data, err := json.MarshalIndent(cfg, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("failed to encode config: %w", err)
		}
		overlay[bundle.ConfigFile] = append(data, '\n')
		if verbose {
			helpers.PrintConfigInfo(os.Stderr, cfg, buildFlags.DryRun)
		}
	}

	if buildRenderScripts {
		opts := bootstrap.DefaultOptions()
		if proj != nil {
			opts = proj.Bootstrap
		}
		scripts := []struct {
			rel    string
			render func(bootstrap.Options) ([]byte, error)
		}{
			{bundle.SetupScript, bootstrap.RenderSetup},
			{bundle.RunAutograder, bootstrap.RenderRunAutograder},
			{bundle.EntryScript, bootstrap.RenderEntryScript},
		}
		for _, s := range scripts {
			data, err := s.render(opts)
			if err != nil {
				return nil, err
			}
			overlay[s.rel] = data
		}
	}
	return overlay, nil
}

func init() {
	buildCmd.Flags().StringVarP(&buildOutput, "output", "o", "", "Output zip as local[:remote] (default: from otterbox.hcl or <dir>.zip)")
	buildCmd.Flags().StringVar(&buildProject, "project", "", "Path to otterbox.hcl (default: ./otterbox.hcl when present)")
	buildCmd.Flags().BoolVar(&buildStrict, "strict", true, "Fail on files outside the bundle layout instead of warning")
	buildCmd.Flags().BoolVar(&buildSkipValidate, "skip-validate", false, "Archive the tree even when required entries are missing")
	buildCmd.Flags().BoolVar(&buildRenderScripts, "render-scripts", false, "Archive freshly rendered setup.sh, run_autograder and run_otter.py")
	buildCmd.Flags().BoolVar(&buildJSON, "json", false, "Print the manifest as JSON")

	helpers.SetupCommonFlags(buildCmd, &buildFlags)
	helpers.SetupDryRunFlag(buildCmd, &buildFlags)
	helpers.SetupOverrideFlags(buildCmd, &buildOverrides)
	helpers.SetupUploadFlags(buildCmd, &buildUpload)

	buildCmd.PreRunE = func(cmd *cobra.Command, args []string) error {
		var err error
		buildFlags.Timeout, err = helpers.ParseTimeout(buildFlags.TimeoutStr)
		return err
	}
}
