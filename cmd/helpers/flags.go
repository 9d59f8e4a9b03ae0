package helpers

import (
	"github.com/spf13/cobra"

	"github.com/zinc-sig/otterbox/cmd/config"
)

// SetupOverrideFlags adds the otter_config.json override flags to a command
func SetupOverrideFlags(cmd *cobra.Command, cfg *config.OverrideConfig) {
	cmd.Flags().StringVar(&cfg.JSON, "config", "", "Config overrides as JSON string")
	cmd.Flags().StringArrayVar(&cfg.KV, "config-kv", nil, "Config override key=value pairs (can be used multiple times)")
	cmd.Flags().StringVar(&cfg.File, "config-file", "", "Path to JSON file containing config overrides")
}

// SetupUploadFlags adds upload-related flags to a command
func SetupUploadFlags(cmd *cobra.Command, cfg *config.UploadConfig) {
	cmd.Flags().StringVar(&cfg.Provider, "upload-provider", "", "Upload provider type (e.g., minio)")
	cmd.Flags().StringVar(&cfg.Config, "upload-config", "", "Upload configuration as JSON string")
	cmd.Flags().StringArrayVar(&cfg.ConfigKV, "upload-config-kv", nil, "Upload config key=value pairs (can be used multiple times)")
	cmd.Flags().StringVar(&cfg.ConfigFile, "upload-config-file", "", "Path to JSON file containing upload configuration")
}

// SetupCommonFlags adds commonly used flags to a command
func SetupCommonFlags(cmd *cobra.Command, flags *config.CommonFlags) {
	cmd.Flags().StringVarP(&flags.TimeoutStr, "timeout", "t", "", "Timeout duration (e.g., 30s, 2m, 500ms)")
}

// SetupDryRunFlag adds --dry-run to a command
func SetupDryRunFlag(cmd *cobra.Command, flags *config.CommonFlags) {
	cmd.Flags().BoolVar(&flags.DryRun, "dry-run", false, "Print what would be done without doing it")
}

// SetupSubmitFlags adds flags for posting results to the course-management host
func SetupSubmitFlags(cmd *cobra.Command, cfg *config.SubmitConfig) {
	cmd.Flags().StringVar(&cfg.URL, "submit-url", "", "Base URL of the course-management host")
	cmd.Flags().StringVar(&cfg.Token, "submit-token", "", "Bearer token (overrides the config's token)")
	cmd.Flags().IntVar(&cfg.Retries, "submit-retries", 3, "Maximum submission retry attempts (0 = no retries)")
	cmd.Flags().StringVar(&cfg.RetryDelay, "submit-retry-delay", "1s", "Initial delay between submission retries")
	cmd.Flags().StringVar(&cfg.Timeout, "submit-timeout", "30s", "Total timeout for submission including retries")

	// Alternative configuration methods
	cmd.Flags().StringVar(&cfg.Config, "submit-config", "", "Submission configuration as JSON string")
	cmd.Flags().StringArrayVar(&cfg.ConfigKV, "submit-config-kv", nil, "Submission config key=value pairs (can be used multiple times)")
	cmd.Flags().StringVar(&cfg.ConfigFile, "submit-config-file", "", "Path to JSON file containing submission configuration")
}
