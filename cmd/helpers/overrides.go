package helpers

import (
	"encoding/json"
	"fmt"
	"io"
	"maps"

	"github.com/zinc-sig/otterbox/cmd/config"
	agconfig "github.com/zinc-sig/otterbox/internal/config"
	"github.com/zinc-sig/otterbox/internal/overrides"
)

// BuildConfigOverrides layers base (usually a project file's config block)
// under the OTTERBOX_CONFIG* environment and the override flags.
func BuildConfigOverrides(base map[string]any, cfg *config.OverrideConfig) (map[string]any, error) {
	flags, err := overrides.BuildMap(agconfig.EnvPrefix, overrides.Sources{
		JSON: cfg.JSON,
		KV:   cfg.KV,
		File: cfg.File,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build config overrides: %w", err)
	}
	merged := maps.Clone(base)
	if merged == nil {
		merged = make(map[string]any, len(flags))
	}
	maps.Copy(merged, flags)
	return merged, nil
}

// PrintConfigInfo prints the effective config in verbose/dry-run mode
func PrintConfigInfo(w io.Writer, cfg *agconfig.Config, dryRun bool) {
	header := "Autograder Configuration"
	if dryRun {
		header = "Autograder Configuration (DRY RUN)"
	}

	fmt.Fprintln(w, "========================================")
	fmt.Fprintln(w, header)
	fmt.Fprintln(w, "========================================")

	redacted := cfg.Clone()
	if redacted.Token != "" {
		redacted.Token = "********"
	}
	jsonBytes, err := json.MarshalIndent(redacted, "", "  ")
	if err != nil {
		fmt.Fprintf(w, "  %+v\n", redacted)
	} else {
		fmt.Fprintf(w, "%s\n", string(jsonBytes))
	}

	fmt.Fprintln(w, "----------------------------------------")
}
