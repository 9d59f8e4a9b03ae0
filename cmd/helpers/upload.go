package helpers

import (
	"fmt"
	"io"
	"maps"

	"github.com/zinc-sig/otterbox/cmd/config"
	"github.com/zinc-sig/otterbox/internal/overrides"
	"github.com/zinc-sig/otterbox/internal/upload"
)

// UploadEnvPrefix names the environment variables holding upload config.
const UploadEnvPrefix = "OTTERBOX_UPLOAD_CONFIG"

// BuildUploadConfig layers base under the OTTERBOX_UPLOAD_CONFIG* environment
// and the upload flags.
func BuildUploadConfig(base map[string]any, cfg *config.UploadConfig) (map[string]any, error) {
	flags, err := overrides.BuildMap(UploadEnvPrefix, overrides.Sources{
		JSON: cfg.Config,
		KV:   cfg.ConfigKV,
		File: cfg.ConfigFile,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build upload config: %w", err)
	}
	merged := maps.Clone(base)
	if merged == nil {
		merged = make(map[string]any, len(flags))
	}
	maps.Copy(merged, flags)
	return merged, nil
}

// SetupUploadProvider creates and configures an upload provider. The flag's
// provider wins over defaultProvider; with neither, nil is returned.
func SetupUploadProvider(defaultProvider string, base map[string]any, cfg *config.UploadConfig) (upload.Provider, map[string]any, error) {
	name := cfg.Provider
	if name == "" {
		name = defaultProvider
	}
	if name == "" {
		return nil, nil, nil
	}

	uploadConf, err := BuildUploadConfig(base, cfg)
	if err != nil {
		return nil, nil, err
	}

	provider, err := upload.NewProvider(name)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create upload provider: %w", err)
	}

	if err := provider.Configure(uploadConf); err != nil {
		return nil, nil, fmt.Errorf("failed to configure upload provider: %w", err)
	}

	return provider, uploadConf, nil
}

// PrintUploadInfo prints upload configuration in verbose mode
func PrintUploadInfo(w io.Writer, provider upload.Provider, config map[string]any, artifacts []upload.Artifact) {
	fmt.Fprintln(w, "========================================")
	fmt.Fprintln(w, "Upload Configuration")
	fmt.Fprintln(w, "========================================")
	fmt.Fprintf(w, "Provider:       %s\n", provider.Name())

	if m, ok := provider.(*upload.MinioProvider); ok {
		fmt.Fprintf(w, "Endpoint:       %s\n", m.Endpoint())
		fmt.Fprintf(w, "Secure:         %t\n", m.Secure())
	}
	if bucket, ok := config["bucket"]; ok {
		fmt.Fprintf(w, "Bucket:         %v\n", bucket)
	}
	if prefix, ok := config["prefix"]; ok && prefix != "" {
		fmt.Fprintf(w, "Prefix:         %v\n", prefix)
	}
	if region, ok := config["region"]; ok && region != "" {
		fmt.Fprintf(w, "Region:         %v\n", region)
	}

	for _, a := range artifacts {
		fmt.Fprintf(w, "Artifact:       %s -> %s\n", a.Local, a.Remote)
	}
	fmt.Fprintln(w, "----------------------------------------")
}
