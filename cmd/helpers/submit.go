package helpers

import (
	"fmt"
	"time"

	"github.com/zinc-sig/otterbox/cmd/config"
	"github.com/zinc-sig/otterbox/internal/overrides"
	"github.com/zinc-sig/otterbox/internal/submit"
)

// SubmitEnvPrefix names the environment variables holding submission config.
const SubmitEnvPrefix = "OTTERBOX_SUBMIT"

// BuildSubmitConfig builds submission configuration from all sources
// Precedence: env < file < json < kv < direct flags
func BuildSubmitConfig(cfg *config.SubmitConfig) (map[string]any, error) {
	submitConf, err := overrides.BuildMap(SubmitEnvPrefix, overrides.Sources{
		JSON: cfg.Config,
		KV:   cfg.ConfigKV,
		File: cfg.ConfigFile,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build submit config: %w", err)
	}

	if cfg.URL != "" {
		submitConf["url"] = cfg.URL
	}
	if cfg.Token != "" {
		submitConf["token"] = cfg.Token
	}
	if cfg.Timeout != "" && cfg.Timeout != "30s" {
		submitConf["timeout"] = cfg.Timeout
	}
	if cfg.Retries != 3 {
		submitConf["retries"] = cfg.Retries
	}
	if cfg.RetryDelay != "" && cfg.RetryDelay != "1s" {
		submitConf["retry_delay"] = cfg.RetryDelay
	}

	return submitConf, nil
}

// ParseSubmitConfig resolves the submission client settings for a run. The
// flags and OTTERBOX_SUBMIT* environment supply the host and may set the
// token; the rest is filled from otter_config.json at run time. A nil config
// means no host URL was given.
func ParseSubmitConfig(cfg *config.SubmitConfig) (*submit.Config, *submit.RetryConfig, error) {
	configMap, err := BuildSubmitConfig(cfg)
	if err != nil {
		return nil, nil, err
	}

	url, _ := configMap["url"].(string)
	if url == "" {
		return nil, nil, nil
	}

	timeout := 30 * time.Second
	if s, ok := configMap["timeout"].(string); ok && s != "" {
		if timeout, err = time.ParseDuration(s); err != nil {
			return nil, nil, fmt.Errorf("invalid submit timeout duration: %w", err)
		}
	}

	retryDelay := 1 * time.Second
	if s, ok := configMap["retry_delay"].(string); ok && s != "" {
		if retryDelay, err = time.ParseDuration(s); err != nil {
			return nil, nil, fmt.Errorf("invalid submit retry delay: %w", err)
		}
	}

	// JSON numbers decode as float64, flags and key=value pairs as int.
	maxRetries := 3
	switch r := configMap["retries"].(type) {
	case int:
		maxRetries = r
	case float64:
		maxRetries = int(r)
	}

	token, _ := configMap["token"].(string)
	submitConfig := &submit.Config{
		BaseURL: url,
		Token:   token,
		Timeout: timeout,
	}

	retryConfig := &submit.RetryConfig{
		MaxRetries:   maxRetries,
		InitialDelay: retryDelay,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
	}

	return submitConfig, retryConfig, nil
}
