package config

import "time"

// OverrideConfig holds the flags that override otter_config.json keys.
type OverrideConfig struct {
	JSON string
	KV   []string
	File string
}

// UploadConfig holds upload-related flags
type UploadConfig struct {
	Provider   string
	Config     string
	ConfigKV   []string
	ConfigFile string
}

// CommonFlags holds commonly used flags across commands
type CommonFlags struct {
	DryRun     bool
	TimeoutStr string
	Timeout    time.Duration
}

// SubmitConfig holds the flags for posting results to the course-management
// host. Token, course and assignment normally come from otter_config.json.
type SubmitConfig struct {
	URL        string
	Token      string
	Timeout    string
	Retries    int
	RetryDelay string

	// Alternative configuration methods
	Config     string
	ConfigKV   []string
	ConfigFile string
}
