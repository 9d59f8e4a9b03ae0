// Package config holds the run parameters read from otter_config.json.
package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"os"
	"sort"

	"github.com/shopspring/decimal"
)

// FileName is the config file's name inside an autograder bundle.
const FileName = "otter_config.json"

// EnvPrefix names the environment variables that override config keys:
// OTTERBOX_CONFIG holds a JSON object, OTTERBOX_CONFIG_<KEY> a single value.
const EnvPrefix = "OTTERBOX_CONFIG"

// Config is the flat set of recognized options. Keys that are not recognized
// are kept in Extra and written back unchanged.
type Config struct {
	// Seed fixes the random state of every case; nil leaves it unseeded.
	Seed       *int `json:"seed"`
	ShowStdout bool `json:"show_stdout"`
	ShowHidden bool `json:"show_hidden"`

	// Routing for the course-management host.
	Token        string `json:"token"`
	CourseID     string `json:"course_id"`
	AssignmentID string `json:"assignment_id"`

	Filtering bool `json:"filtering"`

	Lang                   string           `json:"lang"`
	AssignmentName         string           `json:"assignment_name"`
	PointsPossible         *decimal.Decimal `json:"points_possible"`
	PrintScore             bool             `json:"print_score"`
	PrintSummary           bool             `json:"print_summary"`
	Zips                   bool             `json:"zips"`
	ForcePublicTestSummary bool             `json:"force_public_test_summary"`
	LogLevel               string           `json:"log_level"`

	Extra map[string]json.RawMessage `json:"-"`
}

var knownKeys = map[string]bool{
	"seed":                      true,
	"show_stdout":               true,
	"show_hidden":               true,
	"token":                     true,
	"course_id":                 true,
	"assignment_id":             true,
	"filtering":                 true,
	"lang":                      true,
	"assignment_name":           true,
	"points_possible":           true,
	"print_score":               true,
	"print_summary":             true,
	"zips":                      true,
	"force_public_test_summary": true,
	"log_level":                 true,
}

// ErrMalformed reports a config file that is not a JSON object of valid values.
var ErrMalformed = errors.New("malformed config")

// Default returns the values assumed for keys a config file leaves out.
func Default() *Config {
	return &Config{
		Filtering:              true,
		Lang:                   "python",
		PrintScore:             true,
		PrintSummary:           true,
		ForcePublicTestSummary: true,
		LogLevel:               "info",
	}
}

// Parse reads a config document on top of the defaults.
func Parse(data []byte) (*Config, error) {
	c := Default()
	if err := c.UnmarshalJSON(data); err != nil {
		return nil, err
	}
	return c, nil
}

// Load reads the config at path. A missing file yields the defaults; a file
// that does not parse is an error.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// UnmarshalJSON overlays the keys present in data onto c.
func (c *Config) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if raw == nil {
		return fmt.Errorf("%w: expected a JSON object", ErrMalformed)
	}

	// alias drops the methods so the decode below does not recurse.
	type alias Config
	known := make(map[string]json.RawMessage, len(raw))
	for k, v := range raw {
		if knownKeys[k] {
			known[k] = v
			continue
		}
		if c.Extra == nil {
			c.Extra = make(map[string]json.RawMessage)
		}
		c.Extra[k] = v
	}
	if len(known) == 0 {
		return nil
	}
	buf, err := json.Marshal(known)
	if err != nil {
		return err
	}
	dec := json.NewDecoder(bytes.NewReader(buf))
	if err := dec.Decode((*alias)(c)); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return nil
}

// MarshalJSON writes the recognized keys followed by the pass-through ones.
func (c Config) MarshalJSON() ([]byte, error) {
	type alias Config
	base, err := json.Marshal(alias(c))
	if err != nil {
		return nil, err
	}
	if len(c.Extra) == 0 {
		return base, nil
	}

	var merged map[string]json.RawMessage
	if err := json.Unmarshal(base, &merged); err != nil {
		return nil, err
	}
	for k, v := range c.Extra {
		if _, ok := merged[k]; !ok {
			merged[k] = v
		}
	}
	return json.Marshal(merged)
}

// Merge applies overrides on top of c. Override keys follow the file's names;
// unknown keys land in Extra.
func (c *Config) Merge(overrides map[string]any) error {
	if len(overrides) == 0 {
		return nil
	}
	data, err := json.Marshal(overrides)
	if err != nil {
		return fmt.Errorf("failed to encode config overrides: %w", err)
	}
	if err := c.UnmarshalJSON(data); err != nil {
		return fmt.Errorf("invalid config overrides: %w", err)
	}
	return nil
}

// Clone returns a deep copy of c.
func (c *Config) Clone() *Config {
	out := *c
	if c.Seed != nil {
		seed := *c.Seed
		out.Seed = &seed
	}
	if c.PointsPossible != nil {
		pp := *c.PointsPossible
		out.PointsPossible = &pp
	}
	out.Extra = maps.Clone(c.Extra)
	return &out
}

// ExtraKeys lists the pass-through keys in sorted order.
func (c *Config) ExtraKeys() []string {
	keys := make([]string, 0, len(c.Extra))
	for k := range c.Extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// HasSubmissionTarget reports whether results can be posted to the
// course-management host.
func (c *Config) HasSubmissionTarget() bool {
	return c.Token != "" && c.CourseID != "" && c.AssignmentID != ""
}
