// Package overrides merges configuration values from layered sources:
// environment variables, JSON files, JSON strings and key=value pairs.
package overrides

import (
	"encoding/json"
	"fmt"
	"maps"
	"os"
	"strconv"
	"strings"
)

// ParseKV parses a key=value pair, attempting type inference for the value
func ParseKV(kvPair string) (string, any, error) {
	parts := strings.SplitN(kvPair, "=", 2)
	if len(parts) != 2 {
		return "", nil, fmt.Errorf("invalid format, expected key=value: %s", kvPair)
	}

	key := strings.TrimSpace(parts[0])
	if key == "" {
		return "", nil, fmt.Errorf("empty key in key=value pair")
	}

	return key, inferValue(strings.TrimSpace(parts[1])), nil
}

func inferValue(valueStr string) any {
	// Integers first so "1" is not read as boolean true
	if intVal, err := strconv.Atoi(valueStr); err == nil {
		return intVal
	}
	if floatVal, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return floatVal
	}
	if valueStr == "true" || valueStr == "false" {
		return valueStr == "true"
	}
	if valueStr == "null" {
		return nil
	}
	return valueStr
}

// ParseJSON parses a JSON string into a map or other structure
func ParseJSON(jsonStr string) (any, error) {
	var result any
	if err := json.Unmarshal([]byte(jsonStr), &result); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	return result, nil
}

// ParseFile reads and parses JSON from a file
func ParseFile(path string) (any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var result any
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("invalid JSON in %s: %w", path, err)
	}
	return result, nil
}

// ParseEnvWithPrefix collects PREFIX (a JSON object) and PREFIX_* variables.
// Keys of PREFIX_* variables are lower-cased; values go through type inference.
func ParseEnvWithPrefix(prefix string) map[string]any {
	values := make(map[string]any)

	if jsonStr := os.Getenv(prefix); jsonStr != "" {
		if parsed, err := ParseJSON(jsonStr); err == nil {
			if m, ok := parsed.(map[string]any); ok {
				maps.Copy(values, m)
			}
		}
	}

	envPrefix := prefix + "_"
	for _, env := range os.Environ() {
		if !strings.HasPrefix(env, envPrefix) {
			continue
		}
		parts := strings.SplitN(env, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.ToLower(strings.TrimPrefix(parts[0], envPrefix))
		if key == "" {
			continue
		}
		values[key] = inferValue(strings.TrimSpace(parts[1]))
	}

	if len(values) == 0 {
		return nil
	}
	return values
}

// MergeSources merges sources in order; later sources override earlier ones.
// A non-object source is returned as-is only when nothing was merged before it.
func MergeSources(sources ...any) any {
	result := make(map[string]any)

	for _, src := range sources {
		if src == nil {
			continue
		}

		switch v := src.(type) {
		case map[string]any:
			maps.Copy(result, v)
		default:
			if len(result) == 0 {
				return v
			}
		}
	}

	if len(result) == 0 {
		return nil
	}
	return result
}

// Sources names the non-environment inputs of Build.
type Sources struct {
	JSON string
	KV   []string
	File string
}

// Build layers env (lowest) < file < JSON string < key=value pairs (highest).
func Build(envPrefix string, src Sources) (any, error) {
	var layers []any

	if envValues := ParseEnvWithPrefix(envPrefix); envValues != nil {
		layers = append(layers, envValues)
	}

	if src.File != "" {
		fileValues, err := ParseFile(src.File)
		if err != nil {
			return nil, err
		}
		layers = append(layers, fileValues)
	}

	if src.JSON != "" {
		jsonValues, err := ParseJSON(src.JSON)
		if err != nil {
			return nil, err
		}
		layers = append(layers, jsonValues)
	}

	if len(src.KV) > 0 {
		kvValues := make(map[string]any)
		for _, kv := range src.KV {
			key, value, err := ParseKV(kv)
			if err != nil {
				return nil, err
			}
			kvValues[key] = value
		}
		layers = append(layers, kvValues)
	}

	return MergeSources(layers...), nil
}

// BuildMap is Build for callers that require an object.
func BuildMap(envPrefix string, src Sources) (map[string]any, error) {
	result, err := Build(envPrefix, src)
	if err != nil {
		return nil, err
	}
	if result == nil {
		return make(map[string]any), nil
	}
	m, ok := result.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%s values must be an object/map", strings.ToLower(envPrefix))
	}
	return m, nil
}
