package bundle

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultEnvName is the conda environment run_autograder activates.
const DefaultEnvName = "otter-env"

// EnvironmentSpec is environment.yml. Conda dependencies are plain strings;
// the pip packages sit in a nested {pip: [...]} item of the same list.
type EnvironmentSpec struct {
	Name         string
	Channels     []string
	Dependencies []string
	Pip          []string
}

type environmentFile struct {
	Name         string      `yaml:"name"`
	Channels     []string    `yaml:"channels,omitempty"`
	Dependencies []yaml.Node `yaml:"dependencies,omitempty"`
}

// DefaultEnvironment is the environment `otterbox init` writes.
func DefaultEnvironment() *EnvironmentSpec {
	return &EnvironmentSpec{
		Name:         DefaultEnvName,
		Channels:     []string{"defaults", "conda-forge"},
		Dependencies: []string{"python=3.9", "pip", "nb_conda_kernels"},
		Pip:          []string{"-r " + Requirements},
	}
}

// ParseEnvironment decodes environment.yml.
func ParseEnvironment(data []byte) (*EnvironmentSpec, error) {
	var raw environmentFile
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", Environment, err)
	}

	spec := &EnvironmentSpec{Name: raw.Name, Channels: raw.Channels}
	for i := range raw.Dependencies {
		node := &raw.Dependencies[i]
		switch node.Kind {
		case yaml.ScalarNode:
			spec.Dependencies = append(spec.Dependencies, node.Value)
		case yaml.MappingNode:
			var nested map[string][]string
			if err := node.Decode(&nested); err != nil {
				return nil, fmt.Errorf("invalid %s: line %d: %w", Environment, node.Line, err)
			}
			for key, pkgs := range nested {
				if key != "pip" {
					return nil, fmt.Errorf("invalid %s: line %d: unexpected nested section %q", Environment, node.Line, key)
				}
				spec.Pip = append(spec.Pip, pkgs...)
			}
		default:
			return nil, fmt.Errorf("invalid %s: line %d: unexpected dependency entry", Environment, node.Line)
		}
	}
	return spec, nil
}

// Marshal renders the environment in the layout conda writes.
func (s *EnvironmentSpec) Marshal() ([]byte, error) {
	raw := environmentFile{Name: s.Name, Channels: s.Channels}
	for _, d := range s.Dependencies {
		raw.Dependencies = append(raw.Dependencies, yaml.Node{Kind: yaml.ScalarNode, Value: d})
	}
	if len(s.Pip) > 0 {
		var pip yaml.Node
		if err := pip.Encode(map[string][]string{"pip": s.Pip}); err != nil {
			return nil, err
		}
		raw.Dependencies = append(raw.Dependencies, pip)
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&raw); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ReferencesRequirements reports whether the pip section installs from
// requirements.txt.
func (s *EnvironmentSpec) ReferencesRequirements() bool {
	for _, p := range s.Pip {
		fields := strings.Fields(p)
		if len(fields) == 2 && (fields[0] == "-r" || fields[0] == "--requirement") && fields[1] == Requirements {
			return true
		}
	}
	return false
}

// Validate checks the environment against the bundle it ships in.
func (s *EnvironmentSpec) Validate(hasRequirements bool) error {
	var errs []error
	if s.Name == "" {
		errs = append(errs, errors.New("environment name is empty"))
	}
	if hasRequirements && !s.ReferencesRequirements() {
		errs = append(errs, fmt.Errorf("pip section does not install %s", Requirements))
	}
	return errors.Join(errs...)
}
