package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/dgallion1/docrank/internal/query"
)

// RunConfig is the request for one ranking run. It is read from a JSON
// or YAML file, or built from an API request.
type RunConfig struct {
	Persona     query.Persona
	JobToBeDone string
	TopK        int
	Documents   []string // optional filename filter
}

type rawRunConfig struct {
	Persona     yaml.Node   `yaml:"persona"`
	JobToBeDone yaml.Node   `yaml:"job_to_be_done"`
	TopK        int         `yaml:"top_k"`
	Documents   []yaml.Node `yaml:"documents"`
}

// UnmarshalYAML accepts persona as a string or {role, expertise, focus},
// job_to_be_done as a string or {task}, and documents as strings or
// {filename}.
func (rc *RunConfig) UnmarshalYAML(value *yaml.Node) error {
	var raw rawRunConfig
	if err := value.Decode(&raw); err != nil {
		return err
	}

	out := RunConfig{TopK: raw.TopK}
	if err := decodePersona(&raw.Persona, &out.Persona); err != nil {
		return fmt.Errorf("persona: %w", err)
	}
	job, err := decodeStringOr(&raw.JobToBeDone, "task")
	if err != nil {
		return fmt.Errorf("job_to_be_done: %w", err)
	}
	out.JobToBeDone = job
	for i := range raw.Documents {
		name, err := decodeStringOr(&raw.Documents[i], "filename")
		if err != nil {
			return fmt.Errorf("documents[%d]: %w", i, err)
		}
		if name != "" {
			out.Documents = append(out.Documents, name)
		}
	}

	*rc = out
	return nil
}

func decodePersona(n *yaml.Node, p *query.Persona) error {
	switch n.Kind {
	case 0:
		return nil
	case yaml.ScalarNode:
		if n.ShortTag() != "!!null" {
			p.Role = n.Value
		}
		return nil
	case yaml.MappingNode:
		return n.Decode(p)
	default:
		return fmt.Errorf("expected string or mapping at line %d", n.Line)
	}
}

func decodeStringOr(n *yaml.Node, key string) (string, error) {
	switch n.Kind {
	case 0:
		return "", nil
	case yaml.ScalarNode:
		if n.ShortTag() == "!!null" {
			return "", nil
		}
		return n.Value, nil
	case yaml.MappingNode:
		m := map[string]string{}
		if err := n.Decode(&m); err != nil {
			return "", err
		}
		return m[key], nil
	default:
		return "", fmt.Errorf("expected string or mapping at line %d", n.Line)
	}
}

// ParseRunConfig decodes a run config from JSON or YAML.
func ParseRunConfig(data []byte) (RunConfig, error) {
	var rc RunConfig
	if err := yaml.Unmarshal(data, &rc); err != nil {
		return RunConfig{}, fmt.Errorf("%w: parse run config: %v", ErrInvalidConfig, err)
	}
	return rc, nil
}

// LoadRunConfig reads and decodes a run config file.
func LoadRunConfig(path string) (RunConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return RunConfig{}, fmt.Errorf("read run config: %w", err)
	}
	return ParseRunConfig(data)
}

// WithDefaults fills an unset TopK.
func (rc RunConfig) WithDefaults(defaultTopK int) RunConfig {
	if rc.TopK == 0 {
		rc.TopK = defaultTopK
	}
	return rc
}

// Validate rejects runs that cannot produce a meaningful query or result.
func (rc RunConfig) Validate() error {
	if rc.Persona.IsZero() {
		return fmt.Errorf("%w: persona is required", ErrInvalidConfig)
	}
	if strings.TrimSpace(rc.JobToBeDone) == "" {
		return fmt.Errorf("%w: job_to_be_done is required", ErrInvalidConfig)
	}
	if rc.TopK <= 0 {
		return fmt.Errorf("%w: top_k must be positive, got %d", ErrInvalidConfig, rc.TopK)
	}
	return nil
}
