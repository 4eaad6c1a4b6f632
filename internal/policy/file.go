package policy

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/MrSnakeDoc/sweep/internal/domain"
)

// fileSchema is the on-disk policy. Absent keys keep the base value.
type fileSchema struct {
	Labels             *[]string `yaml:"labels" toml:"labels"`
	ExcludedTrackers   *[]string `yaml:"excluded_trackers" toml:"excluded_trackers"`
	MaxRatio           *float64  `yaml:"max_ratio" toml:"max_ratio"`
	DeadRetentionHours *float64  `yaml:"dead_retention_hours" toml:"dead_retention_hours"`
	MaxAgeHours        *float64  `yaml:"max_age_hours" toml:"max_age_hours"`
	DryRun             *bool     `yaml:"dry_run" toml:"dry_run"`
}

// LoadFile reads a YAML or TOML policy file and layers it over base.
// The result is normalized and validated.
func LoadFile(path string, base domain.Policy) (domain.Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.Policy{}, fmt.Errorf("failed to read policy file: %w", err)
	}

	var schema fileSchema
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &schema); err != nil {
			return domain.Policy{}, fmt.Errorf("failed to parse policy yaml: %w", err)
		}
	case ".toml":
		if _, err := toml.Decode(string(data), &schema); err != nil {
			return domain.Policy{}, fmt.Errorf("failed to parse policy toml: %w", err)
		}
	default:
		return domain.Policy{}, fmt.Errorf("unsupported policy file extension %q (want .yaml, .yml or .toml)", ext)
	}

	p := schema.merge(base).Normalized()
	if err := p.Validate(); err != nil {
		return domain.Policy{}, fmt.Errorf("invalid policy file %s: %w", path, err)
	}
	return p, nil
}

func (s fileSchema) merge(base domain.Policy) domain.Policy {
	p := base
	if s.Labels != nil {
		p.Labels = *s.Labels
	}
	if s.ExcludedTrackers != nil {
		p.ExcludedTrackers = *s.ExcludedTrackers
	}
	if s.MaxRatio != nil {
		p.MaxRatio = *s.MaxRatio
	}
	if s.DeadRetentionHours != nil {
		p.DeadRetentionHours = *s.DeadRetentionHours
	}
	if s.MaxAgeHours != nil {
		p.MaxAgeHours = *s.MaxAgeHours
	}
	if s.DryRun != nil {
		p.DryRun = *s.DryRun
	}
	return p
}
