package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/onnwee/chatgov/governance"
)

// GovernanceFile is the YAML layout of GOVERNANCE_FILE:
//
//	policy:
//	  event_cooldowns_enabled: true
//	  cooldown_window_days: 15
//	  max_bad_events: 3
//	commands:
//	  raid: {use_event_cooldown: true, max_uses_per_cooldown_period: 2}
//	tables:
//	  command_categories: {raid: bad}
//
// Sections that are absent keep their defaults, and so do fields missing from
// the policy section. Negative windows and caps are rejected.
type GovernanceFile struct {
	Policy   *governance.CooldownPolicy          `yaml:"policy"`
	Commands map[string]governance.CommandPolicy `yaml:"commands"`
	Tables   *governance.Tables                  `yaml:"tables"`
}

// LoadGovernanceFile reads and parses a governance YAML file.
func LoadGovernanceFile(path string) (*GovernanceFile, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to read governance file %s: %w", path, err)
	}
	var raw struct {
		Policy   yaml.Node                           `yaml:"policy"`
		Commands map[string]governance.CommandPolicy `yaml:"commands"`
		Tables   *governance.Tables                  `yaml:"tables"`
	}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse governance file %s: %w", path, err)
	}
	gf := GovernanceFile{Commands: raw.Commands, Tables: raw.Tables}
	if !raw.Policy.IsZero() {
		p := governance.DefaultCooldownPolicy()
		if err := raw.Policy.Decode(&p); err != nil {
			return nil, fmt.Errorf("failed to parse governance file %s: policy: %w", path, err)
		}
		gf.Policy = &p
	}
	if err := gf.validate(); err != nil {
		return nil, fmt.Errorf("invalid governance file %s: %w", path, err)
	}
	return &gf, nil
}

func (gf *GovernanceFile) validate() error {
	if gf.Policy != nil {
		if err := gf.Policy.Validate(); err != nil {
			return fmt.Errorf("policy: %w", err)
		}
	}
	for name, cp := range gf.Commands {
		if err := cp.Validate(); err != nil {
			return fmt.Errorf("commands.%s: %w", name, err)
		}
	}
	if gf.Tables != nil {
		if err := gf.Tables.Validate(); err != nil {
			return fmt.Errorf("tables: %w", err)
		}
	}
	return nil
}

func (gf *GovernanceFile) apply(cfg *Config) {
	if gf.Policy != nil {
		cfg.Policy = *gf.Policy
	}
	if len(gf.Commands) > 0 {
		cfg.Commands = make(map[string]governance.CommandPolicy, len(gf.Commands))
		for k, v := range gf.Commands {
			cfg.Commands[strings.ToLower(k)] = v
		}
	}
	if gf.Tables != nil {
		cfg.Tables = gf.Tables.Normalize()
	}
}
