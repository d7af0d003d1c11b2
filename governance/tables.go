package governance

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"
)

// Tables holds the mapping data the engine consults: which event category a
// command counts against, and the caps that are not taken from the policy.
type Tables struct {
	// CommandCategories maps a command name to its event category.
	CommandCategories map[string]string `yaml:"command_categories"`
	// DefaultCategory applies to commands missing from CommandCategories.
	DefaultCategory string `yaml:"default_category"`
	// FixedCaps pins a category's cap regardless of policy.
	FixedCaps map[string]int `yaml:"fixed_caps"`
	// DefaultCap applies to categories that are neither fixed nor configurable.
	DefaultCap int `yaml:"default_cap"`
}

// DefaultTables returns the built-in tables.
func DefaultTables() Tables {
	return Tables{
		CommandCategories: map[string]string{
			"raid":        CategoryBad,
			"militaryaid": CategoryGood,
			"weather":     CategoryNeutral,
		},
		DefaultCategory: CategoryNeutral,
		FixedCaps:       map[string]int{CategoryDoom: 1},
		DefaultCap:      10,
	}
}

// LoadTables decodes YAML tables from r and fills anything missing from
// DefaultTables. Keys are lower-cased.
func LoadTables(r io.Reader) (Tables, error) {
	t := Tables{DefaultCap: DefaultTables().DefaultCap}
	if err := yaml.NewDecoder(r).Decode(&t); err != nil && !errors.Is(err, io.EOF) {
		return Tables{}, fmt.Errorf("decode governance tables: %w", err)
	}
	if err := t.Validate(); err != nil {
		return Tables{}, err
	}
	return t.Normalize(), nil
}

// UnmarshalYAML keeps DefaultTables' default_cap when the key is absent, so an
// explicit default_cap: 0 still means no limit.
func (t *Tables) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		CommandCategories map[string]string `yaml:"command_categories"`
		DefaultCategory   string            `yaml:"default_category"`
		FixedCaps         map[string]int    `yaml:"fixed_caps"`
		DefaultCap        *int              `yaml:"default_cap"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}
	t.CommandCategories = raw.CommandCategories
	t.DefaultCategory = raw.DefaultCategory
	t.FixedCaps = raw.FixedCaps
	t.DefaultCap = DefaultTables().DefaultCap
	if raw.DefaultCap != nil {
		t.DefaultCap = *raw.DefaultCap
	}
	return nil
}

// Validate rejects negative caps.
func (t Tables) Validate() error {
	if t.DefaultCap < 0 {
		return fmt.Errorf("default_cap must be non-negative, got %d", t.DefaultCap)
	}
	for k, v := range t.FixedCaps {
		if v < 0 {
			return fmt.Errorf("fixed_caps.%s must be non-negative, got %d", k, v)
		}
	}
	return nil
}

// Normalize lower-cases keys. A nil map takes the DefaultTables entries; an
// explicit empty map stays empty. A DefaultCap of 0 means no limit.
func (t Tables) Normalize() Tables {
	def := DefaultTables()
	out := Tables{
		CommandCategories: make(map[string]string, len(t.CommandCategories)),
		DefaultCategory:   strings.ToLower(strings.TrimSpace(t.DefaultCategory)),
		FixedCaps:         make(map[string]int, len(t.FixedCaps)),
		DefaultCap:        t.DefaultCap,
	}
	cats := t.CommandCategories
	if cats == nil {
		cats = def.CommandCategories
	}
	for k, v := range cats {
		out.CommandCategories[strings.ToLower(k)] = strings.ToLower(v)
	}
	caps := t.FixedCaps
	if caps == nil {
		caps = def.FixedCaps
	}
	for k, v := range caps {
		out.FixedCaps[strings.ToLower(k)] = v
	}
	if out.DefaultCategory == "" {
		out.DefaultCategory = def.DefaultCategory
	}
	if out.DefaultCap < 0 {
		out.DefaultCap = def.DefaultCap
	}
	return out
}

// CategoryFor maps a command name to its event category.
func (t Tables) CategoryFor(command string) string {
	if c, ok := t.CommandCategories[strings.ToLower(command)]; ok {
		return c
	}
	return t.DefaultCategory
}

// CapFor resolves a category's cap: fixed table first, then the policy's
// configurable categories, then DefaultCap.
func (t Tables) CapFor(category string, p CooldownPolicy) int {
	if c, ok := t.FixedCaps[category]; ok {
		return c
	}
	if c, ok := p.configuredCap(category); ok {
		return c
	}
	return t.DefaultCap
}
