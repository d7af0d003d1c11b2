package governance

import "fmt"

// Event category names with configurable caps.
const (
	CategoryGood    = "good"
	CategoryBad     = "bad"
	CategoryNeutral = "neutral"
	CategoryDoom    = "doom"
)

// CooldownPolicy is the global cooldown configuration. A cap of 0 means no
// limit for that category; a window of 0 means entries never expire.
type CooldownPolicy struct {
	EventCooldownsEnabled bool `yaml:"event_cooldowns_enabled" json:"eventCooldownsEnabled"`
	CooldownWindowDays    int  `yaml:"cooldown_window_days" json:"cooldownWindowDays"`
	MaxGoodEvents         int  `yaml:"max_good_events" json:"maxGoodEvents"`
	MaxBadEvents          int  `yaml:"max_bad_events" json:"maxBadEvents"`
	MaxNeutralEvents      int  `yaml:"max_neutral_events" json:"maxNeutralEvents"`
}

// DefaultCooldownPolicy returns the policy used when nothing is configured.
func DefaultCooldownPolicy() CooldownPolicy {
	return CooldownPolicy{
		EventCooldownsEnabled: true,
		CooldownWindowDays:    15,
		MaxGoodEvents:         10,
		MaxBadEvents:          3,
		MaxNeutralEvents:      10,
	}
}

// Validate rejects negative windows and caps. A negative window would prune
// every entry, including today's.
func (p CooldownPolicy) Validate() error {
	fields := []struct {
		name string
		v    int
	}{
		{"cooldown_window_days", p.CooldownWindowDays},
		{"max_good_events", p.MaxGoodEvents},
		{"max_bad_events", p.MaxBadEvents},
		{"max_neutral_events", p.MaxNeutralEvents},
	}
	for _, f := range fields {
		if f.v < 0 {
			return fmt.Errorf("%s must be non-negative, got %d", f.name, f.v)
		}
	}
	return nil
}

// configuredCap returns the policy cap for the three configurable categories.
func (p CooldownPolicy) configuredCap(category string) (int, bool) {
	switch category {
	case CategoryGood:
		return p.MaxGoodEvents, true
	case CategoryBad:
		return p.MaxBadEvents, true
	case CategoryNeutral:
		return p.MaxNeutralEvents, true
	}
	return 0, false
}

// CommandPolicy holds the per-command cooldown settings.
//
// RecordsCategoryUse makes a granted use also count against the command's
// mapped event category. It is off by default: a command use is recorded only
// in the command namespace unless the command opts in.
type CommandPolicy struct {
	UseEventCooldown            bool `yaml:"use_event_cooldown" json:"useEventCooldown"`
	MaxUsesPerCooldownPeriod    int  `yaml:"max_uses_per_cooldown_period" json:"maxUsesPerCooldownPeriod"`
	RespectsGlobalEventCooldown bool `yaml:"respects_global_event_cooldown" json:"respectsGlobalEventCooldown"`
	RecordsCategoryUse          bool `yaml:"records_category_use" json:"recordsCategoryUse"`
}

// Validate rejects a negative per-command cap.
func (c CommandPolicy) Validate() error {
	if c.MaxUsesPerCooldownPeriod < 0 {
		return fmt.Errorf("max_uses_per_cooldown_period must be non-negative, got %d", c.MaxUsesPerCooldownPeriod)
	}
	return nil
}
