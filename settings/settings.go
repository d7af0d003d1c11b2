// Package settings holds the live governance policies. Admins replace them at
// runtime; readers always see a consistent copy.
package settings

import (
	"strings"
	"sync"

	"github.com/onnwee/chatgov/governance"
)

// Policies is the full set of limits in force.
type Policies struct {
	Global   governance.CooldownPolicy            `json:"global"`
	Commands map[string]governance.CommandPolicy `json:"commands"`
}

// Store guards the current Policies.
type Store struct {
	mu       sync.RWMutex
	global   governance.CooldownPolicy
	commands map[string]governance.CommandPolicy
}

func New(global governance.CooldownPolicy, commands map[string]governance.CommandPolicy) *Store {
	s := &Store{}
	s.Set(Policies{Global: global, Commands: commands})
	return s
}

// Global returns the global cooldown policy.
func (s *Store) Global() governance.CooldownPolicy {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.global
}

// Command returns the settings of a registered command.
func (s *Store) Command(name string) (governance.CommandPolicy, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cp, ok := s.commands[strings.ToLower(strings.TrimSpace(name))]
	return cp, ok
}

// Snapshot returns a copy of every policy.
func (s *Store) Snapshot() Policies {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p := Policies{Global: s.global, Commands: make(map[string]governance.CommandPolicy, len(s.commands))}
	for k, v := range s.commands {
		p.Commands[k] = v
	}
	return p
}

// Set replaces every policy at once. Command names are lower-cased.
func (s *Store) Set(p Policies) {
	cmds := make(map[string]governance.CommandPolicy, len(p.Commands))
	for k, v := range p.Commands {
		cmds[strings.ToLower(strings.TrimSpace(k))] = v
	}
	s.mu.Lock()
	s.global = p.Global
	s.commands = cmds
	s.mu.Unlock()
}
