package config

import (
	"fmt"

	"github.com/acmed/acmed/hook"
)

// Validate checks the boundary cases spec.md §6.3/§7/§8 call out as
// ConfigError: unknown fields (checked by the loader via toml.MetaData),
// wildcard+non-dns01 rejection, IP+dns-01 rejection, and hook-group
// cycles/unknown references.
func Validate(cfg *Config) error {
	names := make(map[string]bool, len(cfg.Certificates))
	for _, cert := range cfg.Certificates {
		key := cert.Name + ":" + cert.KeyType
		if names[key] {
			return fmt.Errorf("config: duplicate certificate (name, key_type) pair %q", key)
		}
		names[key] = true

		if len(cert.Identifiers) == 0 {
			return fmt.Errorf("config: certificate %q: identifiers must be non-empty", cert.Name)
		}
		for _, id := range cert.Identifiers {
			if err := validateIdentifier(cert.Name, id); err != nil {
				return err
			}
		}
	}

	if err := validateHooks(cfg); err != nil {
		return err
	}
	return nil
}

func validateIdentifier(certName string, id Identifier) error {
	isWildcard := len(id.Value) > 0 && id.Value[0] == '*'
	if isWildcard && id.Challenge != "dns-01" {
		return fmt.Errorf("config: certificate %q: wildcard identifier %q requires dns-01, got %q", certName, id.Value, id.Challenge)
	}
	if id.Type == "ip" && id.Challenge == "dns-01" {
		return fmt.Errorf("config: certificate %q: ip identifier %q cannot use dns-01", certName, id.Value)
	}
	return nil
}

// BuildHookRegistry converts the configured hooks/groups into a
// hook.Registry, the form cmd/acmed wires into the scheduler and storage
// layers. It rejects cyclic group references and unknown names.
func BuildHookRegistry(cfg *Config) (*hook.Registry, error) {
	hooks := make([]hook.Hook, 0, len(cfg.Hooks))
	for _, h := range cfg.Hooks {
		types := make([]hook.TriggerType, len(h.Type))
		for i, t := range h.Type {
			types[i] = hook.TriggerType(t)
		}
		hooks = append(hooks, hook.Hook{
			Name:         h.Name,
			Types:        types,
			Cmd:          h.Cmd,
			Args:         h.Args,
			Stdin:        h.Stdin,
			StdinStr:     h.StdinStr,
			Stdout:       h.Stdout,
			AllowFailure: h.AllowFailure,
		})
	}
	groups := make([]hook.Group, 0, len(cfg.Groups))
	for _, g := range cfg.Groups {
		groups = append(groups, hook.Group{Name: g.Name, Members: g.Hooks})
	}
	return hook.NewRegistry(hooks, groups)
}

// validateHooks builds a hook.Registry from the configured hooks/groups,
// which rejects cyclic group references and unknown names at load time
// (spec.md §4.6/§8).
func validateHooks(cfg *Config) error {
	if _, err := BuildHookRegistry(cfg); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	referenced := make(map[string]bool)
	for _, acct := range cfg.Accounts {
		for _, name := range acct.Hooks {
			referenced[name] = true
		}
	}
	for _, cert := range cfg.Certificates {
		for _, name := range cert.Hooks {
			referenced[name] = true
		}
	}
	known := make(map[string]bool, len(cfg.Hooks)+len(cfg.Groups))
	for _, h := range cfg.Hooks {
		known[h.Name] = true
	}
	for _, g := range cfg.Groups {
		known[g.Name] = true
	}
	for name := range referenced {
		if !known[name] {
			return fmt.Errorf("config: unknown hook or group %q referenced", name)
		}
	}
	return nil
}
