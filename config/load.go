package config

import (
	"fmt"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// maxIncludeDepth bounds include-by-glob recursion (spec.md §6.3 "bounded
// recursion").
const maxIncludeDepth = 16

// Load reads path, resolves its include[] globs recursively, and validates
// the merged result. A ConfigError-class failure here is meant to exit the
// process with nonzero status (spec.md §7).
func Load(path string) (*Config, error) {
	cfg, err := loadFile(path, make(map[string]bool), 0)
	if err != nil {
		return nil, err
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadFile(path string, seen map[string]bool, depth int) (*Config, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("config: resolve path %q: %w", path, err)
	}
	if seen[abs] {
		// Duplicate inclusion is a no-op (spec.md §6.3).
		return &Config{}, nil
	}
	if depth > maxIncludeDepth {
		return nil, fmt.Errorf("config: include depth exceeds %d at %q", maxIncludeDepth, path)
	}
	seen[abs] = true

	var cfg Config
	meta, err := toml.DecodeFile(abs, &cfg)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", abs, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("config: %q: unknown field %q", abs, undecoded[0].String())
	}

	merged := cfg
	merged.Includes = nil
	for _, inc := range cfg.Includes {
		for _, glob := range inc.Globs {
			matches, err := filepath.Glob(glob)
			if err != nil {
				return nil, fmt.Errorf("config: invalid glob %q: %w", glob, err)
			}
			for _, m := range matches {
				sub, err := loadFile(m, seen, depth+1)
				if err != nil {
					return nil, err
				}
				merged.Endpoints = append(merged.Endpoints, sub.Endpoints...)
				merged.Accounts = append(merged.Accounts, sub.Accounts...)
				merged.Certificates = append(merged.Certificates, sub.Certificates...)
				merged.Hooks = append(merged.Hooks, sub.Hooks...)
				merged.Groups = append(merged.Groups, sub.Groups...)
			}
		}
	}
	return &merged, nil
}
