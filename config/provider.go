package config

import "sync/atomic"

// Provider holds the current Config behind an atomic.Value, so readers
// never block on a config reload (spec.md §5 "configuration is immutable
// after load"), grounded on the teacher's config.Provider.
type Provider struct {
	v atomic.Value
}

// NewProvider builds a Provider seeded with an initial, already-validated
// Config.
func NewProvider(cfg *Config) *Provider {
	p := &Provider{}
	p.v.Store(cfg)
	return p
}

// Get returns the current Config. The returned pointer must be treated as
// immutable by the caller.
func (p *Provider) Get() *Config {
	return p.v.Load().(*Config)
}

// Set atomically swaps in a new Config, used on a SIGHUP reload once the
// new configuration has been loaded and validated.
func (p *Provider) Set(cfg *Config) {
	p.v.Store(cfg)
}
