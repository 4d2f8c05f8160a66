// Package ristretto adapts dgraph-io/ristretto/v2 to the acmed cache.Cache
// interface, backing the per-endpoint directory cache (SPEC_FULL.md domain
// stack). JWK thumbprints are not cached; crypto.Thumbprint computes one on
// every call.
package ristretto

import (
	"time"

	"github.com/dgraph-io/ristretto/v2"

	"github.com/acmed/acmed/cache"
)

// Store wraps a *ristretto.Cache to satisfy cache.Cache[K, V].
type Store[K comparable, V any] struct {
	rc *ristretto.Cache[K, V]
}

// Config mirrors the handful of ristretto.Config fields acmed's small,
// short-lived caches need.
type Config struct {
	NumCounters int64
	MaxCost     int64
	BufferItems int64
}

// DefaultConfig is sized for a process holding at most a few dozen
// endpoint directories or key thumbprints, not ristretto's usual
// web-cache-scale defaults.
func DefaultConfig() Config {
	return Config{NumCounters: 1e4, MaxCost: 1 << 20, BufferItems: 64}
}

// New builds a Store.
func New[K comparable, V any](cfg Config) (*Store[K, V], error) {
	rc, err := ristretto.NewCache(&ristretto.Config[K, V]{
		NumCounters: cfg.NumCounters,
		MaxCost:     cfg.MaxCost,
		BufferItems: cfg.BufferItems,
	})
	if err != nil {
		return nil, err
	}
	return &Store[K, V]{rc: rc}, nil
}

func (s *Store[K, V]) Get(key K) (V, bool) {
	return s.rc.Get(key)
}

func (s *Store[K, V]) Set(key K, value V, cost int64) bool {
	return s.rc.Set(key, value, cost)
}

func (s *Store[K, V]) SetWithTTL(key K, value V, cost int64, ttl time.Duration) bool {
	return s.rc.SetWithTTL(key, value, cost, ttl)
}

var _ cache.Cache[string, string] = (*Store[string, string])(nil)
