// Package z carries the small cache shims shared by the resolver and the
// cache dump tooling.
package z

import "time"

// Cache is the subset of github.com/outcaste-io/ristretto#Cache the resolver
// needs. Narrowing the surface keeps the cache swappable in tests.
type Cache interface {
	// Get returns the value (if any) and a boolean representing whether the
	// value was found or not. The value can be nil and the boolean can be
	// true at the same time.
	Get(k any) (v any, found bool)
	// SetWithTTL works like Set but adds a key-value pair to the cache that
	// will expire after the specified TTL (time to live) has passed. A zero
	// value means the value never expires.
	SetWithTTL(k, v any, cost int64, ttl time.Duration) bool
}
