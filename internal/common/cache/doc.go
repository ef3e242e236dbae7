// Package cache provides key-value cache backends for process-lifetime lookups.
//
// Backends:
//   - Local: in-memory using patrickmn/go-cache
//   - Redis: shared across replicas using go-redis
//
// Entries written through this package are expected to be immutable: callers
// use SetNX so the first value stored for a key wins, and a ttl of zero means
// the entry never expires.
package cache
