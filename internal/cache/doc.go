// Package cache provides time-bounded memoization caches for expensive
// remote lookups. Entries expire after a fixed TTL, the cache is bounded in
// size and evicts the entries closest to expiry first, and a janitor sweeps
// expired entries on a fixed cadence.
package cache
