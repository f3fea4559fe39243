// Package cmap provides a concurrent string-keyed map for nox.
//
// This package implements a sharded concurrent map with per-shard
// RWMutex locking, so independent keys rarely contend. Shard selection
// hashes the key with murmur3.
//
// Usage:
//
//	m := cmap.New[*rate.Limiter]()
//	m.Set("10.0.0.1", limiter)
//	val, ok := m.Get("10.0.0.1")
//
// All operations are thread-safe. Read operations (Get, Has) use RLock,
// write operations (Set, Delete) use Lock.
package cmap
