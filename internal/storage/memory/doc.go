// Package memory provides the in-memory key-value store for nox.
//
// The store pairs a hash map of entries with an ordered expiration
// index so the next-expiring key is found in logarithmic time. A single
// background reaper goroutine sleeps until the earliest pending
// deadline, woken early whenever a write moves that deadline forward,
// and purges expired entries in batches. Reads treat an expired entry
// as absent immediately; physical removal is the reaper's job.
//
// All operations take one mutex for the duration of a single call and
// never hold it across a blocking point.
package memory
