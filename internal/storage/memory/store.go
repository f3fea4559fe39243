// Package memory provides the in-memory key-value store for nox.
package memory

import (
	"errors"
	"sync"
	"time"

	"github.com/noxkv/nox-go/internal/telemetry/logger"
	"github.com/noxkv/nox-go/internal/telemetry/metric"
)

// ErrIndexMismatch reports an expiration index entry with no matching
// map entry. The two structures are mutated together under one lock, so
// a mismatch indicates a lock-discipline bug; the reaper logs it and
// abandons itself rather than repairing silently.
var ErrIndexMismatch = errors.New("storage: expiration index out of sync with entries")

// entry is a stored value. Entries never escape the store; Get hands
// out a copy of the data.
type entry struct {
	id        uint64
	data      []byte
	expiresAt time.Time // zero when the entry does not expire
}

func (e *entry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !e.expiresAt.After(now)
}

// Store is the shared key-value map with background expiration.
type Store struct {
	mu       sync.Mutex
	entries  map[string]*entry
	index    *expiryIndex
	nextID   uint64
	shutdown bool

	wake chan struct{}
	done chan struct{}

	log     logger.Logger
	metrics *metric.Registry
}

// Option configures the Store.
type Option func(*Store)

// WithLogger sets the store logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Store) { s.log = l }
}

// WithMetrics attaches a metrics registry; the store reports expired
// key counts through it.
func WithMetrics(m *metric.Registry) Option {
	return func(s *Store) { s.metrics = m }
}

// New creates a store and starts its reaper goroutine. Callers must
// Close the store to stop the reaper.
func New(opts ...Option) *Store {
	s := &Store{
		entries: make(map[string]*entry),
		index:   newExpiryIndex(),
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
		log:     logger.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	go s.reap()
	return s
}

// Get returns a copy of the value, or false when the key is absent or
// its deadline has passed. An expired entry is treated as absent
// without being removed here; removal is deferred to the reaper so the
// read path stays short.
func (s *Store) Get(key string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok || e.expired(time.Now()) {
		return nil, false
	}
	out := make([]byte, len(e.data))
	copy(out, e.data)
	return out, true
}

// Set inserts or overwrites a non-expiring entry.
func (s *Store) Set(key string, value []byte) {
	s.set(key, value, time.Time{})
}

// SetTTL inserts or overwrites an entry that expires after ttl.
// A zero or negative ttl expires the entry immediately.
func (s *Store) SetTTL(key string, value []byte, ttl time.Duration) {
	s.set(key, value, time.Now().Add(ttl))
}

func (s *Store) set(key string, value []byte, expiresAt time.Time) {
	data := make([]byte, len(value))
	copy(data, value)

	s.mu.Lock()

	id := s.nextID
	s.nextID++

	notify := false
	if !expiresAt.IsZero() {
		// Wake the reaper only when this deadline becomes the earliest
		// pending one; otherwise its current sleep still ends in time.
		if min, ok := s.index.min(); !ok || expiresAt.Before(min.when) {
			notify = true
		}
		s.index.add(expiresAt, id, key)
	}

	if prev, ok := s.entries[key]; ok && !prev.expiresAt.IsZero() {
		s.index.remove(prev.expiresAt, prev.id)
	}
	s.entries[key] = &entry{id: id, data: data, expiresAt: expiresAt}

	s.mu.Unlock()

	if notify {
		s.notify()
	}
}

// Del removes keys and returns how many existed. Entries already past
// their deadline count as absent.
func (s *Store) Del(keys ...string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	removed := 0
	for _, key := range keys {
		e, ok := s.entries[key]
		if !ok {
			continue
		}
		if !e.expiresAt.IsZero() {
			s.index.remove(e.expiresAt, e.id)
		}
		delete(s.entries, key)
		if !e.expired(now) {
			removed++
		}
	}
	return removed
}

// Len returns the number of entries currently held, including entries
// that have expired but not yet been reaped.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Close stops the reaper and waits for it to exit. It is safe to call
// more than once.
func (s *Store) Close() {
	s.mu.Lock()
	if s.shutdown {
		s.mu.Unlock()
		<-s.done
		return
	}
	s.shutdown = true
	s.mu.Unlock()

	s.notify()
	<-s.done
}

func (s *Store) notify() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// reap is the background expiration loop: purge everything due, then
// sleep until the next deadline or until a write moves that deadline
// earlier. With no pending deadline it sleeps until woken.
func (s *Store) reap() {
	defer close(s.done)

	for {
		s.mu.Lock()
		if s.shutdown {
			s.mu.Unlock()
			return
		}
		next, pending, err := s.purgeExpired(time.Now())
		s.mu.Unlock()

		if err != nil {
			s.log.Error("reaper abandoned", "error", err)
			return
		}

		if pending {
			timer := time.NewTimer(time.Until(next))
			select {
			case <-timer.C:
			case <-s.wake:
				timer.Stop()
			}
		} else {
			<-s.wake
		}
	}
}

// purgeExpired removes every entry whose deadline is at or before now
// and returns the next pending deadline, if any. Caller holds the lock.
func (s *Store) purgeExpired(now time.Time) (time.Time, bool, error) {
	purged := 0
	for {
		item, ok := s.index.min()
		if !ok {
			s.countExpired(purged)
			return time.Time{}, false, nil
		}
		if item.when.After(now) {
			s.countExpired(purged)
			return item.when, true, nil
		}

		e, ok := s.entries[item.key]
		if !ok || e.id != item.id {
			return time.Time{}, false, ErrIndexMismatch
		}
		delete(s.entries, item.key)
		s.index.remove(item.when, item.id)
		purged++
	}
}

func (s *Store) countExpired(n int) {
	if n > 0 && s.metrics != nil {
		s.metrics.KeysExpired.Add(float64(n))
	}
}
