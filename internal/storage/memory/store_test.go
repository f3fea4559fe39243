package memory

import (
	"bytes"
	"fmt"
	"sync"
	"testing"
	"time"
)

// ============================================================
// Basic operations
// ============================================================

func TestStore_SetGet(t *testing.T) {
	s := New()
	defer s.Close()

	s.Set("hello", []byte("world"))

	got, ok := s.Get("hello")
	if !ok {
		t.Fatal("Get() ok = false, want true")
	}
	if !bytes.Equal(got, []byte("world")) {
		t.Errorf("Get() = %q, want %q", got, "world")
	}
}

func TestStore_GetMissing(t *testing.T) {
	s := New()
	defer s.Close()

	if _, ok := s.Get("absent"); ok {
		t.Error("Get() on missing key ok = true, want false")
	}
}

func TestStore_SetOverwrites(t *testing.T) {
	s := New()
	defer s.Close()

	s.Set("key", []byte("one"))
	s.Set("key", []byte("two"))

	got, ok := s.Get("key")
	if !ok || !bytes.Equal(got, []byte("two")) {
		t.Errorf("Get() = %q, %v; want %q, true", got, ok, "two")
	}
	if s.Len() != 1 {
		t.Errorf("Len() = %d, want 1", s.Len())
	}
}

func TestStore_GetReturnsCopy(t *testing.T) {
	s := New()
	defer s.Close()

	s.Set("key", []byte("value"))

	got, _ := s.Get("key")
	got[0] = 'X'

	again, _ := s.Get("key")
	if !bytes.Equal(again, []byte("value")) {
		t.Errorf("stored value mutated through Get result: %q", again)
	}
}

func TestStore_SetCopiesInput(t *testing.T) {
	s := New()
	defer s.Close()

	value := []byte("value")
	s.Set("key", value)
	value[0] = 'X'

	got, _ := s.Get("key")
	if !bytes.Equal(got, []byte("value")) {
		t.Errorf("stored value aliases caller slice: %q", got)
	}
}

func TestStore_Del(t *testing.T) {
	s := New()
	defer s.Close()

	s.Set("a", []byte("1"))
	s.Set("b", []byte("2"))

	if n := s.Del("a", "b", "c"); n != 2 {
		t.Errorf("Del() = %d, want 2", n)
	}
	if _, ok := s.Get("a"); ok {
		t.Error("Get(a) after Del ok = true")
	}
	if s.Len() != 0 {
		t.Errorf("Len() = %d, want 0", s.Len())
	}
}

func TestStore_DelExpiredCountsAsAbsent(t *testing.T) {
	s := New()
	defer s.Close()

	s.SetTTL("gone", []byte("v"), -time.Second)

	if n := s.Del("gone"); n != 0 {
		t.Errorf("Del() of expired key = %d, want 0", n)
	}
}

// ============================================================
// Expiration
// ============================================================

func TestStore_TTLExpires(t *testing.T) {
	s := New()
	defer s.Close()

	s.SetTTL("short", []byte("v"), 30*time.Millisecond)

	if _, ok := s.Get("short"); !ok {
		t.Fatal("Get() before deadline ok = false")
	}

	time.Sleep(60 * time.Millisecond)

	if _, ok := s.Get("short"); ok {
		t.Error("Get() after deadline ok = true")
	}
}

func TestStore_ZeroTTLExpiresImmediately(t *testing.T) {
	s := New()
	defer s.Close()

	s.SetTTL("now", []byte("v"), 0)

	if _, ok := s.Get("now"); ok {
		t.Error("Get() of zero-ttl key ok = true")
	}
}

func TestStore_ReaperRemovesExpired(t *testing.T) {
	s := New()
	defer s.Close()

	s.SetTTL("short", []byte("v"), 20*time.Millisecond)
	s.Set("keep", []byte("v"))

	deadline := time.Now().Add(2 * time.Second)
	for s.Len() != 1 {
		if time.Now().After(deadline) {
			t.Fatalf("reaper did not remove expired entry, Len() = %d", s.Len())
		}
		time.Sleep(10 * time.Millisecond)
	}

	if _, ok := s.Get("keep"); !ok {
		t.Error("reaper removed a non-expired entry")
	}
}

func TestStore_OverwriteClearsExpiry(t *testing.T) {
	s := New()
	defer s.Close()

	s.SetTTL("key", []byte("old"), 30*time.Millisecond)
	s.Set("key", []byte("new"))

	time.Sleep(80 * time.Millisecond)

	got, ok := s.Get("key")
	if !ok {
		t.Fatal("overwritten entry expired via stale deadline")
	}
	if !bytes.Equal(got, []byte("new")) {
		t.Errorf("Get() = %q, want %q", got, "new")
	}
}

func TestStore_OverwriteShortensExpiry(t *testing.T) {
	s := New()
	defer s.Close()

	s.SetTTL("key", []byte("old"), time.Hour)
	s.SetTTL("key", []byte("new"), 20*time.Millisecond)

	time.Sleep(60 * time.Millisecond)

	if _, ok := s.Get("key"); ok {
		t.Error("entry with shortened deadline still present")
	}
}

// ============================================================
// Concurrency and shutdown
// ============================================================

func TestStore_ConcurrentAccess(t *testing.T) {
	s := New()
	defer s.Close()

	const workers = 8
	const perWorker = 200

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		w := w
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				key := fmt.Sprintf("w%d-k%d", w, i)
				s.Set(key, []byte(key))
				if got, ok := s.Get(key); !ok || !bytes.Equal(got, []byte(key)) {
					t.Errorf("Get(%q) = %q, %v", key, got, ok)
					return
				}
			}
		}()
	}
	wg.Wait()

	if s.Len() != workers*perWorker {
		t.Errorf("Len() = %d, want %d", s.Len(), workers*perWorker)
	}
}

func TestStore_CloseIdempotent(t *testing.T) {
	s := New()
	s.Set("key", []byte("v"))

	s.Close()
	s.Close()

	// Reads still work after Close; only the reaper stops.
	if _, ok := s.Get("key"); !ok {
		t.Error("Get() after Close ok = false")
	}
}

func TestStore_CloseStopsReaper(t *testing.T) {
	s := New()
	s.SetTTL("key", []byte("v"), time.Hour)

	done := make(chan struct{})
	go func() {
		s.Close()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Close() did not return")
	}
}
