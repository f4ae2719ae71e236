package event

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"strand/hal"
)

type memStore struct {
	mu       sync.Mutex
	sessions []string
	events   []SchedEvent
	fail     bool
}

func (s *memStore) InsertEvents(_ context.Context, session string, events []SchedEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return errors.New("disk full")
	}
	s.sessions = append(s.sessions, session)
	s.events = append(s.events, events...)
	return nil
}

func (s *memStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

func TestPhaseString(t *testing.T) {
	if got := SwapIn.String(); got != "SWAP_IN" {
		t.Fatalf("SwapIn.String() = %q, want SWAP_IN", got)
	}
	if got := SwapOut.String(); got != "SWAP_OUT" {
		t.Fatalf("SwapOut.String() = %q, want SWAP_OUT", got)
	}
	if got := Phase(9).String(); got != "phase(9)" {
		t.Fatalf("Phase(9).String() = %q, want phase(9)", got)
	}
}

func TestDefaultSinkRoundTrip(t *testing.T) {
	defer SetDefault(nil)

	if _, ok := Default().(NopSink); !ok {
		t.Fatalf("Default() = %T, want NopSink", Default())
	}

	var got []SchedEvent
	SetDefault(SinkFunc(func(ev SchedEvent) { got = append(got, ev) }))
	Default().AddSchedEvent(SchedEvent{RoutineID: 7})
	if len(got) != 1 || got[0].RoutineID != 7 {
		t.Fatalf("custom sink got %+v, want one event for routine 7", got)
	}

	SetDefault(nil)
	if _, ok := Default().(NopSink); !ok {
		t.Fatalf("Default() after reset = %T, want NopSink", Default())
	}
}

func TestCacheFlushPreservesOrderAndSession(t *testing.T) {
	store := &memStore{}
	c := NewCache(store, CacheOptions{BufferSize: 16, BatchSize: 3, Session: "s-1"})

	for i := 0; i < 10; i++ {
		c.AddSchedEvent(SchedEvent{RoutineID: uint64(i), Phase: Phase(i % 2)})
	}
	if err := c.Flush(context.Background()); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}

	if got := store.count(); got != 10 {
		t.Fatalf("stored %d events, want 10", got)
	}
	for i, ev := range store.events {
		if ev.RoutineID != uint64(i) {
			t.Fatalf("event %d routine = %d, want %d", i, ev.RoutineID, i)
		}
		if ev.At == 0 {
			t.Fatalf("event %d has no timestamp", i)
		}
	}
	for _, s := range store.sessions {
		if s != "s-1" {
			t.Fatalf("batch session = %q, want s-1", s)
		}
	}
	if st := c.Stats(); st.Added != 10 || st.Flushed != 10 || st.Dropped != 0 {
		t.Fatalf("Stats() = %+v, want added=10 flushed=10 dropped=0", st)
	}
}

func TestCacheDropsWhenFull(t *testing.T) {
	c := NewCache(nil, CacheOptions{BufferSize: 4})

	for i := 0; i < 6; i++ {
		c.AddSchedEvent(SchedEvent{})
	}
	if st := c.Stats(); st.Added != 4 || st.Dropped != 2 {
		t.Fatalf("Stats() = %+v, want added=4 dropped=2", st)
	}
}

func TestCacheStoreFailureIsCountedAndLogged(t *testing.T) {
	store := &memStore{fail: true}
	log := &hal.LineRecorder{}
	c := NewCache(store, CacheOptions{FlushInterval: time.Millisecond, Logger: log})

	c.AddSchedEvent(SchedEvent{})
	c.Start(context.Background())

	deadline := time.Now().Add(time.Second)
	for c.Stats().Failed == 0 {
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for failed flush")
		}
		time.Sleep(time.Millisecond)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("Close() error = %v, want nil (nothing left to flush)", err)
	}

	lines := log.Lines()
	if len(lines) == 0 || !strings.Contains(lines[0], "flush failed") {
		t.Fatalf("log lines = %q, want a flush failure", lines)
	}
}

func TestCacheCloseDrainsRemaining(t *testing.T) {
	store := &memStore{}
	c := NewCache(store, CacheOptions{FlushInterval: time.Hour})
	c.Start(context.Background())

	c.AddSchedEvent(SchedEvent{RoutineID: 1})
	c.AddSchedEvent(SchedEvent{RoutineID: 2})

	if err := c.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}
	if got := store.count(); got != 2 {
		t.Fatalf("stored %d events, want 2", got)
	}
}

func TestNewSessionIsUnique(t *testing.T) {
	a, b := NewSession(), NewSession()
	if a == "" || a == b {
		t.Fatalf("NewSession() = %q, %q; want two distinct ids", a, b)
	}
	if c := NewCache(nil, CacheOptions{}); c.Session() == "" {
		t.Fatal("NewCache() without session has empty Session()")
	}
}
