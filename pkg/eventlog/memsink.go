package eventlog

import (
	"context"
	"sync"
)

// MemSink collects events in memory. It backs EngineMemory and the facade
// unit tests: every facade operation's emitted events can be asserted
// against without a backend.
type MemSink struct {
	mu     sync.Mutex
	events []Event
	purged []string

	emitErr  error
	purgeErr error
	closed   bool
}

// NewMemSink returns an empty MemSink.
func NewMemSink() *MemSink {
	return &MemSink{}
}

// FailEmitWith makes every subsequent Emit return err. Pass nil to restore
// normal behaviour.
func (s *MemSink) FailEmitWith(err error) {
	s.mu.Lock()
	s.emitErr = err
	s.mu.Unlock()
}

// FailPurgeWith makes every subsequent Purge return err.
func (s *MemSink) FailPurgeWith(err error) {
	s.mu.Lock()
	s.purgeErr = err
	s.mu.Unlock()
}

// Emit stores the event.
func (s *MemSink) Emit(_ context.Context, ev Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.emitErr != nil {
		return s.emitErr
	}
	s.events = append(s.events, ev)
	return nil
}

// Purge drops all stored events belonging to loggerName and records the
// purge request.
func (s *MemSink) Purge(_ context.Context, loggerName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.purgeErr != nil {
		return s.purgeErr
	}
	s.purged = append(s.purged, loggerName)
	kept := s.events[:0]
	for _, ev := range s.events {
		if ev.Logger != loggerName {
			kept = append(kept, ev)
		}
	}
	s.events = kept
	return nil
}

// Close marks the sink closed. Emit and Purge still work so tests can
// assert on post-close misuse separately.
func (s *MemSink) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

// Closed reports whether Close was called.
func (s *MemSink) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Events returns a copy of the stored events in emission order.
func (s *MemSink) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Event, len(s.events))
	copy(out, s.events)
	return out
}

// Last returns the most recently stored event and true, or the zero Event
// and false when nothing was emitted.
func (s *MemSink) Last() (Event, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.events) == 0 {
		return Event{}, false
	}
	return s.events[len(s.events)-1], true
}

// ByName returns the stored events carrying the given name.
func (s *MemSink) ByName(name string) []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Event
	for _, ev := range s.events {
		if ev.Name == name {
			out = append(out, ev)
		}
	}
	return out
}

// Purged returns the purge requests seen, in order.
func (s *MemSink) Purged() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.purged))
	copy(out, s.purged)
	return out
}

// Reset drops all stored events and purge records.
func (s *MemSink) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = nil
	s.purged = nil
	s.emitErr = nil
	s.purgeErr = nil
	s.closed = false
}
