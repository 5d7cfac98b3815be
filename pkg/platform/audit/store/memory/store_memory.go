package memory

import (
	"context"
	"sync"

	audit "rollout/pkg/platform/audit"
)

// InMemoryStore holds audit events in insertion order. Used by unit tests and
// dev mode; the postgres store is the production implementation.
type InMemoryStore struct {
	mu     sync.RWMutex
	events []audit.Event
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) Append(_ context.Context, event audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *InMemoryStore) ListByCorrelationID(_ context.Context, correlationID string) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []audit.Event
	for _, ev := range s.events {
		if ev.CorrelationID == correlationID {
			matched = append(matched, ev)
		}
	}
	return matched, nil
}

func (s *InMemoryStore) ListByFlag(_ context.Context, q audit.FlagQuery) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []audit.Event
	for _, ev := range s.events {
		if ev.FlagName != q.FlagName || ev.Environment != q.Environment {
			continue
		}
		if !q.From.IsZero() && ev.Timestamp.Before(q.From) {
			continue
		}
		if !q.To.IsZero() && ev.Timestamp.After(q.To) {
			continue
		}
		matched = append(matched, ev)
	}

	if q.Offset >= len(matched) {
		return nil, nil
	}
	matched = matched[q.Offset:]
	if q.Limit > 0 && q.Limit < len(matched) {
		matched = matched[:q.Limit]
	}
	return matched, nil
}

// Clear drops all events. Test helper.
func (s *InMemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = nil
}

// All returns a copy of every event in insertion order. Test helper.
func (s *InMemoryStore) All() []audit.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]audit.Event{}, s.events...)
}
