package memory

import (
	"context"
	"sync"

	id "entrygate/pkg/domain"
	audit "entrygate/pkg/platform/audit"
)

// DefaultCapacity bounds a development server's audit log.
const DefaultCapacity = 10000

// InMemoryStore keeps the most recent events in arrival order. Once full,
// the oldest event is dropped for each new one.
type InMemoryStore struct {
	mu       sync.RWMutex
	events   []audit.Event
	capacity int
}

func NewInMemoryStore() *InMemoryStore {
	return NewBoundedStore(DefaultCapacity)
}

// NewBoundedStore keeps at most capacity events; capacity <= 0 means unbounded.
func NewBoundedStore(capacity int) *InMemoryStore {
	return &InMemoryStore{capacity: capacity}
}

func (s *InMemoryStore) Append(_ context.Context, event audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.capacity > 0 && len(s.events) >= s.capacity {
		copy(s.events, s.events[1:])
		s.events = s.events[:len(s.events)-1]
	}
	s.events = append(s.events, event)
	return nil
}

// ListByContest returns a contest's retained events, oldest first.
func (s *InMemoryStore) ListByContest(_ context.Context, contestID id.ContestID) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []audit.Event
	for _, e := range s.events {
		if e.ContestID == contestID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *InMemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events)
}
