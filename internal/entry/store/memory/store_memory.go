package memory

import (
	"context"
	"sync"

	"entrygate/internal/entry/models"
	id "entrygate/pkg/domain"
	"entrygate/pkg/platform/sentinel"
)

type recordKey struct {
	pk string
	sk string
}

// InMemoryEntryStore keeps records in the same pk/sk layout the durable
// backends use. A single lock makes each admission atomic.
type InMemoryEntryStore struct {
	mu      sync.RWMutex
	records map[recordKey]id.EntryID
	entries map[recordKey]*models.Entry
}

func New() *InMemoryEntryStore {
	return &InMemoryEntryStore{
		records: make(map[recordKey]id.EntryID),
		entries: make(map[recordKey]*models.Entry),
	}
}

// Admit writes the entry and its markers when none of the keys exist yet.
func (s *InMemoryEntryStore) Admit(ctx context.Context, adm *models.Admission) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	pk := models.PartitionKey(adm.Entry.ContestID)
	keys := []recordKey{{pk, models.EntrySortKey(adm.Entry.EntryID)}}
	for _, m := range adm.Markers() {
		keys = append(keys, recordKey{pk, m.SortKey()})
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, k := range keys {
		if _, exists := s.records[k]; exists {
			return sentinel.ErrConflict
		}
	}
	for _, k := range keys {
		s.records[k] = adm.Entry.EntryID
	}
	entry := *adm.Entry
	s.entries[keys[0]] = &entry
	return nil
}

func (s *InMemoryEntryStore) FindEntry(_ context.Context, contestID id.ContestID, entryID id.EntryID) (*models.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[recordKey{models.PartitionKey(contestID), models.EntrySortKey(entryID)}]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	out := *e
	return &out, nil
}

// FindEntries returns the entries that exist, in request order. Missing ids are skipped.
func (s *InMemoryEntryStore) FindEntries(ctx context.Context, contestID id.ContestID, entryIDs []id.EntryID) ([]*models.Entry, error) {
	out := make([]*models.Entry, 0, len(entryIDs))
	for _, entryID := range entryIDs {
		e, err := s.FindEntry(ctx, contestID, entryID)
		if err != nil {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

// MarkerOwner reports which entry holds a marker. Used by tests and the admin view.
func (s *InMemoryEntryStore) MarkerOwner(m models.DedupeMarker) (id.EntryID, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	owner, ok := s.records[recordKey{models.PartitionKey(m.ContestID), m.SortKey()}]
	return owner, ok
}

// Len returns the number of stored records of every type.
func (s *InMemoryEntryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
