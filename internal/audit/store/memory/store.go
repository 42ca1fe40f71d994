package memory

import (
	"context"
	"slices"
	"sync"

	"examflow/internal/audit"
	"examflow/pkg/domain"
	txcontext "examflow/pkg/platform/tx"
)

// InMemoryStore keeps entries per submission. Sequence is a store-wide
// counter so insertion order survives equal timestamps.
type InMemoryStore struct {
	mu      sync.RWMutex
	seq     int64
	entries map[domain.SubmissionID][]audit.Entry
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{entries: make(map[domain.SubmissionID][]audit.Entry)}
}

func (s *InMemoryStore) Append(ctx context.Context, entry *audit.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	entry.Sequence = s.seq
	s.entries[entry.SubmissionID] = append(s.entries[entry.SubmissionID], *entry)

	if j, ok := txcontext.JournalFrom(ctx); ok {
		id, subID := entry.ID, entry.SubmissionID
		j.OnRollback(func() { s.remove(subID, id) })
	}
	return nil
}

func (s *InMemoryStore) remove(subID domain.SubmissionID, id domain.AuditEntryID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[subID] = slices.DeleteFunc(s.entries[subID], func(e audit.Entry) bool { return e.ID == id })
}

// ListBySubmission returns a copy ordered by timestamp, then sequence.
func (s *InMemoryStore) ListBySubmission(_ context.Context, submissionID domain.SubmissionID) ([]audit.Entry, error) {
	s.mu.RLock()
	out := slices.Clone(s.entries[submissionID])
	s.mu.RUnlock()

	slices.SortStableFunc(out, func(a, b audit.Entry) int {
		if c := a.Timestamp.Compare(b.Timestamp); c != 0 {
			return c
		}
		switch {
		case a.Sequence < b.Sequence:
			return -1
		case a.Sequence > b.Sequence:
			return 1
		}
		return 0
	})
	return out, nil
}

// Count returns the total number of stored entries.
func (s *InMemoryStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, e := range s.entries {
		n += len(e)
	}
	return n
}
