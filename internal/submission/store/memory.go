// Package store persists submissions. Both implementations guard every write
// with a conditional check on (id, status, version); a lost race returns
// sentinel.ErrConflict.
package store

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"

	"examflow/internal/submission/models"
	"examflow/pkg/domain"
	"examflow/pkg/platform/sentinel"
	txcontext "examflow/pkg/platform/tx"
)

// InMemoryStore keeps submissions in a map. Writes made under a
// txcontext.Journal are reverted when the journal rolls back.
type InMemoryStore struct {
	mu   sync.RWMutex
	rows map[domain.SubmissionID]*models.Submission
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{rows: make(map[domain.SubmissionID]*models.Submission)}
}

func (s *InMemoryStore) Create(ctx context.Context, sub *models.Submission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.rows[sub.ID]; exists {
		return fmt.Errorf("submission %s already exists: %w", sub.ID, sentinel.ErrConflict)
	}
	s.rows[sub.ID] = sub.Clone()

	if j, ok := txcontext.JournalFrom(ctx); ok {
		id := sub.ID
		j.OnRollback(func() {
			s.mu.Lock()
			delete(s.rows, id)
			s.mu.Unlock()
		})
	}
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, id domain.SubmissionID) (*models.Submission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row, ok := s.rows[id]
	if !ok {
		return nil, fmt.Errorf("submission %s: %w", id, sentinel.ErrNotFound)
	}
	return row.Clone(), nil
}

// UpdateIfUnchanged replaces the row only if its status and version still
// match; on success sub.Version is advanced.
func (s *InMemoryStore) UpdateIfUnchanged(ctx context.Context, sub *models.Submission, expectedStatus models.Status, expectedVersion int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.rows[sub.ID]
	if !ok {
		return fmt.Errorf("submission %s: %w", sub.ID, sentinel.ErrNotFound)
	}
	if current.Status != expectedStatus || current.Version != expectedVersion {
		return fmt.Errorf("submission %s changed concurrently: %w", sub.ID, sentinel.ErrConflict)
	}
	sub.Version = expectedVersion + 1
	s.rows[sub.ID] = sub.Clone()

	if j, ok := txcontext.JournalFrom(ctx); ok {
		previous := current
		j.OnRollback(func() {
			s.mu.Lock()
			s.rows[previous.ID] = previous
			s.mu.Unlock()
		})
	}
	return nil
}

// List returns one page of matching rows, newest first.
func (s *InMemoryStore) List(_ context.Context, q models.Query) ([]*models.Submission, error) {
	matched := s.matching(q)
	slices.SortFunc(matched, func(a, b *models.Submission) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(b.ID.String(), a.ID.String())
	})

	start := min(q.Filters.Offset(), len(matched))
	end := min(start+q.Filters.Limit, len(matched))
	return matched[start:end], nil
}

func (s *InMemoryStore) Count(_ context.Context, q models.Query) (int, error) {
	return len(s.matching(q)), nil
}

func (s *InMemoryStore) matching(q models.Query) []*models.Submission {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Submission
	for _, row := range s.rows {
		if q.Matches(row) {
			out = append(out, row.Clone())
		}
	}
	return out
}
