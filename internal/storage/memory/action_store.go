package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Feustey/lightdash/internal/domain"
	"github.com/Feustey/lightdash/internal/storage"
)

// ActionStore is an in-memory implementation of storage.ActionStore.
type ActionStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Action // keyed by id
}

// NewActionStore creates a new in-memory action store.
func NewActionStore() *ActionStore {
	return &ActionStore{
		data: make(map[string]*domain.Action),
	}
}

// Insert adds a new action. Returns ErrDuplicateKey if id exists.
func (s *ActionStore) Insert(_ context.Context, a *domain.Action) error {
	if a == nil || a.ID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[a.ID]; exists {
		return storage.ErrDuplicateKey
	}

	// Store a copy to prevent external mutation
	actionCopy := *a
	s.data[a.ID] = &actionCopy
	return nil
}

// GetByID retrieves an action by id. Returns ErrNotFound if not exists.
func (s *ActionStore) GetByID(_ context.Context, id string) (*domain.Action, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, exists := s.data[id]
	if !exists {
		return nil, storage.ErrNotFound
	}

	actionCopy := *a
	return &actionCopy, nil
}

// List retrieves all actions, ordered by created_at ASC for determinism.
func (s *ActionStore) List(_ context.Context) ([]*domain.Action, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.Action, 0, len(s.data))
	for _, a := range s.data {
		actionCopy := *a
		result = append(result, &actionCopy)
	}

	sortActions(result)
	return result, nil
}

// ListByStatus retrieves all actions with the given status.
func (s *ActionStore) ListByStatus(_ context.Context, status domain.ActionStatus) ([]*domain.Action, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Action
	for _, a := range s.data {
		if a.Status == status {
			actionCopy := *a
			result = append(result, &actionCopy)
		}
	}

	sortActions(result)
	return result, nil
}

// LatestByKind retrieves the most recently created action of the given kind
// with one of the given statuses. Returns ErrNotFound if none.
func (s *ActionStore) LatestByKind(_ context.Context, kind domain.ActionKind, statuses []domain.ActionStatus) (*domain.Action, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *domain.Action
	for _, a := range s.data {
		if a.Kind != kind || !statusIn(a.Status, statuses) {
			continue
		}
		if latest == nil || a.CreatedAt.After(latest.CreatedAt) {
			latest = a
		}
	}

	if latest == nil {
		return nil, storage.ErrNotFound
	}
	actionCopy := *latest
	return &actionCopy, nil
}

// UpdateStatus transitions status and refreshes updated_at.
// Returns ErrNotFound if id is unknown.
func (s *ActionStore) UpdateStatus(_ context.Context, id string, status domain.ActionStatus, updatedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, exists := s.data[id]
	if !exists {
		return storage.ErrNotFound
	}

	a.Status = status
	a.UpdatedAt = updatedAt
	return nil
}

func sortActions(actions []*domain.Action) {
	sort.Slice(actions, func(i, j int) bool {
		if !actions[i].CreatedAt.Equal(actions[j].CreatedAt) {
			return actions[i].CreatedAt.Before(actions[j].CreatedAt)
		}
		return actions[i].ID < actions[j].ID
	})
}

func statusIn(s domain.ActionStatus, statuses []domain.ActionStatus) bool {
	for _, candidate := range statuses {
		if s == candidate {
			return true
		}
	}
	return false
}

// Verify interface compliance at compile time.
var _ storage.ActionStore = (*ActionStore)(nil)
