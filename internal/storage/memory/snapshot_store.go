package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Feustey/lightdash/internal/domain"
	"github.com/Feustey/lightdash/internal/storage"
)

// SnapshotStore is an in-memory implementation of storage.SnapshotStore.
type SnapshotStore struct {
	mu   sync.RWMutex
	data map[string][]*domain.NodeSnapshot // keyed by pubkey, ordered by observed_at ASC
}

// NewSnapshotStore creates a new in-memory snapshot store.
func NewSnapshotStore() *SnapshotStore {
	return &SnapshotStore{
		data: make(map[string][]*domain.NodeSnapshot),
	}
}

// Insert appends a snapshot. Returns ErrDuplicateKey if a snapshot for
// (pubkey, observed_at) already exists.
func (s *SnapshotStore) Insert(_ context.Context, snap *domain.NodeSnapshot) error {
	if snap == nil || snap.Pubkey == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	history := s.data[snap.Pubkey]
	for _, existing := range history {
		if existing.ObservedAt.Equal(snap.ObservedAt) {
			return storage.ErrDuplicateKey
		}
	}

	snapCopy := *snap
	history = append(history, &snapCopy)
	sort.Slice(history, func(i, j int) bool {
		return history[i].ObservedAt.Before(history[j].ObservedAt)
	})
	s.data[snap.Pubkey] = history
	return nil
}

// Latest retrieves the most recent snapshot for a pubkey.
func (s *SnapshotStore) Latest(_ context.Context, pubkey string) (*domain.NodeSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history := s.data[pubkey]
	if len(history) == 0 {
		return nil, storage.ErrNotFound
	}

	snapCopy := *history[len(history)-1]
	return &snapCopy, nil
}

// LatestBefore retrieves the most recent snapshot observed strictly before t.
func (s *SnapshotStore) LatestBefore(_ context.Context, pubkey string, t time.Time) (*domain.NodeSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history := s.data[pubkey]
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].ObservedAt.Before(t) {
			snapCopy := *history[i]
			return &snapCopy, nil
		}
	}
	return nil, storage.ErrNotFound
}

// GetByTimeRange retrieves snapshots within [start, end] inclusive,
// ordered by observed_at ASC.
func (s *SnapshotStore) GetByTimeRange(_ context.Context, pubkey string, start, end time.Time) ([]*domain.NodeSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.NodeSnapshot
	for _, snap := range s.data[pubkey] {
		if !snap.ObservedAt.Before(start) && !snap.ObservedAt.After(end) {
			snapCopy := *snap
			result = append(result, &snapCopy)
		}
	}
	return result, nil
}

// Verify interface compliance at compile time.
var _ storage.SnapshotStore = (*SnapshotStore)(nil)
