package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/Feustey/lightdash/internal/domain"
	"github.com/Feustey/lightdash/internal/storage"
)

type channelKey struct {
	pubkey    string
	channelID string
}

// ChannelStore is an in-memory implementation of storage.ChannelStore.
type ChannelStore struct {
	mu   sync.RWMutex
	data map[channelKey]*domain.ChannelRecord
}

// NewChannelStore creates a new in-memory channel store.
func NewChannelStore() *ChannelStore {
	return &ChannelStore{
		data: make(map[channelKey]*domain.ChannelRecord),
	}
}

// Upsert inserts or updates the record for (node_pubkey, channel_id).
func (s *ChannelStore) Upsert(_ context.Context, c *domain.ChannelRecord) error {
	if c == nil || c.ChannelID == "" || c.NodePubkey == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	recordCopy := *c
	s.data[channelKey{pubkey: c.NodePubkey, channelID: c.ChannelID}] = &recordCopy
	return nil
}

// GetByNode retrieves all channel records for a node, ordered by channel_id ASC.
func (s *ChannelStore) GetByNode(_ context.Context, pubkey string) ([]*domain.ChannelRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.ChannelRecord
	for key, c := range s.data {
		if key.pubkey == pubkey {
			recordCopy := *c
			result = append(result, &recordCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].ChannelID < result[j].ChannelID
	})
	return result, nil
}

// GetByID retrieves one channel record. Returns ErrNotFound if not exists.
func (s *ChannelStore) GetByID(_ context.Context, pubkey, channelID string) (*domain.ChannelRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, exists := s.data[channelKey{pubkey: pubkey, channelID: channelID}]
	if !exists {
		return nil, storage.ErrNotFound
	}

	recordCopy := *c
	return &recordCopy, nil
}

// Verify interface compliance at compile time.
var _ storage.ChannelStore = (*ChannelStore)(nil)
