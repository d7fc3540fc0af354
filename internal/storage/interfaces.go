package storage

import (
	"context"
	"time"

	"github.com/Feustey/lightdash/internal/domain"
)

// ActionStore provides access to actions storage. The ledger is its sole
// writer; readers may call List/GetByID concurrently.
type ActionStore interface {
	// Insert adds a new action. Returns ErrDuplicateKey if id exists.
	Insert(ctx context.Context, a *domain.Action) error

	// GetByID retrieves an action by id. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, id string) (*domain.Action, error)

	// List retrieves all actions. Callers sort/filter as needed.
	List(ctx context.Context) ([]*domain.Action, error)

	// ListByStatus retrieves all actions with the given status.
	ListByStatus(ctx context.Context, status domain.ActionStatus) ([]*domain.Action, error)

	// LatestByKind retrieves the most recently created action of the given
	// kind whose status is one of statuses. Returns ErrNotFound if none.
	LatestByKind(ctx context.Context, kind domain.ActionKind, statuses []domain.ActionStatus) (*domain.Action, error)

	// UpdateStatus transitions an action's status and refreshes updated_at.
	// Returns ErrNotFound if id is unknown; the store is left unchanged.
	UpdateStatus(ctx context.Context, id string, status domain.ActionStatus, updatedAt time.Time) error
}

// SnapshotStore provides access to node snapshot history. Snapshots are
// append-only; trend features read the latest snapshot preceding the
// current observation.
type SnapshotStore interface {
	// Insert appends a snapshot. Returns ErrDuplicateKey if a snapshot for
	// (pubkey, observed_at) already exists.
	Insert(ctx context.Context, s *domain.NodeSnapshot) error

	// Latest retrieves the most recent snapshot for a pubkey.
	// Returns ErrNotFound if the node has never been observed.
	Latest(ctx context.Context, pubkey string) (*domain.NodeSnapshot, error)

	// LatestBefore retrieves the most recent snapshot for a pubkey observed
	// strictly before t. Returns ErrNotFound if none.
	LatestBefore(ctx context.Context, pubkey string, t time.Time) (*domain.NodeSnapshot, error)

	// GetByTimeRange retrieves snapshots for a pubkey within [start, end]
	// (inclusive), ordered by observed_at ASC.
	GetByTimeRange(ctx context.Context, pubkey string, start, end time.Time) ([]*domain.NodeSnapshot, error)
}

// ChannelStore provides access to channel records. Channels are upserted
// on each poll and never deleted.
type ChannelStore interface {
	// Upsert inserts a channel record or updates the existing one for
	// (node_pubkey, channel_id).
	Upsert(ctx context.Context, c *domain.ChannelRecord) error

	// GetByNode retrieves all channel records for a node, ordered by
	// channel_id ASC.
	GetByNode(ctx context.Context, pubkey string) ([]*domain.ChannelRecord, error)

	// GetByID retrieves one channel record. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, pubkey, channelID string) (*domain.ChannelRecord, error)
}
