package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/Feustey/lightdash/internal/domain"
	"github.com/Feustey/lightdash/internal/storage"
)

// ChannelStore implements storage.ChannelStore using PostgreSQL.
type ChannelStore struct {
	pool *Pool
}

// NewChannelStore creates a new ChannelStore.
func NewChannelStore(pool *Pool) *ChannelStore {
	return &ChannelStore{pool: pool}
}

// Compile-time interface check.
var _ storage.ChannelStore = (*ChannelStore)(nil)

const channelColumns = `channel_id, node_pubkey, capacity, local_balance, remote_balance,
	num_forwards, fees_earned, uptime, status, observed_at`

// Upsert inserts a channel record or updates the existing one for
// (node_pubkey, channel_id).
func (s *ChannelStore) Upsert(ctx context.Context, c *domain.ChannelRecord) error {
	if c == nil || c.ChannelID == "" || c.NodePubkey == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO channels (
			channel_id, node_pubkey, capacity, local_balance, remote_balance,
			num_forwards, fees_earned, uptime, status, observed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (node_pubkey, channel_id) DO UPDATE SET
			capacity = EXCLUDED.capacity,
			local_balance = EXCLUDED.local_balance,
			remote_balance = EXCLUDED.remote_balance,
			num_forwards = EXCLUDED.num_forwards,
			fees_earned = EXCLUDED.fees_earned,
			uptime = EXCLUDED.uptime,
			status = EXCLUDED.status,
			observed_at = EXCLUDED.observed_at
	`

	_, err := s.pool.Exec(ctx, query,
		c.ChannelID,
		c.NodePubkey,
		int64(c.Capacity),
		int64(c.LocalBalance),
		int64(c.RemoteBalance),
		int32(c.NumForwards),
		int64(c.FeesEarned),
		c.Uptime,
		string(c.Status),
		c.ObservedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert channel: %w", err)
	}
	return nil
}

// GetByNode retrieves all channel records for a node, ordered by channel_id ASC.
func (s *ChannelStore) GetByNode(ctx context.Context, pubkey string) ([]*domain.ChannelRecord, error) {
	query := `SELECT ` + channelColumns + ` FROM channels WHERE node_pubkey = $1 ORDER BY channel_id ASC`

	rows, err := s.pool.Query(ctx, query, pubkey)
	if err != nil {
		return nil, fmt.Errorf("get channels by node: %w", err)
	}
	defer rows.Close()

	var result []*domain.ChannelRecord
	for rows.Next() {
		c, err := scanChannel(rows)
		if err != nil {
			return nil, fmt.Errorf("scan channel: %w", err)
		}
		result = append(result, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate channels: %w", err)
	}
	return result, nil
}

// GetByID retrieves one channel record. Returns ErrNotFound if not exists.
func (s *ChannelStore) GetByID(ctx context.Context, pubkey, channelID string) (*domain.ChannelRecord, error) {
	query := `SELECT ` + channelColumns + ` FROM channels WHERE node_pubkey = $1 AND channel_id = $2`

	row := s.pool.QueryRow(ctx, query, pubkey, channelID)
	c, err := scanChannel(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get channel by id: %w", err)
	}
	return c, nil
}

// scanChannel scans a single row into a ChannelRecord.
func scanChannel(row pgx.Row) (*domain.ChannelRecord, error) {
	var c domain.ChannelRecord
	var capacity, local, remote, fees int64
	var forwards int32
	var status string

	err := row.Scan(
		&c.ChannelID,
		&c.NodePubkey,
		&capacity,
		&local,
		&remote,
		&forwards,
		&fees,
		&c.Uptime,
		&status,
		&c.ObservedAt,
	)
	if err != nil {
		return nil, err
	}

	c.Capacity = uint64(capacity)
	c.LocalBalance = uint64(local)
	c.RemoteBalance = uint64(remote)
	c.NumForwards = uint32(forwards)
	c.FeesEarned = uint64(fees)
	c.Status = domain.ChannelStatus(status)
	return &c, nil
}
