package clickhouse

import (
	"context"
	"fmt"
	"time"

	"github.com/Feustey/lightdash/internal/domain"
	"github.com/Feustey/lightdash/internal/storage"
)

// SnapshotStore implements storage.SnapshotStore using ClickHouse.
// Snapshot history is append-only and queried by (pubkey, observed_at).
type SnapshotStore struct {
	conn *Conn
}

// NewSnapshotStore creates a new SnapshotStore.
func NewSnapshotStore(conn *Conn) *SnapshotStore {
	return &SnapshotStore{conn: conn}
}

// Compile-time interface check.
var _ storage.SnapshotStore = (*SnapshotStore)(nil)

const snapshotColumns = `pubkey, alias, total_capacity, channel_count, active_channel_count,
	total_local_balance, total_remote_balance, total_fees_earned, total_forwards,
	uptime_percentage, balance_discrepancy, observed_at`

// Insert appends a snapshot. ClickHouse MergeTree does not enforce
// uniqueness, so duplicates for (pubkey, observed_at) are detected with an
// explicit check before insert.
func (s *SnapshotStore) Insert(ctx context.Context, snap *domain.NodeSnapshot) error {
	if snap == nil || snap.Pubkey == "" {
		return storage.ErrInvalidInput
	}

	exists, err := s.exists(ctx, snap.Pubkey, snap.ObservedAt)
	if err != nil {
		return fmt.Errorf("check exists: %w", err)
	}
	if exists {
		return storage.ErrDuplicateKey
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO node_snapshots (
			pubkey, alias, total_capacity, channel_count, active_channel_count,
			total_local_balance, total_remote_balance, total_fees_earned, total_forwards,
			uptime_percentage, balance_discrepancy, observed_at
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	err = batch.Append(
		snap.Pubkey,
		snap.Alias,
		snap.TotalCapacity,
		snap.ChannelCount,
		snap.ActiveChannelCount,
		snap.TotalLocalBalance,
		snap.TotalRemoteBalance,
		snap.TotalFeesEarned,
		snap.TotalForwards,
		snap.UptimePercentage,
		snap.BalanceDiscrepancy,
		snap.ObservedAt,
	)
	if err != nil {
		return fmt.Errorf("append to batch: %w", err)
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// Latest retrieves the most recent snapshot for a pubkey.
func (s *SnapshotStore) Latest(ctx context.Context, pubkey string) (*domain.NodeSnapshot, error) {
	query := `
		SELECT ` + snapshotColumns + `
		FROM node_snapshots
		WHERE pubkey = ?
		ORDER BY observed_at DESC
		LIMIT 1
	`
	return s.queryOne(ctx, query, pubkey)
}

// LatestBefore retrieves the most recent snapshot observed strictly before t.
func (s *SnapshotStore) LatestBefore(ctx context.Context, pubkey string, t time.Time) (*domain.NodeSnapshot, error) {
	query := `
		SELECT ` + snapshotColumns + `
		FROM node_snapshots
		WHERE pubkey = ? AND observed_at < ?
		ORDER BY observed_at DESC
		LIMIT 1
	`
	return s.queryOne(ctx, query, pubkey, t)
}

// GetByTimeRange retrieves snapshots within [start, end] inclusive,
// ordered by observed_at ASC.
func (s *SnapshotStore) GetByTimeRange(ctx context.Context, pubkey string, start, end time.Time) ([]*domain.NodeSnapshot, error) {
	query := `
		SELECT ` + snapshotColumns + `
		FROM node_snapshots
		WHERE pubkey = ? AND observed_at >= ? AND observed_at <= ?
		ORDER BY observed_at ASC
	`

	rows, err := s.conn.Query(ctx, query, pubkey, start, end)
	if err != nil {
		return nil, fmt.Errorf("query snapshots by time range: %w", err)
	}
	defer rows.Close()

	var result []*domain.NodeSnapshot
	for rows.Next() {
		var snap domain.NodeSnapshot
		if err := rows.Scan(
			&snap.Pubkey,
			&snap.Alias,
			&snap.TotalCapacity,
			&snap.ChannelCount,
			&snap.ActiveChannelCount,
			&snap.TotalLocalBalance,
			&snap.TotalRemoteBalance,
			&snap.TotalFeesEarned,
			&snap.TotalForwards,
			&snap.UptimePercentage,
			&snap.BalanceDiscrepancy,
			&snap.ObservedAt,
		); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		result = append(result, &snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshots: %w", err)
	}
	return result, nil
}

func (s *SnapshotStore) queryOne(ctx context.Context, query string, args ...any) (*domain.NodeSnapshot, error) {
	rows, err := s.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query snapshot: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("iterate snapshot: %w", err)
		}
		return nil, storage.ErrNotFound
	}

	var snap domain.NodeSnapshot
	if err := rows.Scan(
		&snap.Pubkey,
		&snap.Alias,
		&snap.TotalCapacity,
		&snap.ChannelCount,
		&snap.ActiveChannelCount,
		&snap.TotalLocalBalance,
		&snap.TotalRemoteBalance,
		&snap.TotalFeesEarned,
		&snap.TotalForwards,
		&snap.UptimePercentage,
		&snap.BalanceDiscrepancy,
		&snap.ObservedAt,
	); err != nil {
		return nil, fmt.Errorf("scan snapshot: %w", err)
	}
	return &snap, nil
}

func (s *SnapshotStore) exists(ctx context.Context, pubkey string, observedAt time.Time) (bool, error) {
	query := `SELECT count() FROM node_snapshots WHERE pubkey = ? AND observed_at = ?`

	var count uint64
	if err := s.conn.QueryRow(ctx, query, pubkey, observedAt).Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}
