package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/Feustey/lightdash/internal/domain"
	"github.com/Feustey/lightdash/internal/storage"
)

// ActionStore implements storage.ActionStore using PostgreSQL.
type ActionStore struct {
	pool *Pool
}

// NewActionStore creates a new ActionStore.
func NewActionStore(pool *Pool) *ActionStore {
	return &ActionStore{pool: pool}
}

// Compile-time interface check.
var _ storage.ActionStore = (*ActionStore)(nil)

const actionColumns = `id, kind, priority, confidence, description, status, created_at, updated_at`

// Insert adds a new action. Returns ErrDuplicateKey if id exists.
func (s *ActionStore) Insert(ctx context.Context, a *domain.Action) error {
	query := `
		INSERT INTO actions (
			id, kind, priority, confidence, description, status, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := s.pool.Exec(ctx, query,
		a.ID,
		string(a.Kind),
		string(a.Priority),
		a.Confidence,
		a.Description,
		string(a.Status),
		a.CreatedAt,
		a.UpdatedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert action: %w", err)
	}
	return nil
}

// GetByID retrieves an action by id. Returns ErrNotFound if not exists.
func (s *ActionStore) GetByID(ctx context.Context, id string) (*domain.Action, error) {
	query := `SELECT ` + actionColumns + ` FROM actions WHERE id = $1`

	row := s.pool.QueryRow(ctx, query, id)
	a, err := scanAction(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get action by id: %w", err)
	}
	return a, nil
}

// List retrieves all actions, ordered by created_at ASC.
func (s *ActionStore) List(ctx context.Context) ([]*domain.Action, error) {
	query := `SELECT ` + actionColumns + ` FROM actions ORDER BY created_at ASC, id ASC`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list actions: %w", err)
	}
	defer rows.Close()

	return scanActions(rows)
}

// ListByStatus retrieves all actions with the given status.
func (s *ActionStore) ListByStatus(ctx context.Context, status domain.ActionStatus) ([]*domain.Action, error) {
	query := `SELECT ` + actionColumns + ` FROM actions WHERE status = $1 ORDER BY created_at ASC, id ASC`

	rows, err := s.pool.Query(ctx, query, string(status))
	if err != nil {
		return nil, fmt.Errorf("list actions by status: %w", err)
	}
	defer rows.Close()

	return scanActions(rows)
}

// LatestByKind retrieves the most recently created action of the given kind
// whose status is one of statuses. Returns ErrNotFound if none.
func (s *ActionStore) LatestByKind(ctx context.Context, kind domain.ActionKind, statuses []domain.ActionStatus) (*domain.Action, error) {
	query := `
		SELECT ` + actionColumns + `
		FROM actions
		WHERE kind = $1 AND status = ANY($2)
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`

	statusStrs := make([]string, len(statuses))
	for i, st := range statuses {
		statusStrs[i] = string(st)
	}

	row := s.pool.QueryRow(ctx, query, string(kind), statusStrs)
	a, err := scanAction(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get latest action by kind: %w", err)
	}
	return a, nil
}

// UpdateStatus transitions an action's status and refreshes updated_at.
// Returns ErrNotFound if id is unknown.
func (s *ActionStore) UpdateStatus(ctx context.Context, id string, status domain.ActionStatus, updatedAt time.Time) error {
	query := `UPDATE actions SET status = $2, updated_at = $3 WHERE id = $1`

	tag, err := s.pool.Exec(ctx, query, id, string(status), updatedAt)
	if err != nil {
		return fmt.Errorf("update action status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// scanAction scans a single row into an Action.
func scanAction(row pgx.Row) (*domain.Action, error) {
	var a domain.Action
	var kind, priority, status string

	err := row.Scan(
		&a.ID,
		&kind,
		&priority,
		&a.Confidence,
		&a.Description,
		&status,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	a.Kind = domain.ActionKind(kind)
	a.Priority = domain.Priority(priority)
	a.Status = domain.ActionStatus(status)
	return &a, nil
}

// scanActions scans all rows into Actions.
func scanActions(rows pgx.Rows) ([]*domain.Action, error) {
	var result []*domain.Action
	for rows.Next() {
		a, err := scanAction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan action: %w", err)
		}
		result = append(result, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate actions: %w", err)
	}
	return result, nil
}
