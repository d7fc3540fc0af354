package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Feustey/lightdash/internal/domain"
	"github.com/Feustey/lightdash/internal/storage"
)

// DefaultCooldown is the minimum time between two persisted actions of the
// same kind.
const DefaultCooldown = 24 * time.Hour

// openStatuses are the states that count toward deduplication. A completed
// or failed action never suppresses a new recommendation.
var openStatuses = []domain.ActionStatus{
	domain.ActionPending,
	domain.ActionInProgress,
}

// Ledger owns the collection of persisted actions. It is the only
// component that mutates action status.
//
// Mutating operations are serialized with a coarse lock so that the
// periodic pipeline and on-demand API writers never race on the
// dedup-check-then-insert sequence. Reads go straight to the store.
type Ledger struct {
	mu       sync.Mutex
	store    storage.ActionStore
	cooldown time.Duration
	now      func() time.Time
}

// New creates a Ledger backed by the given store. A non-positive cooldown
// falls back to DefaultCooldown.
func New(store storage.ActionStore, cooldown time.Duration) *Ledger {
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	return &Ledger{
		store:    store,
		cooldown: cooldown,
		now:      time.Now,
	}
}

// Create persists a recommendation as a Pending action and returns it. The
// second return value reports whether a new action was inserted.
//
// If an open action of the same kind was created within the cooldown
// window, the existing action is returned instead of inserting a
// duplicate, so periodic re-evaluation does not flood the operator with
// repeated identical alerts.
func (l *Ledger) Create(ctx context.Context, rec domain.Recommendation) (*domain.Action, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now().UTC()

	existing, err := l.store.LatestByKind(ctx, rec.Kind, openStatuses)
	switch {
	case err == nil:
		if now.Sub(existing.CreatedAt) < l.cooldown {
			return existing, false, nil
		}
	case errors.Is(err, storage.ErrNotFound):
		// First open action of this kind.
	default:
		return nil, false, fmt.Errorf("check cooldown for %s: %w", rec.Kind, err)
	}

	action := &domain.Action{
		ID:          uuid.NewString(),
		Kind:        rec.Kind,
		Priority:    rec.Priority,
		Confidence:  rec.Confidence,
		Description: rec.Reason,
		Status:      domain.ActionPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := l.store.Insert(ctx, action); err != nil {
		return nil, false, fmt.Errorf("insert action: %w", err)
	}
	return action, true, nil
}

// Get retrieves one action by id. Returns storage.ErrNotFound for an
// unknown id.
func (l *Ledger) Get(ctx context.Context, id string) (*domain.Action, error) {
	return l.store.GetByID(ctx, id)
}

// List returns all actions.
func (l *Ledger) List(ctx context.Context) ([]*domain.Action, error) {
	return l.store.List(ctx)
}

// ListByStatus returns all actions in the given status.
func (l *Ledger) ListByStatus(ctx context.Context, status domain.ActionStatus) ([]*domain.Action, error) {
	if !domain.ValidActionStatus(status) {
		return nil, fmt.Errorf("%w: unknown status %q", storage.ErrInvalidInput, status)
	}
	return l.store.ListByStatus(ctx, status)
}

// UpdateStatus transitions an action to a new status and refreshes its
// updated_at. Returns storage.ErrNotFound for an unknown id. Any status may
// move to any other; history is append-only and "dismissal" is a
// transition, never a delete.
func (l *Ledger) UpdateStatus(ctx context.Context, id string, status domain.ActionStatus) error {
	if !domain.ValidActionStatus(status) {
		return fmt.Errorf("%w: unknown status %q", storage.ErrInvalidInput, status)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	return l.store.UpdateStatus(ctx, id, status, l.now().UTC())
}
