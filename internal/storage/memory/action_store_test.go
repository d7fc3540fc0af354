package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Feustey/lightdash/internal/domain"
	"github.com/Feustey/lightdash/internal/storage"
)

func testAction(id string, kind domain.ActionKind, createdAt time.Time) *domain.Action {
	return &domain.Action{
		ID:          id,
		Kind:        kind,
		Priority:    domain.PriorityHigh,
		Confidence:  0.8,
		Description: "test action",
		Status:      domain.ActionPending,
		CreatedAt:   createdAt,
		UpdatedAt:   createdAt,
	}
}

func TestActionStore_InsertAndGet(t *testing.T) {
	store := NewActionStore()
	ctx := context.Background()
	now := time.Now()

	a := testAction("id-1", domain.ActionRebalance, now)
	if err := store.Insert(ctx, a); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	got, err := store.GetByID(ctx, "id-1")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.Kind != domain.ActionRebalance {
		t.Errorf("Kind mismatch: got %s, want %s", got.Kind, domain.ActionRebalance)
	}
	if got.Status != domain.ActionPending {
		t.Errorf("Status mismatch: got %s, want %s", got.Status, domain.ActionPending)
	}
}

func TestActionStore_DuplicateKey(t *testing.T) {
	store := NewActionStore()
	ctx := context.Background()

	a := testAction("id-1", domain.ActionRebalance, time.Now())
	if err := store.Insert(ctx, a); err != nil {
		t.Fatalf("First insert failed: %v", err)
	}
	if err := store.Insert(ctx, a); !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey, got %v", err)
	}
}

func TestActionStore_GetByID_NotFound(t *testing.T) {
	store := NewActionStore()

	_, err := store.GetByID(context.Background(), "missing")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestActionStore_List_OrderedByCreatedAt(t *testing.T) {
	store := NewActionStore()
	ctx := context.Background()
	base := time.Now()

	// Insert out of chronological order
	if err := store.Insert(ctx, testAction("id-2", domain.ActionUpdateFees, base.Add(time.Hour))); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if err := store.Insert(ctx, testAction("id-1", domain.ActionRebalance, base)); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	list, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("Expected 2 actions, got %d", len(list))
	}
	if list[0].ID != "id-1" || list[1].ID != "id-2" {
		t.Errorf("Expected order [id-1 id-2], got [%s %s]", list[0].ID, list[1].ID)
	}
}

func TestActionStore_ListByStatus(t *testing.T) {
	store := NewActionStore()
	ctx := context.Background()
	now := time.Now()

	pending := testAction("id-1", domain.ActionRebalance, now)
	completed := testAction("id-2", domain.ActionUpdateFees, now)
	completed.Status = domain.ActionCompleted

	if err := store.Insert(ctx, pending); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if err := store.Insert(ctx, completed); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	got, err := store.ListByStatus(ctx, domain.ActionCompleted)
	if err != nil {
		t.Fatalf("ListByStatus failed: %v", err)
	}
	if len(got) != 1 || got[0].ID != "id-2" {
		t.Errorf("Expected [id-2], got %v", got)
	}
}

func TestActionStore_LatestByKind(t *testing.T) {
	store := NewActionStore()
	ctx := context.Background()
	base := time.Now()

	older := testAction("id-1", domain.ActionRebalance, base)
	newer := testAction("id-2", domain.ActionRebalance, base.Add(time.Hour))
	completed := testAction("id-3", domain.ActionRebalance, base.Add(2*time.Hour))
	completed.Status = domain.ActionCompleted

	for _, a := range []*domain.Action{older, newer, completed} {
		if err := store.Insert(ctx, a); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	// Completed actions are excluded by the status filter, so the newest
	// pending one wins.
	got, err := store.LatestByKind(ctx, domain.ActionRebalance,
		[]domain.ActionStatus{domain.ActionPending, domain.ActionInProgress})
	if err != nil {
		t.Fatalf("LatestByKind failed: %v", err)
	}
	if got.ID != "id-2" {
		t.Errorf("Expected id-2, got %s", got.ID)
	}
}

func TestActionStore_LatestByKind_NotFound(t *testing.T) {
	store := NewActionStore()

	_, err := store.LatestByKind(context.Background(), domain.ActionOpenChannel,
		[]domain.ActionStatus{domain.ActionPending})
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestActionStore_UpdateStatus(t *testing.T) {
	store := NewActionStore()
	ctx := context.Background()
	created := time.Now()

	if err := store.Insert(ctx, testAction("id-1", domain.ActionRebalance, created)); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	updated := created.Add(10 * time.Minute)
	if err := store.UpdateStatus(ctx, "id-1", domain.ActionInProgress, updated); err != nil {
		t.Fatalf("UpdateStatus failed: %v", err)
	}

	got, err := store.GetByID(ctx, "id-1")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.Status != domain.ActionInProgress {
		t.Errorf("Status mismatch: got %s, want %s", got.Status, domain.ActionInProgress)
	}
	if !got.UpdatedAt.Equal(updated) {
		t.Errorf("UpdatedAt not refreshed: got %v, want %v", got.UpdatedAt, updated)
	}
	if !got.CreatedAt.Equal(created) {
		t.Errorf("CreatedAt must not change: got %v, want %v", got.CreatedAt, created)
	}
}

func TestActionStore_UpdateStatus_NotFound(t *testing.T) {
	store := NewActionStore()

	err := store.UpdateStatus(context.Background(), "missing", domain.ActionCompleted, time.Now())
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestActionStore_CopyOnRead(t *testing.T) {
	store := NewActionStore()
	ctx := context.Background()

	if err := store.Insert(ctx, testAction("id-1", domain.ActionRebalance, time.Now())); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	got, _ := store.GetByID(ctx, "id-1")
	got.Status = domain.ActionFailed // mutate the returned copy

	again, _ := store.GetByID(ctx, "id-1")
	if again.Status != domain.ActionPending {
		t.Errorf("Store state leaked: got %s, want %s", again.Status, domain.ActionPending)
	}
}

func TestActionStore_ConcurrentAccess(t *testing.T) {
	store := NewActionStore()
	ctx := context.Background()
	base := time.Now()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			a := testAction(string(rune('a'+i)), domain.ActionRebalance, base.Add(time.Duration(i)*time.Second))
			if err := store.Insert(ctx, a); err != nil {
				t.Errorf("Insert failed: %v", err)
			}
			if _, err := store.List(ctx); err != nil {
				t.Errorf("List failed: %v", err)
			}
		}(i)
	}
	wg.Wait()

	list, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(list) != 10 {
		t.Errorf("Expected 10 actions, got %d", len(list))
	}
}
