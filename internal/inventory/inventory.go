// Package inventory is the household's view of what it has at home.
//
// Writes go straight to the remote store; the local projection only changes
// when a snapshot arrives from Watch.
package inventory

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dukerupert/larder/internal/category"
	"github.com/dukerupert/larder/internal/model"
	"github.com/dukerupert/larder/internal/projection"
	"github.com/dukerupert/larder/internal/validate"
)

// Remote is the slice of the remote store the repository writes through.
type Remote interface {
	Insert(ctx context.Context, item model.InventoryItem) (*model.InventoryItem, error)
	GetByID(ctx context.Context, householdID, id string) (*model.InventoryItem, error)
	ListByHousehold(ctx context.Context, householdID string) ([]model.InventoryItem, error)
	Update(ctx context.Context, item model.InventoryItem) (*model.InventoryItem, error)
	SetStatus(ctx context.Context, householdID, id string, status model.InventoryStatus) error
	Delete(ctx context.Context, householdID, id string) error
	Subscribe(ctx context.Context, householdID string) (<-chan model.Snapshot[model.InventoryItem], error)
}

// Repository manages one household's inventory.
type Repository struct {
	remote      Remote
	householdID string
	items       *projection.Projection[model.InventoryItem]
	categorize  category.Func
	logger      *slog.Logger
	watchers    sync.WaitGroup
}

func NewRepository(remote Remote, householdID string, logger *slog.Logger) *Repository {
	return &Repository{
		remote:      remote,
		householdID: householdID,
		items:       projection.New[model.InventoryItem](),
		categorize:  category.Default,
		logger:      logger.With("component", "inventory", "household_id", householdID),
	}
}

// HouseholdID returns the household the repository is bound to.
func (r *Repository) HouseholdID() string { return r.householdID }

// Items is the projection fed by Watch.
func (r *Repository) Items() *projection.Projection[model.InventoryItem] { return r.items }

// List reads the household's items from the remote store, oldest first.
func (r *Repository) List(ctx context.Context) ([]model.InventoryItem, error) {
	items, err := r.remote.ListByHousehold(ctx, r.householdID)
	if err != nil {
		return nil, fmt.Errorf("list inventory: %w", err)
	}
	return items, nil
}

// Get reads one item.
func (r *Repository) Get(ctx context.Context, id string) (*model.InventoryItem, error) {
	item, err := r.remote.GetByID(ctx, r.householdID, id)
	if err != nil {
		return nil, fmt.Errorf("get inventory item %s: %w", id, err)
	}
	if item == nil {
		return nil, fmt.Errorf("get inventory item %s: %w", id, model.ErrNotFound)
	}
	return item, nil
}

// Create stores a new available item. An empty category is filled in from
// the item's name.
func (r *Repository) Create(ctx context.Context, in model.NewInventoryItem) (*model.InventoryItem, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Category = strings.TrimSpace(in.Category)
	if err := validate.Struct(in); err != nil {
		return nil, fmt.Errorf("create inventory item: %w", err)
	}
	if in.Category == "" {
		in.Category = r.categorize(in.Name)
	}

	now := time.Now().UTC()
	item := model.InventoryItem{
		ID:          uuid.NewString(),
		HouseholdID: r.householdID,
		Name:        in.Name,
		Quantity:    in.Quantity,
		Status:      model.StatusAvailable,
		Category:    in.Category,
		ImageURL:    in.ImageURL,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	created, err := r.remote.Insert(ctx, item)
	if err != nil {
		return nil, fmt.Errorf("create inventory item: %w", err)
	}
	r.logger.Debug("inventory item created", "id", item.ID, "name", item.Name)
	return created, nil
}

// Update merges the patch into the stored item.
func (r *Repository) Update(ctx context.Context, id string, patch model.InventoryPatch) (*model.InventoryItem, error) {
	if patch.Name != nil {
		trimmed := strings.TrimSpace(*patch.Name)
		patch.Name = &trimmed
	}
	if err := validate.Struct(patch); err != nil {
		return nil, fmt.Errorf("update inventory item %s: %w", id, err)
	}

	current, err := r.remote.GetByID(ctx, r.householdID, id)
	if err != nil {
		return nil, fmt.Errorf("update inventory item %s: %w", id, err)
	}
	if current == nil {
		return nil, fmt.Errorf("update inventory item %s: %w", id, model.ErrNotFound)
	}

	patch.Apply(current)
	updated, err := r.remote.Update(ctx, *current)
	if err != nil {
		return nil, fmt.Errorf("update inventory item %s: %w", id, err)
	}
	return updated, nil
}

// Remove deletes the item. Removing an item that is already gone succeeds.
func (r *Repository) Remove(ctx context.Context, id string) error {
	if err := r.remote.Delete(ctx, r.householdID, id); err != nil {
		return fmt.Errorf("remove inventory item %s: %w", id, err)
	}
	return nil
}

// ToggleStatus writes the opposite of current. The write is unconditional:
// if two members toggle from the same displayed state, both write the same
// value and the last write wins.
func (r *Repository) ToggleStatus(ctx context.Context, id string, current model.InventoryStatus) error {
	if !current.Valid() {
		return fmt.Errorf("toggle inventory item %s: status %q: %w", id, current, model.ErrValidation)
	}
	next := current.Toggle()
	if err := r.remote.SetStatus(ctx, r.householdID, id, next); err != nil {
		return fmt.Errorf("toggle inventory item %s: %w", id, err)
	}
	return nil
}

// Watch feeds remote snapshots into Items until ctx is done. It returns once
// the subscription is open; snapshots are applied in the background. Every
// snapshot replaces the projection wholesale.
func (r *Repository) Watch(ctx context.Context) error {
	snapshots, err := r.remote.Subscribe(ctx, r.householdID)
	if err != nil {
		return fmt.Errorf("watch inventory: %w", err)
	}
	r.watchers.Add(1)
	go func() {
		defer r.watchers.Done()
		for snap := range snapshots {
			if snap.Err != nil {
				r.logger.Warn("inventory snapshot failed", "error", snap.Err)
				continue
			}
			r.items.ReplaceAll(snap.Items)
		}
	}()
	return nil
}

// Wait blocks until every Watch started on r has stopped. Cancel the
// contexts passed to Watch first.
func (r *Repository) Wait() {
	r.watchers.Wait()
}
