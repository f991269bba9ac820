// Package shopping manages a household's shopping lists.
package shopping

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dukerupert/larder/internal/model"
	"github.com/dukerupert/larder/internal/projection"
	"github.com/dukerupert/larder/internal/reconcile"
	"github.com/dukerupert/larder/internal/validate"
)

// Remote is the slice of the remote store the repository writes through.
type Remote interface {
	Create(ctx context.Context, list model.ShoppingList) (*model.ShoppingList, error)
	GetByID(ctx context.Context, householdID, id string) (*model.ShoppingList, error)
	ListByHousehold(ctx context.Context, householdID string) ([]model.ShoppingList, error)
	AddItem(ctx context.Context, householdID string, item model.ShoppingListItem) (*model.ShoppingListItem, error)
	SetItemTaken(ctx context.Context, householdID, listID, itemID string, taken bool) error
	Subscribe(ctx context.Context, householdID string) (<-chan model.Snapshot[model.ShoppingList], error)
}

// Reconciler folds a list into the inventory.
type Reconciler interface {
	Reconcile(ctx context.Context, householdID, listID string) (*reconcile.Result, error)
}

// Repository manages one household's shopping lists.
type Repository struct {
	remote      Remote
	reconciler  Reconciler
	householdID string
	lists       *projection.Projection[model.ShoppingList]
	logger      *slog.Logger
	watchers    sync.WaitGroup
}

func NewRepository(remote Remote, reconciler Reconciler, householdID string, logger *slog.Logger) *Repository {
	return &Repository{
		remote:      remote,
		reconciler:  reconciler,
		householdID: householdID,
		lists:       projection.New[model.ShoppingList](),
		logger:      logger.With("component", "shopping", "household_id", householdID),
	}
}

func (r *Repository) HouseholdID() string { return r.householdID }

// Lists is the projection fed by Watch, newest list first.
func (r *Repository) Lists() *projection.Projection[model.ShoppingList] { return r.lists }

// CreateList creates an empty active list.
func (r *Repository) CreateList(ctx context.Context, name string) (*model.ShoppingList, error) {
	in := model.NewShoppingList{Name: strings.TrimSpace(name)}
	if err := validate.Struct(in); err != nil {
		return nil, fmt.Errorf("create shopping list: %w", err)
	}

	list := model.ShoppingList{
		ID:          uuid.NewString(),
		HouseholdID: r.householdID,
		Name:        in.Name,
		Status:      model.ListActive,
		CreatedAt:   time.Now().UTC(),
	}
	created, err := r.remote.Create(ctx, list)
	if err != nil {
		return nil, fmt.Errorf("create shopping list: %w", err)
	}
	r.logger.Debug("shopping list created", "list_id", list.ID)
	return created, nil
}

// Get reads one list with its items.
func (r *Repository) Get(ctx context.Context, listID string) (*model.ShoppingList, error) {
	list, err := r.remote.GetByID(ctx, r.householdID, listID)
	if err != nil {
		return nil, fmt.Errorf("get shopping list %s: %w", listID, err)
	}
	if list == nil {
		return nil, fmt.Errorf("get shopping list %s: %w", listID, model.ErrNotFound)
	}
	return list, nil
}

// All reads every list of the household with its items, newest first.
func (r *Repository) All(ctx context.Context) ([]model.ShoppingList, error) {
	lists, err := r.remote.ListByHousehold(ctx, r.householdID)
	if err != nil {
		return nil, fmt.Errorf("list shopping lists: %w", err)
	}
	return lists, nil
}

// AddItem appends an untaken item to an active list. Adding to a completed
// list fails with model.ErrListCompleted.
func (r *Repository) AddItem(ctx context.Context, listID string, in model.NewShoppingListItem) (*model.ShoppingListItem, error) {
	in.Name = strings.TrimSpace(in.Name)
	if err := validate.Struct(in); err != nil {
		return nil, fmt.Errorf("add item to %s: %w", listID, err)
	}

	item := model.ShoppingListItem{
		ID:        uuid.NewString(),
		ListID:    listID,
		ProductID: in.ProductID,
		Name:      in.Name,
		Quantity:  in.Quantity,
		CreatedAt: time.Now().UTC(),
	}
	created, err := r.remote.AddItem(ctx, r.householdID, item)
	if err != nil {
		return nil, fmt.Errorf("add item to %s: %w", listID, err)
	}
	return created, nil
}

// ToggleTaken writes !current. Like inventory toggles the write is
// unconditional and the last writer wins.
func (r *Repository) ToggleTaken(ctx context.Context, listID, itemID string, current bool) error {
	if err := r.remote.SetItemTaken(ctx, r.householdID, listID, itemID, !current); err != nil {
		return fmt.Errorf("toggle item %s: %w", itemID, err)
	}
	return nil
}

// Reconcile folds the list's taken items into the inventory and completes
// the list.
func (r *Repository) Reconcile(ctx context.Context, listID string) (*reconcile.Result, error) {
	if r.reconciler == nil {
		return nil, fmt.Errorf("reconcile list %s: no reconciler: %w", listID, model.ErrRemote)
	}
	return r.reconciler.Reconcile(ctx, r.householdID, listID)
}

// Watch feeds remote snapshots into Lists until ctx is done.
func (r *Repository) Watch(ctx context.Context) error {
	snapshots, err := r.remote.Subscribe(ctx, r.householdID)
	if err != nil {
		return fmt.Errorf("watch shopping lists: %w", err)
	}
	r.watchers.Add(1)
	go func() {
		defer r.watchers.Done()
		for snap := range snapshots {
			if snap.Err != nil {
				r.logger.Warn("shopping list snapshot failed", "error", snap.Err)
				continue
			}
			r.lists.ReplaceAll(snap.Items)
		}
	}()
	return nil
}

// Wait blocks until every Watch started on r has stopped. Cancel the
// contexts passed to Watch first.
func (r *Repository) Wait() {
	r.watchers.Wait()
}

// Partition splits lists into active and completed, keeping their order.
func Partition(lists []model.ShoppingList) (active, completed []model.ShoppingList) {
	for _, l := range lists {
		if l.IsActive() {
			active = append(active, l)
		} else {
			completed = append(completed, l)
		}
	}
	return active, completed
}
