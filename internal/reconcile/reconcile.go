// Package reconcile closes out a shopping trip: every item taken from a
// shopping list is folded into the household inventory and the list is
// completed, all in one atomic commit.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/text/cases"

	"github.com/dukerupert/larder/internal/category"
	"github.com/dukerupert/larder/internal/metrics"
	"github.com/dukerupert/larder/internal/model"
	"github.com/dukerupert/larder/internal/store"
)

// Committer reads and writes in one transaction. The ops plan returns are
// applied against the same state plan read.
type Committer interface {
	Run(ctx context.Context, plan func(ctx context.Context, r store.Reader) ([]store.Op, error)) error
}

// Change describes what reconciliation did to one inventory item.
type Change struct {
	ItemID   string `json:"item_id"`
	Name     string `json:"name"`
	Delta    int    `json:"delta"`
	Quantity int    `json:"quantity"`
	Created  bool   `json:"created"`
}

// Result is the outcome of a successful reconciliation.
type Result struct {
	ListID  string   `json:"list_id"`
	Changes []Change `json:"changes"`
}

type Engine struct {
	committer  Committer
	categorize category.Func
	logger     *slog.Logger
}

func NewEngine(committer Committer, logger *slog.Logger) *Engine {
	return &Engine{
		committer:  committer,
		categorize: category.Default,
		logger:     logger.With("component", "reconcile"),
	}
}

// Reconcile folds the taken items of list listID into the household
// inventory and completes the list.
//
// Taken items with the same name (compared case-insensitively) are summed
// first. Each sum either increments the matching inventory item and marks
// it available, or creates a new available item. The increments, creations
// and the status change commit together or not at all. The list and the
// inventory are read in the same transaction, so matching never sees a
// stale inventory and a list can be reconciled at most once.
func (e *Engine) Reconcile(ctx context.Context, householdID, listID string) (*Result, error) {
	res, err := e.reconcile(ctx, householdID, listID)
	metrics.Reconciliations.WithLabelValues(outcome(err)).Inc()
	if err != nil {
		e.logger.Warn("reconciliation failed", "household_id", householdID, "list_id", listID, "error", err)
		return nil, err
	}

	var created, incremented int
	for _, c := range res.Changes {
		if c.Created {
			created++
		} else {
			incremented++
		}
	}
	metrics.ReconciledItems.WithLabelValues("created").Add(float64(created))
	metrics.ReconciledItems.WithLabelValues("incremented").Add(float64(incremented))
	e.logger.Info("shopping list reconciled",
		"household_id", householdID, "list_id", listID,
		"created", created, "incremented", incremented,
	)
	return res, nil
}

func (e *Engine) reconcile(ctx context.Context, householdID, listID string) (*Result, error) {
	if e.committer == nil {
		return nil, fmt.Errorf("reconcile list %s: no atomic commit available: %w", listID, model.ErrRemote)
	}

	var changes []Change
	err := e.committer.Run(ctx, func(ctx context.Context, r store.Reader) ([]store.Op, error) {
		list, err := r.ShoppingList(ctx, householdID, listID)
		if err != nil {
			return nil, err
		}
		if list == nil {
			return nil, model.ErrNotFound
		}
		if !list.IsActive() {
			return nil, fmt.Errorf("list is %s: %w", list.Status, model.ErrInvalidState)
		}

		inventory, err := r.Inventory(ctx, householdID)
		if err != nil {
			return nil, err
		}

		p := Plan(list, inventory, e.categorize)
		changes = p.Changes
		return p.Ops, nil
	})
	if err != nil {
		return nil, fmt.Errorf("reconcile list %s: %w", listID, err)
	}
	return &Result{ListID: listID, Changes: changes}, nil
}

// Planned is the set of writes for one reconciliation and the changes they
// will make.
type Planned struct {
	Ops     []store.Op
	Changes []Change
}

// Plan computes the writes that reconcile list against inventory. It does
// no I/O. The last op always completes the list.
func Plan(list *model.ShoppingList, inventory []model.InventoryItem, categorize category.Func) Planned {
	fold := cases.Fold()
	key := func(name string) string {
		return fold.String(strings.TrimSpace(name))
	}

	// Oldest inventory item wins when names collide.
	byName := make(map[string]model.InventoryItem, len(inventory))
	for _, item := range inventory {
		k := key(item.Name)
		if _, ok := byName[k]; !ok {
			byName[k] = item
		}
	}

	type group struct {
		name     string
		quantity int
	}
	var order []string
	groups := make(map[string]*group)
	for _, it := range list.Taken() {
		k := key(it.Name)
		g, ok := groups[k]
		if !ok {
			g = &group{name: strings.TrimSpace(it.Name)}
			groups[k] = g
			order = append(order, k)
		}
		g.quantity += it.Quantity
	}

	var p Planned
	for _, k := range order {
		g := groups[k]
		if existing, ok := byName[k]; ok {
			p.Ops = append(p.Ops, store.IncrementInventoryItem{
				HouseholdID: list.HouseholdID,
				ID:          existing.ID,
				Delta:       g.quantity,
			})
			p.Changes = append(p.Changes, Change{
				ItemID:   existing.ID,
				Name:     existing.Name,
				Delta:    g.quantity,
				Quantity: existing.Quantity + g.quantity,
			})
			continue
		}

		item := model.InventoryItem{
			ID:          uuid.NewString(),
			HouseholdID: list.HouseholdID,
			Name:        g.name,
			Quantity:    g.quantity,
			Status:      model.StatusAvailable,
		}
		if categorize != nil {
			item.Category = categorize(g.name)
		}
		p.Ops = append(p.Ops, store.InsertInventoryItem{Item: item})
		p.Changes = append(p.Changes, Change{
			ItemID:   item.ID,
			Name:     item.Name,
			Delta:    g.quantity,
			Quantity: g.quantity,
			Created:  true,
		})
	}

	p.Ops = append(p.Ops, store.CompleteShoppingList{HouseholdID: list.HouseholdID, ID: list.ID})
	return p
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, model.ErrInvalidState):
		return "invalid_state"
	case errors.Is(err, model.ErrNotFound):
		return "not_found"
	case errors.Is(err, model.ErrRemote):
		return "remote"
	default:
		return "error"
	}
}
