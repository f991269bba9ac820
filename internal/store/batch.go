package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/larder/internal/feed"
	"github.com/dukerupert/larder/internal/model"
)

// Op is one write inside an atomic Commit.
type Op interface {
	apply(ctx context.Context, tx *sql.Tx, now time.Time) error
	touches() (feed.Collection, string)
}

// InsertInventoryItem creates a new inventory item.
type InsertInventoryItem struct {
	Item model.InventoryItem
}

func (op InsertInventoryItem) apply(ctx context.Context, tx *sql.Tx, now time.Time) error {
	item := op.Item
	if item.CreatedAt.IsZero() {
		item.CreatedAt = now
	}
	if item.UpdatedAt.IsZero() {
		item.UpdatedAt = now
	}
	return insertInventoryItem(ctx, tx, item)
}

func (op InsertInventoryItem) touches() (feed.Collection, string) {
	return feed.InventoryItems, op.Item.HouseholdID
}

// IncrementInventoryItem adds Delta to an item's quantity in the database
// and marks it available. The increment is computed by SQLite, not from a
// previously read quantity.
type IncrementInventoryItem struct {
	HouseholdID string
	ID          string
	Delta       int
}

func (op IncrementInventoryItem) apply(ctx context.Context, tx *sql.Tx, now time.Time) error {
	if op.Delta <= 0 {
		return fmt.Errorf("increment %s by %d: %w", op.ID, op.Delta, model.ErrValidation)
	}
	result, err := tx.ExecContext(ctx,
		`UPDATE inventory_items SET quantity = quantity + ?, status = ?, updated_at = ?
		 WHERE id = ? AND household_id = ?`,
		op.Delta, string(model.StatusAvailable), now, op.ID, op.HouseholdID,
	)
	if err != nil {
		return remote("increment inventory item", err)
	}
	n, err := rowsAffected(result, "increment inventory item")
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("increment inventory item %s: %w", op.ID, model.ErrNotFound)
	}
	return nil
}

func (op IncrementInventoryItem) touches() (feed.Collection, string) {
	return feed.InventoryItems, op.HouseholdID
}

// CompleteShoppingList moves an active list to completed. It fails with
// model.ErrInvalidState if the list is no longer active when the commit runs.
type CompleteShoppingList struct {
	HouseholdID string
	ID          string
}

func (op CompleteShoppingList) apply(ctx context.Context, tx *sql.Tx, now time.Time) error {
	result, err := tx.ExecContext(ctx,
		`UPDATE shopping_lists SET status = ?, completed_at = ?
		 WHERE id = ? AND household_id = ? AND status = ?`,
		string(model.ListCompleted), now, op.ID, op.HouseholdID, string(model.ListActive),
	)
	if err != nil {
		return remote("complete shopping list", err)
	}
	n, err := rowsAffected(result, "complete shopping list")
	if err != nil {
		return err
	}
	if n == 1 {
		return nil
	}

	var exists int
	err = tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM shopping_lists WHERE id = ? AND household_id = ?`,
		op.ID, op.HouseholdID,
	).Scan(&exists)
	if err != nil {
		return remote("get shopping list", err)
	}
	if exists == 0 {
		return fmt.Errorf("complete shopping list %s: %w", op.ID, model.ErrNotFound)
	}
	return fmt.Errorf("complete shopping list %s: already completed: %w", op.ID, model.ErrInvalidState)
}

func (op CompleteShoppingList) touches() (feed.Collection, string) {
	return feed.ShoppingLists, op.HouseholdID
}

// Committer applies batches of writes atomically.
type Committer struct {
	db   *sql.DB
	feed *feed.Feed
}

func NewCommitter(db *sql.DB, f *feed.Feed) *Committer {
	return &Committer{db: db, feed: f}
}

// Reader reads through the transaction of a Run, so what it returns cannot
// change before the planned ops are applied.
type Reader struct {
	tx *sql.Tx
}

// ShoppingList returns the list with its items, or nil if it does not exist
// in the household.
func (r Reader) ShoppingList(ctx context.Context, householdID, id string) (*model.ShoppingList, error) {
	return getShoppingList(ctx, r.tx, householdID, id)
}

// Inventory returns the household's items, oldest first.
func (r Reader) Inventory(ctx context.Context, householdID string) ([]model.InventoryItem, error) {
	return listInventory(ctx, r.tx, householdID)
}

// Commit applies ops in order inside one transaction. Either every op is
// applied or none is. Subscribers are notified only after a successful commit.
func (c *Committer) Commit(ctx context.Context, ops ...Op) error {
	return c.Run(ctx, func(context.Context, Reader) ([]Op, error) {
		return ops, nil
	})
}

// Run calls plan with a Reader on a new transaction and applies the ops it
// returns in that same transaction. An error from plan rolls back and is
// returned unchanged.
func (c *Committer) Run(ctx context.Context, plan func(ctx context.Context, r Reader) ([]Op, error)) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return remote("begin tx", err)
	}
	defer tx.Rollback()

	ops, err := plan(ctx, Reader{tx: tx})
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	for i, op := range ops {
		if err := op.apply(ctx, tx, now); err != nil {
			return fmt.Errorf("op %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return remote("commit", err)
	}

	type target struct {
		c           feed.Collection
		householdID string
	}
	seen := make(map[target]bool)
	for _, op := range ops {
		coll, hh := op.touches()
		t := target{coll, hh}
		if seen[t] {
			continue
		}
		seen[t] = true
		notify(c.feed, coll, hh)
	}
	return nil
}
