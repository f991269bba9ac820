package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/larder/internal/feed"
	"github.com/dukerupert/larder/internal/model"
)

type InventoryStore struct {
	db   *sql.DB
	feed *feed.Feed
}

func NewInventoryStore(db *sql.DB, f *feed.Feed) *InventoryStore {
	return &InventoryStore{db: db, feed: f}
}

func scanInventoryItem(scanner interface{ Scan(...any) error }) (*model.InventoryItem, error) {
	var item model.InventoryItem
	var status string
	err := scanner.Scan(
		&item.ID, &item.HouseholdID, &item.Name, &item.Quantity, &status,
		&item.Category, &item.ImageURL, &item.CreatedAt, &item.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	item.Status = model.InventoryStatus(status)
	return &item, nil
}

const inventoryCols = `id, household_id, name, quantity, status, category, image_url, created_at, updated_at`

func insertInventoryItem(ctx context.Context, q querier, item model.InventoryItem) error {
	_, err := q.ExecContext(ctx,
		`INSERT INTO inventory_items (`+inventoryCols+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		item.ID, item.HouseholdID, item.Name, item.Quantity, string(item.Status),
		item.Category, item.ImageURL, item.CreatedAt, item.UpdatedAt,
	)
	if err != nil {
		return remote("insert inventory item", err)
	}
	return nil
}

func (s *InventoryStore) Insert(ctx context.Context, item model.InventoryItem) (*model.InventoryItem, error) {
	if err := insertInventoryItem(ctx, s.db, item); err != nil {
		return nil, err
	}
	notify(s.feed, feed.InventoryItems, item.HouseholdID)
	return s.GetByID(ctx, item.HouseholdID, item.ID)
}

// GetByID returns the item, or nil if it does not exist in the household.
func (s *InventoryStore) GetByID(ctx context.Context, householdID, id string) (*model.InventoryItem, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+inventoryCols+` FROM inventory_items WHERE id = ? AND household_id = ?`,
		id, householdID,
	)
	item, err := scanInventoryItem(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, remote("get inventory item", err)
	}
	return item, nil
}

func listInventory(ctx context.Context, q querier, householdID string) ([]model.InventoryItem, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT `+inventoryCols+` FROM inventory_items WHERE household_id = ? ORDER BY created_at ASC, rowid ASC`,
		householdID,
	)
	if err != nil {
		return nil, remote("list inventory items", err)
	}
	defer rows.Close()

	var items []model.InventoryItem
	for rows.Next() {
		item, err := scanInventoryItem(rows)
		if err != nil {
			return nil, remote("scan inventory item", err)
		}
		items = append(items, *item)
	}
	if err := rows.Err(); err != nil {
		return nil, remote("list inventory items", err)
	}
	return items, nil
}

// ListByHousehold returns the household's items, oldest first.
func (s *InventoryStore) ListByHousehold(ctx context.Context, householdID string) ([]model.InventoryItem, error) {
	return listInventory(ctx, s.db, householdID)
}

// Update overwrites the editable fields of an existing item.
func (s *InventoryStore) Update(ctx context.Context, item model.InventoryItem) (*model.InventoryItem, error) {
	result, err := s.db.ExecContext(ctx,
		`UPDATE inventory_items SET name = ?, quantity = ?, category = ?, image_url = ?, updated_at = ?
		 WHERE id = ? AND household_id = ?`,
		item.Name, item.Quantity, item.Category, item.ImageURL, time.Now().UTC(),
		item.ID, item.HouseholdID,
	)
	if err != nil {
		return nil, remote("update inventory item", err)
	}
	n, err := rowsAffected(result, "update inventory item")
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, fmt.Errorf("update inventory item %s: %w", item.ID, model.ErrNotFound)
	}
	notify(s.feed, feed.InventoryItems, item.HouseholdID)
	return s.GetByID(ctx, item.HouseholdID, item.ID)
}

// SetStatus writes status unconditionally.
func (s *InventoryStore) SetStatus(ctx context.Context, householdID, id string, status model.InventoryStatus) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE inventory_items SET status = ?, updated_at = ? WHERE id = ? AND household_id = ?`,
		string(status), time.Now().UTC(), id, householdID,
	)
	if err != nil {
		return remote("set inventory status", err)
	}
	n, err := rowsAffected(result, "set inventory status")
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("set inventory status %s: %w", id, model.ErrNotFound)
	}
	notify(s.feed, feed.InventoryItems, householdID)
	return nil
}

// Delete removes the item. Deleting an absent item is not an error.
func (s *InventoryStore) Delete(ctx context.Context, householdID, id string) error {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM inventory_items WHERE id = ? AND household_id = ?`,
		id, householdID,
	)
	if err != nil {
		return remote("delete inventory item", err)
	}
	n, err := rowsAffected(result, "delete inventory item")
	if err != nil {
		return err
	}
	if n > 0 {
		notify(s.feed, feed.InventoryItems, householdID)
	}
	return nil
}

// Subscribe streams full snapshots of the household's inventory: one right
// away, then one after every change.
func (s *InventoryStore) Subscribe(ctx context.Context, householdID string) (<-chan model.Snapshot[model.InventoryItem], error) {
	return subscribe(ctx, s.feed, feed.InventoryItems, householdID, func(ctx context.Context) ([]model.InventoryItem, error) {
		return s.ListByHousehold(ctx, householdID)
	})
}
