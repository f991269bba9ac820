package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dukerupert/larder/internal/feed"
	"github.com/dukerupert/larder/internal/model"
)

type ShoppingListStore struct {
	db   *sql.DB
	feed *feed.Feed
}

func NewShoppingListStore(db *sql.DB, f *feed.Feed) *ShoppingListStore {
	return &ShoppingListStore{db: db, feed: f}
}

// --- List methods ---

func scanShoppingList(scanner interface{ Scan(...any) error }) (*model.ShoppingList, error) {
	var l model.ShoppingList
	var status string
	var completedAt sql.NullTime
	err := scanner.Scan(&l.ID, &l.HouseholdID, &l.Name, &status, &l.CreatedAt, &completedAt)
	if err != nil {
		return nil, err
	}
	l.Status = model.ListStatus(status)
	if completedAt.Valid {
		l.CompletedAt = &completedAt.Time
	}
	return &l, nil
}

const shoppingListCols = `id, household_id, name, status, created_at, completed_at`

func (s *ShoppingListStore) Create(ctx context.Context, list model.ShoppingList) (*model.ShoppingList, error) {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO shopping_lists (id, household_id, name, status, created_at) VALUES (?, ?, ?, ?, ?)`,
		list.ID, list.HouseholdID, list.Name, string(list.Status), list.CreatedAt,
	)
	if err != nil {
		return nil, remote("insert shopping list", err)
	}
	notify(s.feed, feed.ShoppingLists, list.HouseholdID)
	return s.GetByID(ctx, list.HouseholdID, list.ID)
}

func getShoppingList(ctx context.Context, q querier, householdID, id string) (*model.ShoppingList, error) {
	row := q.QueryRowContext(ctx,
		`SELECT `+shoppingListCols+` FROM shopping_lists WHERE id = ? AND household_id = ?`,
		id, householdID,
	)
	l, err := scanShoppingList(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, remote("get shopping list", err)
	}

	items, err := listShoppingListItems(ctx, q,
		`SELECT `+shoppingListItemCols+` FROM shopping_list_items WHERE list_id = ? ORDER BY position ASC`,
		id,
	)
	if err != nil {
		return nil, err
	}
	l.Items = items
	return l, nil
}

// GetByID returns the list with its items, or nil if it does not exist in
// the household.
func (s *ShoppingListStore) GetByID(ctx context.Context, householdID, id string) (*model.ShoppingList, error) {
	return getShoppingList(ctx, s.db, householdID, id)
}

// ListByHousehold returns the household's lists with their items, newest first.
func (s *ShoppingListStore) ListByHousehold(ctx context.Context, householdID string) ([]model.ShoppingList, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+shoppingListCols+` FROM shopping_lists WHERE household_id = ? ORDER BY created_at DESC, rowid DESC`,
		householdID,
	)
	if err != nil {
		return nil, remote("list shopping lists", err)
	}

	var lists []model.ShoppingList
	index := make(map[string]int)
	for rows.Next() {
		l, err := scanShoppingList(rows)
		if err != nil {
			rows.Close()
			return nil, remote("scan shopping list", err)
		}
		index[l.ID] = len(lists)
		lists = append(lists, *l)
	}
	err = rows.Err()
	rows.Close()
	if err != nil {
		return nil, remote("list shopping lists", err)
	}
	if len(lists) == 0 {
		return lists, nil
	}

	items, err := listShoppingListItems(ctx, s.db,
		`SELECT i.id, i.list_id, i.product_id, i.name, i.quantity, i.is_taken, i.position, i.created_at
		 FROM shopping_list_items i
		 JOIN shopping_lists l ON l.id = i.list_id
		 WHERE l.household_id = ?
		 ORDER BY i.list_id, i.position ASC`,
		householdID,
	)
	if err != nil {
		return nil, err
	}
	for _, item := range items {
		if i, ok := index[item.ListID]; ok {
			lists[i].Items = append(lists[i].Items, item)
		}
	}
	return lists, nil
}

// --- Item methods ---

func scanShoppingListItem(scanner interface{ Scan(...any) error }) (*model.ShoppingListItem, error) {
	var item model.ShoppingListItem
	var productID sql.NullString
	var taken int
	err := scanner.Scan(
		&item.ID, &item.ListID, &productID, &item.Name, &item.Quantity,
		&taken, &item.Position, &item.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	item.IsTaken = taken != 0
	if productID.Valid {
		item.ProductID = &productID.String
	}
	return &item, nil
}

const shoppingListItemCols = `id, list_id, product_id, name, quantity, is_taken, position, created_at`

func listShoppingListItems(ctx context.Context, q querier, query string, args ...any) ([]model.ShoppingListItem, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, remote("list shopping list items", err)
	}
	defer rows.Close()

	var items []model.ShoppingListItem
	for rows.Next() {
		item, err := scanShoppingListItem(rows)
		if err != nil {
			return nil, remote("scan shopping list item", err)
		}
		items = append(items, *item)
	}
	if err := rows.Err(); err != nil {
		return nil, remote("list shopping list items", err)
	}
	return items, nil
}

// requireActive fails with model.ErrNotFound for an unknown list and with
// model.ErrListCompleted for a completed one.
func requireActive(ctx context.Context, q querier, householdID, listID string) error {
	var status string
	err := q.QueryRowContext(ctx,
		`SELECT status FROM shopping_lists WHERE id = ? AND household_id = ?`,
		listID, householdID,
	).Scan(&status)
	if err == sql.ErrNoRows {
		return fmt.Errorf("shopping list %s: %w", listID, model.ErrNotFound)
	}
	if err != nil {
		return remote("get shopping list status", err)
	}
	if model.ListStatus(status) != model.ListActive {
		return fmt.Errorf("shopping list %s: %w", listID, model.ErrListCompleted)
	}
	return nil
}

// AddItem appends an item to an active list.
func (s *ShoppingListStore) AddItem(ctx context.Context, householdID string, item model.ShoppingListItem) (*model.ShoppingListItem, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, remote("begin tx", err)
	}
	defer tx.Rollback()

	if err := requireActive(ctx, tx, householdID, item.ListID); err != nil {
		return nil, err
	}

	var productID sql.NullString
	if item.ProductID != nil {
		productID = sql.NullString{String: *item.ProductID, Valid: true}
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO shopping_list_items (id, list_id, product_id, name, quantity, is_taken, position, created_at)
		 VALUES (?, ?, ?, ?, ?, 0, (SELECT COALESCE(MAX(position), 0) + 1 FROM shopping_list_items WHERE list_id = ?), ?)`,
		item.ID, item.ListID, productID, item.Name, item.Quantity, item.ListID, item.CreatedAt,
	)
	if completedAbort(err) {
		return nil, fmt.Errorf("add item to %s: %w", item.ListID, model.ErrListCompleted)
	}
	if err != nil {
		return nil, remote("insert shopping list item", err)
	}

	row := tx.QueryRowContext(ctx,
		`SELECT `+shoppingListItemCols+` FROM shopping_list_items WHERE id = ?`,
		item.ID,
	)
	created, err := scanShoppingListItem(row)
	if err != nil {
		return nil, remote("get shopping list item", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, remote("commit", err)
	}
	notify(s.feed, feed.ShoppingLists, householdID)
	return created, nil
}

// SetItemTaken writes the taken flag unconditionally. The list must be active.
func (s *ShoppingListStore) SetItemTaken(ctx context.Context, householdID, listID, itemID string, taken bool) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return remote("begin tx", err)
	}
	defer tx.Rollback()

	if err := requireActive(ctx, tx, householdID, listID); err != nil {
		return err
	}

	var v int
	if taken {
		v = 1
	}
	result, err := tx.ExecContext(ctx,
		`UPDATE shopping_list_items SET is_taken = ? WHERE id = ? AND list_id = ?`,
		v, itemID, listID,
	)
	if completedAbort(err) {
		return fmt.Errorf("toggle item %s: %w", itemID, model.ErrListCompleted)
	}
	if err != nil {
		return remote("set item taken", err)
	}
	n, err := rowsAffected(result, "set item taken")
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("shopping list item %s: %w", itemID, model.ErrNotFound)
	}

	if err := tx.Commit(); err != nil {
		return remote("commit", err)
	}
	notify(s.feed, feed.ShoppingLists, householdID)
	return nil
}

// Subscribe streams full snapshots of the household's lists, newest first.
func (s *ShoppingListStore) Subscribe(ctx context.Context, householdID string) (<-chan model.Snapshot[model.ShoppingList], error) {
	return subscribe(ctx, s.feed, feed.ShoppingLists, householdID, func(ctx context.Context) ([]model.ShoppingList, error) {
		return s.ListByHousehold(ctx, householdID)
	})
}
