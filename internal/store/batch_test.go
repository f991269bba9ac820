package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dukerupert/larder/internal/model"
)

func TestCommitAppliesAllOps(t *testing.T) {
	s := setupStoreTestDB(t)
	ctx := context.Background()

	bread, _ := s.inventory.Insert(ctx, newItem("h1", "Bread", 1))
	list, _ := s.lists.Create(ctx, newList("h1", "Weekly", time.Now().UTC()))

	err := s.committer.Commit(ctx,
		IncrementInventoryItem{HouseholdID: "h1", ID: bread.ID, Delta: 2},
		InsertInventoryItem{Item: newItem("h1", "Milk", 3)},
		CompleteShoppingList{HouseholdID: "h1", ID: list.ID},
	)
	if err != nil {
		t.Fatalf("commit: %v", err)
	}

	got, _ := s.inventory.GetByID(ctx, "h1", bread.ID)
	if got.Quantity != 3 {
		t.Errorf("bread quantity = %d, want 3", got.Quantity)
	}
	items, _ := s.inventory.ListByHousehold(ctx, "h1")
	if len(items) != 2 {
		t.Errorf("expected 2 inventory items, got %d", len(items))
	}
	l, _ := s.lists.GetByID(ctx, "h1", list.ID)
	if l.Status != model.ListCompleted {
		t.Errorf("list status = %q, want %q", l.Status, model.ListCompleted)
	}
	if l.CompletedAt == nil {
		t.Error("completed_at should be set")
	}
}

func TestCommitRollsBackOnFailure(t *testing.T) {
	s := setupStoreTestDB(t)
	ctx := context.Background()

	bread, _ := s.inventory.Insert(ctx, newItem("h1", "Bread", 1))
	list, _ := s.lists.Create(ctx, newList("h1", "Weekly", time.Now().UTC()))

	err := s.committer.Commit(ctx,
		IncrementInventoryItem{HouseholdID: "h1", ID: bread.ID, Delta: 2},
		InsertInventoryItem{Item: newItem("h1", "Milk", 3)},
		CompleteShoppingList{HouseholdID: "h1", ID: list.ID},
		IncrementInventoryItem{HouseholdID: "h1", ID: "missing", Delta: 1},
	)
	if !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}

	got, _ := s.inventory.GetByID(ctx, "h1", bread.ID)
	if got.Quantity != 1 {
		t.Errorf("bread quantity = %d, want 1 (unchanged)", got.Quantity)
	}
	items, _ := s.inventory.ListByHousehold(ctx, "h1")
	if len(items) != 1 {
		t.Errorf("expected 1 inventory item, got %d", len(items))
	}
	l, _ := s.lists.GetByID(ctx, "h1", list.ID)
	if l.Status != model.ListActive {
		t.Errorf("list status = %q, want %q", l.Status, model.ListActive)
	}
}

func TestCompleteShoppingListTwice(t *testing.T) {
	s := setupStoreTestDB(t)
	ctx := context.Background()

	list, _ := s.lists.Create(ctx, newList("h1", "Weekly", time.Now().UTC()))
	op := CompleteShoppingList{HouseholdID: "h1", ID: list.ID}

	if err := s.committer.Commit(ctx, op); err != nil {
		t.Fatalf("first commit: %v", err)
	}
	err := s.committer.Commit(ctx, op)
	if !errors.Is(err, model.ErrInvalidState) {
		t.Errorf("second commit: err = %v, want ErrInvalidState", err)
	}
}

func TestCompleteShoppingListForeignHousehold(t *testing.T) {
	s := setupStoreTestDB(t)
	ctx := context.Background()

	list, _ := s.lists.Create(ctx, newList("h2", "Theirs", time.Now().UTC()))

	err := s.committer.Commit(ctx, CompleteShoppingList{HouseholdID: "h1", ID: list.ID})
	if !errors.Is(err, model.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestIncrementRejectsNonPositiveDelta(t *testing.T) {
	s := setupStoreTestDB(t)
	ctx := context.Background()

	bread, _ := s.inventory.Insert(ctx, newItem("h1", "Bread", 1))
	err := s.committer.Commit(ctx, IncrementInventoryItem{HouseholdID: "h1", ID: bread.ID, Delta: 0})
	if !errors.Is(err, model.ErrValidation) {
		t.Errorf("err = %v, want ErrValidation", err)
	}
}

func TestIncrementResetsStatus(t *testing.T) {
	s := setupStoreTestDB(t)
	ctx := context.Background()

	bread, _ := s.inventory.Insert(ctx, newItem("h1", "Bread", 1))
	s.inventory.SetStatus(ctx, "h1", bread.ID, model.StatusDepleted)

	if err := s.committer.Commit(ctx, IncrementInventoryItem{HouseholdID: "h1", ID: bread.ID, Delta: 1}); err != nil {
		t.Fatalf("commit: %v", err)
	}
	got, _ := s.inventory.GetByID(ctx, "h1", bread.ID)
	if got.Status != model.StatusAvailable {
		t.Errorf("status = %q, want %q", got.Status, model.StatusAvailable)
	}
}

func TestRunReadsInsideTransaction(t *testing.T) {
	s := setupStoreTestDB(t)
	ctx := context.Background()

	bread, _ := s.inventory.Insert(ctx, newItem("h1", "Bread", 1))
	list, _ := s.lists.Create(ctx, newList("h1", "Weekly", time.Now().UTC()))
	s.lists.AddItem(ctx, "h1", newListItem(list.ID, "Bread", 2))

	err := s.committer.Run(ctx, func(ctx context.Context, r Reader) ([]Op, error) {
		l, err := r.ShoppingList(ctx, "h1", list.ID)
		if err != nil {
			return nil, err
		}
		if l == nil || len(l.Items) != 1 {
			t.Fatalf("reader list = %+v, want one item", l)
		}
		items, err := r.Inventory(ctx, "h1")
		if err != nil {
			return nil, err
		}
		if len(items) != 1 || items[0].ID != bread.ID {
			t.Fatalf("reader inventory = %+v, want Bread", items)
		}
		return []Op{
			IncrementInventoryItem{HouseholdID: "h1", ID: items[0].ID, Delta: l.Items[0].Quantity},
			CompleteShoppingList{HouseholdID: "h1", ID: l.ID},
		}, nil
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	got, _ := s.inventory.GetByID(ctx, "h1", bread.ID)
	if got.Quantity != 3 {
		t.Errorf("bread quantity = %d, want 3", got.Quantity)
	}
}

func TestRunPlanErrorRollsBack(t *testing.T) {
	s := setupStoreTestDB(t)
	ctx := context.Background()

	bread, _ := s.inventory.Insert(ctx, newItem("h1", "Bread", 1))
	sentinel := errors.New("plan failed")

	err := s.committer.Run(ctx, func(context.Context, Reader) ([]Op, error) {
		return nil, sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("err = %v, want plan error", err)
	}

	got, _ := s.inventory.GetByID(ctx, "h1", bread.ID)
	if got.Quantity != 1 {
		t.Errorf("bread quantity = %d, want 1", got.Quantity)
	}
}
