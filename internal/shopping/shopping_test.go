package shopping

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/dukerupert/larder/internal/database"
	"github.com/dukerupert/larder/internal/feed"
	"github.com/dukerupert/larder/internal/model"
	"github.com/dukerupert/larder/internal/reconcile"
	"github.com/dukerupert/larder/internal/store"
)

type testEnv struct {
	repo      *Repository
	lists     *store.ShoppingListStore
	inventory *store.InventoryStore
	engine    *reconcile.Engine
}

func setup(t *testing.T, householdID string) testEnv {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	f := feed.New(slog.Default())
	t.Cleanup(func() {
		f.Close()
		db.Close()
	})

	lists := store.NewShoppingListStore(db, f)
	inventory := store.NewInventoryStore(db, f)
	engine := reconcile.NewEngine(store.NewCommitter(db, f), slog.Default())
	return testEnv{
		repo:      NewRepository(lists, engine, householdID, slog.Default()),
		lists:     lists,
		inventory: inventory,
		engine:    engine,
	}
}

func (env testEnv) forHousehold(householdID string) *Repository {
	return NewRepository(env.lists, env.engine, householdID, slog.Default())
}

func TestCreateList(t *testing.T) {
	env := setup(t, "h1")
	ctx := context.Background()

	list, err := env.repo.CreateList(ctx, " Weekly ")
	if err != nil {
		t.Fatalf("CreateList: %v", err)
	}
	if list.Name != "Weekly" {
		t.Errorf("Name = %q, want Weekly", list.Name)
	}
	if list.Status != model.ListActive {
		t.Errorf("Status = %q, want active", list.Status)
	}
	if len(list.Items) != 0 {
		t.Errorf("expected no items, got %d", len(list.Items))
	}
	if list.CreatedAt.IsZero() {
		t.Error("CreatedAt should be set")
	}
}

func TestCreateListValidation(t *testing.T) {
	env := setup(t, "h1")
	if _, err := env.repo.CreateList(context.Background(), "  "); !errors.Is(err, model.ErrValidation) {
		t.Errorf("expected ErrValidation, got %v", err)
	}
}

func TestAddItem(t *testing.T) {
	env := setup(t, "h1")
	ctx := context.Background()
	list, _ := env.repo.CreateList(ctx, "Weekly")

	item, err := env.repo.AddItem(ctx, list.ID, model.NewShoppingListItem{Name: "Eggs", Quantity: 12})
	if err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	if item.IsTaken {
		t.Error("new item should not be taken")
	}

	got, _ := env.repo.Get(ctx, list.ID)
	if got.Item(item.ID) == nil {
		t.Fatal("item not found on list")
	}
}

func TestAddItemValidation(t *testing.T) {
	env := setup(t, "h1")
	ctx := context.Background()
	list, _ := env.repo.CreateList(ctx, "Weekly")

	tests := []struct {
		name string
		in   model.NewShoppingListItem
	}{
		{"empty name", model.NewShoppingListItem{Name: "", Quantity: 1}},
		{"zero quantity", model.NewShoppingListItem{Name: "Eggs", Quantity: 0}},
		{"bad product id", model.NewShoppingListItem{Name: "Eggs", Quantity: 1, ProductID: ptr("nope")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := env.repo.AddItem(ctx, list.ID, tt.in); !errors.Is(err, model.ErrValidation) {
				t.Errorf("expected ErrValidation, got %v", err)
			}
		})
	}

	got, _ := env.repo.Get(ctx, list.ID)
	if len(got.Items) != 0 {
		t.Errorf("expected no persisted items, got %d", len(got.Items))
	}
}

func TestAddItemUnknownList(t *testing.T) {
	env := setup(t, "h1")
	_, err := env.repo.AddItem(context.Background(), "missing", model.NewShoppingListItem{Name: "Eggs", Quantity: 1})
	if !errors.Is(err, model.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if errors.Is(err, model.ErrInvalidState) {
		t.Error("unknown list should not report invalid state")
	}
}

func TestAddItemForeignList(t *testing.T) {
	env := setup(t, "h1")
	ctx := context.Background()
	list, _ := env.forHousehold("h2").CreateList(ctx, "Theirs")

	_, err := env.repo.AddItem(ctx, list.ID, model.NewShoppingListItem{Name: "Eggs", Quantity: 1})
	if !errors.Is(err, model.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestCompletedListRejectsWrites(t *testing.T) {
	env := setup(t, "h1")
	ctx := context.Background()
	list, _ := env.repo.CreateList(ctx, "Weekly")
	item, _ := env.repo.AddItem(ctx, list.ID, model.NewShoppingListItem{Name: "Eggs", Quantity: 1})
	if _, err := env.repo.Reconcile(ctx, list.ID); err != nil {
		t.Fatalf("Reconcile: %v", err)
	}

	_, err := env.repo.AddItem(ctx, list.ID, model.NewShoppingListItem{Name: "Milk", Quantity: 1})
	if !errors.Is(err, model.ErrListCompleted) {
		t.Errorf("AddItem: expected ErrListCompleted, got %v", err)
	}
	if !errors.Is(err, model.ErrInvalidState) || !errors.Is(err, model.ErrNotFound) {
		t.Errorf("AddItem: expected both ErrInvalidState and ErrNotFound, got %v", err)
	}

	err = env.repo.ToggleTaken(ctx, list.ID, item.ID, false)
	if !errors.Is(err, model.ErrListCompleted) {
		t.Errorf("ToggleTaken: expected ErrListCompleted, got %v", err)
	}
}

func TestToggleTaken(t *testing.T) {
	env := setup(t, "h1")
	ctx := context.Background()
	list, _ := env.repo.CreateList(ctx, "Weekly")
	item, _ := env.repo.AddItem(ctx, list.ID, model.NewShoppingListItem{Name: "Eggs", Quantity: 1})

	if err := env.repo.ToggleTaken(ctx, list.ID, item.ID, false); err != nil {
		t.Fatalf("ToggleTaken: %v", err)
	}
	got, _ := env.repo.Get(ctx, list.ID)
	if !got.Item(item.ID).IsTaken {
		t.Error("expected item taken")
	}

	if err := env.repo.ToggleTaken(ctx, list.ID, item.ID, true); err != nil {
		t.Fatalf("ToggleTaken: %v", err)
	}
	got, _ = env.repo.Get(ctx, list.ID)
	if got.Item(item.ID).IsTaken {
		t.Error("expected item untaken")
	}

	if err := env.repo.ToggleTaken(ctx, list.ID, "missing", false); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("unknown item: expected ErrNotFound, got %v", err)
	}
}

func TestReconcileThroughRepository(t *testing.T) {
	env := setup(t, "h1")
	ctx := context.Background()
	list, _ := env.repo.CreateList(ctx, "Weekly")
	eggs, _ := env.repo.AddItem(ctx, list.ID, model.NewShoppingListItem{Name: "Eggs", Quantity: 12})
	env.repo.AddItem(ctx, list.ID, model.NewShoppingListItem{Name: "Butter", Quantity: 1})
	env.repo.ToggleTaken(ctx, list.ID, eggs.ID, false)

	res, err := env.repo.Reconcile(ctx, list.ID)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if res.ListID != list.ID || len(res.Changes) != 1 {
		t.Fatalf("result = %+v", res)
	}

	got, _ := env.repo.Get(ctx, list.ID)
	if got.Status != model.ListCompleted || got.CompletedAt == nil {
		t.Errorf("list = %s completed_at=%v, want completed", got.Status, got.CompletedAt)
	}
	inv, _ := env.inventory.ListByHousehold(ctx, "h1")
	if len(inv) != 1 || inv[0].Name != "Eggs" || inv[0].Quantity != 12 {
		t.Errorf("inventory = %+v, want Eggs x12", inv)
	}
}

func TestReconcileWithoutReconciler(t *testing.T) {
	env := setup(t, "h1")
	repo := NewRepository(env.lists, nil, "h1", slog.Default())
	ctx := context.Background()
	list, _ := repo.CreateList(ctx, "Weekly")

	if _, err := repo.Reconcile(ctx, list.ID); !errors.Is(err, model.ErrRemote) {
		t.Errorf("expected ErrRemote, got %v", err)
	}
}

func TestGetNotFound(t *testing.T) {
	env := setup(t, "h1")
	if _, err := env.repo.Get(context.Background(), "missing"); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestWatch(t *testing.T) {
	env := setup(t, "h1")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := env.repo.Watch(ctx); err != nil {
		t.Fatalf("Watch: %v", err)
	}
	ch, stop := env.repo.Lists().Subscribe()
	defer stop()

	first, _ := env.repo.CreateList(ctx, "First")
	time.Sleep(5 * time.Millisecond)
	second, _ := env.repo.CreateList(ctx, "Second")
	env.repo.AddItem(ctx, second.ID, model.NewShoppingListItem{Name: "Eggs", Quantity: 1})

	timeout := time.After(2 * time.Second)
	for {
		select {
		case lists := <-ch:
			if len(lists) == 2 && len(lists[0].Items) == 1 {
				if lists[0].ID != second.ID || lists[1].ID != first.ID {
					t.Errorf("order = %s, %s; want newest first", lists[0].Name, lists[1].Name)
				}
				return
			}
		case <-timeout:
			t.Fatalf("timeout waiting for lists, have %d", len(env.repo.Lists().All()))
		}
	}
}

func TestPartition(t *testing.T) {
	lists := []model.ShoppingList{
		{ID: "a", Status: model.ListActive},
		{ID: "b", Status: model.ListCompleted},
		{ID: "c", Status: model.ListActive},
	}

	active, completed := Partition(lists)
	if len(active) != 2 || active[0].ID != "a" || active[1].ID != "c" {
		t.Errorf("active = %+v", active)
	}
	if len(completed) != 1 || completed[0].ID != "b" {
		t.Errorf("completed = %+v", completed)
	}
}

func ptr[T any](v T) *T { return &v }
