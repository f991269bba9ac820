package handler

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/larder/internal/household"
	"github.com/dukerupert/larder/internal/model"
	"github.com/dukerupert/larder/internal/reconcile"
	"github.com/dukerupert/larder/internal/shopping"
	"github.com/dukerupert/larder/internal/websocket"
)

type ShoppingHandler struct {
	broadcaster
	sessions *household.Manager
	logger   *slog.Logger
}

func NewShoppingHandler(sessions *household.Manager, hub *websocket.Hub, logger *slog.Logger) *ShoppingHandler {
	return &ShoppingHandler{broadcaster: broadcaster{hub}, sessions: sessions, logger: logger}
}

type listsResponse struct {
	Active    []model.ShoppingList `json:"active"`
	Completed []model.ShoppingList `json:"completed"`
}

// ListLists returns the household's lists split into active and completed,
// newest first in each.
func (h *ShoppingHandler) ListLists(w http.ResponseWriter, r *http.Request) {
	lists, err := h.sessions.Shopping(householdOf(r)).All(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	active, completed := shopping.Partition(lists)
	resp := listsResponse{Active: active, Completed: completed}
	if resp.Active == nil {
		resp.Active = []model.ShoppingList{}
	}
	if resp.Completed == nil {
		resp.Completed = []model.ShoppingList{}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *ShoppingHandler) CreateList(w http.ResponseWriter, r *http.Request) {
	var req model.NewShoppingList
	if !decodeJSON(w, r, &req) {
		return
	}

	hh := householdOf(r)
	list, err := h.sessions.Shopping(hh).CreateList(r.Context(), req.Name)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if list.Items == nil {
		list.Items = []model.ShoppingListItem{}
	}

	h.broadcast(hh, websocket.NewMessage("shopping_list", "created", list.ID, list))
	writeJSON(w, http.StatusCreated, list)
}

func (h *ShoppingHandler) GetList(w http.ResponseWriter, r *http.Request) {
	list, err := h.sessions.Shopping(householdOf(r)).Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if list.Items == nil {
		list.Items = []model.ShoppingListItem{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *ShoppingHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req model.NewShoppingListItem
	if !decodeJSON(w, r, &req) {
		return
	}

	hh := householdOf(r)
	listID := r.PathValue("id")
	item, err := h.sessions.Shopping(hh).AddItem(r.Context(), listID, req)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	h.broadcast(hh, websocket.NewMessage("shopping_list_item", "created", item.ID, item))
	writeJSON(w, http.StatusCreated, item)
}

type toggleTakenRequest struct {
	Current *bool `json:"current"`
}

// ToggleItem flips an item's taken flag from the state the caller last saw.
func (h *ShoppingHandler) ToggleItem(w http.ResponseWriter, r *http.Request) {
	var req toggleTakenRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Current == nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error":  "validation failed",
			"fields": map[string]string{"current": "is required"},
		})
		return
	}

	hh := householdOf(r)
	listID, itemID := r.PathValue("id"), r.PathValue("item_id")
	if err := h.sessions.Shopping(hh).ToggleTaken(r.Context(), listID, itemID, *req.Current); err != nil {
		writeError(w, h.logger, err)
		return
	}

	taken := !*req.Current
	h.broadcast(hh, websocket.NewMessage("shopping_list_item", "toggled", itemID, map[string]any{
		"list_id":  listID,
		"is_taken": taken,
	}))
	writeJSON(w, http.StatusOK, map[string]any{"id": itemID, "list_id": listID, "is_taken": taken})
}

// Reconcile folds the list into the inventory and completes it.
func (h *ShoppingHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	hh := householdOf(r)
	listID := r.PathValue("id")
	res, err := h.sessions.Shopping(hh).Reconcile(r.Context(), listID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if res.Changes == nil {
		res.Changes = []reconcile.Change{}
	}

	h.broadcast(hh, websocket.NewMessage("shopping_list", "reconciled", listID, res))
	writeJSON(w, http.StatusOK, res)
}
