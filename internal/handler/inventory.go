package handler

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/larder/internal/household"
	"github.com/dukerupert/larder/internal/model"
	"github.com/dukerupert/larder/internal/websocket"
)

type InventoryHandler struct {
	broadcaster
	sessions *household.Manager
	logger   *slog.Logger
}

func NewInventoryHandler(sessions *household.Manager, hub *websocket.Hub, logger *slog.Logger) *InventoryHandler {
	return &InventoryHandler{broadcaster: broadcaster{hub}, sessions: sessions, logger: logger}
}

func (h *InventoryHandler) List(w http.ResponseWriter, r *http.Request) {
	items, err := h.sessions.Inventory(householdOf(r)).List(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if items == nil {
		items = []model.InventoryItem{}
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *InventoryHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req model.NewInventoryItem
	if !decodeJSON(w, r, &req) {
		return
	}

	hh := householdOf(r)
	item, err := h.sessions.Inventory(hh).Create(r.Context(), req)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	h.broadcast(hh, websocket.NewMessage("inventory_item", "created", item.ID, item))
	writeJSON(w, http.StatusCreated, item)
}

func (h *InventoryHandler) Update(w http.ResponseWriter, r *http.Request) {
	var patch model.InventoryPatch
	if !decodeJSON(w, r, &patch) {
		return
	}

	hh := householdOf(r)
	item, err := h.sessions.Inventory(hh).Update(r.Context(), r.PathValue("id"), patch)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	h.broadcast(hh, websocket.NewMessage("inventory_item", "updated", item.ID, item))
	writeJSON(w, http.StatusOK, item)
}

func (h *InventoryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	hh := householdOf(r)
	if err := h.sessions.Inventory(hh).Remove(r.Context(), id); err != nil {
		writeError(w, h.logger, err)
		return
	}

	h.broadcast(hh, websocket.NewMessage("inventory_item", "deleted", id, nil))
	w.WriteHeader(http.StatusNoContent)
}

type toggleStatusRequest struct {
	Current model.InventoryStatus `json:"current"`
}

// Toggle flips the item's status from the state the caller last saw.
func (h *InventoryHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	var req toggleStatusRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	id := r.PathValue("id")
	hh := householdOf(r)
	repo := h.sessions.Inventory(hh)
	if err := repo.ToggleStatus(r.Context(), id, req.Current); err != nil {
		writeError(w, h.logger, err)
		return
	}

	item, err := repo.Get(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	h.broadcast(hh, websocket.NewMessage("inventory_item", "toggled", id, item))
	writeJSON(w, http.StatusOK, item)
}
