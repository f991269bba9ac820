// Package handler exposes the household repositories as a JSON API.
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/dukerupert/larder/internal/auth"
	"github.com/dukerupert/larder/internal/identity"
	"github.com/dukerupert/larder/internal/model"
	"github.com/dukerupert/larder/internal/validate"
	"github.com/dukerupert/larder/internal/websocket"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps err onto a status code. Unexpected errors are logged and
// their text is not sent to the client.
func writeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	switch {
	case errors.Is(err, model.ErrValidation):
		body := map[string]any{"error": "validation failed"}
		if fields := validate.Fields(err); fields != nil {
			body["fields"] = fields
		}
		writeJSON(w, http.StatusUnprocessableEntity, body)
	case errors.Is(err, identity.ErrInvalidCredentials):
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid credentials"})
	case errors.Is(err, model.ErrListCompleted):
		writeJSON(w, http.StatusConflict, map[string]string{"error": "shopping list is completed"})
	case errors.Is(err, identity.ErrEmailTaken):
		writeJSON(w, http.StatusConflict, map[string]string{"error": "email already registered"})
	case errors.Is(err, model.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
	case errors.Is(err, model.ErrInvalidState):
		logger.Debug("invalid state", "error", err)
		writeJSON(w, http.StatusConflict, map[string]string{"error": "shopping list already completed"})
	case errors.Is(err, model.ErrRemote):
		logger.Error("remote store", "error", err)
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": "store unavailable"})
	default:
		logger.Error("request failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}

// decodeJSON reads the request body into v, answering 400 itself on
// malformed input.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return false
	}
	return true
}

// householdOf returns the caller's household. RequireAuth guarantees one.
func householdOf(r *http.Request) string {
	return auth.HouseholdID(r.Context())
}

type broadcaster struct {
	hub *websocket.Hub
}

func (b broadcaster) broadcast(householdID string, msg websocket.Message) {
	if b.hub != nil {
		b.hub.Broadcast(householdID, msg)
	}
}
