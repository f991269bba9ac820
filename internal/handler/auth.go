package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/larder/internal/auth"
	"github.com/dukerupert/larder/internal/identity"
	"github.com/dukerupert/larder/internal/middleware"
)

type AuthHandler struct {
	provider     *identity.Provider
	sessionTTL   time.Duration
	secureCookie bool
	logger       *slog.Logger
}

func NewAuthHandler(provider *identity.Provider, sessionTTL time.Duration, secureCookie bool, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		provider:     provider,
		sessionTTL:   sessionTTL,
		secureCookie: secureCookie,
		logger:       logger,
	}
}

type sessionResponse struct {
	Token    string             `json:"token"`
	Identity *identity.Identity `json:"identity"`
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req identity.Credentials
	if !decodeJSON(w, r, &req) {
		return
	}

	id, token, err := h.provider.Register(r.Context(), req)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	h.setSessionCookie(w, token, h.sessionTTL)
	writeJSON(w, http.StatusCreated, sessionResponse{Token: token, Identity: id})
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req identity.Credentials
	if !decodeJSON(w, r, &req) {
		return
	}

	id, token, err := h.provider.SignIn(r.Context(), req)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	h.logger.Info("member signed in", "user_id", id.UserID, "household_id", id.HouseholdID)
	h.setSessionCookie(w, token, h.sessionTTL)
	writeJSON(w, http.StatusOK, sessionResponse{Token: token, Identity: id})
}

// Logout ends the caller's session. It sits behind RequireAuth.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())
	if err := h.provider.SignOut(r.Context(), ac.Token); err != nil {
		writeError(w, h.logger, err)
		return
	}

	h.setSessionCookie(w, "", -1)
	w.WriteHeader(http.StatusNoContent)
}

// Me returns the caller's identity.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())
	writeJSON(w, http.StatusOK, identity.Identity{
		UserID:      ac.UserID,
		Email:       ac.Email,
		HouseholdID: ac.HouseholdID,
	})
}

func (h *AuthHandler) setSessionCookie(w http.ResponseWriter, token string, ttl time.Duration) {
	cookie := &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	}
	if ttl < 0 {
		cookie.MaxAge = -1
	} else {
		cookie.MaxAge = int(ttl.Seconds())
	}
	http.SetCookie(w, cookie)
}
