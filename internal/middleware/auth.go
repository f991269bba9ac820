package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/larder/internal/auth"
	"github.com/dukerupert/larder/internal/identity"
)

const SessionCookieName = "larder_session"

type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*identity.Identity, error)
}

// Token returns the session token from the Authorization bearer header or,
// failing that, the session cookie.
func Token(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	if cookie, err := r.Cookie(SessionCookieName); err == nil {
		return cookie.Value
	}
	return ""
}

// RequireAuth resolves the session token and populates AuthContext.
// Requests without a valid session get a JSON 401.
func RequireAuth(authn Authenticator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := Token(r)
			if token == "" {
				unauthorized(w)
				return
			}

			id, err := authn.Authenticate(r.Context(), token)
			if err != nil {
				if !errors.Is(err, identity.ErrInvalidCredentials) {
					logger.Error("authenticate", "error", err)
				}
				unauthorized(w)
				return
			}

			ac := auth.AuthContext{
				UserID:      id.UserID,
				Email:       id.Email,
				HouseholdID: id.HouseholdID,
				Token:       token,
			}
			next.ServeHTTP(w, r.WithContext(auth.WithAuth(r.Context(), ac)))
		})
	}
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer realm="larder"`)
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]string{"error": "authentication required"})
}
