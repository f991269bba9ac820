package websocket

import (
	"log/slog"
	"net/http"

	ws "github.com/coder/websocket"

	"github.com/dukerupert/larder/internal/auth"
	"github.com/dukerupert/larder/internal/household"
)

// HandleWebSocket upgrades authenticated requests and streams the caller's
// household to them. It must sit behind middleware.RequireAuth. The
// connection is closed when its session ends if the hub is attached to the
// identity provider.
func HandleWebSocket(hub *Hub, sessions *household.Manager, originPatterns []string, logger *slog.Logger) http.HandlerFunc {
	logger = logger.With("component", "websocket")
	return func(w http.ResponseWriter, r *http.Request) {
		ac, _ := auth.FromContext(r.Context())
		householdID := ac.HouseholdID
		if householdID == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		session, release, err := sessions.Acquire(householdID)
		if err != nil {
			logger.Error("acquire household session", "household_id", householdID, "error", err)
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
		defer release()

		conn, err := ws.Accept(w, r, &ws.AcceptOptions{
			OriginPatterns: originPatterns,
		})
		if err != nil {
			logger.Warn("accept", "error", err)
			return
		}
		defer conn.CloseNow()

		client := NewClient(hub, conn, householdID, ac.Token)
		client.Run(r.Context(), session)
		conn.Close(ws.StatusNormalClosure, "")
	}
}
