package server

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/larder/internal/feed"
	"github.com/dukerupert/larder/internal/handler"
	"github.com/dukerupert/larder/internal/household"
	"github.com/dukerupert/larder/internal/identity"
	"github.com/dukerupert/larder/internal/metrics"
	"github.com/dukerupert/larder/internal/middleware"
	"github.com/dukerupert/larder/internal/reconcile"
	"github.com/dukerupert/larder/internal/store"
	ws "github.com/dukerupert/larder/internal/websocket"
)

// Options are the HTTP-facing knobs taken from configuration.
type Options struct {
	CORSOrigins   string
	LoginRate     int
	MaxBodyBytes  int64
	SessionTTL    time.Duration
	SecureCookies bool
	TrustProxy    bool
}

type Server struct {
	db         *sql.DB
	hub        *ws.Hub
	provider   *identity.Provider
	sessions   *household.Manager
	detach     func()
	inventoryH *handler.InventoryHandler
	shoppingH  *handler.ShoppingHandler
	authH      *handler.AuthHandler
	opts       Options
	logger     *slog.Logger
}

func New(db *sql.DB, f *feed.Feed, opts Options, logger *slog.Logger) *Server {
	hub := ws.NewHub(logger.With("component", "websocket"))

	inventoryStore := store.NewInventoryStore(db, f)
	listStore := store.NewShoppingListStore(db, f)
	committer := store.NewCommitter(db, f)

	engine := reconcile.NewEngine(committer, logger)
	provider := identity.NewProvider(
		store.NewUserStore(db),
		store.NewSessionStore(db),
		opts.SessionTTL,
		logger,
	)

	sessions := household.NewManager(household.Deps{
		Inventory:  inventoryStore,
		Lists:      listStore,
		Reconciler: engine,
	}, logger)
	detachSessions := sessions.Attach(provider)
	detachHub := hub.Attach(provider)
	detach := func() {
		detachHub()
		detachSessions()
	}

	return &Server{
		db:         db,
		hub:        hub,
		provider:   provider,
		sessions:   sessions,
		detach:     detach,
		inventoryH: handler.NewInventoryHandler(sessions, hub, logger.With("component", "inventory")),
		shoppingH:  handler.NewShoppingHandler(sessions, hub, logger.With("component", "shopping")),
		authH:      handler.NewAuthHandler(provider, opts.SessionTTL, opts.SecureCookies, logger.With("component", "auth")),
		opts:       opts,
		logger:     logger,
	}
}

// Provider returns the identity provider for session cleanup tasks.
func (s *Server) Provider() *identity.Provider {
	return s.provider
}

// Sessions returns the household session manager.
func (s *Server) Sessions() *household.Manager {
	return s.sessions
}

// Close stops following auth state and tears down every household session.
func (s *Server) Close() {
	s.detach()
	s.sessions.Close()
}

func (s *Server) Router() http.Handler {
	outerMux := http.NewServeMux()

	// Public routes (no auth required)
	loginLimit := middleware.RateLimit(s.opts.LoginRate, time.Minute, s.opts.TrustProxy)
	outerMux.Handle("POST /api/auth/register", loginLimit(http.HandlerFunc(s.authH.Register)))
	outerMux.Handle("POST /api/auth/login", loginLimit(http.HandlerFunc(s.authH.Login)))
	outerMux.HandleFunc("GET /health", s.healthHandler)
	outerMux.Handle("GET /metrics", metrics.Handler())

	// Protected routes, wrapped with RequireAuth middleware
	protectedMux := http.NewServeMux()
	s.registerProtectedRoutes(protectedMux)

	authMiddleware := middleware.RequireAuth(s.provider, s.logger.With("component", "auth"))
	outerMux.Handle("/", authMiddleware(protectedMux))

	var h http.Handler = outerMux
	h = middleware.BodyLimit(s.opts.MaxBodyBytes)(h)
	h = middleware.CORS(s.opts.CORSOrigins)(h)
	return middleware.RequestLogger(s.logger.With("component", "http"))(h)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := s.db.PingContext(r.Context()); err != nil {
		s.logger.Error("health check", "error", err)
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(map[string]string{"status": "unavailable"})
		return
	}
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) registerProtectedRoutes(mux *http.ServeMux) {
	// Auth routes that require authentication
	mux.HandleFunc("POST /api/auth/logout", s.authH.Logout)
	mux.HandleFunc("GET /api/auth/me", s.authH.Me)

	// Inventory
	mux.HandleFunc("GET /api/inventory", s.inventoryH.List)
	mux.HandleFunc("POST /api/inventory", s.inventoryH.Create)
	mux.HandleFunc("PATCH /api/inventory/{id}", s.inventoryH.Update)
	mux.HandleFunc("DELETE /api/inventory/{id}", s.inventoryH.Delete)
	mux.HandleFunc("POST /api/inventory/{id}/toggle", s.inventoryH.Toggle)

	// Shopping lists
	mux.HandleFunc("GET /api/lists", s.shoppingH.ListLists)
	mux.HandleFunc("POST /api/lists", s.shoppingH.CreateList)
	mux.HandleFunc("GET /api/lists/{id}", s.shoppingH.GetList)
	mux.HandleFunc("POST /api/lists/{id}/items", s.shoppingH.AddItem)
	mux.HandleFunc("POST /api/lists/{id}/items/{item_id}/toggle", s.shoppingH.ToggleItem)
	mux.HandleFunc("POST /api/lists/{id}/reconcile", s.shoppingH.Reconcile)

	// WebSocket
	origins := middleware.ParseOrigins(s.opts.CORSOrigins)
	mux.HandleFunc("GET /ws", ws.HandleWebSocket(s.hub, s.sessions, origins, s.logger))
}
