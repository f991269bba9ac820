// Package household keeps one live session per signed-in household: its
// repositories, their projections and the watchers feeding them.
//
// Sessions are reference counted. Every signed-in token and every open
// WebSocket holds a reference; when the last one is released the watchers
// stop and the projections are reset.
package household

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/dukerupert/larder/internal/identity"
	"github.com/dukerupert/larder/internal/inventory"
	"github.com/dukerupert/larder/internal/metrics"
	"github.com/dukerupert/larder/internal/shopping"
)

// Session is the live state of one household.
type Session struct {
	HouseholdID string
	Inventory   *inventory.Repository
	Shopping    *shopping.Repository

	cancel context.CancelFunc
	refs   int
}

func (s *Session) close() {
	s.cancel()
	s.Inventory.Wait()
	s.Shopping.Wait()
	s.Inventory.Items().Reset()
	s.Shopping.Lists().Reset()
}

// Deps are the remote-store handles sessions are built on.
type Deps struct {
	Inventory  inventory.Remote
	Lists      shopping.Remote
	Reconciler shopping.Reconciler
}

type Manager struct {
	deps   Deps
	base   *slog.Logger
	logger *slog.Logger

	mu       sync.Mutex
	sessions map[string]*Session
	tokens   map[string]string // token -> household
}

func NewManager(deps Deps, logger *slog.Logger) *Manager {
	return &Manager{
		deps:     deps,
		base:     logger,
		logger:   logger.With("component", "household"),
		sessions: make(map[string]*Session),
		tokens:   make(map[string]string),
	}
}

// Inventory returns the household's inventory repository: the live one if
// the household has a session, otherwise an unwatched one.
func (m *Manager) Inventory(householdID string) *inventory.Repository {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[householdID]; ok {
		return s.Inventory
	}
	return inventory.NewRepository(m.deps.Inventory, householdID, m.base)
}

// Shopping is Inventory's counterpart for shopping lists.
func (m *Manager) Shopping(householdID string) *shopping.Repository {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[householdID]; ok {
		return s.Shopping
	}
	return shopping.NewRepository(m.deps.Lists, m.deps.Reconciler, householdID, m.base)
}

// Acquire returns the household's session, starting it if needed. Call
// release exactly once when done.
func (m *Manager) Acquire(householdID string) (*Session, func(), error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[householdID]
	if !ok {
		var err error
		s, err = m.start(householdID)
		if err != nil {
			return nil, nil, err
		}
		m.sessions[householdID] = s
		metrics.HouseholdSessions.Inc()
		m.logger.Info("household session started", "household_id", householdID)
	}
	s.refs++

	var once sync.Once
	release := func() {
		once.Do(func() { m.release(s) })
	}
	return s, release, nil
}

func (m *Manager) start(householdID string) (*Session, error) {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		HouseholdID: householdID,
		Inventory:   inventory.NewRepository(m.deps.Inventory, householdID, m.base),
		Shopping:    shopping.NewRepository(m.deps.Lists, m.deps.Reconciler, householdID, m.base),
		cancel:      cancel,
	}
	if err := s.Inventory.Watch(ctx); err != nil {
		cancel()
		return nil, fmt.Errorf("start household %s: %w", householdID, err)
	}
	if err := s.Shopping.Watch(ctx); err != nil {
		cancel()
		return nil, fmt.Errorf("start household %s: %w", householdID, err)
	}
	return s, nil
}

func (m *Manager) release(s *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s.refs--
	if s.refs > 0 {
		return
	}
	if m.sessions[s.HouseholdID] == s {
		delete(m.sessions, s.HouseholdID)
		metrics.HouseholdSessions.Dec()
	}
	s.close()
	m.logger.Info("household session stopped", "household_id", s.HouseholdID)
}

// Attach ties sessions to the provider's auth state: a sign-in holds a
// reference to the member's household until that token signs out.
func (m *Manager) Attach(p *identity.Provider) (detach func()) {
	releases := make(map[string]func())
	var mu sync.Mutex

	return p.OnAuthStateChange(func(state identity.AuthState) {
		mu.Lock()
		defer mu.Unlock()

		if state.SignedIn() {
			if _, held := releases[state.Token]; held {
				return
			}
			_, release, err := m.Acquire(state.HouseholdID)
			if err != nil {
				m.logger.Error("start household session", "household_id", state.HouseholdID, "error", err)
				return
			}
			releases[state.Token] = release
			m.trackToken(state.Token, state.HouseholdID)
			return
		}

		if release, held := releases[state.Token]; held {
			delete(releases, state.Token)
			m.forgetToken(state.Token)
			release()
		}
	})
}

func (m *Manager) trackToken(token, householdID string) {
	m.mu.Lock()
	m.tokens[token] = householdID
	m.mu.Unlock()
}

func (m *Manager) forgetToken(token string) {
	m.mu.Lock()
	delete(m.tokens, token)
	m.mu.Unlock()
}

// Active reports whether the household has a live session.
func (m *Manager) Active(householdID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.sessions[householdID]
	return ok
}

// SignedInTokens returns how many tokens currently hold a session.
func (m *Manager) SignedInTokens() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tokens)
}

// Close stops every session regardless of references.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, s := range m.sessions {
		s.close()
		delete(m.sessions, id)
		metrics.HouseholdSessions.Dec()
	}
	clear(m.tokens)
}
