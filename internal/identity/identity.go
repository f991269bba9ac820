// Package identity signs household members in and out.
//
// A member belongs to exactly one household, fixed at registration. Signing
// in yields an opaque session token; every request presents it and is
// resolved back to an Identity with Authenticate.
package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/dukerupert/larder/internal/model"
	"github.com/dukerupert/larder/internal/validate"
)

var (
	// ErrInvalidCredentials covers unknown emails, wrong passwords and
	// unknown or expired tokens alike.
	ErrInvalidCredentials = errors.New("invalid credentials")

	ErrEmailTaken = fmt.Errorf("email already registered: %w", model.ErrInvalidState)
)

// Identity is an authenticated household member.
type Identity struct {
	UserID      string `json:"user_id"`
	Email       string `json:"email"`
	HouseholdID string `json:"household_id"`
}

// AuthState is delivered to listeners on every sign-in and sign-out.
// Identity is nil when the session ended.
type AuthState struct {
	Token       string
	HouseholdID string
	Identity    *Identity
}

func (s AuthState) SignedIn() bool { return s.Identity != nil }

type Users interface {
	Create(ctx context.Context, u model.User) (*model.User, error)
	GetByID(ctx context.Context, id string) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
}

type Sessions interface {
	Create(ctx context.Context, userID, householdID string, ttl time.Duration) (*model.Session, error)
	GetByToken(ctx context.Context, token string) (*model.Session, error)
	DeleteByToken(ctx context.Context, token string) (*model.Session, error)
	DeleteExpired(ctx context.Context) ([]model.Session, error)
}

// Credentials is the register and sign-in payload.
type Credentials struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

type Provider struct {
	users    Users
	sessions Sessions
	ttl      time.Duration
	logger   *slog.Logger

	mu        sync.Mutex
	listeners map[uint64]func(AuthState)
	nextID    uint64
}

func NewProvider(users Users, sessions Sessions, ttl time.Duration, logger *slog.Logger) *Provider {
	return &Provider{
		users:     users,
		sessions:  sessions,
		ttl:       ttl,
		logger:    logger.With("component", "identity"),
		listeners: make(map[uint64]func(AuthState)),
	}
}

// Register creates a member in a new household and signs them in.
func (p *Provider) Register(ctx context.Context, c Credentials) (*Identity, string, error) {
	c.Email = strings.TrimSpace(c.Email)
	if err := validate.Struct(c); err != nil {
		return nil, "", fmt.Errorf("register: %w", err)
	}

	existing, err := p.users.GetByEmail(ctx, c.Email)
	if err != nil {
		return nil, "", fmt.Errorf("register: %w", err)
	}
	if existing != nil {
		return nil, "", fmt.Errorf("register %s: %w", c.Email, ErrEmailTaken)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(c.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, "", fmt.Errorf("hash password: %w", err)
	}
	user, err := p.users.Create(ctx, model.User{
		ID:           uuid.NewString(),
		Email:        c.Email,
		HouseholdID:  uuid.NewString(),
		PasswordHash: string(hash),
		CreatedAt:    time.Now().UTC(),
	})
	if err != nil {
		return nil, "", fmt.Errorf("register: %w", err)
	}

	p.logger.Info("member registered", "user_id", user.ID, "household_id", user.HouseholdID)
	return p.startSession(ctx, user)
}

// SignIn checks the password and opens a session.
func (p *Provider) SignIn(ctx context.Context, c Credentials) (*Identity, string, error) {
	user, err := p.users.GetByEmail(ctx, strings.TrimSpace(c.Email))
	if err != nil {
		return nil, "", fmt.Errorf("sign in: %w", err)
	}
	if user == nil {
		return nil, "", ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(c.Password)); err != nil {
		return nil, "", ErrInvalidCredentials
	}
	return p.startSession(ctx, user)
}

func (p *Provider) startSession(ctx context.Context, user *model.User) (*Identity, string, error) {
	sess, err := p.sessions.Create(ctx, user.ID, user.HouseholdID, p.ttl)
	if err != nil {
		return nil, "", fmt.Errorf("create session: %w", err)
	}
	id := identityOf(user)
	p.emit(AuthState{Token: sess.Token, HouseholdID: user.HouseholdID, Identity: id})
	return id, sess.Token, nil
}

// SignOut ends the session. Signing out an unknown token is a no-op.
func (p *Provider) SignOut(ctx context.Context, token string) error {
	sess, err := p.sessions.DeleteByToken(ctx, token)
	if err != nil {
		return fmt.Errorf("sign out: %w", err)
	}
	if sess == nil {
		return nil
	}
	p.emit(AuthState{Token: token, HouseholdID: sess.HouseholdID})
	return nil
}

// Authenticate resolves a session token to its member.
func (p *Provider) Authenticate(ctx context.Context, token string) (*Identity, error) {
	if token == "" {
		return nil, ErrInvalidCredentials
	}
	sess, err := p.sessions.GetByToken(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("authenticate: %w", err)
	}
	if sess == nil {
		return nil, ErrInvalidCredentials
	}
	user, err := p.users.GetByID(ctx, sess.UserID)
	if err != nil {
		return nil, fmt.Errorf("authenticate: %w", err)
	}
	if user == nil {
		return nil, ErrInvalidCredentials
	}
	return identityOf(user), nil
}

// PurgeExpired deletes expired sessions and tells listeners they ended.
func (p *Provider) PurgeExpired(ctx context.Context) (int, error) {
	expired, err := p.sessions.DeleteExpired(ctx)
	if err != nil {
		return 0, fmt.Errorf("purge expired sessions: %w", err)
	}
	for _, sess := range expired {
		p.emit(AuthState{Token: sess.Token, HouseholdID: sess.HouseholdID})
	}
	return len(expired), nil
}

// OnAuthStateChange registers fn for every later sign-in and sign-out.
// Listeners run synchronously on the signing goroutine. The returned
// function unregisters fn.
func (p *Provider) OnAuthStateChange(fn func(AuthState)) (unsubscribe func()) {
	p.mu.Lock()
	id := p.nextID
	p.nextID++
	p.listeners[id] = fn
	p.mu.Unlock()

	return func() {
		p.mu.Lock()
		delete(p.listeners, id)
		p.mu.Unlock()
	}
}

func (p *Provider) emit(state AuthState) {
	p.mu.Lock()
	fns := make([]func(AuthState), 0, len(p.listeners))
	for _, fn := range p.listeners {
		fns = append(fns, fn)
	}
	p.mu.Unlock()

	for _, fn := range fns {
		fn(state)
	}
}

func identityOf(u *model.User) *Identity {
	return &Identity{UserID: u.ID, Email: u.Email, HouseholdID: u.HouseholdID}
}
