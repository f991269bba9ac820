package identity

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/dukerupert/larder/internal/database"
	"github.com/dukerupert/larder/internal/model"
	"github.com/dukerupert/larder/internal/store"
)

func setupProvider(t *testing.T, ttl time.Duration) *Provider {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewProvider(store.NewUserStore(db), store.NewSessionStore(db), ttl, slog.Default())
}

var sam = Credentials{Email: "sam@example.com", Password: "correct horse"}

func TestRegisterAndAuthenticate(t *testing.T) {
	p := setupProvider(t, time.Hour)
	ctx := context.Background()

	id, token, err := p.Register(ctx, sam)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if id.HouseholdID == "" || token == "" {
		t.Fatalf("got identity %+v token %q", id, token)
	}

	got, err := p.Authenticate(ctx, token)
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if *got != *id {
		t.Errorf("Authenticate = %+v, want %+v", got, id)
	}
}

func TestRegisterValidation(t *testing.T) {
	p := setupProvider(t, time.Hour)
	ctx := context.Background()

	tests := []struct {
		name string
		c    Credentials
	}{
		{"bad email", Credentials{Email: "nope", Password: "long enough"}},
		{"short password", Credentials{Email: "a@example.com", Password: "short"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, err := p.Register(ctx, tt.c); !errors.Is(err, model.ErrValidation) {
				t.Errorf("expected ErrValidation, got %v", err)
			}
		})
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	p := setupProvider(t, time.Hour)
	ctx := context.Background()
	p.Register(ctx, sam)

	_, _, err := p.Register(ctx, Credentials{Email: "SAM@example.com", Password: "another one"})
	if !errors.Is(err, ErrEmailTaken) {
		t.Errorf("expected ErrEmailTaken, got %v", err)
	}
}

func TestSignIn(t *testing.T) {
	p := setupProvider(t, time.Hour)
	ctx := context.Background()
	registered, _, _ := p.Register(ctx, sam)

	id, token, err := p.SignIn(ctx, sam)
	if err != nil {
		t.Fatalf("SignIn: %v", err)
	}
	if id.HouseholdID != registered.HouseholdID || token == "" {
		t.Errorf("SignIn = %+v, %q", id, token)
	}
}

func TestSignInInvalidCredentials(t *testing.T) {
	p := setupProvider(t, time.Hour)
	ctx := context.Background()
	p.Register(ctx, sam)

	tests := []Credentials{
		{Email: "sam@example.com", Password: "wrong password"},
		{Email: "nobody@example.com", Password: "correct horse"},
	}
	for _, c := range tests {
		if _, _, err := p.SignIn(ctx, c); !errors.Is(err, ErrInvalidCredentials) {
			t.Errorf("SignIn(%s): expected ErrInvalidCredentials, got %v", c.Email, err)
		}
	}
}

func TestSignOut(t *testing.T) {
	p := setupProvider(t, time.Hour)
	ctx := context.Background()
	_, token, _ := p.Register(ctx, sam)

	if err := p.SignOut(ctx, token); err != nil {
		t.Fatalf("SignOut: %v", err)
	}
	if _, err := p.Authenticate(ctx, token); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("expected ErrInvalidCredentials after sign out, got %v", err)
	}
	// Unknown token is a no-op
	if err := p.SignOut(ctx, token); err != nil {
		t.Errorf("second SignOut: %v", err)
	}
}

func TestAuthenticateEmptyToken(t *testing.T) {
	p := setupProvider(t, time.Hour)
	if _, err := p.Authenticate(context.Background(), ""); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestOnAuthStateChange(t *testing.T) {
	p := setupProvider(t, time.Hour)
	ctx := context.Background()

	var mu sync.Mutex
	var states []AuthState
	unsubscribe := p.OnAuthStateChange(func(s AuthState) {
		mu.Lock()
		states = append(states, s)
		mu.Unlock()
	})

	id, token, _ := p.Register(ctx, sam)
	p.SignOut(ctx, token)
	unsubscribe()
	p.SignIn(ctx, sam)

	mu.Lock()
	defer mu.Unlock()
	if len(states) != 2 {
		t.Fatalf("got %d states, want 2", len(states))
	}
	if !states[0].SignedIn() || states[0].Token != token || states[0].Identity.UserID != id.UserID {
		t.Errorf("first state = %+v, want sign-in", states[0])
	}
	if states[1].SignedIn() || states[1].Token != token || states[1].HouseholdID != id.HouseholdID {
		t.Errorf("second state = %+v, want sign-out", states[1])
	}
}

func TestPurgeExpired(t *testing.T) {
	p := setupProvider(t, -time.Minute)
	ctx := context.Background()
	_, token, _ := p.Register(ctx, sam)

	var signedOut []string
	p.OnAuthStateChange(func(s AuthState) {
		if !s.SignedIn() {
			signedOut = append(signedOut, s.Token)
		}
	})

	n, err := p.PurgeExpired(ctx)
	if err != nil {
		t.Fatalf("PurgeExpired: %v", err)
	}
	if n != 1 || len(signedOut) != 1 || signedOut[0] != token {
		t.Errorf("purged %d, signed out %v", n, signedOut)
	}
}
