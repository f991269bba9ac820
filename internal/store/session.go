package store

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/dukerupert/larder/internal/model"
)

type SessionStore struct {
	db *sql.DB
}

func NewSessionStore(db *sql.DB) *SessionStore {
	return &SessionStore{db: db}
}

func scanSession(scanner interface{ Scan(...any) error }) (*model.Session, error) {
	var s model.Session
	err := scanner.Scan(&s.ID, &s.Token, &s.UserID, &s.HouseholdID, &s.ExpiresAt, &s.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

const sessionCols = `id, token, user_id, household_id, expires_at, created_at`

// Create generates a new session with a crypto-random token.
func (s *SessionStore) Create(ctx context.Context, userID, householdID string, ttl time.Duration) (*model.Session, error) {
	tokenBytes := make([]byte, 32)
	if _, err := rand.Read(tokenBytes); err != nil {
		return nil, fmt.Errorf("generate token: %w", err)
	}
	token := hex.EncodeToString(tokenBytes)
	now := time.Now().UTC()

	result, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (token, user_id, household_id, expires_at, created_at) VALUES (?, ?, ?, ?, ?)`,
		token, userID, householdID, now.Add(ttl), now,
	)
	if err != nil {
		return nil, remote("insert session", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, remote("last insert id", err)
	}
	row := s.db.QueryRowContext(ctx, `SELECT `+sessionCols+` FROM sessions WHERE id = ?`, id)
	sess, err := scanSession(row)
	if err != nil {
		return nil, remote("get session", err)
	}
	return sess, nil
}

// GetByToken returns the session for the given token, or nil if expired or not found.
func (s *SessionStore) GetByToken(ctx context.Context, token string) (*model.Session, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+sessionCols+` FROM sessions WHERE token = ? AND expires_at > ?`,
		token, time.Now().UTC(),
	)
	sess, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, remote("get session by token", err)
	}
	return sess, nil
}

// DeleteByToken removes the session and returns it, or nil if there was none.
func (s *SessionStore) DeleteByToken(ctx context.Context, token string) (*model.Session, error) {
	row := s.db.QueryRowContext(ctx,
		`DELETE FROM sessions WHERE token = ? RETURNING `+sessionCols,
		token,
	)
	sess, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, remote("delete session", err)
	}
	return sess, nil
}

// DeleteExpired removes every expired session and returns them.
func (s *SessionStore) DeleteExpired(ctx context.Context) ([]model.Session, error) {
	rows, err := s.db.QueryContext(ctx,
		`DELETE FROM sessions WHERE expires_at <= ? RETURNING `+sessionCols,
		time.Now().UTC(),
	)
	if err != nil {
		return nil, remote("delete expired sessions", err)
	}
	defer rows.Close()

	var expired []model.Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, remote("scan expired session", err)
		}
		expired = append(expired, *sess)
	}
	if err := rows.Err(); err != nil {
		return nil, remote("delete expired sessions", err)
	}
	return expired, nil
}
