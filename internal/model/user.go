package model

import "time"

type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	HouseholdID  string    `json:"household_id"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

type Session struct {
	ID          int64     `json:"id"`
	Token       string    `json:"token"`
	UserID      string    `json:"user_id"`
	HouseholdID string    `json:"household_id"`
	ExpiresAt   time.Time `json:"expires_at"`
	CreatedAt   time.Time `json:"created_at"`
}
