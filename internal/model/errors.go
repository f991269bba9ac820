package model

import (
	"errors"
	"fmt"
)

// Sentinel errors shared by the store, repositories and the reconciliation
// engine. Check them with errors.Is.
var (
	// ErrValidation indicates malformed input: empty name, non-positive quantity.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound indicates the entity does not exist in the caller's household.
	ErrNotFound = errors.New("not found")

	// ErrInvalidState indicates the entity's state forbids the operation.
	ErrInvalidState = errors.New("invalid state")

	// ErrRemote indicates the backing store failed.
	ErrRemote = errors.New("remote store failure")

	// ErrListCompleted is returned for item writes against a completed list.
	// It matches ErrInvalidState and ErrNotFound: a completed list no longer
	// accepts items, so to item writes it is gone.
	ErrListCompleted = fmt.Errorf("shopping list completed: %w (%w)", ErrInvalidState, ErrNotFound)
)
