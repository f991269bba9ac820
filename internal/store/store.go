package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dukerupert/larder/internal/feed"
	"github.com/dukerupert/larder/internal/model"
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// remote wraps a database failure so callers can match model.ErrRemote
// while the driver error stays in the chain.
func remote(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", model.ErrRemote, op, err)
}

// completedAbort reports whether err came from the triggers that freeze
// completed shopping lists.
func completedAbort(err error) bool {
	return err != nil && strings.Contains(err.Error(), "shopping list already completed")
}

func notify(f *feed.Feed, c feed.Collection, householdID string) {
	if f == nil {
		return
	}
	if err := f.Publish(c, householdID); err != nil {
		slog.Warn("publish change", "collection", c, "household_id", householdID, "error", err)
	}
}

func rowsAffected(result sql.Result, op string) (int64, error) {
	n, err := result.RowsAffected()
	if err != nil {
		return 0, remote(op+": rows affected", err)
	}
	return n, nil
}
