package store

import (
	"context"
	"fmt"
	"time"

	"github.com/dukerupert/larder/internal/feed"
	"github.com/dukerupert/larder/internal/model"
)

// subscribe turns change notifications into full-collection snapshots. The
// feed subscription is taken before the first load so no change between the
// two is missed.
func subscribe[T any](ctx context.Context, f *feed.Feed, c feed.Collection, householdID string, load func(context.Context) ([]T, error)) (<-chan model.Snapshot[T], error) {
	changes, err := f.Subscribe(ctx, c, householdID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrRemote, err)
	}

	out := make(chan model.Snapshot[T], 1)
	go func() {
		defer close(out)

		deliver := func() bool {
			items, err := load(ctx)
			if err != nil && ctx.Err() != nil {
				return false
			}
			snap := model.Snapshot[T]{Items: items, At: time.Now().UTC(), Err: err}
			if err != nil {
				snap.Items = nil
			}
			select {
			case out <- snap:
				return true
			case <-ctx.Done():
				return false
			}
		}

		if !deliver() {
			return
		}
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-changes:
				if !ok {
					return
				}
				if !deliver() {
					return
				}
			}
		}
	}()
	return out, nil
}
