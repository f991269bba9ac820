// Package feed carries change notifications from the store to live queries.
//
// A notification only says "collection C of household H changed"; subscribers
// reload the full snapshot themselves. Notifications for one subscriber are
// coalesced, so a slow reader sees the latest state rather than every write.
package feed

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

type Collection string

const (
	InventoryItems Collection = "inventory_items"
	ShoppingLists  Collection = "shopping_lists"
)

const outputBuffer = 64

// Topic returns the pub/sub topic for a household's collection.
func Topic(c Collection, householdID string) string {
	return string(c) + "." + householdID
}

// Feed is an in-process pub/sub of collection change notifications.
type Feed struct {
	pubsub *gochannel.GoChannel
	logger *slog.Logger
}

// New creates a Feed backed by a watermill Go channel pub/sub.
func New(logger *slog.Logger) *Feed {
	pubsub := gochannel.NewGoChannel(
		gochannel.Config{OutputChannelBuffer: outputBuffer},
		watermill.NewSlogLogger(logger),
	)
	return &Feed{pubsub: pubsub, logger: logger}
}

// Publish announces that the household's collection changed.
func (f *Feed) Publish(c Collection, householdID string) error {
	msg := message.NewMessage(watermill.NewUUID(), nil)
	msg.Metadata.Set("collection", string(c))
	msg.Metadata.Set("household_id", householdID)
	if err := f.pubsub.Publish(Topic(c, householdID), msg); err != nil {
		return fmt.Errorf("publish %s: %w", c, err)
	}
	return nil
}

// Subscribe returns a channel that receives a value after each change to the
// household's collection. Pending notifications are merged into one. The
// channel is closed when ctx is done or the feed is closed.
func (f *Feed) Subscribe(ctx context.Context, c Collection, householdID string) (<-chan struct{}, error) {
	msgs, err := f.pubsub.Subscribe(ctx, Topic(c, householdID))
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", c, err)
	}

	changes := make(chan struct{}, 1)
	go func() {
		defer close(changes)
		for msg := range msgs {
			msg.Ack()
			select {
			case changes <- struct{}{}:
			default:
				// A notification is already pending
			}
		}
	}()
	return changes, nil
}

// Close stops all subscriptions.
func (f *Feed) Close() error {
	return f.pubsub.Close()
}
