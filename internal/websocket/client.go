package websocket

import (
	"context"
	"encoding/json"
	"time"

	ws "github.com/coder/websocket"

	"github.com/dukerupert/larder/internal/household"
	"github.com/dukerupert/larder/internal/model"
	"github.com/dukerupert/larder/internal/shopping"
)

const (
	sendBufferSize = 16
	pingInterval   = 30 * time.Second
	writeTimeout   = 10 * time.Second
)

// Client represents a single WebSocket connection.
type Client struct {
	hub         *Hub
	conn        *ws.Conn
	householdID string
	token       string // session the connection authenticated with
	send        chan []byte
	cancel      context.CancelFunc
}

func NewClient(hub *Hub, conn *ws.Conn, householdID, token string) *Client {
	return &Client{
		hub:         hub,
		conn:        conn,
		householdID: householdID,
		token:       token,
		send:        make(chan []byte, sendBufferSize),
	}
}

// ListsSnapshot is the payload of a shopping_lists snapshot message.
type ListsSnapshot struct {
	Active    []model.ShoppingList `json:"active"`
	Completed []model.ShoppingList `json:"completed"`
}

// Run registers the client, starts the write pump, and runs the read pump.
// It blocks until the connection is closed or the hub disconnects the
// client, then unregisters.
func (c *Client) Run(ctx context.Context, session *household.Session) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	c.cancel = cancel

	c.hub.Register(c)
	defer c.hub.Unregister(c)

	go c.writePump(ctx, session)
	c.readPump(ctx)
}

// readPump reads and discards all incoming messages. It returns on error
// (connection close), which triggers cleanup.
func (c *Client) readPump(ctx context.Context) {
	for {
		_, _, err := c.conn.Read(ctx)
		if err != nil {
			return
		}
	}
}

// writePump writes hub messages and projection snapshots to the socket.
// Snapshots come straight from the projections, so a slow client skips
// intermediate snapshots but always ends up with the latest.
func (c *Client) writePump(ctx context.Context, session *household.Session) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	items, stopItems := session.Inventory.Items().Subscribe()
	defer stopItems()
	lists, stopLists := session.Shopping.Lists().Subscribe()
	defer stopLists()

	for {
		var msg []byte
		select {
		case data, ok := <-c.send:
			if !ok {
				// Hub closed the channel; connection is done
				return
			}
			msg = data
		case snapshot, ok := <-items:
			if !ok {
				return
			}
			msg = encode(NewMessage("inventory", "snapshot", "", snapshot))
		case snapshot, ok := <-lists:
			if !ok {
				return
			}
			active, completed := shopping.Partition(snapshot)
			msg = encode(NewMessage("shopping_lists", "snapshot", "", ListsSnapshot{Active: active, Completed: completed}))
		case <-ticker.C:
			if err := c.conn.Ping(ctx); err != nil {
				return
			}
			continue
		case <-ctx.Done():
			return
		}

		if ctx.Err() != nil {
			return
		}
		if msg == nil {
			continue
		}
		wctx, cancel := context.WithTimeout(ctx, writeTimeout)
		err := c.conn.Write(wctx, ws.MessageText, msg)
		cancel()
		if err != nil {
			return
		}
	}
}

func encode(msg Message) []byte {
	data, err := json.Marshal(msg)
	if err != nil {
		return nil
	}
	return data
}
