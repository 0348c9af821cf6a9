package ws

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met")
}

func TestHub_BroadcastToUser(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := NewHub(ctx)
	go hub.Run()

	userID := uuid.New()
	client := &Client{hub: hub, userID: userID, send: make(chan []byte, 1)}
	other := &Client{hub: hub, userID: uuid.New(), send: make(chan []byte, 1)}

	hub.Register(client)
	hub.Register(other)
	waitFor(t, func() bool { return hub.Connected(userID) == 1 })

	require.NoError(t, hub.BroadcastToUser(userID, "deal.escrowed", map[string]string{"deal_id": "d1"}))

	select {
	case raw := <-client.send:
		var msg map[string]any
		require.NoError(t, json.Unmarshal(raw, &msg))
		assert.Equal(t, "deal.escrowed", msg["type"])
		assert.Equal(t, "d1", msg["data"].(map[string]any)["deal_id"])
	case <-time.After(time.Second):
		t.Fatal("message not delivered")
	}

	assert.Empty(t, other.send)
}

func TestHub_Unregister(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := NewHub(ctx)
	go hub.Run()

	userID := uuid.New()
	client := &Client{hub: hub, userID: userID, send: make(chan []byte, 1)}

	hub.Register(client)
	waitFor(t, func() bool { return hub.Connected(userID) == 1 })

	hub.Unregister(client)
	waitFor(t, func() bool { return hub.Connected(userID) == 0 })
}

func TestHub_BroadcastAfterShutdown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	hub := &Hub{
		clients:    make(map[uuid.UUID]map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan message),
		ctx:        ctx,
	}
	cancel()

	err := hub.BroadcastToUser(uuid.New(), "x", nil)
	assert.ErrorIs(t, err, context.Canceled)
}
