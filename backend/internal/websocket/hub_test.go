package websocket

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/user/papertrade/backend/internal/quote"
)

func startHub(t *testing.T) (*Hub, context.CancelFunc) {
	t.Helper()
	hub := NewHub(zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	t.Cleanup(cancel)
	return hub, cancel
}

func receive(t *testing.T, c *Client) Event {
	t.Helper()
	select {
	case msg, ok := <-c.Send:
		require.True(t, ok, "send queue closed")
		var ev Event
		require.NoError(t, json.Unmarshal(msg, &ev))
		return ev
	case <-time.After(time.Second):
		t.Fatal("no message received")
		return Event{}
	}
}

func assertSilent(t *testing.T, c *Client) {
	t.Helper()
	select {
	case msg := <-c.Send:
		t.Fatalf("unexpected message %s", msg)
	case <-time.After(20 * time.Millisecond):
	}
}

func TestPricesReachOnlyPriceClients(t *testing.T) {
	hub, _ := startHub(t)
	prices := NewClient(nil, TopicPrices, uuid.Nil)
	ledger := NewClient(nil, TopicLedger, uuid.New())
	hub.Register(prices)
	hub.Register(ledger)

	updates := make(chan quote.PriceUpdate, 1)
	updates <- quote.PriceUpdate{Symbol: "AAPL", Price: decimal.RequireFromString("1.5"), Ts: 1}
	close(updates)
	hub.ForwardPrices(context.Background(), updates)

	ev := receive(t, prices)
	assert.Equal(t, "price", ev.Type)
	assert.Equal(t, "AAPL", ev.Data.(map[string]interface{})["symbol"])
	assertSilent(t, ledger)
}

func TestPublishToUser(t *testing.T) {
	hub, _ := startHub(t)
	alice, bob := uuid.New(), uuid.New()
	aliceSock := NewClient(nil, TopicLedger, alice)
	bobSock := NewClient(nil, TopicLedger, bob)
	prices := NewClient(nil, TopicPrices, uuid.Nil)
	hub.Register(aliceSock)
	hub.Register(bobSock)
	hub.Register(prices)

	hub.PublishToUser(alice, "order", map[string]string{"symbol": "AAA"})

	ev := receive(t, aliceSock)
	assert.Equal(t, "order", ev.Type)
	assertSilent(t, bobSock)
	assertSilent(t, prices)
}

func TestUnregisterClosesSendQueue(t *testing.T) {
	hub, _ := startHub(t)
	c := NewClient(nil, TopicPrices, uuid.Nil)
	hub.Register(c)
	hub.Unregister(c)

	select {
	case _, ok := <-c.Send:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("send queue not closed")
	}

	// A second unregister of the same client is ignored.
	hub.Unregister(c)
}

func TestStoppedHubDoesNotBlock(t *testing.T) {
	hub, cancel := startHub(t)
	c := NewClient(nil, TopicPrices, uuid.Nil)
	hub.Register(c)
	cancel()

	select {
	case <-hub.done:
	case <-time.After(time.Second):
		t.Fatal("hub did not stop")
	}
	_, ok := <-c.Send
	assert.False(t, ok)

	hub.Register(NewClient(nil, TopicPrices, uuid.Nil))
	hub.Unregister(c)
	hub.PublishToUser(uuid.New(), "order", nil)
}
