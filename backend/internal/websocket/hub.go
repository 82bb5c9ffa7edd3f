// Package websocket fans live events out to connected clients: simulated
// price ticks to every price subscriber and applied orders to the sockets of
// the user who placed them.
package websocket

import (
	"context"
	"encoding/json"

	"github.com/gofiber/contrib/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/user/papertrade/backend/internal/quote"
)

// Topic selects which events a client receives.
type Topic string

const (
	TopicPrices Topic = "prices"
	TopicLedger Topic = "ledger"
)

// Client represents a single WebSocket client connection.
type Client struct {
	Conn   *websocket.Conn
	Send   chan []byte // Buffered channel for outbound messages
	Topic  Topic
	UserID uuid.UUID // set for TopicLedger
}

// NewClient creates a client with a buffered send queue.
func NewClient(conn *websocket.Conn, topic Topic, userID uuid.UUID) *Client {
	return &Client{Conn: conn, Send: make(chan []byte, 256), Topic: topic, UserID: userID}
}

type userMessage struct {
	userID uuid.UUID
	data   []byte
}

// Event is the envelope of every message sent to a client.
type Event struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// Hub manages WebSocket clients and broadcasts messages.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	direct     chan userMessage
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	log        *zap.Logger
}

// NewHub creates and initializes a new Hub.
func NewHub(log *zap.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, 256),
		direct:     make(chan userMessage, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		log:        log,
	}
}

// Run starts the Hub's event loop and returns when ctx is done.
func (h *Hub) Run(ctx context.Context) {
	h.log.Info("Starting WebSocket hub")
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			for client := range h.clients {
				h.drop(client)
			}
			h.log.Info("WebSocket hub stopped")
			return

		case client := <-h.register:
			h.clients[client] = true
			h.log.Debug("Client registered", zap.String("topic", string(client.Topic)), zap.Stringer("user_id", client.UserID))

		case client := <-h.unregister:
			if h.clients[client] {
				h.drop(client)
				h.log.Debug("Client unregistered", zap.String("topic", string(client.Topic)), zap.Stringer("user_id", client.UserID))
			}

		case message := <-h.broadcast:
			for client := range h.clients {
				if client.Topic == TopicPrices {
					h.deliver(client, message)
				}
			}

		case msg := <-h.direct:
			for client := range h.clients {
				if client.Topic == TopicLedger && client.UserID == msg.userID {
					h.deliver(client, msg.data)
				}
			}
		}
	}
}

// deliver queues message for client, dropping clients that fall behind.
func (h *Hub) deliver(client *Client, message []byte) {
	select {
	case client.Send <- message:
	default:
		h.log.Warn("Client send buffer full, closing connection", zap.String("topic", string(client.Topic)))
		h.drop(client)
	}
}

func (h *Hub) drop(client *Client) {
	delete(h.clients, client)
	close(client.Send)
}

// Register adds client to the hub. It is a no-op once the hub has stopped.
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
	}
}

// Unregister removes client and closes its send queue.
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// ForwardPrices broadcasts every update until updates is closed or ctx is done.
func (h *Hub) ForwardPrices(ctx context.Context, updates <-chan quote.PriceUpdate) {
	h.log.Info("Hub listening for price updates")
	for {
		select {
		case <-ctx.Done():
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			msg, err := json.Marshal(Event{Type: "price", Data: update})
			if err != nil {
				h.log.Error("Error marshalling price update", zap.Error(err))
				continue
			}
			select {
			case h.broadcast <- msg:
			case <-ctx.Done():
				return
			}
		}
	}
}

// PublishToUser sends an event to every ledger socket of userID. Events are
// dropped when the hub is saturated or stopped; callers never block.
func (h *Hub) PublishToUser(userID uuid.UUID, eventType string, data interface{}) {
	msg, err := json.Marshal(Event{Type: eventType, Data: data})
	if err != nil {
		h.log.Error("Error marshalling user event", zap.String("type", eventType), zap.Error(err))
		return
	}
	select {
	case h.direct <- userMessage{userID: userID, data: msg}:
	default:
		h.log.Warn("Hub queue full, dropping user event", zap.Stringer("user_id", userID), zap.String("type", eventType))
	}
}
