package handlers

import (
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	ws "github.com/user/papertrade/backend/internal/websocket"
)

// authorizeSocket validates the ?token= query parameter before the upgrade.
// Browsers cannot set headers on websocket requests.
func (h *Handler) authorizeSocket(c *fiber.Ctx) error {
	claims, err := h.tokens.Validate(c.Query("token"))
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(errorBody("Invalid or expired token"))
	}
	c.Locals("userID", claims.UserID)
	return c.Next()
}

// PriceFeed streams simulated price ticks. The feed is public.
func (h *Handler) PriceFeed(c *websocket.Conn) {
	h.serve(ws.NewClient(c, ws.TopicPrices, uuid.Nil))
}

// LedgerFeed streams the caller's applied orders.
func (h *Handler) LedgerFeed(c *websocket.Conn) {
	userID, ok := c.Locals("userID").(uuid.UUID)
	if !ok {
		_ = c.Close()
		return
	}
	h.serve(ws.NewClient(c, ws.TopicLedger, userID))
}

// serve registers client and pumps until the connection closes. The
// contrib handler closes the connection once serve returns.
func (h *Handler) serve(client *ws.Client) {
	h.hub.Register(client)
	h.log.Debug("WebSocket connection established", zap.String("remote", client.Conn.RemoteAddr().String()))

	go h.writePump(client)
	h.readPump(client)
}

// writePump pumps messages from the hub to the websocket connection.
func (h *Handler) writePump(client *ws.Client) {
	for message := range client.Send {
		if err := client.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
			h.log.Debug("Error writing websocket message", zap.Error(err))
			h.hub.Unregister(client)
			break
		}
	}
	// The hub closed Send: stop the read side as well.
	_ = client.Conn.Close()
}

// readPump discards client messages and unregisters on disconnect.
func (h *Handler) readPump(client *ws.Client) {
	defer h.hub.Unregister(client)

	for {
		if _, _, err := client.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.log.Debug("Client disconnected unexpectedly", zap.Error(err))
			}
			return
		}
	}
}
