package handlers

import (
	"log"

	"chat-core/internal/services"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

// WebSocketHandler runs one connection: register with the hub, start
// the write pump, then loop on reads until the socket dies.
func WebSocketHandler(hub *Hub) fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		// Set by AuthMiddleware before the upgrade.
		userID := conn.Locals("user_id").(string)

		connID := uuid.New().String()
		client := NewClient(connID, userID, conn)

		hub.Connect(client)
		defer func() {
			hub.Disconnect(client)
			conn.Close()
		}()

		go client.WritePump()

		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					log.Printf("error: %v", err)
				}
				break
			}
			hub.HandleFrame(client, msg)
		}
	})
}

// WSUpgradeMiddleware upgrades the connection to WebSocket
func WSUpgradeMiddleware(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		c.Locals("allowed", true)
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

// AuthMiddleware verifies the JWT token before upgrading
func AuthMiddleware(c *fiber.Ctx) error {
	// Get token from query param `access_token` or Authorization header
	token := c.Query("access_token")
	if token == "" {
		authHeader := c.Get("Authorization")
		if len(authHeader) > 7 && authHeader[:7] == "Bearer " {
			token = authHeader[7:]
		}
	}

	if token == "" {
		return fiber.NewError(fiber.StatusUnauthorized, "Missing token")
	}

	claims, err := services.ValidateToken(token)
	if err != nil {
		return fiber.NewError(fiber.StatusUnauthorized, "Invalid token")
	}

	uid, ok := claims["user_id"].(string)
	if !ok || uid == "" {
		return fiber.NewError(fiber.StatusUnauthorized, "Invalid token claims")
	}
	c.Locals("user_id", uid)

	if u, ok := claims["username"].(string); ok {
		c.Locals("username", u)
	}

	return c.Next()
}
