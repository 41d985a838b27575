package server

import (
	"inspiro/internal/middleware"
	"inspiro/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// WebsocketUpgrade rejects plain HTTP requests on the notification socket.
func (s *Server) WebsocketUpgrade(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return models.RespondWithError(c, fiber.StatusUpgradeRequired,
			models.NewValidationError("WebSocket upgrade required"), false)
	}
	return c.Next()
}

// WebsocketHandler streams the viewer's notifications.
// @Summary Live notifications
// @Description WebSocket stream of like and save events on the viewer's posts and of newly published public posts
// @Tags notifications
// @Security BearerAuth
// @Param token query string false "Access token for browsers that cannot set headers"
// @Router /ws [get]
func (s *Server) WebsocketHandler() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		userID, ok := conn.Locals("userID").(uint)
		if !ok || userID == 0 {
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"unauthorized"}`))
			_ = conn.Close()
			return
		}

		client, err := s.hub.Register(userID, conn)
		if err != nil {
			middleware.Logger.Warn("websocket register rejected", "user_id", userID, "error", err)
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"`+err.Error()+`"}`))
			_ = conn.Close()
			return
		}
		middleware.Logger.Debug("websocket connected", "user_id", userID)

		go client.WritePump()
		client.ReadPump()
	})
}
