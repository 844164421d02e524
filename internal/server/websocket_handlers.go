package server

import (
	"encoding/json"
	"log/slog"

	"keystone/internal/middleware"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// connectedEvent is the first frame on a notification socket.
type connectedEvent struct {
	Type   string `json:"type"`
	Unread int64  `json:"unread"`
}

// WebSocketNotificationsHandler handles GET /api/ws/notifications. New inbox rows for the
// authenticated user are pushed as {"type":"notification","payload":{...}} frames.
func (s *Server) WebSocketNotificationsHandler() fiber.Handler {
	upgrade := websocket.New(func(conn *websocket.Conn) {
		uid, ok := conn.Locals("userID").(uint)
		if !ok {
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"unauthorized"}`))
			_ = conn.Close()
			return
		}

		client, err := s.hub.Register(uid, conn)
		if err != nil {
			middleware.Logger.Warn("notification socket rejected",
				slog.Uint64("user_id", uint64(uid)),
				slog.String("error", err.Error()),
			)
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"`+err.Error()+`"}`))
			_ = conn.Close()
			return
		}
		defer s.hub.UnregisterClient(client)

		unread, err := s.notificationService.UnreadCount(s.baseContext(), uid)
		if err != nil {
			middleware.Logger.Warn("unread count failed", slog.String("error", err.Error()))
		}
		if hello, err := json.Marshal(connectedEvent{Type: "connected", Unread: unread}); err == nil {
			client.TrySend(hello)
		}

		go client.WritePump()
		client.ReadPump()
	})

	return func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}
		return upgrade(c)
	}
}
