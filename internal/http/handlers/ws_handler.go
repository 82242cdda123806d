package handlers

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/outreach-hub/backend/internal/auth"
	"github.com/outreach-hub/backend/internal/config"
	"github.com/outreach-hub/backend/internal/events"
	"github.com/outreach-hub/backend/internal/rbac"
	"go.uber.org/zap"
)

// WSHub pushes campaign events to the campaign owner's open sockets. Admins see everything.
type WSHub struct {
	cfg         *config.Config
	subscriber  events.Subscriber
	log         *zap.Logger
	mu          sync.RWMutex
	connections map[string][]*websocket.Conn
	admins      map[*websocket.Conn]bool
}

func NewWSHub(cfg *config.Config, subscriber events.Subscriber, log *zap.Logger) *WSHub {
	return &WSHub{
		cfg:         cfg,
		subscriber:  subscriber,
		log:         log,
		connections: make(map[string][]*websocket.Conn),
		admins:      make(map[*websocket.Conn]bool),
	}
}

func (h *WSHub) Start(ctx context.Context) error {
	return h.subscriber.Subscribe(ctx, events.StreamCampaign, h.route)
}

func (h *WSHub) route(event events.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		return
	}
	owner, _ := event.Payload["user_id"].(string)

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, conn := range h.connections[owner] {
		_ = conn.WriteMessage(websocket.TextMessage, data)
	}
	for conn := range h.admins {
		if h.ownedBy(conn, owner) {
			continue
		}
		_ = conn.WriteMessage(websocket.TextMessage, data)
	}
}

func (h *WSHub) ownedBy(conn *websocket.Conn, userID string) bool {
	for _, c := range h.connections[userID] {
		if c == conn {
			return true
		}
	}
	return false
}

// WSUpgradeMiddleware checks for websocket upgrade
func WSUpgradeMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	}
}

func (h *WSHub) HandleWS(conn *websocket.Conn) {
	tokenStr := conn.Query("token")
	if tokenStr == "" {
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"missing token"}`))
		conn.Close()
		return
	}

	claims, err := auth.ParseJWT(h.cfg.JWTSecret, tokenStr)
	if err != nil {
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"invalid token"}`))
		conn.Close()
		return
	}

	userID := claims.UserID
	admin := claims.Role == rbac.RoleAdmin || h.cfg.IsAdmin(userID)

	h.mu.Lock()
	h.connections[userID] = append(h.connections[userID], conn)
	if admin {
		h.admins[conn] = true
	}
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		conns := h.connections[userID]
		for i, c := range conns {
			if c == conn {
				h.connections[userID] = append(conns[:i], conns[i+1:]...)
				break
			}
		}
		if len(h.connections[userID]) == 0 {
			delete(h.connections, userID)
		}
		delete(h.admins, conn)
		h.mu.Unlock()
		conn.Close()
	}()

	// Read loop (keep alive / pings)
	for {
		_, _, err := conn.ReadMessage()
		if err != nil {
			break
		}
	}
}
