package ws

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/musorogski/cucme/internal/infrastructure/logging"
)

// Handler upgrades HTTP requests into coordinator connections.
type Handler struct {
	hub         *Hub
	coordinator Coordinator
	logger      logging.Logger
	upgrader    websocket.Upgrader
}

func NewHandler(hub *Hub, coordinator Coordinator, logger logging.Logger, allowedOrigins []string) *Handler {
	return &Handler{
		hub:         hub,
		coordinator: coordinator,
		logger:      logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
	}
}

func originChecker(allowedOrigins []string) func(r *http.Request) bool {
	allowAll := len(allowedOrigins) == 0
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		if o == "*" {
			allowAll = true
		}
		allowed[o] = struct{}{}
	}

	return func(r *http.Request) bool {
		if allowAll {
			return true
		}
		origin := r.Header.Get("Origin")
		if origin == "" {
			// Non-browser clients send no Origin header
			return true
		}
		_, ok := allowed[origin]
		return ok
	}
}

// ServeWS upgrades the request and starts the connection's pumps. Each
// connection gets a fresh id for its lifetime.
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn(logging.WebSocket, logging.Connection, "upgrade failed", map[logging.ExtraKey]any{
			logging.ClientIp:     r.RemoteAddr,
			logging.ErrorMessage: err.Error(),
		})
		return
	}

	client := NewClient(conn, uuid.NewString(), h.hub, h.coordinator, h.logger)
	h.hub.Register(client)

	h.logger.Info(logging.WebSocket, logging.Connection, "connection established", map[logging.ExtraKey]any{
		logging.ConnectionID: client.ID,
		logging.ClientIp:     r.RemoteAddr,
	})

	// The request context dies with the handler; the pumps outlive it.
	go client.WritePump()
	go client.ReadPump(context.Background())
}
