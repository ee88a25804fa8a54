package ws

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/musorogski/cucme/internal/domain"
	"github.com/musorogski/cucme/internal/infrastructure/logging"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
)

type Client struct {
	ID string

	hub         *Hub
	coordinator Coordinator
	conn        *websocket.Conn
	send        chan *OutboundMessage
	logger      logging.Logger
	closeOnce   sync.Once
}

func NewClient(conn *websocket.Conn, id string, hub *Hub, coordinator Coordinator, logger logging.Logger) *Client {
	return &Client{
		ID:          id,
		hub:         hub,
		coordinator: coordinator,
		conn:        conn,
		send:        make(chan *OutboundMessage, 64), // buffered to avoid dead-locks on slow clients
		logger:      logger,
	}
}

func (c *Client) closeSend() {
	c.closeOnce.Do(func() {
		close(c.send)
	})
}

// ReadPump is the single dispatch loop for the connection. It decodes
// incoming frames and applies them through the coordinator. Transport
// teardown, for any reason, triggers the same cleanup as an explicit
// leaveRoom.
func (c *Client) ReadPump(ctx context.Context) {
	defer func() {
		if err := c.coordinator.Leave(ctx, c.ID); err != nil {
			c.logger.Error(logging.WebSocket, logging.Connection, "cleanup on disconnect failed", map[logging.ExtraKey]any{
				logging.ConnectionID: c.ID,
				logging.ErrorMessage: err.Error(),
			})
		}
		c.hub.Unregister(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.logger.Warn(logging.WebSocket, logging.Connection, "read error", map[logging.ExtraKey]any{
					logging.ConnectionID: c.ID,
					logging.ErrorMessage: err.Error(),
				})
			}
			return
		}

		var env Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			c.hub.SendToConnection(c.ID, ErrorEvent, NewError("malformed message"))
			continue
		}

		c.dispatch(ctx, env)
	}
}

func (c *Client) dispatch(ctx context.Context, env Envelope) {
	var err error

	switch env.Event {
	case CreateRoom:
		var p CreateRoomPayload
		if err = json.Unmarshal(env.Data, &p); err == nil {
			err = c.coordinator.CreateRoom(ctx, c.ID, p.RoomName, p.UserName, p.RoomPassword, p.RoomDuration)
		}

	case JoinRoom:
		var p JoinRoomPayload
		if err = json.Unmarshal(env.Data, &p); err == nil {
			err = c.coordinator.JoinRoom(ctx, c.ID, p.RoomID, p.UserName, p.Password)
		}

	case UpdateLocation:
		var p UpdateLocationPayload
		if err = json.Unmarshal(env.Data, &p); err == nil {
			err = c.coordinator.UpdateLocation(ctx, c.ID, domain.Location{Lat: p.Lat, Lng: p.Lng})
		}

	case LeaveRoom:
		err = c.coordinator.Leave(ctx, c.ID)

	default:
		c.hub.SendToConnection(c.ID, ErrorEvent, NewError("unknown event"))
		return
	}

	if err != nil {
		c.hub.SendToConnection(c.ID, ErrorEvent, NewError(errorMessage(err)))
	}
}

// errorMessage maps coordinator errors to the human-readable messages
// surfaced on the error event. Storage faults deliberately read the
// same as any other internal failure.
func errorMessage(err error) string {
	switch {
	case errors.Is(err, domain.ErrRoomNotFound):
		return "room not found"
	case errors.Is(err, domain.ErrRoomExpired):
		return "room has expired"
	case errors.Is(err, domain.ErrInvalidCredential):
		return "incorrect password"
	case errors.Is(err, domain.ErrRoomFull):
		return "room is full"
	case errors.Is(err, domain.ErrInvalidRequest):
		return "invalid request"
	default:
		return "something went wrong, please try again"
	}
}

func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteJSON(msg); err != nil {
				c.logger.Warn(logging.WebSocket, logging.Connection, "write error", map[logging.ExtraKey]any{
					logging.ConnectionID: c.ID,
					logging.ErrorMessage: err.Error(),
				})
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
