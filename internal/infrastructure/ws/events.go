package ws

import (
	"encoding/json"

	"github.com/musorogski/cucme/internal/domain"
)

// Inbound events (connection to coordinator)
const (
	CreateRoom     = "createRoom"
	JoinRoom       = "joinRoom"
	UpdateLocation = "updateLocation"
	LeaveRoom      = "leaveRoom"
)

// Outbound events (coordinator to connections)
const (
	RoomCreated     = "roomCreated"
	JoinedRoom      = "joinedRoom"
	UserJoined      = "userJoined"
	LocationUpdated = "locationUpdated"
	UserLeft        = "userLeft"
	ErrorEvent      = "error"
)

// Envelope is the wire frame for every message in both directions.
// Data is left raw on the way in so each handler decodes its own payload.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// OutboundMessage is a fully formed frame queued for delivery.
type OutboundMessage struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

type CreateRoomPayload struct {
	RoomName     string `json:"roomName"`
	UserName     string `json:"userName"`
	RoomPassword string `json:"roomPassword"`
	RoomDuration int    `json:"roomDuration"`
}

type JoinRoomPayload struct {
	RoomID   string `json:"roomId"`
	UserName string `json:"userName"`
	Password string `json:"password"`
}

type UpdateLocationPayload struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type RoomCreatedPayload struct {
	RoomID   string `json:"roomId"`
	RoomName string `json:"roomName"`
}

type JoinedRoomPayload struct {
	RoomID   string `json:"roomId"`
	RoomName string `json:"roomName"`
}

type UserJoinedPayload struct {
	UserName string `json:"userName"`
}

type LocationUpdatedPayload struct {
	ConnectionID string          `json:"connectionId"`
	Location     domain.Location `json:"location"`
}

type UserLeftPayload struct {
	ConnectionID string `json:"connectionId"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

func NewRoomCreated(roomID, roomName string) RoomCreatedPayload {
	return RoomCreatedPayload{RoomID: roomID, RoomName: roomName}
}

func NewJoinedRoom(roomID, roomName string) JoinedRoomPayload {
	return JoinedRoomPayload{RoomID: roomID, RoomName: roomName}
}

func NewUserJoined(userName string) UserJoinedPayload {
	return UserJoinedPayload{UserName: userName}
}

func NewLocationUpdated(connectionID string, loc domain.Location) LocationUpdatedPayload {
	return LocationUpdatedPayload{ConnectionID: connectionID, Location: loc}
}

func NewUserLeft(connectionID string) UserLeftPayload {
	return UserLeftPayload{ConnectionID: connectionID}
}

func NewError(message string) ErrorPayload {
	return ErrorPayload{Message: message}
}
