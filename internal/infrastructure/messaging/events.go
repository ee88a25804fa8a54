package messaging

import (
	"time"

	"github.com/musorogski/cucme/internal/domain"
)

const (
	RoomAuditQueue  = "room_audit"
	DeadLetterQueue = "dead_letter_queue"
)

type RoomEventData struct {
	EventType    domain.RoomEventType `json:"eventType"`
	RoomID       string               `json:"roomId"`
	RoomName     string               `json:"roomName,omitempty"`
	UserName     string               `json:"userName,omitempty"`
	ConnectionID string               `json:"connectionId,omitempty"`
	SweptCount   int64                `json:"sweptCount,omitempty"`
	OccurredAt   time.Time            `json:"occurredAt"`
}
