package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type RoomEventType string

const (
	EventRoomCreated       RoomEventType = "room_created"
	EventRoomDeleted       RoomEventType = "room_deleted"
	EventParticipantJoined RoomEventType = "participant_joined"
	EventParticipantLeft   RoomEventType = "participant_left"
	EventRoomsSwept        RoomEventType = "rooms_swept"
)

// RoomAuditLog is a lifecycle trail entry kept out-of-band of the
// live room documents. Never contains credentials or locations.
type RoomAuditLog struct {
	ID        string         `bson:"_id" json:"id"`
	RoomID    string         `bson:"room_id,omitempty" json:"roomId,omitempty"`
	EventType RoomEventType  `bson:"event_type" json:"eventType"`
	Timestamp time.Time      `bson:"timestamp" json:"timestamp"`
	Metadata  map[string]any `bson:"metadata,omitempty" json:"metadata,omitempty"`
}

type RoomAuditRepository interface {
	Log(ctx context.Context, log *RoomAuditLog) error
	GetByRoomID(ctx context.Context, roomID string, limit int) ([]RoomAuditLog, error)
	DeleteOlderThan(ctx context.Context, before time.Time) error
	EnsureIndexes(ctx context.Context) error
}

func NewRoomCreatedLog(roomID, createdBy string, durationMinutes int) *RoomAuditLog {
	return &RoomAuditLog{
		ID:        uuid.NewString(),
		RoomID:    roomID,
		EventType: EventRoomCreated,
		Timestamp: time.Now(),
		Metadata: map[string]any{
			"created_by":       createdBy,
			"duration_minutes": durationMinutes,
		},
	}
}

func NewParticipantJoinedLog(roomID, userName string, participantCount int) *RoomAuditLog {
	return &RoomAuditLog{
		ID:        uuid.NewString(),
		RoomID:    roomID,
		EventType: EventParticipantJoined,
		Timestamp: time.Now(),
		Metadata: map[string]any{
			"user_name":         userName,
			"participant_count": participantCount,
		},
	}
}

func NewParticipantLeftLog(roomID string, participantCount int) *RoomAuditLog {
	return &RoomAuditLog{
		ID:        uuid.NewString(),
		RoomID:    roomID,
		EventType: EventParticipantLeft,
		Timestamp: time.Now(),
		Metadata: map[string]any{
			"participant_count": participantCount,
		},
	}
}

func NewRoomDeletedLog(roomID, reason string) *RoomAuditLog {
	return &RoomAuditLog{
		ID:        uuid.NewString(),
		RoomID:    roomID,
		EventType: EventRoomDeleted,
		Timestamp: time.Now(),
		Metadata: map[string]any{
			"reason": reason,
		},
	}
}

func NewRoomsSweptLog(deleted int64) *RoomAuditLog {
	return &RoomAuditLog{
		ID:        uuid.NewString(),
		EventType: EventRoomsSwept,
		Timestamp: time.Now(),
		Metadata: map[string]any{
			"deleted_count": deleted,
		},
	}
}
