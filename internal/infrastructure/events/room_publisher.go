package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/musorogski/cucme/internal/domain"
	"github.com/musorogski/cucme/internal/infrastructure/contracts"
	"github.com/musorogski/cucme/internal/infrastructure/messaging"
)

type RoomPublisher struct {
	rabbitmq *messaging.RabbitMQ
}

func NewRoomPublisher(rabbitmq *messaging.RabbitMQ) *RoomPublisher {
	return &RoomPublisher{
		rabbitmq: rabbitmq,
	}
}

func (p *RoomPublisher) publish(ctx context.Context, routingKey string, payload messaging.RoomEventData) error {
	roomEventJSON, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	return p.rabbitmq.PublishMessage(ctx, routingKey, contracts.AmqpMessage{
		RoomID: payload.RoomID,
		Data:   roomEventJSON,
	})
}

func (p *RoomPublisher) PublishRoomCreated(ctx context.Context, room domain.Room) error {
	return p.publish(ctx, contracts.EventRoomCreated, messaging.RoomEventData{
		EventType:  domain.EventRoomCreated,
		RoomID:     room.ID,
		RoomName:   room.Name,
		UserName:   room.CreatedBy,
		OccurredAt: time.Now(),
	})
}

func (p *RoomPublisher) PublishRoomDeleted(ctx context.Context, room domain.Room) error {
	return p.publish(ctx, contracts.EventRoomDeleted, messaging.RoomEventData{
		EventType:  domain.EventRoomDeleted,
		RoomID:     room.ID,
		RoomName:   room.Name,
		OccurredAt: time.Now(),
	})
}

func (p *RoomPublisher) PublishParticipantJoined(ctx context.Context, room domain.Room, participant domain.Participant) error {
	return p.publish(ctx, contracts.EventParticipantJoined, messaging.RoomEventData{
		EventType:    domain.EventParticipantJoined,
		RoomID:       room.ID,
		RoomName:     room.Name,
		UserName:     participant.Name,
		ConnectionID: participant.ConnectionID,
		OccurredAt:   time.Now(),
	})
}

func (p *RoomPublisher) PublishParticipantLeft(ctx context.Context, room domain.Room, participant domain.Participant) error {
	return p.publish(ctx, contracts.EventParticipantLeft, messaging.RoomEventData{
		EventType:    domain.EventParticipantLeft,
		RoomID:       room.ID,
		RoomName:     room.Name,
		UserName:     participant.Name,
		ConnectionID: participant.ConnectionID,
		OccurredAt:   time.Now(),
	})
}

func (p *RoomPublisher) PublishRoomsSwept(ctx context.Context, deleted int64) error {
	return p.publish(ctx, contracts.EventRoomsSwept, messaging.RoomEventData{
		EventType:  domain.EventRoomsSwept,
		SweptCount: deleted,
		OccurredAt: time.Now(),
	})
}
