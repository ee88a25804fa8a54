package events

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/musorogski/cucme/internal/domain"
	"github.com/musorogski/cucme/internal/infrastructure/contracts"
	"github.com/musorogski/cucme/internal/infrastructure/logging"
	"github.com/musorogski/cucme/internal/infrastructure/messaging"
	"github.com/rabbitmq/amqp091-go"
)

type auditConsumer struct {
	rabbitmq *messaging.RabbitMQ
	audits   domain.RoomAuditRepository
	logger   logging.Logger
}

func NewAuditConsumer(rabbitmq *messaging.RabbitMQ, audits domain.RoomAuditRepository, logger logging.Logger) *auditConsumer {
	return &auditConsumer{
		rabbitmq: rabbitmq,
		audits:   audits,
		logger:   logger,
	}
}

// Listen blocks, draining room lifecycle events into the audit trail.
func (c *auditConsumer) Listen() error {
	return c.rabbitmq.ConsumeMessages(messaging.RoomAuditQueue, func(ctx context.Context, msg amqp091.Delivery) error {
		var message contracts.AmqpMessage
		if err := json.Unmarshal(msg.Body, &message); err != nil {
			c.logger.Error(logging.RabbitMQ, logging.ExternalService, "failed to unmarshal delivery", map[logging.ExtraKey]interface{}{
				logging.ErrorMessage: err.Error(),
			})
			return err
		}

		var payload messaging.RoomEventData
		if err := json.Unmarshal(message.Data, &payload); err != nil {
			c.logger.Error(logging.RabbitMQ, logging.ExternalService, "failed to unmarshal room event", map[logging.ExtraKey]interface{}{
				logging.ErrorMessage: err.Error(),
			})
			return err
		}

		entry := auditLogFromEvent(payload)
		if err := c.audits.Log(ctx, entry); err != nil {
			c.logger.Error(logging.MongoDB, logging.ExternalService, "failed to store audit log", map[logging.ExtraKey]interface{}{
				logging.RoomID:       payload.RoomID,
				logging.ErrorMessage: err.Error(),
			})
			return err
		}

		return nil
	})
}

func auditLogFromEvent(payload messaging.RoomEventData) *domain.RoomAuditLog {
	metadata := map[string]any{}
	if payload.RoomName != "" {
		metadata["room_name"] = payload.RoomName
	}
	if payload.UserName != "" {
		metadata["user_name"] = payload.UserName
	}
	if payload.ConnectionID != "" {
		metadata["connection_id"] = payload.ConnectionID
	}
	if payload.EventType == domain.EventRoomsSwept {
		metadata["deleted_count"] = payload.SweptCount
	}

	return &domain.RoomAuditLog{
		ID:        uuid.NewString(),
		RoomID:    payload.RoomID,
		EventType: payload.EventType,
		Timestamp: payload.OccurredAt,
		Metadata:  metadata,
	}
}
