package contracts

// AmqpMessage is the message structure for AMQP.
type AmqpMessage struct {
	RoomID string `json:"roomId"`
	Data   []byte `json:"data"`
}

// Routing keys - using consistent event patterns
const (
	EventRoomCreated       = "room.created"
	EventRoomDeleted       = "room.deleted"
	EventParticipantJoined = "room.joined"
	EventParticipantLeft   = "room.left"
	EventRoomsSwept        = "rooms.swept"
)
