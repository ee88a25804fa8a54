package ws

import (
	"context"

	"github.com/musorogski/cucme/internal/domain"
)

// Coordinator applies room mutations on behalf of a connection. The
// connection layer decodes frames, calls the coordinator, and turns
// returned errors into point-to-point error events. Success events are
// emitted by the coordinator itself so their order matches the order
// the mutations were applied in.
type Coordinator interface {
	CreateRoom(ctx context.Context, connectionID, roomName, userName, password string, durationMinutes int) error
	JoinRoom(ctx context.Context, connectionID, roomID, userName, password string) error
	UpdateLocation(ctx context.Context, connectionID string, loc domain.Location) error
	Leave(ctx context.Context, connectionID string) error
}
