package registry

import (
	"context"
	"errors"
	"time"

	"github.com/musorogski/cucme/internal/domain"
	"github.com/musorogski/cucme/internal/infrastructure/credential"
	"github.com/musorogski/cucme/internal/infrastructure/logging"
	"github.com/musorogski/cucme/internal/infrastructure/metrics"
	"github.com/musorogski/cucme/internal/infrastructure/ws"
)

// casRetries bounds the optimistic retry loop on version conflicts.
// Contention on a single room is capped by its participant count, so a
// handful of attempts is plenty.
const casRetries = 5

// Broadcaster fans events out to live connections. Satisfied by the
// websocket hub.
type Broadcaster interface {
	JoinRoom(roomID, connectionID string)
	LeaveRoom(roomID, connectionID string)
	SendToRoom(roomID, event string, payload any)
	SendToConnection(connectionID, event string, payload any)
}

// LifecyclePublisher mirrors room lifecycle changes onto the message
// bus for the audit trail. Optional; publish failures are logged and
// never fail the operation that triggered them.
type LifecyclePublisher interface {
	PublishRoomCreated(ctx context.Context, room domain.Room) error
	PublishRoomDeleted(ctx context.Context, room domain.Room) error
	PublishParticipantJoined(ctx context.Context, room domain.Room, participant domain.Participant) error
	PublishParticipantLeft(ctx context.Context, room domain.Room, participant domain.Participant) error
}

// Registry is the room state machine. Every mutation follows the same
// shape: read the room, mutate the copy, conditionally write it back,
// retry on version conflict. No lock is held across store I/O, so
// operations on different rooms never block each other.
type Registry struct {
	rooms           domain.RoomRepository
	guard           *credential.Guard
	sessions        *SessionMap
	broadcaster     Broadcaster
	publisher       LifecyclePublisher
	logger          logging.Logger
	maxParticipants int
	now             func() time.Time
}

type Options struct {
	Rooms           domain.RoomRepository
	Guard           *credential.Guard
	Sessions        *SessionMap
	Broadcaster     Broadcaster
	Publisher       LifecyclePublisher
	Logger          logging.Logger
	MaxParticipants int
	Now             func() time.Time
}

func New(opts Options) *Registry {
	if opts.MaxParticipants <= 0 {
		opts.MaxParticipants = domain.DefaultMaxParticipants
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Registry{
		rooms:           opts.Rooms,
		guard:           opts.Guard,
		sessions:        opts.Sessions,
		broadcaster:     opts.Broadcaster,
		publisher:       opts.Publisher,
		logger:          opts.Logger,
		maxParticipants: opts.MaxParticipants,
		now:             opts.Now,
	}
}

// CreateRoom builds a room with the creator as its first participant
// and announces it to the creator's connection.
func (r *Registry) CreateRoom(ctx context.Context, connectionID, roomName, userName, password string, durationMinutes int) error {
	if password == "" {
		return domain.ErrInvalidRequest
	}

	hash, err := r.guard.Hash(password)
	if err != nil {
		return domain.ErrInvalidRequest
	}

	now := r.now()
	room, err := domain.NewRoom(roomName, userName, hash, durationMinutes, now)
	if err != nil {
		return err
	}
	if err := room.AddParticipant(domain.Participant{
		Name:         userName,
		ConnectionID: connectionID,
		JoinedAt:     now,
	}, r.maxParticipants); err != nil {
		return err
	}

	if err := r.rooms.Insert(ctx, room); err != nil {
		r.logger.Error(logging.Registry, logging.RoomLifecycle, "room insert failed", map[logging.ExtraKey]any{
			logging.RoomID:       room.ID,
			logging.ErrorMessage: err.Error(),
		})
		return err
	}

	r.sessions.Bind(connectionID, room.ID)
	r.broadcaster.JoinRoom(room.ID, connectionID)
	r.broadcaster.SendToConnection(connectionID, ws.RoomCreated, ws.NewRoomCreated(room.ID, room.Name))

	metrics.RoomsCreated.Inc()
	r.logger.Info(logging.Registry, logging.RoomLifecycle, "room created", map[logging.ExtraKey]any{
		logging.RoomID:       room.ID,
		logging.UserName:     userName,
		logging.ConnectionID: connectionID,
	})

	if r.publisher != nil {
		if err := r.publisher.PublishRoomCreated(ctx, *room); err != nil {
			r.logPublishFailure(room.ID, err)
		}
	}

	return nil
}

// JoinRoom admits the connection into an existing room, subject to
// expiry, credential, and capacity checks. The checks and the append
// are repeated on every optimistic retry so the capacity invariant
// holds exactly under concurrent joins.
func (r *Registry) JoinRoom(ctx context.Context, connectionID, roomID, userName, password string) error {
	if err := domain.ValidateUserName(userName); err != nil {
		metrics.JoinAttempts.WithLabelValues("error").Inc()
		return err
	}

	var (
		room        *domain.Room
		participant domain.Participant
	)

	err := r.withRetry(func() error {
		var err error
		room, err = r.rooms.GetByID(ctx, roomID)
		if err != nil {
			return err
		}
		if room.Expired(r.now()) {
			return domain.ErrRoomExpired
		}
		if !r.guard.Verify(password, room.PasswordHash) {
			return domain.ErrInvalidCredential
		}

		participant = domain.Participant{
			Name:         userName,
			ConnectionID: connectionID,
			JoinedAt:     r.now(),
		}
		if err := room.AddParticipant(participant, r.maxParticipants); err != nil {
			return err
		}

		return r.rooms.Save(ctx, room)
	})
	if err != nil {
		metrics.JoinAttempts.WithLabelValues(joinOutcome(err)).Inc()
		return err
	}

	r.sessions.Bind(connectionID, room.ID)

	// Announce to the members present before the joiner is wired into
	// the fan-out, so the joiner never sees its own userJoined. The
	// joiner is a room member for every event applied after this point.
	r.broadcaster.SendToRoom(room.ID, ws.UserJoined, ws.NewUserJoined(userName))
	r.broadcaster.JoinRoom(room.ID, connectionID)
	r.broadcaster.SendToConnection(connectionID, ws.JoinedRoom, ws.NewJoinedRoom(room.ID, room.Name))

	metrics.JoinAttempts.WithLabelValues("joined").Inc()
	r.logger.Info(logging.Registry, logging.Membership, "participant joined", map[logging.ExtraKey]any{
		logging.RoomID:       room.ID,
		logging.UserName:     userName,
		logging.ConnectionID: connectionID,
	})

	if r.publisher != nil {
		if err := r.publisher.PublishParticipantJoined(ctx, *room, participant); err != nil {
			r.logPublishFailure(room.ID, err)
		}
	}

	return nil
}

// UpdateLocation records the connection's latest coordinate and fans
// it out to the whole room, sender included. Races with a concurrent
// leave or an expired room are ignored silently.
func (r *Registry) UpdateLocation(ctx context.Context, connectionID string, loc domain.Location) error {
	roomID, ok := r.sessions.Lookup(connectionID)
	if !ok {
		room, err := r.rooms.GetByConnectionID(ctx, connectionID)
		if err != nil {
			if errors.Is(err, domain.ErrRoomNotFound) {
				return nil
			}
			return err
		}
		roomID = room.ID
		r.sessions.Bind(connectionID, roomID)
	}

	err := r.withRetry(func() error {
		room, err := r.rooms.GetByID(ctx, roomID)
		if err != nil {
			return err
		}
		if room.Expired(r.now()) {
			return domain.ErrRoomExpired
		}
		if !room.SetLocation(connectionID, loc) {
			return domain.ErrRoomNotFound
		}

		return r.rooms.Save(ctx, room)
	})
	if err != nil {
		// The room or the participant raced away under us
		if errors.Is(err, domain.ErrRoomNotFound) || errors.Is(err, domain.ErrRoomExpired) {
			return nil
		}
		return err
	}

	r.broadcaster.SendToRoom(roomID, ws.LocationUpdated, ws.NewLocationUpdated(connectionID, loc))
	metrics.LocationUpdates.Inc()

	return nil
}

// Leave detaches the connection from its room, deleting the room when
// it becomes empty. Explicit leaveRoom and transport disconnect both
// land here, and a second call for the same connection is a no-op.
func (r *Registry) Leave(ctx context.Context, connectionID string) error {
	roomID, ok := r.sessions.Lookup(connectionID)
	if !ok {
		room, err := r.rooms.GetByConnectionID(ctx, connectionID)
		if err != nil {
			if errors.Is(err, domain.ErrRoomNotFound) {
				return nil
			}
			return err
		}
		roomID = room.ID
	}

	var (
		room        *domain.Room
		participant domain.Participant
		deleted     bool
	)

	err := r.withRetry(func() error {
		var err error
		room, err = r.rooms.GetByID(ctx, roomID)
		if err != nil {
			return err
		}

		var removed bool
		participant, removed = room.RemoveParticipant(connectionID)
		if !removed {
			return domain.ErrRoomNotFound
		}

		if room.Empty() {
			if err := r.rooms.Delete(ctx, room.ID, room.Version); err != nil {
				return err
			}
			deleted = true
			return nil
		}

		deleted = false
		return r.rooms.Save(ctx, room)
	})

	r.sessions.Unbind(connectionID)
	r.broadcaster.LeaveRoom(roomID, connectionID)

	if err != nil {
		// Already gone, a concurrent leave or sweep finished the job
		if errors.Is(err, domain.ErrRoomNotFound) {
			return nil
		}
		return err
	}

	if deleted {
		metrics.RoomsDeleted.WithLabelValues("empty").Inc()
		r.logger.Info(logging.Registry, logging.RoomLifecycle, "room deleted, last participant left", map[logging.ExtraKey]any{
			logging.RoomID: roomID,
		})
		if r.publisher != nil {
			if err := r.publisher.PublishRoomDeleted(ctx, *room); err != nil {
				r.logPublishFailure(roomID, err)
			}
		}
	} else {
		r.broadcaster.SendToRoom(roomID, ws.UserLeft, ws.NewUserLeft(connectionID))
	}

	r.logger.Info(logging.Registry, logging.Membership, "participant left", map[logging.ExtraKey]any{
		logging.RoomID:       roomID,
		logging.ConnectionID: connectionID,
	})

	if r.publisher != nil {
		if err := r.publisher.PublishParticipantLeft(ctx, *room, participant); err != nil {
			r.logPublishFailure(roomID, err)
		}
	}

	return nil
}

func (r *Registry) withRetry(op func() error) error {
	var err error
	for attempt := 0; attempt < casRetries; attempt++ {
		err = op()
		if !errors.Is(err, domain.ErrVersionConflict) {
			return err
		}
	}
	return err
}

func (r *Registry) logPublishFailure(roomID string, err error) {
	r.logger.Error(logging.RabbitMQ, logging.ExternalService, "lifecycle publish failed", map[logging.ExtraKey]any{
		logging.RoomID:       roomID,
		logging.ErrorMessage: err.Error(),
	})
}

func joinOutcome(err error) string {
	switch {
	case errors.Is(err, domain.ErrRoomNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrRoomExpired):
		return "expired"
	case errors.Is(err, domain.ErrInvalidCredential):
		return "bad_credential"
	case errors.Is(err, domain.ErrRoomFull):
		return "full"
	default:
		return "error"
	}
}
