package domain

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/musorogski/cucme/internal/infrastructure/validate"
)

const (
	// DefaultMaxParticipants is the policy cap on room membership.
	// Overridable through configuration; never hardcode call sites to it.
	DefaultMaxParticipants = 3

	maxRoomNameLength = 64
	maxUserNameLength = 32
)

var (
	ErrInvalidRequest     = errors.New("invalid request")
	ErrRoomNotFound       = errors.New("room not found")
	ErrRoomExpired        = errors.New("room expired")
	ErrInvalidCredential  = errors.New("invalid credential")
	ErrRoomFull           = errors.New("room is full")
	ErrDuplicateID        = errors.New("room id already exists")
	ErrVersionConflict    = errors.New("room version conflict")
	ErrStorageUnavailable = errors.New("room store unavailable")
)

// Location is a last-known coordinate pair reported by a participant.
type Location struct {
	Lat float64 `bson:"lat" json:"lat"`
	Lng float64 `bson:"lng" json:"lng"`
}

// Participant binds a display name to exactly one live connection.
// A reconnect produces a new Participant with a new connection id.
type Participant struct {
	Name         string    `bson:"name" json:"name"`
	ConnectionID string    `bson:"connection_id" json:"connectionId"`
	Location     *Location `bson:"location,omitempty" json:"location,omitempty"`
	JoinedAt     time.Time `bson:"joined_at" json:"joinedAt"`
}

// Room is a time-boxed, password-protected session. Participants are
// embedded in join order. Version backs optimistic concurrency at the
// store: every Save must match the version it read and bump it.
type Room struct {
	ID           string        `bson:"_id" json:"id"`
	Name         string        `bson:"name" json:"name"`
	PasswordHash string        `bson:"password_hash" json:"-"`
	CreatedBy    string        `bson:"created_by" json:"createdBy"`
	Duration     int           `bson:"duration_minutes" json:"durationMinutes"`
	CreatedAt    time.Time     `bson:"created_at" json:"createdAt"`
	ExpiresAt    time.Time     `bson:"expires_at" json:"expiresAt"`
	Participants []Participant `bson:"participants" json:"participants"`
	Version      int64         `bson:"version" json:"-"`
}

type RoomRepository interface {
	Insert(ctx context.Context, room *Room) error
	GetByID(ctx context.Context, id string) (*Room, error)
	GetByConnectionID(ctx context.Context, connID string) (*Room, error)
	// Save replaces the stored document if its version still matches
	// room.Version, then bumps room.Version. ErrVersionConflict on a miss.
	Save(ctx context.Context, room *Room) error
	// Delete removes the room only if its version still matches,
	// ErrVersionConflict otherwise. A concurrent join must not be lost
	// to a leave that observed the room empty a moment earlier.
	Delete(ctx context.Context, id string, version int64) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
	EnsureIndexes(ctx context.Context) error
}

func NewRoom(name, createdBy, passwordHash string, durationMinutes int, now time.Time) (*Room, error) {
	if err := ValidateRoomName(name); err != nil {
		return nil, err
	}
	if err := ValidateUserName(createdBy); err != nil {
		return nil, err
	}
	if durationMinutes <= 0 {
		return nil, ErrInvalidRequest
	}

	return &Room{
		ID:           uuid.NewString(),
		Name:         name,
		PasswordHash: passwordHash,
		CreatedBy:    createdBy,
		Duration:     durationMinutes,
		CreatedAt:    now,
		ExpiresAt:    now.Add(time.Duration(durationMinutes) * time.Minute),
		Participants: make([]Participant, 0, DefaultMaxParticipants),
	}, nil
}

// Expired reports whether the room is past its lifetime. Expiry is
// authoritative by time, not by sweep completion.
func (r *Room) Expired(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}

func (r *Room) Empty() bool {
	return len(r.Participants) == 0
}

// AddParticipant appends p in join order, enforcing the capacity cap.
func (r *Room) AddParticipant(p Participant, maxParticipants int) error {
	if len(r.Participants) >= maxParticipants {
		return ErrRoomFull
	}
	for _, existing := range r.Participants {
		if existing.ConnectionID == p.ConnectionID {
			return ErrInvalidRequest
		}
	}
	r.Participants = append(r.Participants, p)
	return nil
}

// RemoveParticipant drops the participant owning connID, preserving the
// join order of the rest. The second return is false if no participant
// owned that connection.
func (r *Room) RemoveParticipant(connID string) (Participant, bool) {
	for i, p := range r.Participants {
		if p.ConnectionID == connID {
			r.Participants = append(r.Participants[:i], r.Participants[i+1:]...)
			return p, true
		}
	}
	return Participant{}, false
}

func (r *Room) FindParticipant(connID string) *Participant {
	for i := range r.Participants {
		if r.Participants[i].ConnectionID == connID {
			return &r.Participants[i]
		}
	}
	return nil
}

// SetLocation records the last-known coordinate for the participant
// owning connID. Last write wins.
func (r *Room) SetLocation(connID string, loc Location) bool {
	p := r.FindParticipant(connID)
	if p == nil {
		return false
	}
	p.Location = &loc
	return true
}

func ValidateRoomName(rawName string) error {
	validateName := validate.Field("room name",
		validate.Required(),
		validate.MaxLength(maxRoomNameLength),
	)

	if err := validateName(rawName); err != nil {
		return errors.Join(ErrInvalidRequest, err)
	}
	return nil
}

func ValidateUserName(rawName string) error {
	validateName := validate.Field("user name",
		validate.Required(),
		validate.MaxLength(maxUserNameLength),
	)

	if err := validateName(rawName); err != nil {
		return errors.Join(ErrInvalidRequest, err)
	}
	return nil
}
