package repository

import (
	"context"
	"sync"
	"time"

	"github.com/musorogski/cucme/internal/domain"
)

// inMemoryRoomRepository mirrors the Mongo repository's contract,
// including version checking, so the registry behaves identically
// against either. Documents are deep-copied on the way in and out so
// callers never share state with the store.
type inMemoryRoomRepository struct {
	mu    sync.RWMutex
	rooms map[string]*domain.Room
}

func NewInMemoryRoomRepository() domain.RoomRepository {
	return &inMemoryRoomRepository{
		rooms: make(map[string]*domain.Room),
	}
}

func cloneRoom(room *domain.Room) *domain.Room {
	clone := *room
	clone.Participants = make([]domain.Participant, len(room.Participants))
	for i, p := range room.Participants {
		clone.Participants[i] = p
		if p.Location != nil {
			loc := *p.Location
			clone.Participants[i].Location = &loc
		}
	}
	return &clone
}

func (r *inMemoryRoomRepository) Insert(_ context.Context, room *domain.Room) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.rooms[room.ID]; ok {
		return domain.ErrDuplicateID
	}

	r.rooms[room.ID] = cloneRoom(room)
	return nil
}

func (r *inMemoryRoomRepository) GetByID(_ context.Context, id string) (*domain.Room, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	room, ok := r.rooms[id]
	if !ok {
		return nil, domain.ErrRoomNotFound
	}

	return cloneRoom(room), nil
}

func (r *inMemoryRoomRepository) GetByConnectionID(_ context.Context, connID string) (*domain.Room, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, room := range r.rooms {
		for _, p := range room.Participants {
			if p.ConnectionID == connID {
				return cloneRoom(room), nil
			}
		}
	}

	return nil, domain.ErrRoomNotFound
}

func (r *inMemoryRoomRepository) Save(_ context.Context, room *domain.Room) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.rooms[room.ID]
	if !ok {
		return domain.ErrVersionConflict
	}
	if stored.Version != room.Version {
		return domain.ErrVersionConflict
	}

	next := cloneRoom(room)
	next.Version = room.Version + 1
	r.rooms[room.ID] = next

	room.Version = next.Version
	return nil
}

func (r *inMemoryRoomRepository) Delete(_ context.Context, id string, version int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.rooms[id]
	if !ok || stored.Version != version {
		return domain.ErrVersionConflict
	}

	delete(r.rooms, id)
	return nil
}

func (r *inMemoryRoomRepository) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var deleted int64
	for id, room := range r.rooms {
		if room.Expired(now) {
			delete(r.rooms, id)
			deleted++
		}
	}

	return deleted, nil
}

func (r *inMemoryRoomRepository) EnsureIndexes(_ context.Context) error {
	return nil
}
