package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/musorogski/cucme/internal/domain"
)

func newTestRoom(t *testing.T, id string, now time.Time) *domain.Room {
	t.Helper()

	room, err := domain.NewRoom("Trip", "Ann", "$2a$04$fakefakefakefakefakefake", 30, now)
	if err != nil {
		t.Fatalf("NewRoom: %v", err)
	}
	room.ID = id
	return room
}

func TestInsertAndGetByID(t *testing.T) {
	ctx := context.Background()
	repo := NewInMemoryRoomRepository()
	now := time.Now()

	room := newTestRoom(t, "room-1", now)
	if err := repo.Insert(ctx, room); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	got, err := repo.GetByID(ctx, "room-1")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Name != "Trip" || got.CreatedBy != "Ann" {
		t.Fatalf("got %+v", got)
	}

	if err := repo.Insert(ctx, room); !errors.Is(err, domain.ErrDuplicateID) {
		t.Fatalf("second insert err = %v, want ErrDuplicateID", err)
	}

	if _, err := repo.GetByID(ctx, "room-404"); !errors.Is(err, domain.ErrRoomNotFound) {
		t.Fatalf("missing room err = %v, want ErrRoomNotFound", err)
	}
}

func TestGetByConnectionID(t *testing.T) {
	ctx := context.Background()
	repo := NewInMemoryRoomRepository()
	now := time.Now()

	room := newTestRoom(t, "room-1", now)
	if err := room.AddParticipant(domain.Participant{Name: "Bob", ConnectionID: "conn-bob", JoinedAt: now}, domain.DefaultMaxParticipants); err != nil {
		t.Fatalf("AddParticipant: %v", err)
	}
	if err := repo.Insert(ctx, room); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	got, err := repo.GetByConnectionID(ctx, "conn-bob")
	if err != nil {
		t.Fatalf("GetByConnectionID: %v", err)
	}
	if got.ID != "room-1" {
		t.Fatalf("got room %s, want room-1", got.ID)
	}

	if _, err := repo.GetByConnectionID(ctx, "conn-gone"); !errors.Is(err, domain.ErrRoomNotFound) {
		t.Fatalf("unknown connection err = %v, want ErrRoomNotFound", err)
	}
}

func TestSaveEnforcesVersion(t *testing.T) {
	ctx := context.Background()
	repo := NewInMemoryRoomRepository()
	now := time.Now()

	room := newTestRoom(t, "room-1", now)
	if err := repo.Insert(ctx, room); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	first, _ := repo.GetByID(ctx, "room-1")
	second, _ := repo.GetByID(ctx, "room-1")

	first.Name = "Trip A"
	if err := repo.Save(ctx, first); err != nil {
		t.Fatalf("first save: %v", err)
	}

	second.Name = "Trip B"
	if err := repo.Save(ctx, second); !errors.Is(err, domain.ErrVersionConflict) {
		t.Fatalf("stale save err = %v, want ErrVersionConflict", err)
	}

	got, _ := repo.GetByID(ctx, "room-1")
	if got.Name != "Trip A" {
		t.Fatalf("lost update: name = %s", got.Name)
	}
}

func TestSaveBumpsCallerVersion(t *testing.T) {
	ctx := context.Background()
	repo := NewInMemoryRoomRepository()

	room := newTestRoom(t, "room-1", time.Now())
	if err := repo.Insert(ctx, room); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	before := room.Version
	if err := repo.Save(ctx, room); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if room.Version != before+1 {
		t.Fatalf("version = %d, want %d", room.Version, before+1)
	}

	// Caller can keep mutating and saving without a fresh read
	if err := repo.Save(ctx, room); err != nil {
		t.Fatalf("second save: %v", err)
	}
}

func TestStoreReturnsCopies(t *testing.T) {
	ctx := context.Background()
	repo := NewInMemoryRoomRepository()
	now := time.Now()

	room := newTestRoom(t, "room-1", now)
	if err := repo.Insert(ctx, room); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	got, _ := repo.GetByID(ctx, "room-1")
	got.Name = "mutated"
	got.Participants = append(got.Participants, domain.Participant{Name: "X", ConnectionID: "conn-x"})

	fresh, _ := repo.GetByID(ctx, "room-1")
	if fresh.Name != "Trip" || len(fresh.Participants) != 0 {
		t.Fatal("store leaked internal state to a caller")
	}
}

func TestDeleteExpired(t *testing.T) {
	ctx := context.Background()
	repo := NewInMemoryRoomRepository()
	now := time.Now()

	live := newTestRoom(t, "room-live", now)
	stale := newTestRoom(t, "room-stale", now.Add(-2*time.Hour))
	stale2 := newTestRoom(t, "room-stale-2", now.Add(-3*time.Hour))

	for _, room := range []*domain.Room{live, stale, stale2} {
		if err := repo.Insert(ctx, room); err != nil {
			t.Fatalf("Insert %s: %v", room.ID, err)
		}
	}

	deleted, err := repo.DeleteExpired(ctx, now)
	if err != nil {
		t.Fatalf("DeleteExpired: %v", err)
	}
	if deleted != 2 {
		t.Fatalf("deleted = %d, want 2", deleted)
	}

	if _, err := repo.GetByID(ctx, "room-live"); err != nil {
		t.Fatalf("live room should survive: %v", err)
	}
	if _, err := repo.GetByID(ctx, "room-stale"); !errors.Is(err, domain.ErrRoomNotFound) {
		t.Fatalf("stale room should be gone, err = %v", err)
	}
}

func TestDeleteEnforcesVersion(t *testing.T) {
	ctx := context.Background()
	repo := NewInMemoryRoomRepository()

	room := newTestRoom(t, "room-1", time.Now())
	if err := repo.Insert(ctx, room); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	if err := repo.Delete(ctx, "room-1", room.Version+1); !errors.Is(err, domain.ErrVersionConflict) {
		t.Fatalf("stale delete err = %v, want ErrVersionConflict", err)
	}
	if _, err := repo.GetByID(ctx, "room-1"); err != nil {
		t.Fatalf("room should survive a stale delete: %v", err)
	}

	if err := repo.Delete(ctx, "room-1", room.Version); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := repo.Delete(ctx, "room-1", room.Version); !errors.Is(err, domain.ErrVersionConflict) {
		t.Fatalf("second Delete err = %v, want ErrVersionConflict", err)
	}
}
