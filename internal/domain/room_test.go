package domain

import (
	"errors"
	"testing"
	"time"
)

func newTestRoom(t *testing.T) *Room {
	t.Helper()

	room, err := NewRoom("Trip", "Ann", "$2a$10$fakehash", 30, time.Now())
	if err != nil {
		t.Fatalf("NewRoom failed: %v", err)
	}
	return room
}

func TestNewRoomValidation(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name      string
		roomName  string
		createdBy string
		duration  int
	}{
		{"empty room name", "", "Ann", 30},
		{"empty creator", "Trip", "", 30},
		{"blank creator", "Trip", "   ", 30},
		{"zero duration", "Trip", "Ann", 0},
		{"negative duration", "Trip", "Ann", -5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRoom(tt.roomName, tt.createdBy, "hash", tt.duration, now)
			if !errors.Is(err, ErrInvalidRequest) {
				t.Errorf("expected ErrInvalidRequest, got %v", err)
			}
		})
	}
}

func TestNewRoomExpiry(t *testing.T) {
	now := time.Now()

	room, err := NewRoom("Trip", "Ann", "hash", 1, now)
	if err != nil {
		t.Fatalf("NewRoom failed: %v", err)
	}

	if room.Expired(now) {
		t.Error("fresh room should not be expired")
	}
	if room.Expired(now.Add(59 * time.Second)) {
		t.Error("room should not be expired before its duration elapses")
	}
	if !room.Expired(now.Add(60 * time.Second)) {
		t.Error("room should be expired exactly at expiresAt")
	}
	if !room.Expired(now.Add(61 * time.Second)) {
		t.Error("room should be expired after its duration elapses")
	}
}

func TestAddParticipantCapacity(t *testing.T) {
	room := newTestRoom(t)

	for i, connID := range []string{"conn-1", "conn-2", "conn-3"} {
		p := Participant{Name: "user", ConnectionID: connID, JoinedAt: time.Now()}
		if err := room.AddParticipant(p, DefaultMaxParticipants); err != nil {
			t.Fatalf("participant %d rejected: %v", i, err)
		}
	}

	err := room.AddParticipant(Participant{Name: "late", ConnectionID: "conn-4"}, DefaultMaxParticipants)
	if !errors.Is(err, ErrRoomFull) {
		t.Errorf("expected ErrRoomFull, got %v", err)
	}
	if len(room.Participants) != 3 {
		t.Errorf("expected 3 participants, got %d", len(room.Participants))
	}
}

func TestAddParticipantDuplicateConnection(t *testing.T) {
	room := newTestRoom(t)

	p := Participant{Name: "Ann", ConnectionID: "conn-1"}
	if err := room.AddParticipant(p, DefaultMaxParticipants); err != nil {
		t.Fatalf("first add failed: %v", err)
	}

	err := room.AddParticipant(Participant{Name: "Bob", ConnectionID: "conn-1"}, DefaultMaxParticipants)
	if !errors.Is(err, ErrInvalidRequest) {
		t.Errorf("expected ErrInvalidRequest for duplicate connection, got %v", err)
	}
}

func TestRemoveParticipantPreservesJoinOrder(t *testing.T) {
	room := newTestRoom(t)

	for _, connID := range []string{"conn-1", "conn-2", "conn-3"} {
		_ = room.AddParticipant(Participant{Name: connID, ConnectionID: connID}, DefaultMaxParticipants)
	}

	removed, ok := room.RemoveParticipant("conn-2")
	if !ok {
		t.Fatal("expected participant to be removed")
	}
	if removed.ConnectionID != "conn-2" {
		t.Errorf("removed wrong participant: %s", removed.ConnectionID)
	}

	if len(room.Participants) != 2 {
		t.Fatalf("expected 2 participants, got %d", len(room.Participants))
	}
	if room.Participants[0].ConnectionID != "conn-1" || room.Participants[1].ConnectionID != "conn-3" {
		t.Error("join order not preserved after removal")
	}

	if _, ok := room.RemoveParticipant("conn-2"); ok {
		t.Error("second removal of same connection should be a no-op")
	}
}

func TestSetLocation(t *testing.T) {
	room := newTestRoom(t)
	_ = room.AddParticipant(Participant{Name: "Ann", ConnectionID: "conn-1"}, DefaultMaxParticipants)

	if room.FindParticipant("conn-1").Location != nil {
		t.Error("location should be absent until first update")
	}

	if !room.SetLocation("conn-1", Location{Lat: 37.5665, Lng: 126.9780}) {
		t.Fatal("SetLocation should succeed for a present participant")
	}

	loc := room.FindParticipant("conn-1").Location
	if loc == nil || loc.Lat != 37.5665 || loc.Lng != 126.9780 {
		t.Errorf("unexpected location: %+v", loc)
	}

	// last write wins
	room.SetLocation("conn-1", Location{Lat: 1, Lng: 2})
	loc = room.FindParticipant("conn-1").Location
	if loc.Lat != 1 || loc.Lng != 2 {
		t.Errorf("expected last write to win, got %+v", loc)
	}

	if room.SetLocation("conn-unknown", Location{}) {
		t.Error("SetLocation should report false for an unknown connection")
	}
}
