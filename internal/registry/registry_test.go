package registry

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/musorogski/cucme/internal/domain"
	"github.com/musorogski/cucme/internal/infrastructure/credential"
	"github.com/musorogski/cucme/internal/infrastructure/logging"
	"github.com/musorogski/cucme/internal/infrastructure/ws"
	"github.com/musorogski/cucme/internal/persistence/repository"
)

type nopLogger struct{}

func (nopLogger) Init() {}
func (nopLogger) Debug(logging.Category, logging.SubCategory, string, map[logging.ExtraKey]any) {
}
func (nopLogger) Debugf(string, ...any) {}
func (nopLogger) Info(logging.Category, logging.SubCategory, string, map[logging.ExtraKey]any) {
}
func (nopLogger) Infof(string, ...any) {}
func (nopLogger) Warn(logging.Category, logging.SubCategory, string, map[logging.ExtraKey]any) {
}
func (nopLogger) Warnf(string, ...any) {}
func (nopLogger) Error(logging.Category, logging.SubCategory, string, map[logging.ExtraKey]any) {
}
func (nopLogger) Errorf(string, ...any) {}
func (nopLogger) Fatal(logging.Category, logging.SubCategory, string, map[logging.ExtraKey]any) {
}
func (nopLogger) Fatalf(string, ...any) {}

// recordedCall captures one Broadcaster invocation in submission order.
type recordedCall struct {
	Method  string // "JoinRoom", "LeaveRoom", "SendToRoom", "SendToConnection"
	RoomID  string
	ConnID  string
	Event   string
	Payload any
}

type recordingBroadcaster struct {
	mu    sync.Mutex
	calls []recordedCall
}

func (b *recordingBroadcaster) record(c recordedCall) {
	b.mu.Lock()
	b.calls = append(b.calls, c)
	b.mu.Unlock()
}

func (b *recordingBroadcaster) JoinRoom(roomID, connID string) {
	b.record(recordedCall{Method: "JoinRoom", RoomID: roomID, ConnID: connID})
}

func (b *recordingBroadcaster) LeaveRoom(roomID, connID string) {
	b.record(recordedCall{Method: "LeaveRoom", RoomID: roomID, ConnID: connID})
}

func (b *recordingBroadcaster) SendToRoom(roomID, event string, payload any) {
	b.record(recordedCall{Method: "SendToRoom", RoomID: roomID, Event: event, Payload: payload})
}

func (b *recordingBroadcaster) SendToConnection(connID, event string, payload any) {
	b.record(recordedCall{Method: "SendToConnection", ConnID: connID, Event: event, Payload: payload})
}

func (b *recordingBroadcaster) snapshot() []recordedCall {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]recordedCall(nil), b.calls...)
}

func (b *recordingBroadcaster) events(method string) []string {
	var out []string
	for _, c := range b.snapshot() {
		if c.Method == method {
			out = append(out, c.Event)
		}
	}
	return out
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type fixture struct {
	registry    *Registry
	repo        domain.RoomRepository
	sessions    *SessionMap
	broadcaster *recordingBroadcaster
	clock       *fakeClock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	clock := &fakeClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	repo := repository.NewInMemoryRoomRepository()
	sessions := NewSessionMap()
	broadcaster := &recordingBroadcaster{}

	reg := New(Options{
		Rooms:           repo,
		Guard:           credential.NewGuard(bcrypt.MinCost),
		Sessions:        sessions,
		Broadcaster:     broadcaster,
		Logger:          nopLogger{},
		MaxParticipants: domain.DefaultMaxParticipants,
		Now:             clock.Now,
	})

	return &fixture{
		registry:    reg,
		repo:        repo,
		sessions:    sessions,
		broadcaster: broadcaster,
		clock:       clock,
	}
}

// createRoom makes a room through the registry and returns its id.
func (f *fixture) createRoom(t *testing.T, connID, roomName, userName, password string, minutes int) string {
	t.Helper()

	if err := f.registry.CreateRoom(context.Background(), connID, roomName, userName, password, minutes); err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}

	roomID, ok := f.sessions.Lookup(connID)
	if !ok {
		t.Fatal("creator connection not bound to a room")
	}
	return roomID
}

func TestCreateRoomSeedsCreator(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	roomID := f.createRoom(t, "conn-ann", "Trip", "Ann", "hunter2", 30)

	room, err := f.repo.GetByID(ctx, roomID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if len(room.Participants) != 1 || room.Participants[0].Name != "Ann" {
		t.Fatalf("participants = %+v, want just Ann", room.Participants)
	}
	if room.Participants[0].Location != nil {
		t.Fatal("creator must start without a location")
	}
	if got := room.ExpiresAt.Sub(room.CreatedAt); got != 30*time.Minute {
		t.Fatalf("lifetime = %v, want 30m", got)
	}

	calls := f.broadcaster.snapshot()
	last := calls[len(calls)-1]
	if last.Method != "SendToConnection" || last.Event != ws.RoomCreated || last.ConnID != "conn-ann" {
		t.Fatalf("last broadcast = %+v, want point-to-point roomCreated", last)
	}
}

func TestCreateRoomRejectsBadInput(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cases := []struct {
		name     string
		roomName string
		userName string
		password string
		minutes  int
	}{
		{"empty room name", "", "Ann", "pw", 30},
		{"empty user name", "Trip", "", "pw", 30},
		{"empty password", "Trip", "Ann", "", 30},
		{"zero duration", "Trip", "Ann", "pw", 0},
		{"negative duration", "Trip", "Ann", "pw", -5},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := f.registry.CreateRoom(ctx, "conn-x", tc.roomName, tc.userName, tc.password, tc.minutes)
			if !errors.Is(err, domain.ErrInvalidRequest) {
				t.Fatalf("err = %v, want ErrInvalidRequest", err)
			}
		})
	}
}

func TestJoinRoomHappyPath(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	roomID := f.createRoom(t, "conn-ann", "Trip", "Ann", "hunter2", 30)

	if err := f.registry.JoinRoom(ctx, "conn-bob", roomID, "Bob", "hunter2"); err != nil {
		t.Fatalf("JoinRoom: %v", err)
	}

	room, _ := f.repo.GetByID(ctx, roomID)
	if len(room.Participants) != 2 {
		t.Fatalf("participants = %d, want 2", len(room.Participants))
	}

	if got, ok := f.sessions.Lookup("conn-bob"); !ok || got != roomID {
		t.Fatalf("session for bob = %q, %v", got, ok)
	}
}

func TestJoinAnnouncesBeforeWiringJoinerIn(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	roomID := f.createRoom(t, "conn-ann", "Trip", "Ann", "hunter2", 30)

	if err := f.registry.JoinRoom(ctx, "conn-bob", roomID, "Bob", "hunter2"); err != nil {
		t.Fatalf("JoinRoom: %v", err)
	}

	// The userJoined room broadcast must be submitted before the joiner
	// becomes a member of the fan-out, and the point-to-point joinedRoom
	// comes after both.
	var userJoinedAt, joinedFanoutAt, joinedRoomAt = -1, -1, -1
	for i, c := range f.broadcaster.snapshot() {
		switch {
		case c.Method == "SendToRoom" && c.Event == ws.UserJoined:
			userJoinedAt = i
		case c.Method == "JoinRoom" && c.ConnID == "conn-bob":
			joinedFanoutAt = i
		case c.Method == "SendToConnection" && c.Event == ws.JoinedRoom:
			joinedRoomAt = i
		}
	}

	if userJoinedAt == -1 || joinedFanoutAt == -1 || joinedRoomAt == -1 {
		t.Fatalf("missing calls: %+v", f.broadcaster.snapshot())
	}
	if !(userJoinedAt < joinedFanoutAt && joinedFanoutAt < joinedRoomAt) {
		t.Fatalf("order = userJoined@%d fanout@%d joinedRoom@%d", userJoinedAt, joinedFanoutAt, joinedRoomAt)
	}
}

func TestJoinRoomRejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	roomID := f.createRoom(t, "conn-ann", "Trip", "Ann", "hunter2", 30)

	if err := f.registry.JoinRoom(ctx, "conn-x", "room-404", "Bob", "hunter2"); !errors.Is(err, domain.ErrRoomNotFound) {
		t.Fatalf("unknown room err = %v, want ErrRoomNotFound", err)
	}

	if err := f.registry.JoinRoom(ctx, "conn-x", roomID, "Bob", "wrong"); !errors.Is(err, domain.ErrInvalidCredential) {
		t.Fatalf("wrong password err = %v, want ErrInvalidCredential", err)
	}

	if err := f.registry.JoinRoom(ctx, "conn-x", roomID, "", "hunter2"); !errors.Is(err, domain.ErrInvalidRequest) {
		t.Fatalf("empty name err = %v, want ErrInvalidRequest", err)
	}

	// Fill the room to its cap of three
	if err := f.registry.JoinRoom(ctx, "conn-bob", roomID, "Bob", "hunter2"); err != nil {
		t.Fatalf("JoinRoom bob: %v", err)
	}
	if err := f.registry.JoinRoom(ctx, "conn-cara", roomID, "Cara", "hunter2"); err != nil {
		t.Fatalf("JoinRoom cara: %v", err)
	}
	if err := f.registry.JoinRoom(ctx, "conn-dana", roomID, "Dana", "hunter2"); !errors.Is(err, domain.ErrRoomFull) {
		t.Fatalf("fourth join err = %v, want ErrRoomFull", err)
	}
}

func TestJoinExpiredRoom(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Ann creates a one-minute room; Bob and Cara get in under the wire
	roomID := f.createRoom(t, "conn-ann", "Trip", "Ann", "hunter2", 1)

	f.clock.Advance(59 * time.Second)
	if err := f.registry.JoinRoom(ctx, "conn-bob", roomID, "Bob", "hunter2"); err != nil {
		t.Fatalf("join at 59s: %v", err)
	}

	f.clock.Advance(2 * time.Second)
	if err := f.registry.JoinRoom(ctx, "conn-cara", roomID, "Cara", "hunter2"); !errors.Is(err, domain.ErrRoomExpired) {
		t.Fatalf("join at 61s err = %v, want ErrRoomExpired", err)
	}
}

func TestConcurrentJoinsHonorCapacity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	roomID := f.createRoom(t, "conn-ann", "Trip", "Ann", "hunter2", 30)

	// Two seats remain; ten racers
	const racers = 10
	results := make(chan error, racers)

	var wg sync.WaitGroup
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			connID := "conn-racer-" + string(rune('a'+i))
			results <- f.registry.JoinRoom(ctx, connID, roomID, "Racer", "hunter2")
		}(i)
	}
	wg.Wait()
	close(results)

	var joined, full int
	for err := range results {
		switch {
		case err == nil:
			joined++
		case errors.Is(err, domain.ErrRoomFull):
			full++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}

	if joined != 2 || full != 8 {
		t.Fatalf("joined = %d, full = %d, want 2 and 8", joined, full)
	}

	room, _ := f.repo.GetByID(ctx, roomID)
	if len(room.Participants) != 3 {
		t.Fatalf("participants = %d, capacity invariant violated", len(room.Participants))
	}
}

func TestUpdateLocationBroadcastsToRoom(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	roomID := f.createRoom(t, "conn-ann", "Trip", "Ann", "hunter2", 30)
	if err := f.registry.JoinRoom(ctx, "conn-bob", roomID, "Bob", "hunter2"); err != nil {
		t.Fatalf("JoinRoom: %v", err)
	}

	loc := domain.Location{Lat: 40.7128, Lng: -74.006}
	if err := f.registry.UpdateLocation(ctx, "conn-bob", loc); err != nil {
		t.Fatalf("UpdateLocation: %v", err)
	}

	room, _ := f.repo.GetByID(ctx, roomID)
	p := room.FindParticipant("conn-bob")
	if p == nil || p.Location == nil || *p.Location != loc {
		t.Fatalf("stored location = %+v", p)
	}

	calls := f.broadcaster.snapshot()
	last := calls[len(calls)-1]
	if last.Method != "SendToRoom" || last.Event != ws.LocationUpdated {
		t.Fatalf("last broadcast = %+v, want room-wide locationUpdated", last)
	}
	payload, ok := last.Payload.(ws.LocationUpdatedPayload)
	if !ok || payload.ConnectionID != "conn-bob" || payload.Location != loc {
		t.Fatalf("payload = %+v", last.Payload)
	}
}

func TestUpdateLocationSilentWhenUnbound(t *testing.T) {
	f := newFixture(t)

	if err := f.registry.UpdateLocation(context.Background(), "conn-ghost", domain.Location{Lat: 1, Lng: 2}); err != nil {
		t.Fatalf("unbound update err = %v, want nil", err)
	}
	if len(f.broadcaster.events("SendToRoom")) != 0 {
		t.Fatal("nothing should be broadcast for an unbound connection")
	}
}

func TestUpdateLocationSilentWhenExpired(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.createRoom(t, "conn-ann", "Trip", "Ann", "hunter2", 1)
	f.clock.Advance(61 * time.Second)

	if err := f.registry.UpdateLocation(ctx, "conn-ann", domain.Location{Lat: 1, Lng: 2}); err != nil {
		t.Fatalf("expired update err = %v, want nil", err)
	}
	for _, e := range f.broadcaster.events("SendToRoom") {
		if e == ws.LocationUpdated {
			t.Fatal("expired room must not broadcast location updates")
		}
	}
}

func TestLeaveBroadcastsUserLeft(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	roomID := f.createRoom(t, "conn-ann", "Trip", "Ann", "hunter2", 30)
	if err := f.registry.JoinRoom(ctx, "conn-bob", roomID, "Bob", "hunter2"); err != nil {
		t.Fatalf("JoinRoom: %v", err)
	}

	if err := f.registry.Leave(ctx, "conn-bob"); err != nil {
		t.Fatalf("Leave: %v", err)
	}

	room, err := f.repo.GetByID(ctx, roomID)
	if err != nil {
		t.Fatalf("room should still exist: %v", err)
	}
	if len(room.Participants) != 1 {
		t.Fatalf("participants = %d, want 1", len(room.Participants))
	}

	if _, ok := f.sessions.Lookup("conn-bob"); ok {
		t.Fatal("session map retained a stale association")
	}

	calls := f.broadcaster.snapshot()
	last := calls[len(calls)-1]
	if last.Method != "SendToRoom" || last.Event != ws.UserLeft {
		t.Fatalf("last broadcast = %+v, want userLeft", last)
	}
	if payload, ok := last.Payload.(ws.UserLeftPayload); !ok || payload.ConnectionID != "conn-bob" {
		t.Fatalf("payload = %+v", last.Payload)
	}
}

func TestLeaveDeletesEmptyRoom(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	roomID := f.createRoom(t, "conn-ann", "Trip", "Ann", "hunter2", 30)

	if err := f.registry.Leave(ctx, "conn-ann"); err != nil {
		t.Fatalf("Leave: %v", err)
	}

	if _, err := f.repo.GetByID(ctx, roomID); !errors.Is(err, domain.ErrRoomNotFound) {
		t.Fatalf("empty room should be deleted, err = %v", err)
	}
}

func TestLeaveIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.createRoom(t, "conn-ann", "Trip", "Ann", "hunter2", 30)

	if err := f.registry.Leave(ctx, "conn-ann"); err != nil {
		t.Fatalf("first Leave: %v", err)
	}
	if err := f.registry.Leave(ctx, "conn-ann"); err != nil {
		t.Fatalf("second Leave must be a no-op: %v", err)
	}
	if err := f.registry.Leave(ctx, "conn-never-seen"); err != nil {
		t.Fatalf("Leave for unknown connection: %v", err)
	}
}

func TestJoinThenLocationOrdering(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	roomID := f.createRoom(t, "conn-ann", "Trip", "Ann", "hunter2", 30)
	if err := f.registry.JoinRoom(ctx, "conn-bob", roomID, "Bob", "hunter2"); err != nil {
		t.Fatalf("JoinRoom: %v", err)
	}
	if err := f.registry.UpdateLocation(ctx, "conn-bob", domain.Location{Lat: 1, Lng: 2}); err != nil {
		t.Fatalf("UpdateLocation: %v", err)
	}

	events := f.broadcaster.events("SendToRoom")
	joinedAt, updatedAt := -1, -1
	for i, e := range events {
		if e == ws.UserJoined && joinedAt == -1 {
			joinedAt = i
		}
		if e == ws.LocationUpdated {
			updatedAt = i
		}
	}
	if joinedAt == -1 || updatedAt == -1 || joinedAt >= updatedAt {
		t.Fatalf("events = %v, want userJoined before locationUpdated", events)
	}
}
