package registry

import (
	"sync"
	"testing"
)

func TestSessionMapBindLookupUnbind(t *testing.T) {
	s := NewSessionMap()

	if _, ok := s.Lookup("conn-1"); ok {
		t.Fatal("empty map should miss")
	}

	s.Bind("conn-1", "room-a")
	if roomID, ok := s.Lookup("conn-1"); !ok || roomID != "room-a" {
		t.Fatalf("Lookup = %q, %v", roomID, ok)
	}

	// Rebinding replaces the association
	s.Bind("conn-1", "room-b")
	if roomID, _ := s.Lookup("conn-1"); roomID != "room-b" {
		t.Fatalf("Lookup after rebind = %q, want room-b", roomID)
	}

	s.Unbind("conn-1")
	if _, ok := s.Lookup("conn-1"); ok {
		t.Fatal("entry should be gone after Unbind")
	}

	// Unbinding a missing key is a no-op
	s.Unbind("conn-1")
}

func TestSessionMapConcurrentAccess(t *testing.T) {
	s := NewSessionMap()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			connID := "conn-" + string(rune('0'+i%10))
			s.Bind(connID, "room-x")
			s.Lookup(connID)
			s.Unbind(connID)
		}(i)
	}
	wg.Wait()

	if s.Len() != 0 {
		t.Fatalf("Len = %d, want 0", s.Len())
	}
}
