package registry

import "sync"

// SessionMap is the live connection-to-room association. It is a cache
// over the store's participant membership: entries are written when a
// connection creates or joins a room and removed during leave cleanup.
type SessionMap struct {
	mu     sync.RWMutex
	byConn map[string]string
}

func NewSessionMap() *SessionMap {
	return &SessionMap{
		byConn: make(map[string]string),
	}
}

func (s *SessionMap) Bind(connectionID, roomID string) {
	s.mu.Lock()
	s.byConn[connectionID] = roomID
	s.mu.Unlock()
}

func (s *SessionMap) Lookup(connectionID string) (string, bool) {
	s.mu.RLock()
	roomID, ok := s.byConn[connectionID]
	s.mu.RUnlock()
	return roomID, ok
}

func (s *SessionMap) Unbind(connectionID string) {
	s.mu.Lock()
	delete(s.byConn, connectionID)
	s.mu.Unlock()
}

func (s *SessionMap) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byConn)
}
