package insight

import (
	"sync"
	"time"

	"github.com/HerbHall/hydrosim/pkg/growth"
	"github.com/google/uuid"
)

// Session holds one normalized upload. Series is never modified after the
// session is created.
type Session struct {
	ID         string
	Source     string
	Series     growth.Series
	UniqueDays int
	CreatedAt  time.Time
	lastUsed   time.Time
}

// sessionStore keeps sessions in memory. When full, the least recently
// used session is evicted to make room.
type sessionStore struct {
	mu       sync.Mutex
	sessions map[string]*Session
	max      int
	now      func() time.Time
}

func newSessionStore(maxSessions int) *sessionStore {
	return &sessionStore{
		sessions: make(map[string]*Session),
		max:      maxSessions,
		now:      time.Now,
	}
}

func newSessionID() string {
	return uuid.NewString()
}

// Create stores the series under a new uuid and returns the session.
func (s *sessionStore) Create(source string, series growth.Series, uniqueDays int) *Session {
	return s.CreateWithID(newSessionID(), source, series, uniqueDays)
}

// CreateWithID stores the series under a caller-chosen id. An existing
// session with that id is replaced in place and nothing is evicted.
func (s *sessionStore) CreateWithID(id, source string, series growth.Series, uniqueDays int) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sessions[id]; !exists && len(s.sessions) >= s.max {
		s.evictOldest()
	}
	now := s.now()
	sess := &Session{
		ID:         id,
		Source:     source,
		Series:     series,
		UniqueDays: uniqueDays,
		CreatedAt:  now,
		lastUsed:   now,
	}
	s.sessions[sess.ID] = sess
	sessionsActive.Set(float64(len(s.sessions)))
	return sess
}

// Get returns the session and marks it used.
func (s *sessionStore) Get(id string) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if ok {
		sess.lastUsed = s.now()
	}
	return sess, ok
}

// Has reports whether id exists without marking it used.
func (s *sessionStore) Has(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.sessions[id]
	return ok
}

// Delete removes a session and reports whether it existed.
func (s *sessionStore) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.sessions[id]
	delete(s.sessions, id)
	sessionsActive.Set(float64(len(s.sessions)))
	return ok
}

// Reap removes sessions idle for longer than ttl and returns how many.
func (s *sessionStore) Reap(ttl time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := s.now().Add(-ttl)
	n := 0
	for id, sess := range s.sessions {
		if sess.lastUsed.Before(cutoff) {
			delete(s.sessions, id)
			n++
		}
	}
	sessionsActive.Set(float64(len(s.sessions)))
	return n
}

// Len returns the number of live sessions.
func (s *sessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// evictOldest drops the least recently used session. Callers hold s.mu.
func (s *sessionStore) evictOldest() {
	var oldest *Session
	for _, sess := range s.sessions {
		if oldest == nil || sess.lastUsed.Before(oldest.lastUsed) {
			oldest = sess
		}
	}
	if oldest != nil {
		delete(s.sessions, oldest.ID)
		sessionsEvicted.Inc()
	}
}
