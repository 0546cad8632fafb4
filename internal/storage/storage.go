package storage

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lehigh-university-libraries/labeler/internal/review"
)

// Entry is an open review session and when it was registered.
type Entry struct {
	ID        string
	Session   *review.Session
	CreatedAt time.Time
}

// SessionStore keeps the review sessions the HTTP interface is serving.
type SessionStore struct {
	sessions map[string]Entry
	mu       sync.RWMutex
}

func New() *SessionStore {
	return &SessionStore{
		sessions: make(map[string]Entry),
	}
}

// Add registers session under a fresh id.
func (s *SessionStore) Add(session *review.Session) string {
	id := uuid.NewString()
	s.Set(id, session)
	return id
}

func (s *SessionStore) Get(sessionID string) (*review.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, exists := s.sessions[sessionID]
	return entry.Session, exists
}

// Set registers or replaces the session stored under sessionID.
func (s *SessionStore) Set(sessionID string, session *review.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sessionID] = Entry{ID: sessionID, Session: session, CreatedAt: time.Now()}
}

// List returns every entry, oldest first.
func (s *SessionStore) List() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]Entry, 0, len(s.sessions))
	for _, v := range s.sessions {
		result = append(result, v)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result
}

// Delete closes and forgets the session. Unknown ids are ignored.
func (s *SessionStore) Delete(sessionID string) {
	s.mu.Lock()
	entry, ok := s.sessions[sessionID]
	delete(s.sessions, sessionID)
	s.mu.Unlock()

	if ok {
		entry.Session.Close()
	}
}

func (s *SessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
