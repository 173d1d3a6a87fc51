// Package memory implements the persistence ports in process memory.
// It backs tests and the interactive CLI; production deployments use the
// redis or postgres adapters.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/switchback-sms/switchback/pkg/domain"
)

// Store implements ports.SessionStore, ports.ResponseStore, and
// ports.OptOutStore. Safe for concurrent use.
type Store struct {
	mu        sync.RWMutex
	sessions  map[string]*domain.Session
	responses map[string][]domain.ResponseRecord
	optouts   map[string]time.Time
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{
		sessions:  make(map[string]*domain.Session),
		responses: make(map[string][]domain.ResponseRecord),
		optouts:   make(map[string]time.Time),
	}
}

// Save persists a deep copy so the caller can't mutate stored state
// through the pointer afterwards, mirroring serialization semantics.
func (s *Store) Save(ctx context.Context, session *domain.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.ID] = session.Clone()
	return nil
}

// Find retrieves a session by id.
func (s *Store) Find(ctx context.Context, sessionID string) (*domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[sessionID]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return session.Clone(), nil
}

// FindActive returns the open session for a subject+survey pair.
func (s *Store) FindActive(ctx context.Context, subjectHash, surveyID string) (*domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, session := range s.sessions {
		if session.SubjectHash == subjectHash && session.SurveyID == surveyID && session.Active() {
			return session.Clone(), nil
		}
	}
	return nil, domain.ErrSessionNotFound
}

// Delete removes a session and cascades to its response records.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
	delete(s.responses, sessionID)
	return nil
}

// Append adds a response record to the session's log.
func (s *Store) Append(ctx context.Context, record domain.ResponseRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responses[record.SessionID] = append(s.responses[record.SessionID], record)
	return nil
}

// BySession returns a session's records in arrival order.
func (s *Store) BySession(ctx context.Context, sessionID string) ([]domain.ResponseRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	records := s.responses[sessionID]
	out := make([]domain.ResponseRecord, len(records))
	copy(out, records)
	return out, nil
}

// AddOptOut records an opt-out for the subject.
func (s *Store) AddOptOut(ctx context.Context, subjectHash, keyword string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.optouts[subjectHash] = time.Now().UTC()
	return nil
}

// RemoveOptOut reverses an opt-out.
func (s *Store) RemoveOptOut(ctx context.Context, subjectHash string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.optouts[subjectHash]; !ok {
		return false, nil
	}
	delete(s.optouts, subjectHash)
	return true, nil
}

// IsOptedOut reports whether the subject is opted out.
func (s *Store) IsOptedOut(ctx context.Context, subjectHash string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.optouts[subjectHash]
	return ok, nil
}
