package store

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/docpipe/docpipe/internal/models"
)

// InMemoryStore is a mutex-guarded in-memory store, used when no database
// DSN is configured and throughout the tests.
type InMemoryStore struct {
	mu        sync.Mutex
	templates map[string]models.DocumentTemplate // keyed by name
	sessions  map[string]*models.Session
	documents []models.GeneratedDocument
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		templates: make(map[string]models.DocumentTemplate),
		sessions:  make(map[string]*models.Session),
	}
}

func (s *InMemoryStore) SaveTemplate(t models.DocumentTemplate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.templates[t.Name] = t
	return nil
}

func (s *InMemoryStore) GetTemplateByName(name string) (*models.DocumentTemplate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.templates[name]
	if !ok {
		return nil, nil
	}
	return &t, nil
}

func (s *InMemoryStore) ListActiveTemplates() ([]models.DocumentTemplate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.DocumentTemplate
	for _, t := range s.templates {
		if t.IsActive {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *InMemoryStore) CreateSession(sess models.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.sessions[sess.SessionID]; exists {
		return fmt.Errorf("session %s already exists", sess.SessionID)
	}
	clone, err := cloneSession(&sess)
	if err != nil {
		return err
	}
	s.sessions[sess.SessionID] = clone
	return nil
}

func (s *InMemoryStore) GetSession(sessionID string) (*models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil, nil
	}
	return cloneSession(sess)
}

// UpdateSession mutates a clone under the store mutex and swaps it in only
// when mutate succeeds, so a failed submission leaves the session intact.
func (s *InMemoryStore) UpdateSession(sessionID string, mutate func(*models.Session) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return models.ErrSessionNotFound
	}
	clone, err := cloneSession(sess)
	if err != nil {
		return err
	}
	if err := mutate(clone); err != nil {
		return err
	}
	s.sessions[sessionID] = clone
	return nil
}

func (s *InMemoryStore) DeleteExpiredSessions(cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, sess := range s.sessions {
		if !sess.ExpiresAt.IsZero() && sess.ExpiresAt.Before(cutoff) {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed, nil
}

func (s *InMemoryStore) AddGeneratedDocument(d models.GeneratedDocument) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.documents = append(s.documents, d)
	return nil
}

func (s *InMemoryStore) ListGeneratedDocuments(sessionID string) ([]models.GeneratedDocument, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.GeneratedDocument
	for _, d := range s.documents {
		if d.SessionID == sessionID {
			out = append(out, d)
		}
	}
	return out, nil
}

func (s *InMemoryStore) Close() error { return nil }

// cloneSession deep-copies a session via JSON so callers never alias the
// stored plan or collected data maps.
func cloneSession(sess *models.Session) (*models.Session, error) {
	raw, err := json.Marshal(sess)
	if err != nil {
		return nil, fmt.Errorf("failed to clone session %s: %w", sess.SessionID, err)
	}
	var clone models.Session
	if err := json.Unmarshal(raw, &clone); err != nil {
		return nil, fmt.Errorf("failed to clone session %s: %w", sess.SessionID, err)
	}
	return &clone, nil
}
