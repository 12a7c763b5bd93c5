package store

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/veridoc-ai/compliance-rag/internal/domain/entities"
)

// ChatStore is an in-memory implementation of ports.ChatStore.
type ChatStore struct {
	mu       sync.RWMutex
	sessions map[string]*entities.ChatSession
}

// NewChatStore builds an empty ChatStore.
func NewChatStore() *ChatStore {
	return &ChatStore{sessions: make(map[string]*entities.ChatSession)}
}

// CreateSession opens a new session scoped to documentID.
func (s *ChatStore) CreateSession(documentID string) *entities.ChatSession {
	now := time.Now()
	session := &entities.ChatSession{
		ID:         "sess_" + uuid.New().String(),
		DocumentID: documentID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.ID] = session
	return session
}

// GetSession retrieves a session by ID.
func (s *ChatStore) GetSession(id string) (*entities.ChatSession, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	return sess, ok
}

// SaveSession persists session's current state (its append-only message
// history). Returns an error if the session was never created.
func (s *ChatStore) SaveSession(session *entities.ChatSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.sessions[session.ID]; !exists {
		return fmt.Errorf("store: session %q not found", session.ID)
	}
	s.sessions[session.ID] = session
	return nil
}
