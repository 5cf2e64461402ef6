// Package session commits conversation context between turns.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/neuraplayapp/assistant-core/internal/model"
)

// DefaultMaxTurns bounds the history kept per session.
const DefaultMaxTurns = 50

// Session is the committed state of one conversation.
type Session struct {
	ID        string            `json:"id"`
	Messages  []model.Message   `json:"messages"`
	Canvas    model.CanvasState `json:"canvas"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// Recent returns up to n of the latest messages.
func (s *Session) Recent(n int) []model.Message {
	if n <= 0 || len(s.Messages) <= n {
		return s.Messages
	}
	return s.Messages[len(s.Messages)-n:]
}

// Store persists sessions. Loading an unknown session returns an empty one.
type Store interface {
	Load(ctx context.Context, id string) (*Session, error)
	Commit(ctx context.Context, id string, turns ...model.Message) error
	SetCanvas(ctx context.Context, id string, canvas model.CanvasState) error
	Close() error
}

func trim(msgs []model.Message, max int) []model.Message {
	if max > 0 && len(msgs) > max {
		return append([]model.Message(nil), msgs[len(msgs)-max:]...)
	}
	return msgs
}

// MemoryStore keeps sessions in process memory.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	maxTurns int
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an in-memory store keeping at most maxTurns messages per session.
func NewMemoryStore(maxTurns int) *MemoryStore {
	if maxTurns <= 0 {
		maxTurns = DefaultMaxTurns
	}
	return &MemoryStore{sessions: map[string]*Session{}, maxTurns: maxTurns}
}

func (m *MemoryStore) Load(_ context.Context, id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return &Session{ID: id}, nil
	}
	cp := *s
	cp.Messages = append([]model.Message(nil), s.Messages...)
	return &cp, nil
}

func (m *MemoryStore) Commit(_ context.Context, id string, turns ...model.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.get(id)
	s.Messages = trim(append(s.Messages, turns...), m.maxTurns)
	s.UpdatedAt = time.Now()
	return nil
}

func (m *MemoryStore) SetCanvas(_ context.Context, id string, canvas model.CanvasState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.get(id)
	s.Canvas = canvas
	s.UpdatedAt = time.Now()
	return nil
}

func (m *MemoryStore) Close() error { return nil }

func (m *MemoryStore) get(id string) *Session {
	s, ok := m.sessions[id]
	if !ok {
		s = &Session{ID: id}
		m.sessions[id] = s
	}
	return s
}
