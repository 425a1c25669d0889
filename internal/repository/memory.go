package repository

import (
	"context"
	"errors"
	"sync"

	"life-coach-agent/internal/domain"
)

// Memory keeps sessions in process memory. Nothing expires; everything is lost
// on restart.
type Memory struct {
	mu       sync.RWMutex
	sessions map[string][]domain.ChatMessage
}

func NewMemory() *Memory {
	return &Memory{sessions: make(map[string][]domain.ChatMessage)}
}

func (m *Memory) Append(_ context.Context, sessionID string, messages []domain.ChatMessage) error {
	if sessionID == "" {
		return errors.New("repository: session id must not be empty")
	}
	if len(messages) == 0 {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sessions[sessionID] = append(m.sessions[sessionID], messages...)
	return nil
}

func (m *Memory) Read(_ context.Context, sessionID string) ([]domain.ChatMessage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	msgs := m.sessions[sessionID]
	out := make([]domain.ChatMessage, len(msgs))
	copy(out, msgs)
	return out, nil
}
