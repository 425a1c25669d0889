// Package repository stores chat sessions: the ordered message history the
// coach replays on every model call.
package repository

import (
	"context"

	"life-coach-agent/internal/domain"
)

// Store is the session history contract consumed by the usecase layer.
// Read on an unknown session returns an empty history, not an error.
type Store interface {
	Append(ctx context.Context, sessionID string, messages []domain.ChatMessage) error
	Read(ctx context.Context, sessionID string) ([]domain.ChatMessage, error)
}
