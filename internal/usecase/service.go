package usecase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"life-coach-agent/internal/domain"
	"life-coach-agent/internal/schema"
)

const (
	defaultCompletionTimeout = 60 * time.Second
	defaultMaxInputLen       = 2000
)

// Completer is a schema-constrained model call. Implementations return a
// payload that already validates against def, or an error.
type Completer interface {
	Complete(ctx context.Context, messages []domain.ChatMessage, def schema.Definition) (json.RawMessage, error)
}

type SessionStore interface {
	Append(ctx context.Context, sessionID string, messages []domain.ChatMessage) error
	Read(ctx context.Context, sessionID string) ([]domain.ChatMessage, error)
}

type httpStatusCoder interface {
	HTTPStatusCode() int
}

// CoachService runs the two-phase coaching conversation.
type CoachService struct {
	llm               Completer
	store             SessionStore
	completionTimeout time.Duration
	maxInputLen       int
	locks             *sessionLocks
}

func NewCoachService(llm Completer, store SessionStore, completionTimeout time.Duration, maxInputLen int) (*CoachService, error) {
	if llm == nil {
		return nil, errors.New("usecase: llm client must not be nil")
	}
	if store == nil {
		return nil, errors.New("usecase: session store must not be nil")
	}
	if completionTimeout <= 0 {
		completionTimeout = defaultCompletionTimeout
	}
	if maxInputLen <= 0 {
		maxInputLen = defaultMaxInputLen
	}
	return &CoachService{
		llm:               llm,
		store:             store,
		completionTimeout: completionTimeout,
		maxInputLen:       maxInputLen,
		locks:             newSessionLocks(),
	}, nil
}

// decodeStrict decodes exactly one JSON value into T, rejecting unknown fields.
func decodeStrict[T any](raw []byte) (T, error) {
	var out T
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&out); err != nil {
		return out, fmt.Errorf("usecase: decode payload: %w", err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return out, errors.New("usecase: decode payload: multiple JSON values")
		}
		return out, fmt.Errorf("usecase: decode payload trailing data: %w", err)
	}
	return out, nil
}

func upstreamStatusCode(err error) (int, bool) {
	var statusErr httpStatusCoder
	if !errors.As(err, &statusErr) {
		return 0, false
	}
	return statusErr.HTTPStatusCode(), true
}

var newUUID = func() string {
	return uuid.NewString()
}
