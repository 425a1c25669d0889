package usecase

import (
	"context"
	"errors"
	"strings"

	"life-coach-agent/internal/domain"
	"life-coach-agent/internal/schema"
)

type PhaseInput struct {
	Now            string
	Then           string
	SelectedOption string
	PriorMessages  []domain.ChatMessage
	SessionID      string
}

// PhaseOutput carries exactly one of Proposal (no option selected) or
// Breakdown (option selected).
type PhaseOutput struct {
	SessionID string
	Proposal  *domain.ProjectProposal
	Breakdown *domain.ActionBreakdown
}

// RunPhase assembles the next message sequence, asks the model for the phase's
// payload and records the new messages. Nothing is recorded unless the model
// returns a valid payload.
func (s *CoachService) RunPhase(ctx context.Context, in PhaseInput) (PhaseOutput, error) {
	sessionID := strings.TrimSpace(in.SessionID)
	if sessionID == "" {
		sessionID = newUUID()
	}

	messages := make([]domain.ChatMessage, 0, len(in.PriorMessages)+4)
	messages = append(messages, in.PriorMessages...)
	if len(messages) == 0 {
		messages = append(messages, seedMessages(in.Now, in.Then)...)
	}
	selected := in.SelectedOption != ""
	if selected {
		messages = append(messages, selectionMessages(in.SelectedOption)...)
	}
	def := schema.ForPhase(selected)

	callCtx, cancel := context.WithTimeout(ctx, s.completionTimeout)
	raw, err := s.llm.Complete(callCtx, messages, def)
	cancel()
	if err != nil {
		return PhaseOutput{}, classifyCompletionError(err)
	}

	out := PhaseOutput{SessionID: sessionID}
	if selected {
		breakdown, err := decodeStrict[domain.ActionBreakdown](raw)
		if err != nil {
			return PhaseOutput{}, newError(ErrorUpstream, "model_malformed_response", err)
		}
		out.Breakdown = &breakdown
	} else {
		proposal, err := decodeStrict[domain.ProjectProposal](raw)
		if err != nil {
			return PhaseOutput{}, newError(ErrorUpstream, "model_malformed_response", err)
		}
		out.Proposal = &proposal
	}

	if err := s.store.Append(ctx, sessionID, messages[len(in.PriorMessages):]); err != nil {
		return PhaseOutput{}, newError(ErrorInternal, "session_append_error", err)
	}
	return out, nil
}

func classifyCompletionError(err error) *Error {
	var validationErr *schema.ValidationError
	switch {
	case errors.As(err, &validationErr):
		return newError(ErrorUpstream, "model_payload_invalid", err)
	case errors.Is(err, context.DeadlineExceeded):
		return newError(ErrorUpstream, "model_timeout", err)
	}
	if status, ok := upstreamStatusCode(err); ok && status == 429 {
		return newError(ErrorRateLimited, "model_rate_limited", err)
	}
	return newError(ErrorUpstream, "model_error", err)
}

// validateText checks a free-text field that is stored in tagged form.
func (s *CoachService) validateText(field, v string) *Error {
	if strings.TrimSpace(v) == "" {
		return newError(ErrorInvalidInput, "empty_"+field, nil)
	}
	if len(v) > s.maxInputLen {
		return newError(ErrorInvalidInput, field+"_too_long", nil)
	}
	if containsTag(v) {
		return newError(ErrorInvalidInput, field+"_contains_tag", nil)
	}
	return nil
}
