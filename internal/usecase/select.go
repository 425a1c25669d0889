package usecase

import (
	"context"
	"strings"

	"life-coach-agent/internal/domain"
)

type SelectInput struct {
	SelectedOption string
	ChatID         string
}

type SelectOutput struct {
	Breakdown domain.ActionBreakdown
	SessionID string
}

// SelectOption runs the breakdown phase for a session opened by Ask. Selecting
// again on a completed session runs another breakdown round on the same
// history.
func (s *CoachService) SelectOption(ctx context.Context, in SelectInput) (SelectOutput, error) {
	if err := s.validateText("selected_option", in.SelectedOption); err != nil {
		return SelectOutput{}, err
	}
	chatID := strings.TrimSpace(in.ChatID)
	if chatID == "" {
		return SelectOutput{}, newError(ErrorMissingHistory, "missing_chat_id", nil)
	}

	unlock := s.locks.lock(chatID)
	defer unlock()

	prior, err := s.store.Read(ctx, chatID)
	if err != nil {
		return SelectOutput{}, newError(ErrorInternal, "session_read_error", err)
	}
	now, then, ok := recoverSituation(prior)
	if !ok {
		return SelectOutput{}, newError(ErrorMissingHistory, "missing_now_or_then", nil)
	}

	out, err := s.RunPhase(ctx, PhaseInput{
		Now:            now,
		Then:           then,
		SelectedOption: in.SelectedOption,
		PriorMessages:  prior,
		SessionID:      chatID,
	})
	if err != nil {
		return SelectOutput{}, err
	}

	if err := s.store.Append(ctx, chatID, []domain.ChatMessage{selectionRecord(in.SelectedOption)}); err != nil {
		return SelectOutput{}, newError(ErrorInternal, "session_append_error", err)
	}
	return SelectOutput{Breakdown: *out.Breakdown, SessionID: out.SessionID}, nil
}
