package usecase

import (
	"context"
	"strings"

	"life-coach-agent/internal/domain"
)

type AskInput struct {
	Now  string
	Then string
}

type AskOutput struct {
	Proposal  domain.ProjectProposal
	SessionID string
}

// Ask opens a new session and returns the proposed options.
func (s *CoachService) Ask(ctx context.Context, in AskInput) (AskOutput, error) {
	if err := s.validateSituation("now", in.Now); err != nil {
		return AskOutput{}, err
	}
	if err := s.validateSituation("then", in.Then); err != nil {
		return AskOutput{}, err
	}

	out, err := s.RunPhase(ctx, PhaseInput{Now: in.Now, Then: in.Then})
	if err != nil {
		return AskOutput{}, err
	}
	return AskOutput{Proposal: *out.Proposal, SessionID: out.SessionID}, nil
}

// validateSituation rejects values that could not be recovered verbatim from
// the tagged seed message.
func (s *CoachService) validateSituation(field, v string) error {
	if err := s.validateText(field, v); err != nil {
		return err
	}
	if strings.ContainsAny(v, "\r\n") {
		return newError(ErrorInvalidInput, field+"_multiline", nil)
	}
	return nil
}
