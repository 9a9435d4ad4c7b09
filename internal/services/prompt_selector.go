package services

import (
	"github.com/mentora-ai/mentora-backend/internal/data/repos"
	types "github.com/mentora-ai/mentora-backend/internal/domain"
	"github.com/mentora-ai/mentora-backend/internal/platform/dbctx"
	"github.com/mentora-ai/mentora-backend/internal/platform/logger"
)

// Onboarding stage keys. The prompt service manages the template bodies
// behind these; we only resolve which active version a visit gets.
const (
	StageFirstSession = "onboarding_first_session"
	StageReturning    = "onboarding_returning"
	StagePersonalized = "onboarding_personalized"
)

type PromptSelector interface {
	// SelectForVisit returns the active prompt version for the visit's
	// stage, or nil when none is seeded (the conversation then carries a
	// null prompt_version_id and the worker falls back to its default).
	SelectForVisit(dbc dbctx.Context, visitNumber int) (*types.PromptVersion, error)
}

type promptSelector struct {
	log     *logger.Logger
	prompts repos.PromptVersionRepo
	planner *PreparationPlanner
}

func NewPromptSelector(baseLog *logger.Logger, prompts repos.PromptVersionRepo, planner *PreparationPlanner) PromptSelector {
	return &promptSelector{
		log:     baseLog.With("service", "PromptSelector"),
		prompts: prompts,
		planner: planner,
	}
}

func (s *promptSelector) SelectForVisit(dbc dbctx.Context, visitNumber int) (*types.PromptVersion, error) {
	stage := s.stageForVisit(visitNumber)
	pv, err := s.prompts.GetActiveForStage(dbc, stage)
	if err != nil {
		return nil, err
	}
	if pv == nil {
		s.log.Debug("No active prompt version for stage", "stage", stage, "visit_number", visitNumber)
	}
	return pv, nil
}

func (s *promptSelector) stageForVisit(visitNumber int) string {
	plan := s.planner.PlanFor(visitNumber)
	switch {
	case plan.NeedsPersonaCheck:
		return StagePersonalized
	case plan.NeedsMemoryBackfill:
		return StageReturning
	default:
		return StageFirstSession
	}
}
