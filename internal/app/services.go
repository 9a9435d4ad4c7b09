package app

import (
	"gorm.io/gorm"

	"github.com/mentora-ai/mentora-backend/internal/dispatch"
	"github.com/mentora-ai/mentora-backend/internal/jobs/background"
	"github.com/mentora-ai/mentora-backend/internal/platform/logger"
	"github.com/mentora-ai/mentora-backend/internal/services"
)

type Services struct {
	Planner       *services.PreparationPlanner
	VisitAssigner services.VisitAssigner
	Prompts       services.PromptSelector
	Onboarding    services.OnboardingService
	Conversations services.ConversationService
	WorkerResults services.WorkerResultService

	Transport dispatch.Transport
	Pool      *background.Pool
}

func wireServices(db *gorm.DB, log *logger.Logger, cfg Config, r Repos) (Services, error) {
	transport, err := dispatch.New(dispatch.Config{
		Mode:          cfg.TransportMode,
		WorkerBaseURL: cfg.WorkerBaseURL,
		RedisAddr:     cfg.RedisAddr,
		QueueStream:   cfg.QueueStream,
		SendTimeout:   cfg.SendTimeout,
	}, log)
	if err != nil {
		return Services{}, err
	}

	pool := background.NewPool(log, cfg.PoolConcurrency, cfg.PoolQueueSize)

	planner := services.NewPreparationPlanner(services.PlannerConfig{
		MemoryBackfillFromVisit: cfg.MemoryBackfillFromVisit,
		PersonaFromVisit:        cfg.PersonaFromVisit,
		PersonaMinQualifying:    cfg.PersonaMinQualifying,
	})

	assigner := services.NewVisitAssigner(db, log,
		services.VisitAssignerConfig{ClaimAttempts: cfg.ClaimAttempts},
		r.Conversations, r.Visits)

	prompts := services.NewPromptSelector(log, r.PromptVersions, planner)

	onboarding := services.NewOnboardingService(db, log,
		services.OnboardingConfig{
			CallbackURL:        cfg.CallbackURL,
			OpeningMessageWait: cfg.openingWait(),
			OpeningRetry:       cfg.openingRetry(),
			BackfillWait:       cfg.backfillWait(),
			BackfillRetry:      cfg.backfillRetry(),
		},
		assigner, planner, prompts,
		r.Conversations, r.Visits, r.Messages, r.Memories, r.Personas,
		transport, pool)

	conversations := services.NewConversationService(db, log, r.Conversations, r.Visits, r.Messages, r.Memories)

	workerResults := services.NewWorkerResultService(db, log, r.Conversations, r.Messages, r.Memories, r.Personas)

	return Services{
		Planner:       planner,
		VisitAssigner: assigner,
		Prompts:       prompts,
		Onboarding:    onboarding,
		Conversations: conversations,
		WorkerResults: workerResults,
		Transport:     transport,
		Pool:          pool,
	}, nil
}
