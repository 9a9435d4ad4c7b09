package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mentora-ai/mentora-backend/internal/data/repos"
	"github.com/mentora-ai/mentora-backend/internal/dispatch"
	types "github.com/mentora-ai/mentora-backend/internal/domain"
	"github.com/mentora-ai/mentora-backend/internal/jobs/background"
	"github.com/mentora-ai/mentora-backend/internal/platform/dbctx"
	"github.com/mentora-ai/mentora-backend/internal/platform/logger"
)

const (
	PrepStatusReady     = "ready"
	PrepStatusPreparing = "preparing_background"
)

type CreateConversationResult struct {
	Conversation      *types.Conversation        `json:"conversation"`
	VisitNumber       int                        `json:"visit_number"`
	OpeningMessage    *types.ConversationMessage `json:"opening_message"`
	PreparationStatus string                     `json:"preparation_status"`

	MemoryTasksDispatched int  `json:"memory_tasks_dispatched"`
	PersonaDispatched     bool `json:"persona_dispatched"`
}

// OnboardingConfig carries the per-stage wait and retry budgets. The
// opening-message wait is the one an end user sits through; the backfill
// budgets are generous because those tasks run off the request path.
type OnboardingConfig struct {
	CallbackURL string

	OpeningMessageWait WaitConfig
	OpeningRetry       RetryConfig

	BackfillWait  WaitConfig
	BackfillRetry RetryConfig
}

type OnboardingService interface {
	CreateConversation(dbc dbctx.Context, userID uuid.UUID, title string) (*CreateConversationResult, error)
}

type onboardingService struct {
	db  *gorm.DB
	log *logger.Logger
	cfg OnboardingConfig

	assigner VisitAssigner
	planner  *PreparationPlanner
	prompts  PromptSelector

	conversations repos.ConversationRepo
	visits        repos.ConversationVisitRepo
	messages      repos.ConversationMessageRepo
	memories      repos.ConversationMemoryRepo
	personas      repos.UserPersonaRepo

	transport dispatch.Transport
	pool      *background.Pool
}

func NewOnboardingService(
	db *gorm.DB,
	baseLog *logger.Logger,
	cfg OnboardingConfig,
	assigner VisitAssigner,
	planner *PreparationPlanner,
	prompts PromptSelector,
	conversations repos.ConversationRepo,
	visits repos.ConversationVisitRepo,
	messages repos.ConversationMessageRepo,
	memories repos.ConversationMemoryRepo,
	personas repos.UserPersonaRepo,
	transport dispatch.Transport,
	pool *background.Pool,
) OnboardingService {
	return &onboardingService{
		db:            db,
		log:           baseLog.With("service", "OnboardingService"),
		cfg:           cfg,
		assigner:      assigner,
		planner:       planner,
		prompts:       prompts,
		conversations: conversations,
		visits:        visits,
		messages:      messages,
		memories:      memories,
		personas:      personas,
		transport:     transport,
		pool:          pool,
	}
}

// CreateConversation runs the onboarding state machine:
//
//	Start -> VisitAssigned -> PromptSelected -> [BackgroundPrepDispatched]
//	      -> OpeningMessageRequested -> {Ready | rolled back}
//
// Every foreground failure past visit assignment deletes the conversation
// and its visit row, so a conversation a user can see is always fully
// prepared. Background memory/persona tasks already dispatched are left to
// complete: they are idempotent upserts against *other* conversations.
func (s *onboardingService) CreateConversation(dbc dbctx.Context, userID uuid.UUID, title string) (*CreateConversationResult, error) {
	if userID == uuid.Nil {
		return nil, fmt.Errorf("missing user_id")
	}
	// Visit assignment must run in autocommit mode: the unique-index
	// arbitration needs each claim visible to concurrent requests
	// immediately, and a collision must not poison an outer transaction.
	if dbc.Tx != nil {
		return nil, fmt.Errorf("CreateConversation must not run inside a transaction")
	}

	conv, visitNumber, err := s.assigner.AssignVisit(dbc, userID, title)
	if err != nil {
		s.logFailure("assign_visit", userID, uuid.Nil, err)
		return nil, err
	}

	result, err := s.prepareAndOpen(dbc, conv, userID, visitNumber)
	if err != nil {
		s.rollback(dbc.Ctx, conv.ID)
		s.logFailure("prepare", userID, conv.ID, err)
		return nil, err
	}
	return result, nil
}

func (s *onboardingService) prepareAndOpen(dbc dbctx.Context, conv *types.Conversation, userID uuid.UUID, visitNumber int) (*CreateConversationResult, error) {
	// PromptSelected
	pv, err := s.prompts.SelectForVisit(dbc, visitNumber)
	if err != nil {
		return nil, fmt.Errorf("%w: select prompt: %v", ErrPersistence, err)
	}
	if pv != nil {
		if err := s.conversations.UpdateFields(dbc, conv.ID, map[string]interface{}{
			"prompt_version_id": pv.ID,
		}); err != nil {
			return nil, fmt.Errorf("%w: attach prompt version: %v", ErrPersistence, err)
		}
		pvID := pv.ID
		conv.PromptVersionID = &pvID
	}

	// BackgroundPrepDispatched
	plan := s.planner.PlanFor(visitNumber)

	if plan.NeedsPersonaCheck {
		if err := s.checkPersonaPrecondition(dbc, userID, conv.ID); err != nil {
			return nil, err
		}
	}

	memoryTasks := 0
	if plan.NeedsMemoryBackfill {
		n, err := s.dispatchMemoryBackfill(dbc, userID, conv.ID)
		if err != nil {
			return nil, err
		}
		memoryTasks = n
	}

	personaDispatched := false
	if plan.NeedsPersonaCheck {
		dispatched, err := s.dispatchPersonaIfMissing(dbc, userID)
		if err != nil {
			return nil, err
		}
		personaDispatched = dispatched
	}

	// OpeningMessageRequested -> Ready
	opening, err := s.requestOpeningMessage(dbc, conv.ID, userID, visitNumber)
	if err != nil {
		return nil, err
	}

	status := PrepStatusReady
	if memoryTasks > 0 || personaDispatched {
		status = PrepStatusPreparing
	}
	return &CreateConversationResult{
		Conversation:          conv,
		VisitNumber:           visitNumber,
		OpeningMessage:        opening,
		PreparationStatus:     status,
		MemoryTasksDispatched: memoryTasks,
		PersonaDispatched:     personaDispatched,
	}, nil
}

// checkPersonaPrecondition enforces the fatal gate: a personalized session
// needs at least MinQualifying other conversations with messages. This is
// never silently downgraded.
func (s *onboardingService) checkPersonaPrecondition(dbc dbctx.Context, userID, excludeID uuid.UUID) error {
	qualifying, err := s.messages.ListConversationIDsWithMessages(dbc, userID, excludeID)
	if err != nil {
		return fmt.Errorf("%w: list qualifying conversations: %v", ErrPersistence, err)
	}
	if len(qualifying) < s.planner.MinQualifying() {
		return fmt.Errorf("%w: have %d, need %d", ErrPreconditionUnmet, len(qualifying), s.planner.MinQualifying())
	}
	return nil
}

// dispatchMemoryBackfill hands one memory-generation task per uncovered
// prior conversation to the background pool. The units are independent:
// they may complete in any order or fail alone, and none of them can fail
// this request.
func (s *onboardingService) dispatchMemoryBackfill(dbc dbctx.Context, userID, excludeID uuid.UUID) (int, error) {
	others, err := s.conversations.ListOtherByUser(dbc, userID, excludeID)
	if err != nil {
		return 0, fmt.Errorf("%w: list prior conversations: %v", ErrPersistence, err)
	}
	if len(others) == 0 {
		return 0, nil
	}

	withMessages, err := s.messages.ListConversationIDsWithMessages(dbc, userID, excludeID)
	if err != nil {
		return 0, fmt.Errorf("%w: list conversations with messages: %v", ErrPersistence, err)
	}
	messagesSet := make(map[uuid.UUID]bool, len(withMessages))
	for _, id := range withMessages {
		messagesSet[id] = true
	}

	otherIDs := make([]uuid.UUID, 0, len(others))
	for _, c := range others {
		otherIDs = append(otherIDs, c.ID)
	}
	withMemory, err := s.memories.ListConversationIDsWithMemory(dbc, otherIDs)
	if err != nil {
		return 0, fmt.Errorf("%w: list conversations with memory: %v", ErrPersistence, err)
	}
	memorySet := make(map[uuid.UUID]bool, len(withMemory))
	for _, id := range withMemory {
		memorySet[id] = true
	}

	dispatched := 0
	for _, c := range others {
		if !messagesSet[c.ID] || memorySet[c.ID] {
			continue
		}
		convID := c.ID
		task := dispatch.Task{
			Type:            dispatch.TaskGenerateMemoryBatch,
			UserID:          userID,
			ConversationIDs: []uuid.UUID{convID},
		}
		s.submitBackground(fmt.Sprintf("memory_backfill:%s", convID), task, func(ctx context.Context) (bool, error) {
			row, err := s.memories.GetByConversationID(dbctx.Context{Ctx: ctx}, convID)
			if err != nil {
				return false, fmt.Errorf("%w: poll memory row: %v", ErrPersistence, err)
			}
			return row != nil, nil
		})
		dispatched++
	}
	return dispatched, nil
}

func (s *onboardingService) dispatchPersonaIfMissing(dbc dbctx.Context, userID uuid.UUID) (bool, error) {
	existing, err := s.personas.GetByUserID(dbc, userID)
	if err != nil {
		return false, fmt.Errorf("%w: read persona: %v", ErrPersistence, err)
	}
	if existing != nil {
		return false, nil
	}
	task := dispatch.Task{
		Type:   dispatch.TaskUserPersonaGeneration,
		UserID: userID,
	}
	s.submitBackground(fmt.Sprintf("persona:%s", userID), task, func(ctx context.Context) (bool, error) {
		row, err := s.personas.GetByUserID(dbctx.Context{Ctx: ctx}, userID)
		if err != nil {
			return false, fmt.Errorf("%w: poll persona row: %v", ErrPersistence, err)
		}
		return row != nil, nil
	})
	return true, nil
}

// submitBackground queues a dispatch-then-await unit on the pool. The
// pool logs and swallows whatever comes back; the request path never
// hears about it.
func (s *onboardingService) submitBackground(name string, task dispatch.Task, arrived func(ctx context.Context) (bool, error)) {
	s.pool.Submit(background.Job{
		Name: name,
		Run: func(ctx context.Context) error {
			return DispatchWithRetry(ctx, s.log, s.cfg.BackfillRetry, name, func(ctx context.Context) error {
				if err := s.transport.DispatchAndForget(ctx, task); err != nil {
					return err
				}
				_, err := Await(ctx, s.cfg.BackfillWait, func(ctx context.Context) (struct{}, bool, error) {
					ok, err := arrived(ctx)
					return struct{}{}, ok, err
				})
				return err
			})
		},
	})
}

// requestOpeningMessage dispatches the opening-message task with a
// synchronous started-ack, then suspends the request in a poll loop until
// the worker's first assistant message lands in the conversation.
func (s *onboardingService) requestOpeningMessage(dbc dbctx.Context, conversationID, userID uuid.UUID, visitNumber int) (*types.ConversationMessage, error) {
	convID := conversationID
	task := dispatch.Task{
		Type:           dispatch.TaskOpeningMessage,
		UserID:         userID,
		ConversationID: &convID,
		VisitNumber:    visitNumber,
		CallbackURL:    s.cfg.CallbackURL,
	}

	var opening *types.ConversationMessage
	err := DispatchWithRetry(dbc.Ctx, s.log, s.cfg.OpeningRetry, "opening_message", func(ctx context.Context) error {
		if err := s.transport.DispatchAndAwaitHTTP(ctx, task); err != nil {
			return err
		}
		msg, err := Await(ctx, s.cfg.OpeningMessageWait, func(ctx context.Context) (*types.ConversationMessage, bool, error) {
			row, err := s.messages.FirstByRole(dbctx.Context{Ctx: ctx}, conversationID, types.RoleAssistant)
			if err != nil {
				// Keep the taxonomy intact: a mid-poll storage fault is a
				// persistence failure, not a bad request.
				return nil, false, fmt.Errorf("%w: poll opening message: %v", ErrPersistence, err)
			}
			return row, row != nil, nil
		})
		if err != nil {
			return err
		}
		opening = msg
		return nil
	})
	if err != nil {
		return nil, err
	}
	return opening, nil
}

// rollback removes every trace of the half-prepared conversation in one
// transaction. A late worker write for it is dropped by the callback
// handler's existence check.
func (s *onboardingService) rollback(ctx context.Context, conversationID uuid.UUID) {
	err := s.db.WithContext(ctx).Transaction(func(txx *gorm.DB) error {
		inner := dbctx.Context{Ctx: ctx, Tx: txx}
		if err := s.messages.DeleteByConversationID(inner, conversationID); err != nil {
			return err
		}
		if err := s.visits.DeleteByConversationID(inner, conversationID); err != nil {
			return err
		}
		return s.conversations.DeleteByID(inner, conversationID)
	})
	if err != nil {
		s.log.Error("Rollback failed; conversation left behind", "conversation_id", conversationID, "error", err)
		return
	}
	s.log.Info("Conversation rolled back", "conversation_id", conversationID)
}

func (s *onboardingService) logFailure(stage string, userID, conversationID uuid.UUID, err error) {
	kind := "persistence"
	switch {
	case errors.Is(err, ErrRaceExhausted):
		kind = "race_exhausted"
	case errors.Is(err, ErrPreconditionUnmet):
		kind = "precondition_unmet"
	case errors.Is(err, dispatch.ErrDispatchFailed):
		kind = "dispatch_failure"
	case errors.Is(err, ErrGenerationTimedOut):
		kind = "generation_timed_out"
	}
	s.log.Warn("Conversation onboarding failed",
		"stage", stage,
		"kind", kind,
		"user_id", userID,
		"conversation_id", conversationID,
		"error", err,
	)
}
