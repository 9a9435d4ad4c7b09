package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/mentora-ai/mentora-backend/internal/data/repos"
	"github.com/mentora-ai/mentora-backend/internal/data/repos/testutil"
	"github.com/mentora-ai/mentora-backend/internal/dispatch"
	types "github.com/mentora-ai/mentora-backend/internal/domain"
	"github.com/mentora-ai/mentora-backend/internal/jobs/background"
	"github.com/mentora-ai/mentora-backend/internal/platform/logger"
)

// cleanupUser removes everything a test created for this user. The
// onboarding path runs in autocommit mode, so per-test transactions
// cannot isolate these tests.
func cleanupUser(tb testing.TB, gdb *gorm.DB, userID uuid.UUID) {
	tb.Helper()
	tb.Cleanup(func() {
		convIDs := gdb.Model(&types.Conversation{}).Select("id").Where("user_id = ?", userID)
		gdb.Where("conversation_id IN (?)", convIDs).Delete(&types.ConversationMemory{})
		gdb.Where("user_id = ?", userID).Delete(&types.ConversationMessage{})
		gdb.Where("user_id = ?", userID).Delete(&types.ConversationVisit{})
		gdb.Where("user_id = ?", userID).Delete(&types.UserPersona{})
		gdb.Where("user_id = ?", userID).Delete(&types.Conversation{})
		gdb.Where("id = ?", userID).Delete(&types.User{})
	})
}

// fakeWorker stands in for the worker service: it records every dispatch
// and writes the rows a real worker's callback would produce.
type fakeWorker struct {
	db *gorm.DB

	mu     sync.Mutex
	forget []dispatch.Task
	await  []dispatch.Task

	awaitErr     error
	forgetErr    error
	skipOpening  bool
	skipBackfill bool
}

func (f *fakeWorker) DispatchAndForget(ctx context.Context, task dispatch.Task) error {
	f.mu.Lock()
	f.forget = append(f.forget, task)
	f.mu.Unlock()
	if f.forgetErr != nil {
		return f.forgetErr
	}
	if f.skipBackfill {
		return nil
	}
	switch task.Type {
	case dispatch.TaskGenerateMemoryBatch:
		for _, convID := range task.ConversationIDs {
			row := &types.ConversationMemory{
				ID:             uuid.New(),
				ConversationID: convID,
				MemoryData:     datatypes.JSON([]byte(`{"summary":"generated"}`)),
			}
			if err := f.db.WithContext(ctx).Create(row).Error; err != nil {
				return err
			}
		}
	case dispatch.TaskUserPersonaGeneration:
		row := &types.UserPersona{
			ID:          uuid.New(),
			UserID:      task.UserID,
			PersonaData: datatypes.JSON([]byte(`{"style":"generated"}`)),
		}
		if err := f.db.WithContext(ctx).Create(row).Error; err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeWorker) DispatchAndAwaitHTTP(ctx context.Context, task dispatch.Task) error {
	f.mu.Lock()
	f.await = append(f.await, task)
	f.mu.Unlock()
	if f.awaitErr != nil {
		return f.awaitErr
	}
	if f.skipOpening || task.ConversationID == nil {
		return nil
	}
	msg := &types.ConversationMessage{
		ID:             uuid.New(),
		ConversationID: *task.ConversationID,
		UserID:         task.UserID,
		Role:           types.RoleAssistant,
		Content:        "Welcome back!",
		Metadata:       datatypes.JSON([]byte(`{}`)),
	}
	return f.db.WithContext(ctx).Create(msg).Error
}

func (f *fakeWorker) forgetCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.forget)
}

type onboardingHarness struct {
	svc      OnboardingService
	worker   *fakeWorker
	memories repos.ConversationMemoryRepo
	personas repos.UserPersonaRepo
	visits   repos.ConversationVisitRepo
	convs    repos.ConversationRepo
	log      *logger.Logger
}

func newOnboardingHarness(t *testing.T, gdb *gorm.DB, opts ...func(*OnboardingConfig)) *onboardingHarness {
	t.Helper()
	log := testutil.Logger(t)

	worker := &fakeWorker{db: gdb}

	convs := repos.NewConversationRepo(gdb, log)
	visits := repos.NewConversationVisitRepo(gdb, log)
	messages := repos.NewConversationMessageRepo(gdb, log)
	memories := repos.NewConversationMemoryRepo(gdb, log)
	personas := repos.NewUserPersonaRepo(gdb, log)
	prompts := repos.NewPromptVersionRepo(gdb, log)

	planner := NewPreparationPlanner(PlannerConfig{})
	assigner := NewVisitAssigner(gdb, log, VisitAssignerConfig{}, convs, visits)
	selector := NewPromptSelector(log, prompts, planner)

	pool := background.NewPool(log, 2, 16)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	pool.Start(ctx)

	cfg := OnboardingConfig{
		CallbackURL:        "http://localhost:8080/internal/worker/results",
		OpeningMessageWait: WaitConfig{PollInterval: 10 * time.Millisecond, Timeout: 2 * time.Second},
		OpeningRetry:       RetryConfig{MaxRetries: 0, BackoffBase: time.Millisecond},
		BackfillWait:       WaitConfig{PollInterval: 10 * time.Millisecond, Timeout: 2 * time.Second},
		BackfillRetry:      RetryConfig{MaxRetries: 0, BackoffBase: time.Millisecond},
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	svc := NewOnboardingService(gdb, log, cfg,
		assigner, planner, selector,
		convs, visits, messages, memories, personas,
		worker, pool)

	return &onboardingHarness{
		svc:      svc,
		worker:   worker,
		memories: memories,
		personas: personas,
		visits:   visits,
		convs:    convs,
		log:      log,
	}
}

// waitFor polls cond until it holds or the deadline lapses.
func waitFor(t *testing.T, d time.Duration, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return cond()
}
