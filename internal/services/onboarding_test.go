package services

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/mentora-ai/mentora-backend/internal/data/repos"
	"github.com/mentora-ai/mentora-backend/internal/data/repos/testutil"
	"github.com/mentora-ai/mentora-backend/internal/dispatch"
	types "github.com/mentora-ai/mentora-backend/internal/domain"
	"github.com/mentora-ai/mentora-backend/internal/jobs/background"
	"github.com/mentora-ai/mentora-backend/internal/platform/dbctx"
)

func TestCreateConversationFirstVisit(t *testing.T) {
	gdb := testutil.DB(t)
	ctx := context.Background()
	h := newOnboardingHarness(t, gdb)

	u := testutil.SeedUser(t, ctx, gdb, fmt.Sprintf("first-%s@test.local", uuid.New()))
	cleanupUser(t, gdb, u.ID)

	dbc := dbctx.Context{Ctx: ctx}
	result, err := h.svc.CreateConversation(dbc, u.ID, "Getting started")
	if err != nil {
		t.Fatalf("create conversation: %v", err)
	}

	if result.VisitNumber != 1 {
		t.Errorf("visit number = %d, want 1", result.VisitNumber)
	}
	if result.PreparationStatus != PrepStatusReady {
		t.Errorf("status = %q, want %q", result.PreparationStatus, PrepStatusReady)
	}
	if result.MemoryTasksDispatched != 0 {
		t.Errorf("memory tasks = %d, want 0 on first visit", result.MemoryTasksDispatched)
	}
	if result.PersonaDispatched {
		t.Error("persona dispatched on first visit")
	}
	if result.OpeningMessage == nil {
		t.Fatal("no opening message")
	}
	if result.OpeningMessage.Role != types.RoleAssistant {
		t.Errorf("opening message role = %q, want assistant", result.OpeningMessage.Role)
	}
	if h.worker.forgetCount() != 0 {
		t.Errorf("background tasks dispatched on first visit: %d", h.worker.forgetCount())
	}
}

func TestCreateConversationSecondVisitBackfillsMemory(t *testing.T) {
	gdb := testutil.DB(t)
	ctx := context.Background()
	h := newOnboardingHarness(t, gdb)

	u := testutil.SeedUser(t, ctx, gdb, fmt.Sprintf("backfill-%s@test.local", uuid.New()))
	cleanupUser(t, gdb, u.ID)

	prior := testutil.SeedConversation(t, ctx, gdb, u.ID, "prior")
	testutil.SeedVisit(t, ctx, gdb, prior.ID, u.ID, 1)
	testutil.SeedMessage(t, ctx, gdb, prior.ID, u.ID, types.RoleUser, "hello")

	dbc := dbctx.Context{Ctx: ctx}
	result, err := h.svc.CreateConversation(dbc, u.ID, "")
	if err != nil {
		t.Fatalf("create conversation: %v", err)
	}
	if result.VisitNumber != 2 {
		t.Errorf("visit number = %d, want 2", result.VisitNumber)
	}
	if result.MemoryTasksDispatched != 1 {
		t.Errorf("memory tasks = %d, want 1", result.MemoryTasksDispatched)
	}
	if result.PreparationStatus != PrepStatusPreparing {
		t.Errorf("status = %q, want %q", result.PreparationStatus, PrepStatusPreparing)
	}

	// The pool dispatches off the request path; the simulated worker
	// writes the memory row once the task reaches it.
	ok := waitFor(t, 2*time.Second, func() bool {
		row, err := h.memories.GetByConversationID(dbctx.Context{Ctx: ctx}, prior.ID)
		return err == nil && row != nil
	})
	if !ok {
		t.Fatal("memory row for prior conversation never arrived")
	}
}

func TestCreateConversationSkipsCoveredConversations(t *testing.T) {
	gdb := testutil.DB(t)
	ctx := context.Background()
	h := newOnboardingHarness(t, gdb)

	u := testutil.SeedUser(t, ctx, gdb, fmt.Sprintf("covered-%s@test.local", uuid.New()))
	cleanupUser(t, gdb, u.ID)

	// One prior with memory already, one with no messages at all.
	covered := testutil.SeedConversation(t, ctx, gdb, u.ID, "covered")
	testutil.SeedVisit(t, ctx, gdb, covered.ID, u.ID, 1)
	testutil.SeedMessage(t, ctx, gdb, covered.ID, u.ID, types.RoleUser, "hi")
	testutil.SeedMemory(t, ctx, gdb, covered.ID)

	empty := testutil.SeedConversation(t, ctx, gdb, u.ID, "empty")
	testutil.SeedVisit(t, ctx, gdb, empty.ID, u.ID, 2)

	result, err := h.svc.CreateConversation(dbctx.Context{Ctx: ctx}, u.ID, "")
	if err != nil {
		t.Fatalf("create conversation: %v", err)
	}
	if result.VisitNumber != 3 {
		t.Errorf("visit number = %d, want 3", result.VisitNumber)
	}
	if result.MemoryTasksDispatched != 0 {
		t.Errorf("memory tasks = %d, want 0 (covered or empty priors)", result.MemoryTasksDispatched)
	}
	if result.PreparationStatus != PrepStatusReady {
		t.Errorf("status = %q, want %q", result.PreparationStatus, PrepStatusReady)
	}
}

func TestCreateConversationPersonaPreconditionUnmet(t *testing.T) {
	gdb := testutil.DB(t)
	ctx := context.Background()
	h := newOnboardingHarness(t, gdb)

	u := testutil.SeedUser(t, ctx, gdb, fmt.Sprintf("unmet-%s@test.local", uuid.New()))
	cleanupUser(t, gdb, u.ID)

	// Three priors, only two with messages: the persona gate needs three.
	for i := 1; i <= 3; i++ {
		c := testutil.SeedConversation(t, ctx, gdb, u.ID, fmt.Sprintf("prior-%d", i))
		testutil.SeedVisit(t, ctx, gdb, c.ID, u.ID, i)
		if i <= 2 {
			testutil.SeedMessage(t, ctx, gdb, c.ID, u.ID, types.RoleUser, "hi")
		}
		testutil.SeedMemory(t, ctx, gdb, c.ID)
	}

	dbc := dbctx.Context{Ctx: ctx}
	_, err := h.svc.CreateConversation(dbc, u.ID, "")
	if !errors.Is(err, ErrPreconditionUnmet) {
		t.Fatalf("err = %v, want ErrPreconditionUnmet", err)
	}

	// The 4th conversation and its visit row must be gone.
	n, err := h.convs.CountByUser(dbc, u.ID)
	if err != nil {
		t.Fatalf("count conversations: %v", err)
	}
	if n != 3 {
		t.Errorf("conversations = %d, want 3 after rollback", n)
	}
}

func TestCreateConversationDispatchesPersona(t *testing.T) {
	gdb := testutil.DB(t)
	ctx := context.Background()
	h := newOnboardingHarness(t, gdb)

	u := testutil.SeedUser(t, ctx, gdb, fmt.Sprintf("persona-%s@test.local", uuid.New()))
	cleanupUser(t, gdb, u.ID)

	for i := 1; i <= 3; i++ {
		c := testutil.SeedConversation(t, ctx, gdb, u.ID, fmt.Sprintf("prior-%d", i))
		testutil.SeedVisit(t, ctx, gdb, c.ID, u.ID, i)
		testutil.SeedMessage(t, ctx, gdb, c.ID, u.ID, types.RoleUser, "hi")
		testutil.SeedMemory(t, ctx, gdb, c.ID)
	}

	dbc := dbctx.Context{Ctx: ctx}
	result, err := h.svc.CreateConversation(dbc, u.ID, "")
	if err != nil {
		t.Fatalf("create conversation: %v", err)
	}
	if result.VisitNumber != 4 {
		t.Errorf("visit number = %d, want 4", result.VisitNumber)
	}
	if !result.PersonaDispatched {
		t.Fatal("persona not dispatched on 4th visit with no existing persona")
	}
	if result.PreparationStatus != PrepStatusPreparing {
		t.Errorf("status = %q, want %q", result.PreparationStatus, PrepStatusPreparing)
	}

	ok := waitFor(t, 2*time.Second, func() bool {
		row, err := h.personas.GetByUserID(dbctx.Context{Ctx: ctx}, u.ID)
		return err == nil && row != nil
	})
	if !ok {
		t.Fatal("persona row never arrived")
	}

	// A later visit with the persona in place dispatches nothing new.
	result, err = h.svc.CreateConversation(dbc, u.ID, "")
	if err != nil {
		t.Fatalf("create 5th conversation: %v", err)
	}
	if result.PersonaDispatched {
		t.Error("persona re-dispatched although one exists")
	}
}

func TestCreateConversationOpeningTimeoutRollsBack(t *testing.T) {
	gdb := testutil.DB(t)
	ctx := context.Background()
	h := newOnboardingHarness(t, gdb, func(cfg *OnboardingConfig) {
		cfg.OpeningMessageWait = WaitConfig{PollInterval: 10 * time.Millisecond, Timeout: 50 * time.Millisecond}
		cfg.OpeningRetry = RetryConfig{MaxRetries: 1, BackoffBase: time.Millisecond}
	})
	h.worker.skipOpening = true

	u := testutil.SeedUser(t, ctx, gdb, fmt.Sprintf("timeout-%s@test.local", uuid.New()))
	cleanupUser(t, gdb, u.ID)

	dbc := dbctx.Context{Ctx: ctx}
	_, err := h.svc.CreateConversation(dbc, u.ID, "")
	if !errors.Is(err, ErrGenerationTimedOut) {
		t.Fatalf("err = %v, want ErrGenerationTimedOut", err)
	}
	// Timed-out waits earn a re-dispatch before giving up.
	if got := len(h.worker.await); got != 2 {
		t.Errorf("opening dispatches = %d, want 2", got)
	}

	n, err := h.convs.CountByUser(dbc, u.ID)
	if err != nil {
		t.Fatalf("count conversations: %v", err)
	}
	if n != 0 {
		t.Fatalf("conversations = %d, want 0 after rollback", n)
	}

	// The rolled-back visit number is claimable again.
	h.worker.skipOpening = false
	result, err := h.svc.CreateConversation(dbc, u.ID, "")
	if err != nil {
		t.Fatalf("retry create: %v", err)
	}
	if result.VisitNumber != 1 {
		t.Errorf("visit number after rollback = %d, want 1", result.VisitNumber)
	}
}

func TestCreateConversationDispatchFailureRollsBack(t *testing.T) {
	gdb := testutil.DB(t)
	ctx := context.Background()
	h := newOnboardingHarness(t, gdb)
	h.worker.awaitErr = fmt.Errorf("%w: worker http 503", dispatch.ErrDispatchFailed)

	u := testutil.SeedUser(t, ctx, gdb, fmt.Sprintf("dfail-%s@test.local", uuid.New()))
	cleanupUser(t, gdb, u.ID)

	dbc := dbctx.Context{Ctx: ctx}
	_, err := h.svc.CreateConversation(dbc, u.ID, "")
	if !errors.Is(err, dispatch.ErrDispatchFailed) {
		t.Fatalf("err = %v, want ErrDispatchFailed", err)
	}
	// A send failure is terminal: no blind re-dispatch.
	if got := len(h.worker.await); got != 1 {
		t.Errorf("opening dispatches = %d, want 1", got)
	}

	n, err := h.convs.CountByUser(dbc, u.ID)
	if err != nil {
		t.Fatalf("count conversations: %v", err)
	}
	if n != 0 {
		t.Errorf("conversations = %d, want 0 after rollback", n)
	}
}

type failingFirstByRole struct {
	repos.ConversationMessageRepo
	err error
}

func (f failingFirstByRole) FirstByRole(dbc dbctx.Context, conversationID uuid.UUID, role string) (*types.ConversationMessage, error) {
	return nil, f.err
}

// A storage fault while polling for the opening message must surface as a
// persistence failure, so the handler maps it to the one retryable
// response instead of echoing driver internals.
func TestCreateConversationPollFaultIsPersistence(t *testing.T) {
	gdb := testutil.DB(t)
	log := testutil.Logger(t)
	ctx := context.Background()

	u := testutil.SeedUser(t, ctx, gdb, fmt.Sprintf("pollfault-%s@test.local", uuid.New()))
	cleanupUser(t, gdb, u.ID)

	worker := &fakeWorker{db: gdb}
	convs := repos.NewConversationRepo(gdb, log)
	visits := repos.NewConversationVisitRepo(gdb, log)
	messages := failingFirstByRole{
		ConversationMessageRepo: repos.NewConversationMessageRepo(gdb, log),
		err:                     errors.New("driver: bad connection"),
	}
	memories := repos.NewConversationMemoryRepo(gdb, log)
	personas := repos.NewUserPersonaRepo(gdb, log)
	prompts := repos.NewPromptVersionRepo(gdb, log)

	planner := NewPreparationPlanner(PlannerConfig{})
	assigner := NewVisitAssigner(gdb, log, VisitAssignerConfig{}, convs, visits)
	selector := NewPromptSelector(log, prompts, planner)
	pool := background.NewPool(log, 1, 4)

	svc := NewOnboardingService(gdb, log, OnboardingConfig{
		CallbackURL:        "http://localhost:8080/internal/worker/results",
		OpeningMessageWait: WaitConfig{PollInterval: 10 * time.Millisecond, Timeout: time.Second},
		OpeningRetry:       RetryConfig{MaxRetries: 1, BackoffBase: time.Millisecond},
		BackfillWait:       WaitConfig{PollInterval: 10 * time.Millisecond, Timeout: time.Second},
		BackfillRetry:      RetryConfig{MaxRetries: 0, BackoffBase: time.Millisecond},
	}, assigner, planner, selector, convs, visits, messages, memories, personas, worker, pool)

	dbc := dbctx.Context{Ctx: ctx}
	_, err := svc.CreateConversation(dbc, u.ID, "")
	if !errors.Is(err, ErrPersistence) {
		t.Fatalf("err = %v, want ErrPersistence", err)
	}
	// A persistence fault is terminal for the attempt, not a timeout.
	if got := len(worker.await); got != 1 {
		t.Errorf("opening dispatches = %d, want 1", got)
	}

	n, err := convs.CountByUser(dbc, u.ID)
	if err != nil {
		t.Fatalf("count conversations: %v", err)
	}
	if n != 0 {
		t.Errorf("conversations = %d, want 0 after rollback", n)
	}
}

func TestCreateConversationRejectsTransaction(t *testing.T) {
	gdb := testutil.DB(t)
	h := newOnboardingHarness(t, gdb)

	tx := testutil.Tx(t, gdb)
	_, err := h.svc.CreateConversation(dbctx.Context{Ctx: context.Background(), Tx: tx}, uuid.New(), "")
	if err == nil {
		t.Fatal("expected error when called inside a transaction")
	}
}

func TestCreateConversationAttachesPromptVersion(t *testing.T) {
	gdb := testutil.DB(t)
	ctx := context.Background()
	h := newOnboardingHarness(t, gdb)

	u := testutil.SeedUser(t, ctx, gdb, fmt.Sprintf("prompt-%s@test.local", uuid.New()))
	cleanupUser(t, gdb, u.ID)

	pv := testutil.SeedPromptVersion(t, ctx, gdb, StageFirstSession, 1, true)
	t.Cleanup(func() {
		gdb.Where("id = ?", pv.ID).Delete(&types.PromptVersion{})
	})

	result, err := h.svc.CreateConversation(dbctx.Context{Ctx: ctx}, u.ID, "")
	if err != nil {
		t.Fatalf("create conversation: %v", err)
	}
	if result.Conversation.PromptVersionID == nil || *result.Conversation.PromptVersionID != pv.ID {
		t.Errorf("prompt_version_id = %v, want %s", result.Conversation.PromptVersionID, pv.ID)
	}
}
