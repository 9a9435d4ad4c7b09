package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/mentora-ai/mentora-backend/internal/data/repos"
	"github.com/mentora-ai/mentora-backend/internal/data/repos/testutil"
	types "github.com/mentora-ai/mentora-backend/internal/domain"
	"github.com/mentora-ai/mentora-backend/internal/platform/dbctx"
)

func TestAssignVisitSequential(t *testing.T) {
	gdb := testutil.DB(t)
	log := testutil.Logger(t)
	ctx := context.Background()

	u := testutil.SeedUser(t, ctx, gdb, fmt.Sprintf("seq-%s@test.local", uuid.New()))
	cleanupUser(t, gdb, u.ID)

	convs := repos.NewConversationRepo(gdb, log)
	visits := repos.NewConversationVisitRepo(gdb, log)
	assigner := NewVisitAssigner(gdb, log, VisitAssignerConfig{}, convs, visits)

	dbc := dbctx.Context{Ctx: ctx}
	for want := 1; want <= 3; want++ {
		conv, visitNumber, err := assigner.AssignVisit(dbc, u.ID, "")
		if err != nil {
			t.Fatalf("assign visit %d: %v", want, err)
		}
		if visitNumber != want {
			t.Fatalf("visit number = %d, want %d", visitNumber, want)
		}
		if conv.Title != "New Session" {
			t.Errorf("default title = %q, want %q", conv.Title, "New Session")
		}

		row, err := visits.GetByConversationID(dbc, conv.ID)
		if err != nil || row == nil {
			t.Fatalf("visit row missing: %v", err)
		}
		if row.VisitNumber != want {
			t.Errorf("stored visit number = %d, want %d", row.VisitNumber, want)
		}
	}
}

// Concurrent creations for the same user must end with visit numbers
// forming exactly {1..N}: no gaps, no duplicates. The unique index is the
// arbiter, so this holds across processes too; here we simulate the race
// with goroutines against a shared pool.
func TestAssignVisitConcurrent(t *testing.T) {
	gdb := testutil.DB(t)
	log := testutil.Logger(t)
	ctx := context.Background()

	u := testutil.SeedUser(t, ctx, gdb, fmt.Sprintf("conc-%s@test.local", uuid.New()))
	cleanupUser(t, gdb, u.ID)

	convs := repos.NewConversationRepo(gdb, log)
	visits := repos.NewConversationVisitRepo(gdb, log)
	// Every collision is benign here, so let the loop run long enough for
	// all racers to land.
	const n = 8
	assigner := NewVisitAssigner(gdb, log, VisitAssignerConfig{ClaimAttempts: n * 4}, convs, visits)

	var wg sync.WaitGroup
	results := make([]int, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, visitNumber, err := assigner.AssignVisit(dbctx.Context{Ctx: ctx}, u.ID, "race")
			results[i] = visitNumber
			errs[i] = err
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("racer %d: %v", i, err)
		}
	}
	sort.Ints(results)
	for i, got := range results {
		if got != i+1 {
			t.Fatalf("visit numbers = %v, want exactly 1..%d", results, n)
		}
	}
}

type alwaysTakenVisits struct {
	repos.ConversationVisitRepo
}

func (alwaysTakenVisits) Create(dbc dbctx.Context, row *types.ConversationVisit) error {
	return fmt.Errorf("%w: user=%s visit=%d", repos.ErrVisitNumberTaken, row.UserID, row.VisitNumber)
}

func TestAssignVisitRaceExhausted(t *testing.T) {
	gdb := testutil.DB(t)
	log := testutil.Logger(t)
	ctx := context.Background()

	u := testutil.SeedUser(t, ctx, gdb, fmt.Sprintf("exh-%s@test.local", uuid.New()))
	cleanupUser(t, gdb, u.ID)

	convs := repos.NewConversationRepo(gdb, log)
	visits := alwaysTakenVisits{repos.NewConversationVisitRepo(gdb, log)}
	assigner := NewVisitAssigner(gdb, log, VisitAssignerConfig{ClaimAttempts: 2}, convs, visits)

	dbc := dbctx.Context{Ctx: ctx}
	_, _, err := assigner.AssignVisit(dbc, u.ID, "doomed")
	if !errors.Is(err, ErrRaceExhausted) {
		t.Fatalf("err = %v, want ErrRaceExhausted", err)
	}

	// The conversation row must not survive a failed claim.
	n, err := convs.CountByUser(dbc, u.ID)
	if err != nil {
		t.Fatalf("count conversations: %v", err)
	}
	if n != 0 {
		t.Errorf("conversations left behind after claim failure: %d", n)
	}
}
