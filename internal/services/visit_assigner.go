package services

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mentora-ai/mentora-backend/internal/data/repos"
	types "github.com/mentora-ai/mentora-backend/internal/domain"
	"github.com/mentora-ai/mentora-backend/internal/platform/dbctx"
	"github.com/mentora-ai/mentora-backend/internal/platform/logger"
)

type VisitAssigner interface {
	// AssignVisit creates the conversation row and durably claims its
	// visit number. On failure the conversation row is cleaned up before
	// the error propagates.
	AssignVisit(dbc dbctx.Context, userID uuid.UUID, title string) (*types.Conversation, int, error)
}

// VisitAssignerConfig bounds the claim loop. ClaimAttempts 2 means one
// recount-retry after the first collision, which covers the handful of
// concurrent tabs a single user realistically opens.
type VisitAssignerConfig struct {
	ClaimAttempts int
}

type visitAssigner struct {
	db            *gorm.DB
	log           *logger.Logger
	conversations repos.ConversationRepo
	visits        repos.ConversationVisitRepo
	claimAttempts int
}

func NewVisitAssigner(
	db *gorm.DB,
	baseLog *logger.Logger,
	cfg VisitAssignerConfig,
	conversations repos.ConversationRepo,
	visits repos.ConversationVisitRepo,
) VisitAssigner {
	attempts := cfg.ClaimAttempts
	if attempts < 2 {
		attempts = 2
	}
	return &visitAssigner{
		db:            db,
		log:           baseLog.With("service", "VisitAssigner"),
		conversations: conversations,
		visits:        visits,
		claimAttempts: attempts,
	}
}

func (s *visitAssigner) AssignVisit(dbc dbctx.Context, userID uuid.UUID, title string) (*types.Conversation, int, error) {
	if userID == uuid.Nil {
		return nil, 0, fmt.Errorf("missing user_id")
	}
	title = strings.TrimSpace(title)
	if title == "" {
		title = "New Session"
	}

	conv := &types.Conversation{
		ID:     uuid.New(),
		UserID: userID,
		Title:  title,
	}
	if _, err := s.conversations.Create(dbc, []*types.Conversation{conv}); err != nil {
		return nil, 0, fmt.Errorf("%w: create conversation: %v", ErrPersistence, err)
	}

	visitNumber, err := s.claimVisitNumber(dbc, conv.ID, userID)
	if err != nil {
		// Never leave a conversation row without a visit ordinal.
		if delErr := s.conversations.DeleteByID(dbc, conv.ID); delErr != nil {
			s.log.Error("Failed to clean up conversation after visit claim failure",
				"conversation_id", conv.ID, "error", delErr)
		}
		return nil, 0, err
	}

	s.log.Info("Visit assigned", "conversation_id", conv.ID, "user_id", userID, "visit_number", visitNumber)
	return conv, visitNumber, nil
}

// claimVisitNumber computes the candidate ordinal as claimed-visits + 1
// and inserts the (user_id, candidate) row. A unique-constraint collision
// means a concurrent request claimed the candidate first; recount with a
// fresh read and retry. Counting visit rows rather than conversation rows
// matters: concurrent requests have already created their (unnumbered)
// conversation rows, and counting those would skip ordinals.
//
// Correctness holds across backend instances because the arbiter is the
// storage-level unique index, not an in-process lock.
func (s *visitAssigner) claimVisitNumber(dbc dbctx.Context, conversationID, userID uuid.UUID) (int, error) {
	var lastErr error
	for attempt := 1; attempt <= s.claimAttempts; attempt++ {
		claimed, err := s.countClaimedVisits(dbc, userID)
		if err != nil {
			return 0, fmt.Errorf("%w: count visits: %v", ErrPersistence, err)
		}
		candidate := int(claimed) + 1

		err = s.visits.Create(dbc, &types.ConversationVisit{
			ConversationID: conversationID,
			UserID:         userID,
			VisitNumber:    candidate,
		})
		if err == nil {
			return candidate, nil
		}
		if !errors.Is(err, repos.ErrVisitNumberTaken) {
			return 0, fmt.Errorf("%w: insert visit: %v", ErrPersistence, err)
		}
		lastErr = err
		s.log.Warn("Visit number collision; recounting",
			"user_id", userID, "candidate", candidate, "attempt", attempt)
	}
	return 0, fmt.Errorf("%w: %v", ErrRaceExhausted, lastErr)
}

func (s *visitAssigner) countClaimedVisits(dbc dbctx.Context, userID uuid.UUID) (int64, error) {
	txx := dbc.Tx
	if txx == nil {
		txx = s.db
	}
	var n int64
	if err := txx.WithContext(dbc.Ctx).
		Model(&types.ConversationVisit{}).
		Where("user_id = ?", userID).
		Count(&n).Error; err != nil {
		return 0, err
	}
	return n, nil
}
