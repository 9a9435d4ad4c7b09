package services

import (
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mentora-ai/mentora-backend/internal/data/repos"
	types "github.com/mentora-ai/mentora-backend/internal/domain"
	"github.com/mentora-ai/mentora-backend/internal/platform/dbctx"
	"github.com/mentora-ai/mentora-backend/internal/platform/logger"
)

type ConversationDetail struct {
	Conversation *types.Conversation `json:"conversation"`
	VisitNumber  int                 `json:"visit_number"`
	HasMemory    bool                `json:"has_memory"`
}

// ConversationService covers the read surface around onboarding.
type ConversationService interface {
	Get(dbc dbctx.Context, conversationID uuid.UUID) (*ConversationDetail, error)
	ListByUser(dbc dbctx.Context, userID uuid.UUID, limit int) ([]*types.Conversation, error)
	ListMessages(dbc dbctx.Context, conversationID uuid.UUID, limit int) ([]*types.ConversationMessage, error)
}

type conversationService struct {
	db  *gorm.DB
	log *logger.Logger

	conversations repos.ConversationRepo
	visits        repos.ConversationVisitRepo
	messages      repos.ConversationMessageRepo
	memories      repos.ConversationMemoryRepo
}

func NewConversationService(
	db *gorm.DB,
	baseLog *logger.Logger,
	conversations repos.ConversationRepo,
	visits repos.ConversationVisitRepo,
	messages repos.ConversationMessageRepo,
	memories repos.ConversationMemoryRepo,
) ConversationService {
	return &conversationService{
		db:            db,
		log:           baseLog.With("service", "ConversationService"),
		conversations: conversations,
		visits:        visits,
		messages:      messages,
		memories:      memories,
	}
}

func (s *conversationService) Get(dbc dbctx.Context, conversationID uuid.UUID) (*ConversationDetail, error) {
	if conversationID == uuid.Nil {
		return nil, fmt.Errorf("missing conversation_id")
	}
	rows, err := s.conversations.GetByIDs(dbc, []uuid.UUID{conversationID})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("conversation not found")
	}
	conv := rows[0]

	visit, err := s.visits.GetByConversationID(dbc, conversationID)
	if err != nil {
		return nil, err
	}
	visitNumber := 0
	if visit != nil {
		visitNumber = visit.VisitNumber
	}

	memory, err := s.memories.GetByConversationID(dbc, conversationID)
	if err != nil {
		return nil, err
	}

	return &ConversationDetail{
		Conversation: conv,
		VisitNumber:  visitNumber,
		HasMemory:    memory != nil,
	}, nil
}

func (s *conversationService) ListByUser(dbc dbctx.Context, userID uuid.UUID, limit int) ([]*types.Conversation, error) {
	if userID == uuid.Nil {
		return nil, fmt.Errorf("missing user_id")
	}
	out, err := s.conversations.ListOtherByUser(dbc, userID, uuid.Nil)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *conversationService) ListMessages(dbc dbctx.Context, conversationID uuid.UUID, limit int) ([]*types.ConversationMessage, error) {
	return s.messages.ListByConversation(dbc, conversationID, limit)
}
