package services

import (
	"fmt"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/mentora-ai/mentora-backend/internal/data/repos"
	types "github.com/mentora-ai/mentora-backend/internal/domain"
	"github.com/mentora-ai/mentora-backend/internal/platform/dbctx"
	"github.com/mentora-ai/mentora-backend/internal/platform/logger"
)

// WorkerResultService lands the worker's generated payloads in the data
// layer. All writes are idempotent upserts, and every conversation-scoped
// write is guarded by an existence check: a result arriving after the
// orchestrator timed out and rolled the conversation back is dropped, not
// orphaned.
type WorkerResultService interface {
	RecordOpeningMessage(dbc dbctx.Context, conversationID uuid.UUID, content string, metadata datatypes.JSON) (*types.ConversationMessage, error)
	RecordMemory(dbc dbctx.Context, conversationID uuid.UUID, memoryData datatypes.JSON) error
	RecordPersona(dbc dbctx.Context, userID uuid.UUID, personaData datatypes.JSON) error
}

type workerResultService struct {
	db  *gorm.DB
	log *logger.Logger

	conversations repos.ConversationRepo
	messages      repos.ConversationMessageRepo
	memories      repos.ConversationMemoryRepo
	personas      repos.UserPersonaRepo
}

func NewWorkerResultService(
	db *gorm.DB,
	baseLog *logger.Logger,
	conversations repos.ConversationRepo,
	messages repos.ConversationMessageRepo,
	memories repos.ConversationMemoryRepo,
	personas repos.UserPersonaRepo,
) WorkerResultService {
	return &workerResultService{
		db:            db,
		log:           baseLog.With("service", "WorkerResultService"),
		conversations: conversations,
		messages:      messages,
		memories:      memories,
		personas:      personas,
	}
}

func (s *workerResultService) RecordOpeningMessage(dbc dbctx.Context, conversationID uuid.UUID, content string, metadata datatypes.JSON) (*types.ConversationMessage, error) {
	conv, err := s.liveConversation(dbc, conversationID)
	if err != nil {
		return nil, err
	}
	if conv == nil {
		s.log.Warn("Dropping late opening message for rolled-back conversation", "conversation_id", conversationID)
		return nil, nil
	}
	if content == "" {
		return nil, fmt.Errorf("missing content")
	}
	if len(metadata) == 0 {
		metadata = datatypes.JSON([]byte(`{}`))
	}

	// The worker may deliver twice (retry after a slow ack); the first
	// assistant message wins. The per-conversation advisory lock
	// serializes concurrent deliveries so both cannot pass the existence
	// check. Later assistant turns are unconstrained, so a unique index
	// is not an option here.
	var out *types.ConversationMessage
	write := func(txx *gorm.DB) error {
		inner := dbctx.Context{Ctx: dbc.Ctx, Tx: txx}
		if err := txx.WithContext(dbc.Ctx).
			Exec(`SELECT pg_advisory_xact_lock(hashtext(?))`, conversationID.String()).Error; err != nil {
			return err
		}
		existing, err := s.messages.FirstByRole(inner, conversationID, types.RoleAssistant)
		if err != nil {
			return err
		}
		if existing != nil {
			out = existing
			return nil
		}
		rows, err := s.messages.Create(inner, []*types.ConversationMessage{{
			ID:             uuid.New(),
			ConversationID: conversationID,
			UserID:         conv.UserID,
			Role:           types.RoleAssistant,
			Content:        content,
			Metadata:       metadata,
		}})
		if err != nil {
			return err
		}
		out = rows[0]
		return nil
	}
	if dbc.Tx != nil {
		err = write(dbc.Tx)
	} else {
		err = s.db.WithContext(dbc.Ctx).Transaction(write)
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *workerResultService) RecordMemory(dbc dbctx.Context, conversationID uuid.UUID, memoryData datatypes.JSON) error {
	conv, err := s.liveConversation(dbc, conversationID)
	if err != nil {
		return err
	}
	if conv == nil {
		s.log.Warn("Dropping memory for missing conversation", "conversation_id", conversationID)
		return nil
	}
	if len(memoryData) == 0 {
		memoryData = datatypes.JSON([]byte(`{}`))
	}
	return s.memories.Upsert(dbc, &types.ConversationMemory{
		ConversationID: conversationID,
		MemoryData:     memoryData,
	})
}

func (s *workerResultService) RecordPersona(dbc dbctx.Context, userID uuid.UUID, personaData datatypes.JSON) error {
	if userID == uuid.Nil {
		return fmt.Errorf("missing user_id")
	}
	if len(personaData) == 0 {
		personaData = datatypes.JSON([]byte(`{}`))
	}
	return s.personas.Upsert(dbc, &types.UserPersona{
		UserID:      userID,
		PersonaData: personaData,
	})
}

func (s *workerResultService) liveConversation(dbc dbctx.Context, conversationID uuid.UUID) (*types.Conversation, error) {
	if conversationID == uuid.Nil {
		return nil, fmt.Errorf("missing conversation_id")
	}
	rows, err := s.conversations.GetByIDs(dbc, []uuid.UUID{conversationID})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}
