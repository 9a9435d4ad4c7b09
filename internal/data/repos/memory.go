package repos

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/mentora-ai/mentora-backend/internal/domain"
	"github.com/mentora-ai/mentora-backend/internal/platform/dbctx"
	"github.com/mentora-ai/mentora-backend/internal/platform/logger"
)

type ConversationMemoryRepo interface {
	Upsert(dbc dbctx.Context, row *types.ConversationMemory) error
	GetByConversationID(dbc dbctx.Context, conversationID uuid.UUID) (*types.ConversationMemory, error)
	ListConversationIDsWithMemory(dbc dbctx.Context, conversationIDs []uuid.UUID) ([]uuid.UUID, error)
}

type conversationMemoryRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewConversationMemoryRepo(db *gorm.DB, log *logger.Logger) ConversationMemoryRepo {
	return &conversationMemoryRepo{db: db, log: log.With("repo", "ConversationMemoryRepo")}
}

// Upsert writes the worker-produced memory payload, keyed on
// conversation_id. Duplicate dispatches for the same conversation land on
// the same row.
func (r *conversationMemoryRepo) Upsert(dbc dbctx.Context, row *types.ConversationMemory) error {
	if row == nil || row.ConversationID == uuid.Nil {
		return fmt.Errorf("missing conversation_id")
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	now := time.Now().UTC()
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = now
	}
	row.UpdatedAt = now
	return txx.WithContext(dbc.Ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "conversation_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"memory_data", "updated_at"}),
		}).
		Create(row).Error
}

func (r *conversationMemoryRepo) GetByConversationID(dbc dbctx.Context, conversationID uuid.UUID) (*types.ConversationMemory, error) {
	if conversationID == uuid.Nil {
		return nil, fmt.Errorf("missing conversation_id")
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	var out types.ConversationMemory
	err := txx.WithContext(dbc.Ctx).
		Where("conversation_id = ?", conversationID).
		Take(&out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *conversationMemoryRepo) ListConversationIDsWithMemory(dbc dbctx.Context, conversationIDs []uuid.UUID) ([]uuid.UUID, error) {
	if len(conversationIDs) == 0 {
		return []uuid.UUID{}, nil
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	var out []uuid.UUID
	if err := txx.WithContext(dbc.Ctx).
		Model(&types.ConversationMemory{}).
		Where("conversation_id IN ?", conversationIDs).
		Pluck("conversation_id", &out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
