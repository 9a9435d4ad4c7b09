package repos

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/mentora-ai/mentora-backend/internal/domain"
	"github.com/mentora-ai/mentora-backend/internal/platform/dbctx"
	"github.com/mentora-ai/mentora-backend/internal/platform/logger"
)

type ConversationMessageRepo interface {
	Create(dbc dbctx.Context, rows []*types.ConversationMessage) ([]*types.ConversationMessage, error)
	ListByConversation(dbc dbctx.Context, conversationID uuid.UUID, limit int) ([]*types.ConversationMessage, error)
	FirstByRole(dbc dbctx.Context, conversationID uuid.UUID, role string) (*types.ConversationMessage, error)
	ListConversationIDsWithMessages(dbc dbctx.Context, userID uuid.UUID, excludeID uuid.UUID) ([]uuid.UUID, error)
	DeleteByConversationID(dbc dbctx.Context, conversationID uuid.UUID) error
}

type conversationMessageRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewConversationMessageRepo(db *gorm.DB, log *logger.Logger) ConversationMessageRepo {
	return &conversationMessageRepo{db: db, log: log.With("repo", "ConversationMessageRepo")}
}

func (r *conversationMessageRepo) Create(dbc dbctx.Context, rows []*types.ConversationMessage) ([]*types.ConversationMessage, error) {
	if len(rows) == 0 {
		return []*types.ConversationMessage{}, nil
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	if err := txx.WithContext(dbc.Ctx).Create(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *conversationMessageRepo) ListByConversation(dbc dbctx.Context, conversationID uuid.UUID, limit int) ([]*types.ConversationMessage, error) {
	if conversationID == uuid.Nil {
		return nil, fmt.Errorf("missing conversation_id")
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	var out []*types.ConversationMessage
	if err := txx.WithContext(dbc.Ctx).
		Model(&types.ConversationMessage{}).
		Where("conversation_id = ?", conversationID).
		Order("created_at ASC").
		Limit(limit).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// FirstByRole returns the oldest message with the given role, or nil if
// none exists yet. The opening-message wait polls this.
func (r *conversationMessageRepo) FirstByRole(dbc dbctx.Context, conversationID uuid.UUID, role string) (*types.ConversationMessage, error) {
	if conversationID == uuid.Nil {
		return nil, fmt.Errorf("missing conversation_id")
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	var out types.ConversationMessage
	err := txx.WithContext(dbc.Ctx).
		Where("conversation_id = ? AND role = ?", conversationID, role).
		Order("created_at ASC").
		Take(&out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// ListConversationIDsWithMessages returns the ids of the user's
// conversations (excluding excludeID) that contain at least one message.
func (r *conversationMessageRepo) ListConversationIDsWithMessages(dbc dbctx.Context, userID uuid.UUID, excludeID uuid.UUID) ([]uuid.UUID, error) {
	if userID == uuid.Nil {
		return nil, fmt.Errorf("missing user_id")
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	q := txx.WithContext(dbc.Ctx).
		Model(&types.ConversationMessage{}).
		Distinct("conversation_id").
		Where("user_id = ?", userID)
	if excludeID != uuid.Nil {
		q = q.Where("conversation_id <> ?", excludeID)
	}
	var out []uuid.UUID
	if err := q.Pluck("conversation_id", &out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *conversationMessageRepo) DeleteByConversationID(dbc dbctx.Context, conversationID uuid.UUID) error {
	if conversationID == uuid.Nil {
		return fmt.Errorf("missing conversation_id")
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	return txx.WithContext(dbc.Ctx).
		Where("conversation_id = ?", conversationID).
		Delete(&types.ConversationMessage{}).Error
}
