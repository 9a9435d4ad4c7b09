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

// ErrVisitNumberTaken signals that another request already claimed this
// (user_id, visit_number) pair. Callers recount and retry.
var ErrVisitNumberTaken = errors.New("visit number already claimed")

type ConversationVisitRepo interface {
	Create(dbc dbctx.Context, row *types.ConversationVisit) error
	GetByConversationID(dbc dbctx.Context, conversationID uuid.UUID) (*types.ConversationVisit, error)
	DeleteByConversationID(dbc dbctx.Context, conversationID uuid.UUID) error
}

type conversationVisitRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewConversationVisitRepo(db *gorm.DB, log *logger.Logger) ConversationVisitRepo {
	return &conversationVisitRepo{db: db, log: log.With("repo", "ConversationVisitRepo")}
}

func (r *conversationVisitRepo) Create(dbc dbctx.Context, row *types.ConversationVisit) error {
	if row == nil {
		return fmt.Errorf("missing visit row")
	}
	if row.UserID == uuid.Nil || row.ConversationID == uuid.Nil {
		return fmt.Errorf("missing user_id or conversation_id")
	}
	if row.VisitNumber < 1 {
		return fmt.Errorf("invalid visit_number %d", row.VisitNumber)
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	if err := txx.WithContext(dbc.Ctx).Create(row).Error; err != nil {
		if IsUniqueViolation(err) {
			return fmt.Errorf("%w: user=%s visit=%d", ErrVisitNumberTaken, row.UserID, row.VisitNumber)
		}
		return err
	}
	return nil
}

func (r *conversationVisitRepo) GetByConversationID(dbc dbctx.Context, conversationID uuid.UUID) (*types.ConversationVisit, error) {
	if conversationID == uuid.Nil {
		return nil, fmt.Errorf("missing conversation_id")
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	var out types.ConversationVisit
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

func (r *conversationVisitRepo) DeleteByConversationID(dbc dbctx.Context, conversationID uuid.UUID) error {
	if conversationID == uuid.Nil {
		return fmt.Errorf("missing conversation_id")
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	return txx.WithContext(dbc.Ctx).
		Where("conversation_id = ?", conversationID).
		Delete(&types.ConversationVisit{}).Error
}
