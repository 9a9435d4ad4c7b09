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

type UserPersonaRepo interface {
	Upsert(dbc dbctx.Context, row *types.UserPersona) error
	GetByUserID(dbc dbctx.Context, userID uuid.UUID) (*types.UserPersona, error)
}

type userPersonaRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewUserPersonaRepo(db *gorm.DB, log *logger.Logger) UserPersonaRepo {
	return &userPersonaRepo{db: db, log: log.With("repo", "UserPersonaRepo")}
}

func (r *userPersonaRepo) Upsert(dbc dbctx.Context, row *types.UserPersona) error {
	if row == nil || row.UserID == uuid.Nil {
		return fmt.Errorf("missing user_id")
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
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"persona_data", "updated_at"}),
		}).
		Create(row).Error
}

func (r *userPersonaRepo) GetByUserID(dbc dbctx.Context, userID uuid.UUID) (*types.UserPersona, error) {
	if userID == uuid.Nil {
		return nil, fmt.Errorf("missing user_id")
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	var out types.UserPersona
	err := txx.WithContext(dbc.Ctx).
		Where("user_id = ?", userID).
		Take(&out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}
