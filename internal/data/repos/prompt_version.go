package repos

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	types "github.com/mentora-ai/mentora-backend/internal/domain"
	"github.com/mentora-ai/mentora-backend/internal/platform/dbctx"
	"github.com/mentora-ai/mentora-backend/internal/platform/logger"
)

type PromptVersionRepo interface {
	Create(dbc dbctx.Context, rows []*types.PromptVersion) ([]*types.PromptVersion, error)
	GetActiveForStage(dbc dbctx.Context, stageKey string) (*types.PromptVersion, error)
}

type promptVersionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPromptVersionRepo(db *gorm.DB, log *logger.Logger) PromptVersionRepo {
	return &promptVersionRepo{db: db, log: log.With("repo", "PromptVersionRepo")}
}

func (r *promptVersionRepo) Create(dbc dbctx.Context, rows []*types.PromptVersion) ([]*types.PromptVersion, error) {
	if len(rows) == 0 {
		return []*types.PromptVersion{}, nil
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

// GetActiveForStage returns the newest active version for a stage key, or
// nil when the prompt service has not seeded one yet.
func (r *promptVersionRepo) GetActiveForStage(dbc dbctx.Context, stageKey string) (*types.PromptVersion, error) {
	if stageKey == "" {
		return nil, fmt.Errorf("missing stage_key")
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	var out types.PromptVersion
	err := txx.WithContext(dbc.Ctx).
		Where("stage_key = ? AND active = ?", stageKey, true).
		Order("version DESC").
		Take(&out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}
