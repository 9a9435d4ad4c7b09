package convo

import (
	"time"

	"github.com/google/uuid"
)

// PromptVersion is a pointer to an externally-managed prompt template.
// Template bodies and their CRUD live in the prompt service; this backend
// only picks the active version for an onboarding stage.
type PromptVersion struct {
	ID       uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	StageKey string    `gorm:"column:stage_key;not null;index" json:"stage_key"`
	Version  int       `gorm:"column:version;not null;default:1" json:"version"`
	Active   bool      `gorm:"column:active;not null;default:false;index" json:"active"`

	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (PromptVersion) TableName() string { return "prompt_version" }
