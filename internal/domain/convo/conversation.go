package convo

import (
	"time"

	"github.com/google/uuid"
)

// Conversation is the anchor row for a tutoring session. It is created by
// the onboarding orchestrator and hard-deleted by it if session
// preparation fails, so a visible conversation is always fully prepared.
type Conversation struct {
	ID     uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	UserID uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"`

	Title           string     `gorm:"column:title;not null;default:'New Session'" json:"title"`
	PromptVersionID *uuid.UUID `gorm:"type:uuid;column:prompt_version_id;index" json:"prompt_version_id,omitempty"`

	CreatedAt time.Time `gorm:"not null;default:now();index" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:now();index" json:"updated_at"`
}

func (Conversation) TableName() string { return "conversation" }
