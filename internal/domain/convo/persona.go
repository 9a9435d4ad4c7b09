package convo

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// UserPersona aggregates behavioral signals across a user's conversations.
// Write-once-then-refreshed by the worker; read-only for the orchestrator.
type UserPersona struct {
	ID          uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	UserID      uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex" json:"user_id"`
	PersonaData datatypes.JSON `gorm:"type:jsonb;column:persona_data;not null;default:'{}'" json:"persona_data"`

	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (UserPersona) TableName() string { return "user_persona" }
