package convo

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// ConversationMemory is the worker-produced summary of a finished
// conversation. Written (upserted) only by the worker's callback; the
// orchestrator merely observes its presence while polling.
type ConversationMemory struct {
	ID             uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	ConversationID uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex" json:"conversation_id"`
	MemoryData     datatypes.JSON `gorm:"type:jsonb;column:memory_data;not null;default:'{}'" json:"memory_data"`

	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (ConversationMemory) TableName() string { return "conversation_memory" }
