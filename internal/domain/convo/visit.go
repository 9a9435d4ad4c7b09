package convo

import (
	"time"

	"github.com/google/uuid"
)

// ConversationVisit records the ordinal of a conversation within a user's
// history. The (user_id, visit_number) unique index is the race-protection
// primitive: two concurrent creations for one user cannot both claim the
// same visit number, even across backend instances.
//
// No soft delete here: a rolled-back visit number must become claimable
// again, and a soft-deleted row would keep occupying the unique index.
type ConversationVisit struct {
	ID             uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	ConversationID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex" json:"conversation_id"`
	UserID         uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:ux_visit_user_number" json:"user_id"`
	VisitNumber    int       `gorm:"column:visit_number;not null;uniqueIndex:ux_visit_user_number" json:"visit_number"`

	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
}

func (ConversationVisit) TableName() string { return "conversation_visit" }
