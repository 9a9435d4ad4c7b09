package db

import (
	"gorm.io/gorm"

	types "github.com/mentora-ai/mentora-backend/internal/domain"
)

func AutoMigrateAll(db *gorm.DB) error {
	return db.AutoMigrate(
		// Identity
		&types.User{},

		// Conversations + visit ordinals
		&types.Conversation{},
		&types.ConversationVisit{},
		&types.ConversationMessage{},

		// Worker-owned knowledge rows (observed via polling)
		&types.ConversationMemory{},
		&types.UserPersona{},

		// Prompt variant pointers
		&types.PromptVersion{},
	)
}
