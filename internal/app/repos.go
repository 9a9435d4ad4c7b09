package app

import (
	"gorm.io/gorm"

	"github.com/mentora-ai/mentora-backend/internal/data/repos"
	"github.com/mentora-ai/mentora-backend/internal/platform/logger"
)

type Repos struct {
	Conversations  repos.ConversationRepo
	Visits         repos.ConversationVisitRepo
	Messages       repos.ConversationMessageRepo
	Memories       repos.ConversationMemoryRepo
	Personas       repos.UserPersonaRepo
	PromptVersions repos.PromptVersionRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	return Repos{
		Conversations:  repos.NewConversationRepo(db, log),
		Visits:         repos.NewConversationVisitRepo(db, log),
		Messages:       repos.NewConversationMessageRepo(db, log),
		Memories:       repos.NewConversationMemoryRepo(db, log),
		Personas:       repos.NewUserPersonaRepo(db, log),
		PromptVersions: repos.NewPromptVersionRepo(db, log),
	}
}
