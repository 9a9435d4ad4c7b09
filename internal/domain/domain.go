package domain

import (
	"github.com/mentora-ai/mentora-backend/internal/domain/convo"
	"github.com/mentora-ai/mentora-backend/internal/domain/user"
)

const (
	RoleUser      = convo.RoleUser
	RoleAssistant = convo.RoleAssistant
	RoleSystem    = convo.RoleSystem
)

type User = user.User

type Conversation = convo.Conversation
type ConversationVisit = convo.ConversationVisit
type ConversationMessage = convo.ConversationMessage
type ConversationMemory = convo.ConversationMemory
type UserPersona = convo.UserPersona
type PromptVersion = convo.PromptVersion
