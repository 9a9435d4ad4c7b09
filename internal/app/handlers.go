package app

import (
	"github.com/gin-gonic/gin"

	internalHTTP "github.com/mentora-ai/mentora-backend/internal/http"
	"github.com/mentora-ai/mentora-backend/internal/http/handlers"
	"github.com/mentora-ai/mentora-backend/internal/platform/logger"
)

type Handlers struct {
	Health         *handlers.HealthHandler
	Conversation   *handlers.ConversationHandler
	WorkerCallback *handlers.WorkerCallbackHandler
}

func wireHandlers(s Services) Handlers {
	return Handlers{
		Health:         handlers.NewHealthHandler(),
		Conversation:   handlers.NewConversationHandler(s.Onboarding, s.Conversations),
		WorkerCallback: handlers.NewWorkerCallbackHandler(s.WorkerResults),
	}
}

func wireRouter(log *logger.Logger, h Handlers) *gin.Engine {
	return internalHTTP.NewRouter(internalHTTP.RouterConfig{
		Log:                   log,
		HealthHandler:         h.Health,
		ConversationHandler:   h.Conversation,
		WorkerCallbackHandler: h.WorkerCallback,
	})
}
