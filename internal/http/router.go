package http

import (
	"github.com/gin-gonic/gin"

	httpH "github.com/mentora-ai/mentora-backend/internal/http/handlers"
	httpMW "github.com/mentora-ai/mentora-backend/internal/http/middleware"
	"github.com/mentora-ai/mentora-backend/internal/platform/logger"
)

type RouterConfig struct {
	Log *logger.Logger

	HealthHandler         *httpH.HealthHandler
	ConversationHandler   *httpH.ConversationHandler
	WorkerCallbackHandler *httpH.WorkerCallbackHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(httpMW.AttachRequestContext())
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.CORS())

	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}

	api := r.Group("/api")
	{
		if cfg.ConversationHandler != nil {
			api.POST("/conversations", cfg.ConversationHandler.Create)
			api.GET("/conversations", cfg.ConversationHandler.List)
			api.GET("/conversations/:id", cfg.ConversationHandler.Get)
			api.GET("/conversations/:id/messages", cfg.ConversationHandler.ListMessages)
		}
	}

	// Worker-facing intake; deployed behind the internal network boundary.
	internal := r.Group("/internal")
	{
		if cfg.WorkerCallbackHandler != nil {
			internal.POST("/worker/results", cfg.WorkerCallbackHandler.Receive)
		}
	}

	return r
}
