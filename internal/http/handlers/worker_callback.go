package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/mentora-ai/mentora-backend/internal/dispatch"
	"github.com/mentora-ai/mentora-backend/internal/http/response"
	"github.com/mentora-ai/mentora-backend/internal/platform/dbctx"
	"github.com/mentora-ai/mentora-backend/internal/services"
)

// WorkerCallbackHandler is the intake for results generated by the remote
// worker. The orchestrator never reads these responses directly; it
// observes the rows this handler writes.
type WorkerCallbackHandler struct {
	results services.WorkerResultService
}

func NewWorkerCallbackHandler(results services.WorkerResultService) *WorkerCallbackHandler {
	return &WorkerCallbackHandler{results: results}
}

type workerResultReq struct {
	TaskType       string         `json:"task_type" binding:"required"`
	UserID         uuid.UUID      `json:"user_id"`
	ConversationID uuid.UUID      `json:"conversation_id"`
	Content        string         `json:"content"`
	Payload        datatypes.JSON `json:"payload"`
}

// POST /internal/worker/results
func (h *WorkerCallbackHandler) Receive(c *gin.Context) {
	var req workerResultReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	dbc := dbctx.Context{Ctx: c.Request.Context()}

	switch dispatch.TaskType(req.TaskType) {
	case dispatch.TaskOpeningMessage:
		msg, err := h.results.RecordOpeningMessage(dbc, req.ConversationID, req.Content, req.Payload)
		if err != nil {
			response.RespondError(c, http.StatusBadRequest, "record_opening_message_failed", err)
			return
		}
		response.RespondOK(c, gin.H{"message": msg})
	case dispatch.TaskGenerateMemoryBatch:
		if err := h.results.RecordMemory(dbc, req.ConversationID, req.Payload); err != nil {
			response.RespondError(c, http.StatusBadRequest, "record_memory_failed", err)
			return
		}
		response.RespondOK(c, gin.H{"status": "ok"})
	case dispatch.TaskUserPersonaGeneration:
		if err := h.results.RecordPersona(dbc, req.UserID, req.Payload); err != nil {
			response.RespondError(c, http.StatusBadRequest, "record_persona_failed", err)
			return
		}
		response.RespondOK(c, gin.H{"status": "ok"})
	default:
		response.RespondError(c, http.StatusBadRequest, "unknown_task_type", errors.New("unknown task_type"))
	}
}
