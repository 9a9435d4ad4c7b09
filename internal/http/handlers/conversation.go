package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/mentora-ai/mentora-backend/internal/dispatch"
	"github.com/mentora-ai/mentora-backend/internal/http/response"
	"github.com/mentora-ai/mentora-backend/internal/platform/apierr"
	"github.com/mentora-ai/mentora-backend/internal/platform/dbctx"
	"github.com/mentora-ai/mentora-backend/internal/services"
)

type ConversationHandler struct {
	onboarding    services.OnboardingService
	conversations services.ConversationService
}

func NewConversationHandler(onboarding services.OnboardingService, conversations services.ConversationService) *ConversationHandler {
	return &ConversationHandler{onboarding: onboarding, conversations: conversations}
}

type createConversationReq struct {
	UserID uuid.UUID `json:"user_id" binding:"required"`
	Title  string    `json:"title"`
}

// POST /api/conversations
func (h *ConversationHandler) Create(c *gin.Context) {
	var req createConversationReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	dbc := dbctx.Context{Ctx: c.Request.Context()}
	result, err := h.onboarding.CreateConversation(dbc, req.UserID, req.Title)
	if err != nil {
		h.respondCreateError(c, err)
		return
	}
	response.RespondOK(c, result)
}

// All foreground failures collapse into one retryable message for the
// user; only the persona precondition gets its own code so the product
// can explain what is missing. The taxonomy detail stays in logs.
func (h *ConversationHandler) respondCreateError(c *gin.Context, err error) {
	if errors.Is(err, services.ErrPreconditionUnmet) {
		response.RespondAPIError(c, apierr.New(http.StatusUnprocessableEntity, "persona_precondition_unmet",
			errors.New("not enough prior sessions to personalize yet")))
		return
	}
	switch {
	case errors.Is(err, services.ErrRaceExhausted),
		errors.Is(err, services.ErrGenerationTimedOut),
		errors.Is(err, services.ErrPersistence),
		errors.Is(err, dispatch.ErrDispatchFailed):
		response.RespondAPIError(c, apierr.New(http.StatusServiceUnavailable, "session_preparation_failed",
			errors.New("could not prepare your session, please try again")))
	default:
		response.RespondAPIError(c, apierr.New(http.StatusBadRequest, "create_conversation_failed", err))
	}
}

// GET /api/conversations/:id
func (h *ConversationHandler) Get(c *gin.Context) {
	conversationID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_conversation_id", err)
		return
	}
	dbc := dbctx.Context{Ctx: c.Request.Context()}
	detail, err := h.conversations.Get(dbc, conversationID)
	if err != nil {
		response.RespondError(c, http.StatusNotFound, "conversation_not_found", err)
		return
	}
	response.RespondOK(c, detail)
}

// GET /api/conversations?user_id=...&limit=50
func (h *ConversationHandler) List(c *gin.Context) {
	userID, err := uuid.Parse(strings.TrimSpace(c.Query("user_id")))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_user_id", err)
		return
	}
	limit := 50
	if v := strings.TrimSpace(c.Query("limit")); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}
	dbc := dbctx.Context{Ctx: c.Request.Context()}
	rows, err := h.conversations.ListByUser(dbc, userID, limit)
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "list_conversations_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"conversations": rows})
}

// GET /api/conversations/:id/messages?limit=50
func (h *ConversationHandler) ListMessages(c *gin.Context) {
	conversationID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_conversation_id", err)
		return
	}
	limit := 50
	if v := strings.TrimSpace(c.Query("limit")); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}
	dbc := dbctx.Context{Ctx: c.Request.Context()}
	msgs, err := h.conversations.ListMessages(dbc, conversationID, limit)
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "list_messages_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"messages": msgs})
}
