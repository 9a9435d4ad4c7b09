package testutil

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	types "github.com/mentora-ai/mentora-backend/internal/domain"
)

func SeedUser(tb testing.TB, ctx context.Context, tx *gorm.DB, email string) *types.User {
	tb.Helper()
	u := &types.User{
		ID:        uuid.New(),
		Email:     email,
		FirstName: "A",
		LastName:  "B",
	}
	if err := tx.WithContext(ctx).Create(u).Error; err != nil {
		tb.Fatalf("seed user: %v", err)
	}
	return u
}

func SeedConversation(tb testing.TB, ctx context.Context, tx *gorm.DB, userID uuid.UUID, title string) *types.Conversation {
	tb.Helper()
	c := &types.Conversation{
		ID:     uuid.New(),
		UserID: userID,
		Title:  title,
	}
	if err := tx.WithContext(ctx).Create(c).Error; err != nil {
		tb.Fatalf("seed conversation: %v", err)
	}
	return c
}

func SeedVisit(tb testing.TB, ctx context.Context, tx *gorm.DB, conversationID, userID uuid.UUID, visitNumber int) *types.ConversationVisit {
	tb.Helper()
	v := &types.ConversationVisit{
		ID:             uuid.New(),
		ConversationID: conversationID,
		UserID:         userID,
		VisitNumber:    visitNumber,
	}
	if err := tx.WithContext(ctx).Create(v).Error; err != nil {
		tb.Fatalf("seed visit: %v", err)
	}
	return v
}

func SeedMessage(tb testing.TB, ctx context.Context, tx *gorm.DB, conversationID, userID uuid.UUID, role, content string) *types.ConversationMessage {
	tb.Helper()
	m := &types.ConversationMessage{
		ID:             uuid.New(),
		ConversationID: conversationID,
		UserID:         userID,
		Role:           role,
		Content:        content,
		Metadata:       datatypes.JSON([]byte(`{}`)),
	}
	if err := tx.WithContext(ctx).Create(m).Error; err != nil {
		tb.Fatalf("seed message: %v", err)
	}
	return m
}

func SeedMemory(tb testing.TB, ctx context.Context, tx *gorm.DB, conversationID uuid.UUID) *types.ConversationMemory {
	tb.Helper()
	m := &types.ConversationMemory{
		ID:             uuid.New(),
		ConversationID: conversationID,
		MemoryData:     datatypes.JSON([]byte(`{"summary":"seeded"}`)),
	}
	if err := tx.WithContext(ctx).Create(m).Error; err != nil {
		tb.Fatalf("seed memory: %v", err)
	}
	return m
}

func SeedPromptVersion(tb testing.TB, ctx context.Context, tx *gorm.DB, stageKey string, version int, active bool) *types.PromptVersion {
	tb.Helper()
	p := &types.PromptVersion{
		ID:       uuid.New(),
		StageKey: stageKey,
		Version:  version,
		Active:   active,
	}
	if err := tx.WithContext(ctx).Create(p).Error; err != nil {
		tb.Fatalf("seed prompt version: %v", err)
	}
	return p
}
