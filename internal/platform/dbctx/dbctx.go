package dbctx

import (
	"context"

	"gorm.io/gorm"
)

// Context bundles a request context with an optional GORM transaction.
// Repos fall back to their own handle when Tx is nil, which is how the
// onboarding path runs in autocommit mode: visit-number claims must be
// visible to concurrent requests the moment they commit.
type Context struct {
	Ctx context.Context
	Tx  *gorm.DB
}
