package dbctx

import (
	"context"

	"gorm.io/gorm"
)

// Context bundles a request context with an optional GORM transaction.
// A nil Tx means "use the store's default connection".
type Context struct {
	Ctx context.Context
	Tx  *gorm.DB
}

// Background returns a Context with no transaction.
func Background(ctx context.Context) Context {
	return Context{Ctx: ctx}
}
