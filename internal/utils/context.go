package utils

import (
	"context"

	"github.com/rxtech-lab/pharmalink/internal/models"
)

type actorContextKey struct{}

// WithActor attaches the caller to ctx for code outside the HTTP handlers,
// such as MCP tools.
func WithActor(ctx context.Context, actor models.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// GetActor returns the caller stored by WithActor
func GetActor(ctx context.Context) (models.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(models.Actor)
	return actor, ok
}
