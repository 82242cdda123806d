// Package requestid carries the HTTP request id through context so service logs can be joined
// with access logs.
package requestid

import (
	"context"

	"go.uber.org/zap"
)

type ctxKey struct{}

func NewContext(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

func FromContext(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

// Field is a zap field for the context's request id, or a no-op field when there is none.
func Field(ctx context.Context) zap.Field {
	if id := FromContext(ctx); id != "" {
		return zap.String("request_id", id)
	}
	return zap.Skip()
}
