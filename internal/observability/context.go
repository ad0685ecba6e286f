// Package observability carries the per-invocation operation id used to
// correlate log events, spans and receipts.
package observability

import (
	"context"

	"github.com/google/uuid"
)

type opIDKey struct{}

// WithOpID stores a fresh operation ID in the context.
// Each CLI invocation or batch run calls this once.
func WithOpID(ctx context.Context) context.Context {
	return context.WithValue(ctx, opIDKey{}, uuid.NewString())
}

// WithGivenOpID stores a caller-supplied operation ID, for hosts that already
// carry a request id.
func WithGivenOpID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, opIDKey{}, id)
}

// OpID returns the operation ID, or "" if none was set
func OpID(ctx context.Context) string {
	if id, ok := ctx.Value(opIDKey{}).(string); ok {
		return id
	}
	return ""
}
