package guard

import (
	"context"

	"github.com/gatewarden/gatewarden/pkg/realm"
)

// contextKey is an unexported type for context keys to prevent collisions.
type contextKey int

const subjectKey contextKey = iota

// ContextWithSubject returns a new context carrying the authenticated
// subject. Used by the HTTP and gRPC adapters to hand the session to
// downstream handlers.
func ContextWithSubject(ctx context.Context, s *realm.Session) context.Context {
	return context.WithValue(ctx, subjectKey, s)
}

// SubjectFromContext extracts the authenticated subject from the context.
// Returns nil if no subject is present.
func SubjectFromContext(ctx context.Context) *realm.Session {
	s, _ := ctx.Value(subjectKey).(*realm.Session)
	return s
}
