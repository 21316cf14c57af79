package session

import (
	"context"

	"github.com/simp-lee/hrdesk/internal/domain"
)

type contextKey struct{}

// WithContext returns a copy of ctx carrying s.
func WithContext(ctx context.Context, s domain.Session) context.Context {
	return context.WithValue(ctx, contextKey{}, s)
}

// FromContext returns the session stored in ctx. ok is false when none was
// stored or the stored session is anonymous.
func FromContext(ctx context.Context) (s domain.Session, ok bool) {
	s, ok = ctx.Value(contextKey{}).(domain.Session)
	if !ok || s.Anonymous() {
		return domain.Session{}, false
	}
	return s, true
}
