// Package appctx provides context-based accessors for cross-cutting
// request state: the logger, the authenticated user, and the session.
// Middleware stores values; handlers and services read them without
// knowing who put them there.
package appctx

import (
	"context"
	"log/slog"

	"github.com/vitolahq/vitola/internal/identity"
	"github.com/vitolahq/vitola/internal/store"
)

type loggerKey struct{}
type userKey struct{}
type sessionKey struct{}

// WithLogger attaches a logger to the context.
func WithLogger(ctx context.Context, l *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, l)
}

// LoggerFromContext returns the logger from the context (if present).
func LoggerFromContext(ctx context.Context) (*slog.Logger, bool) {
	l, ok := ctx.Value(loggerKey{}).(*slog.Logger)
	return l, ok && l != nil
}

// GetLogger returns the logger from the context, or slog.Default() if missing.
func GetLogger(ctx context.Context) *slog.Logger {
	if l, ok := LoggerFromContext(ctx); ok {
		return l
	}
	return slog.Default()
}

// WithUser attaches the authenticated user to the context.
func WithUser(ctx context.Context, u *store.User) context.Context {
	return context.WithValue(ctx, userKey{}, u)
}

// UserFromContext returns the authenticated user from the context.
func UserFromContext(ctx context.Context) (*store.User, bool) {
	u, ok := ctx.Value(userKey{}).(*store.User)
	return u, ok && u != nil
}

// WithSession attaches the current session to the context.
func WithSession(ctx context.Context, s *identity.Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

// SessionFromContext returns the current session from the context.
func SessionFromContext(ctx context.Context) (*identity.Session, bool) {
	s, ok := ctx.Value(sessionKey{}).(*identity.Session)
	return s, ok && s != nil
}
