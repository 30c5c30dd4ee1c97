package rls

import (
	"context"

	"quoin/pkg/apierrors"
)

type sessionCtxKey struct{}

var sessionKey = sessionCtxKey{}

// WithSession stores a guarded session in the context for downstream
// stores.
func WithSession(ctx context.Context, session *Session) context.Context {
	if session == nil {
		return ctx
	}
	return context.WithValue(ctx, sessionKey, session)
}

// SessionFrom extracts the request's guarded session. Tenant-scoped stores
// must query through it and nothing else; when the request is running
// degraded (claims were never bound) the data layer fails closed here.
func SessionFrom(ctx context.Context) (*Session, error) {
	session, ok := ctx.Value(sessionKey).(*Session)
	if !ok {
		return nil, apierrors.New(apierrors.CodeDBUnavailable, "no tenant database session")
	}
	return session, nil
}
