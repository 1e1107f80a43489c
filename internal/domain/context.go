package domain

import "context"

// requestMeta bundles per-request values behind a single context key, the
// way the teacher's internal/gateway.go avoids a context.WithValue chain per
// field. UserCtx and AdminSession are mutually exclusive in practice (one
// per surface) but both live on the same struct for uniformity.
type requestMeta struct {
	RequestID    string
	UserCtx      *UserContext
	AdminSession *Session
}

type requestMetaKey struct{}

// ContextWithRequestID stores a fresh request ID, creating the metadata
// bundle if this is the first value attached to ctx.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	if m, ok := ctx.Value(requestMetaKey{}).(*requestMeta); ok {
		m.RequestID = id
		return ctx
	}
	return context.WithValue(ctx, requestMetaKey{}, &requestMeta{RequestID: id})
}

// RequestIDFromContext returns the request ID attached to ctx, or "".
func RequestIDFromContext(ctx context.Context) string {
	if m, ok := ctx.Value(requestMetaKey{}).(*requestMeta); ok {
		return m.RequestID
	}
	return ""
}

// ContextWithUser attaches an authenticated end-user's context by mutating
// the existing bundle when present (no extra allocation on the common path
// where requestID middleware already ran).
func ContextWithUser(ctx context.Context, u *UserContext) context.Context {
	if m, ok := ctx.Value(requestMetaKey{}).(*requestMeta); ok {
		m.UserCtx = u
		return ctx
	}
	return context.WithValue(ctx, requestMetaKey{}, &requestMeta{UserCtx: u})
}

// UserFromContext returns the authenticated end-user, or nil.
func UserFromContext(ctx context.Context) *UserContext {
	if m, ok := ctx.Value(requestMetaKey{}).(*requestMeta); ok {
		return m.UserCtx
	}
	return nil
}

// ContextWithSession attaches an authenticated admin session.
func ContextWithSession(ctx context.Context, s *Session) context.Context {
	if m, ok := ctx.Value(requestMetaKey{}).(*requestMeta); ok {
		m.AdminSession = s
		return ctx
	}
	return context.WithValue(ctx, requestMetaKey{}, &requestMeta{AdminSession: s})
}

// SessionFromContext returns the authenticated admin session, or nil.
func SessionFromContext(ctx context.Context) *Session {
	if m, ok := ctx.Value(requestMetaKey{}).(*requestMeta); ok {
		return m.AdminSession
	}
	return nil
}
