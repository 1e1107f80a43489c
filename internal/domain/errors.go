package domain

import "errors"

// Sentinel errors for the control-plane domain. Transport layers translate
// these to the HTTP taxonomy in SPEC_FULL.md §7 via writeDomainError in
// internal/server/respond.go.
var (
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("conflict")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrForbidden       = errors.New("forbidden")
	ErrCSRFMismatch    = errors.New("csrf token mismatch")
	ErrQuotaExceeded   = errors.New("quota exceeded")
	ErrRateLimited     = errors.New("rate limit exceeded")
	ErrInvalidProvider = errors.New("invalid provider")
	ErrValidation      = errors.New("validation error")
	ErrBadGateway      = errors.New("forwarder error")
	ErrProxyError      = errors.New("proxy error")
	ErrNotConfigured   = errors.New("not configured")
)
