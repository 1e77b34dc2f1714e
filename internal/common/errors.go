// Package common defines shared constants and sentinel errors used across
// tokenkeeper layers. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound    = errors.New("not found")
	ErrAlreadyExists = errors.New("user already exists")

	// Service-level errors (generic/internal flow control).
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")
	ErrAccessDenied   = errors.New("access denied")

	// Input validation errors. Concrete failures wrap ErrValidation.
	ErrValidation = errors.New("validation error")

	// Auth errors (invalid or malformed token). Expired tokens wrap both.
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)
