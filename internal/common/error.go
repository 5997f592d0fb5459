// Package common defines constants and sentinel errors shared by the client
// and server layers of vaxsync. Callers should use errors.Is to match these
// values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Service-level errors.
	ErrorInternal      = errors.New("internal error")
	ErrorUnauthorized  = errors.New("unauthorized")
	ErrVersionConflict = errors.New("version conflict")

	// Validation errors for incoming mutations.
	ErrorIncorrectMetadata = errors.New("incorrect metadata")
	ErrorUnknownField      = errors.New("unknown field")

	// Auth errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)
