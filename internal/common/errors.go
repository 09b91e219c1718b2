// Package common defines shared constants and sentinel errors used across
// client and server layers of notematic. Callers should use errors.Is to
// match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Service-level errors (generic/internal flow control).
	ErrorInternal   = errors.New("internal error")
	ErrInvalidInput = errors.New("invalid input")

	// Account errors.
	ErrUsernameTaken      = errors.New("username already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")

	// Auth errors (invalid, forged or malformed token).
	ErrInvalidToken = errors.New("invalid token")

	// Token lifecycle errors.
	ErrTokenExpired        = errors.New("token expired")
	ErrRefreshTokenExpired = errors.New("refresh token expired")

	// Store errors. ErrStoreConflict means the backing store rejected a write
	// because of a uniqueness or revision conflict; ErrStoreUnavailable covers
	// every transport-level failure.
	ErrStoreConflict    = errors.New("store conflict")
	ErrStoreUnavailable = errors.New("store unavailable")
)
