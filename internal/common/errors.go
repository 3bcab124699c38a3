// Package common defines shared constants and sentinel errors used across
// the panel daemon and its admin client. Callers should use errors.Is to
// match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Service-level errors (generic/internal flow control).
	ErrorInternal        = errors.New("internal error")
	ErrorUnauthorized    = errors.New("unauthorized")
	ErrorForbidden       = errors.New("forbidden")
	ErrorInvalidArgument = errors.New("invalid argument")

	// Materialization errors.
	ErrorRender   = errors.New("render error")
	ErrorTemplate = errors.New("template error")

	// Sync run errors.
	ErrorArtifactWrite  = errors.New("artifact write error")
	ErrorSyncInProgress = errors.New("sync in progress")

	// Auth errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)
