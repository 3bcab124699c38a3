package client

import "errors"

var (
	ErrUnavailable  = errors.New("server unavailable")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrNotFound     = errors.New("not found")
	ErrInvalid      = errors.New("invalid request")
	ErrSyncBusy     = errors.New("sync already in progress")
	ErrSyncFailed   = errors.New("sync failed")
	ErrBadResponse  = errors.New("malformed response")
)
