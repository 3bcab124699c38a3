// Package client talks to the panel admin API.
//
// # Overview
//
// GRPCClient invokes the admin service methods by name with
// google.protobuf.Struct messages, attaches the access token to every call
// through unary and stream interceptors, and decodes responses into the
// typed views in this package.
//
// # Error Handling
//
// gRPC status codes are mapped to sentinel errors that callers can match with
// errors.Is: ErrUnauthorized, ErrForbidden, ErrNotFound, ErrInvalid,
// ErrSyncBusy, ErrSyncFailed, ErrUnavailable. A response that does not fit
// its view yields ErrBadResponse.
package client
