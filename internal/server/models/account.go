// Package models defines server-side data models persisted in the database
// and the transient results produced by the traffic and sync services.
package models

import (
	"strings"
	"time"
)

// Role is the privilege level of an account. It is resolved once, when an
// account row or an access token is loaded.
type Role int

const (
	RoleViewer Role = iota
	RoleUser
	RoleAdmin
)

// ParseRole maps the stored role name to a Role. Unknown names resolve to
// the least privileged role.
func ParseRole(s string) Role {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "admin":
		return RoleAdmin
	case "user":
		return RoleUser
	default:
		return RoleViewer
	}
}

func (r Role) String() string {
	switch r {
	case RoleAdmin:
		return "admin"
	case RoleUser:
		return "user"
	default:
		return "viewer"
	}
}

// Account is an identity with its quota state. A nil DataLimit means
// unlimited traffic; a nil ExpireAt means the account never expires.
type Account struct {
	ID        int64
	Username  string
	Email     string
	Role      Role
	IsActive  bool
	DataLimit *int64
	ExpireAt  *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}
