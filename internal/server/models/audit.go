package models

import "time"

// AuditEntry records an administrative action. ActorID is nil for actions
// started by the daemon itself.
type AuditEntry struct {
	ID         int64
	ActorID    *int64
	Action     string
	Resource   string
	ResourceID *int64
	Details    string
	IPAddress  string
	CreatedAt  time.Time
}
