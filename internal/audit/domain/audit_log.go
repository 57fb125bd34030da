package domain

import "time"

// AuditLog is one validator or system action on a protocol resource (audit_logs table).
type AuditLog struct {
	ID         string
	ActorID    string
	Action     string
	Resource   string
	ResourceID string
	IdentityID string
	IP         string
	Metadata   string
	CreatedAt  time.Time
}
