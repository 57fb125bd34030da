package domain

import "time"

// Scopes select which default policy a stored policy overrides.
const (
	ScopeDecision = "decision"
	ScopeApproval = "approval"
)

// Policy is a stored Rego module overriding the built-in policy for its scope (policies table).
type Policy struct {
	ID        string
	Scope     string
	Rules     string
	Enabled   bool
	CreatedAt time.Time
}
