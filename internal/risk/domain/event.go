package domain

import "time"

// Severity of a risk event.
type Severity string

const (
	SeverityLow    Severity = "LOW"
	SeverityMedium Severity = "MEDIUM"
	SeverityHigh   Severity = "HIGH"
)

// Event types.
const (
	TypeEscalation       = "ESCALATION"
	TypeChallengeFailed  = "CHALLENGE_FAILED"
	TypeValidationDenied = "VALIDATION_DENIED"
)

// Event is an append-only security-relevant occurrence (risk_events table).
type Event struct {
	ID         string
	Type       string
	Severity   Severity
	Detail     map[string]any
	IdentityID string
	CreatedAt  time.Time
}
