package domain

import "time"

// Outcome of an authentication attempt.
type Outcome string

const (
	OutcomePending Outcome = "pending"
	OutcomeSuccess Outcome = "success"
	OutcomeFailed  Outcome = "failed"
)

// Attempt is one authentication attempt (auth_attempts table). Rows are append-only except
// pending rows, which are resolved to success or failed when an escalation completes.
type Attempt struct {
	ID         string
	IdentityID string
	Phone      string
	Decision   string
	// TrustScore is opaque caller input; nil when not supplied.
	TrustScore  *float64
	ReasonCodes []string
	Outcome     Outcome
	HourBucket  int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// HourBucket returns the UTC hour-of-day (0–23) for t.
func HourBucket(t time.Time) int {
	return t.UTC().Hour()
}
