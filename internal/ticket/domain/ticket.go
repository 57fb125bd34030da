package domain

import (
	"errors"
	"strings"
	"time"
)

// TTL is the fixed lifetime of a validation ticket.
const TTL = 15 * time.Minute

// Status is the ticket lifecycle state. Only pending is non-terminal.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
	StatusExpired  Status = "expired"
)

// Terminal reports whether s is a final state.
func (s Status) Terminal() bool {
	return s == StatusApproved || s == StatusRejected || s == StatusExpired
}

// Method is the escalation channel.
type Method string

const (
	MethodAgent       Method = "AGENT"
	MethodCooperative Method = "COOPERATIVE"
)

// ErrInvalidMethod is returned by ParseMethod for unknown values.
var ErrInvalidMethod = errors.New("invalid escalation method")

// ParseMethod accepts AGENT, COOP or COOPERATIVE (case-insensitive).
func ParseMethod(s string) (Method, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "AGENT":
		return MethodAgent, nil
	case "COOP", "COOPERATIVE":
		return MethodCooperative, nil
	default:
		return "", ErrInvalidMethod
	}
}

// Ticket is a validation request awaiting a human validator (validation_tickets table).
type Ticket struct {
	ID             string
	IdentityID     string
	Code           string
	Method         Method
	Reason         string
	RequesterPhone string
	Status         Status
	CreatedAt      time.Time
	ExpiresAt      time.Time
	ValidatorID    string
	ValidatorNotes string
	ValidatedAt    *time.Time
	// SupersededBy is set when a newer escalation replaced this pending ticket.
	SupersededBy string
}

// ExpiredAt reports whether the ticket's validity window has closed at now.
func (t *Ticket) ExpiredAt(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// Resolution is the terminal transition written by the approval processor.
type Resolution struct {
	Status      Status
	ValidatorID string
	Notes       string
	At          time.Time
}
