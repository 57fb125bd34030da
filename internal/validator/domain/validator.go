package domain

import "time"

// Kind is the validator role.
type Kind string

const (
	KindAgent       Kind = "agent"
	KindCoopOfficer Kind = "coop_officer"
)

// Validator is a human who can approve or reject escalation tickets (validators table).
type Validator struct {
	ID           string
	Kind         Kind
	DisplayName  string
	Phone        string
	PushToken    string
	Active       bool
	LastActiveAt time.Time
}
