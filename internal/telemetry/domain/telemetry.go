package domain

import "time"

// EventType names a domain telemetry event.
type EventType string

const (
	EventChallengeDecided  EventType = "challenge_decided"
	EventEscalationCreated EventType = "escalation_created"
	EventTicketResolved    EventType = "ticket_resolved"
	EventTicketExpired     EventType = "ticket_expired"
)

// Event is a domain telemetry event. Attributes must not carry validation codes or raw answers.
type Event struct {
	Type       EventType
	IdentityID string
	TicketID   string
	Source     string
	Attributes map[string]string
	OccurredAt time.Time
}
