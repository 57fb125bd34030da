package domain

import "time"

// Channel is the delivery route for a notification.
type Channel string

const (
	// ChannelPush delivers to a validator's device.
	ChannelPush Channel = "push"
	// ChannelSMS delivers to a phone number.
	ChannelSMS Channel = "sms"
)

// Kind says why a notification was sent.
type Kind string

const (
	KindValidatorRequest  Kind = "validator_request"
	KindIdentityConfirmed Kind = "identity_confirmed"
)

// Message is one notification handed to the delivery pipeline. It is the Kafka message value.
type Message struct {
	ID          string    `json:"id"`
	Channel     Channel   `json:"channel"`
	Kind        Kind      `json:"kind"`
	Recipient   string    `json:"recipient"`
	RecipientID string    `json:"recipient_id,omitempty"`
	Body        string    `json:"body"`
	DeepLink    string    `json:"deep_link,omitempty"`
	TicketID    string    `json:"ticket_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}
