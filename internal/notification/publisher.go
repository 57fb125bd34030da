// Package notification fans out validator requests and identity confirmations.
// Publishing is best-effort: failures are logged and counted, never returned to protocol callers.
package notification

import (
	"context"

	"go.uber.org/zap"

	"voicetrust/backend/internal/notification/domain"
	"voicetrust/backend/internal/platform/logging"
)

// Publisher hands a message to the delivery pipeline.
type Publisher interface {
	Publish(ctx context.Context, msg *domain.Message) error
	// Close releases resources (e.g. Kafka writer). Safe to call if already closed.
	Close() error
}

// LogPublisher logs messages instead of publishing them. Used when no broker is configured.
type LogPublisher struct {
	log *zap.Logger
}

func NewLogPublisher(log *zap.Logger) *LogPublisher {
	if log == nil {
		log = zap.NewNop()
	}
	return &LogPublisher{log: log}
}

func (p *LogPublisher) Publish(_ context.Context, msg *domain.Message) error {
	if msg == nil {
		return nil
	}
	p.log.Info("notification not published (no broker configured)",
		zap.String("id", msg.ID),
		zap.String("channel", string(msg.Channel)),
		zap.String("kind", string(msg.Kind)),
		zap.String("recipient", logging.MaskPhone(msg.Recipient)),
		zap.String("ticket_id", msg.TicketID),
	)
	return nil
}

func (p *LogPublisher) Close() error { return nil }
