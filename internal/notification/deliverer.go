package notification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"voicetrust/backend/internal/metrics"
	"voicetrust/backend/internal/notification/domain"
	"voicetrust/backend/internal/notification/push"
	"voicetrust/backend/internal/platform/logging"
)

// SMSSender delivers a text message to a phone number.
type SMSSender interface {
	Send(ctx context.Context, phone, body string) error
}

// PushSender delivers a push notification to a device token.
type PushSender interface {
	Send(ctx context.Context, deviceToken string, n push.Notification) error
}

// RecordShipper ships delivery records to a log store (Loki).
type RecordShipper interface {
	PushJSON(ctx context.Context, timestamp time.Time, v any, labels map[string]string) error
}

// DeliveryRecord is what the worker ships for every consumed message. It never carries the body.
type DeliveryRecord struct {
	MessageID   string    `json:"message_id"`
	Channel     string    `json:"channel"`
	Kind        string    `json:"kind"`
	TicketID    string    `json:"ticket_id,omitempty"`
	Recipient   string    `json:"recipient"`
	Result      string    `json:"result"`
	Error       string    `json:"error,omitempty"`
	DeliveredAt time.Time `json:"delivered_at"`
}

const (
	resultDelivered = "delivered"
	resultFailed    = "failed"
	resultSkipped   = "skipped"
)

// Deliverer routes consumed messages to the push or SMS channel.
type Deliverer struct {
	push    PushSender
	sms     SMSSender
	records RecordShipper
	log     *zap.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewDeliverer returns a Deliverer. Any sender may be nil; messages for it are skipped.
// records may be nil.
func NewDeliverer(pushSender PushSender, smsSender SMSSender, records RecordShipper, log *zap.Logger, m *metrics.Metrics) *Deliverer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Deliverer{push: pushSender, sms: smsSender, records: records, log: log, metrics: m, now: time.Now}
}

// Deliver decodes raw and delivers it. Undecodable payloads are logged and dropped (nil error)
// so a poison message does not stall the consumer.
func (d *Deliverer) Deliver(ctx context.Context, raw []byte) error {
	var msg domain.Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		d.log.Warn("notification: dropping undecodable message", zap.Error(err), zap.Int("bytes", len(raw)))
		d.metrics.Delivery("unknown", resultSkipped)
		return nil
	}
	err := d.route(ctx, &msg)
	result := resultDelivered
	switch {
	case errors.Is(err, errNoSender):
		result = resultSkipped
	case err != nil:
		result = resultFailed
	}
	d.metrics.Delivery(string(msg.Channel), result)
	rec := DeliveryRecord{
		MessageID:   msg.ID,
		Channel:     string(msg.Channel),
		Kind:        string(msg.Kind),
		TicketID:    msg.TicketID,
		Recipient:   logging.MaskPhone(msg.Recipient),
		Result:      result,
		DeliveredAt: d.now().UTC(),
	}
	if err != nil {
		rec.Error = err.Error()
		d.log.Warn("notification delivery failed",
			zap.Error(err),
			zap.String("id", msg.ID),
			zap.String("channel", string(msg.Channel)),
			zap.String("recipient", rec.Recipient),
		)
	}
	d.ship(ctx, rec)
	if errors.Is(err, errNoSender) {
		return nil
	}
	return err
}

var errNoSender = errors.New("notification: no sender configured for channel")

func (d *Deliverer) route(ctx context.Context, msg *domain.Message) error {
	switch msg.Channel {
	case domain.ChannelPush:
		if d.push == nil {
			return errNoSender
		}
		return d.push.Send(ctx, msg.Recipient, push.Notification{
			Title:    "VoiceTrust",
			Body:     msg.Body,
			DeepLink: msg.DeepLink,
		})
	case domain.ChannelSMS:
		if d.sms == nil {
			return errNoSender
		}
		return d.sms.Send(ctx, msg.Recipient, msg.Body)
	default:
		return fmt.Errorf("notification: unknown channel %q", msg.Channel)
	}
}

func (d *Deliverer) ship(ctx context.Context, rec DeliveryRecord) {
	if d.records == nil {
		return
	}
	labels := map[string]string{"channel": rec.Channel, "kind": rec.Kind, "result": rec.Result}
	if err := d.records.PushJSON(ctx, rec.DeliveredAt, rec, labels); err != nil {
		d.log.Warn("notification: ship delivery record failed", zap.Error(err), zap.String("id", rec.MessageID))
	}
}
