package notification

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"voicetrust/backend/internal/metrics"
	"voicetrust/backend/internal/notification/domain"
	"voicetrust/backend/internal/platform/apperr"
	"voicetrust/backend/internal/platform/logging"
)

// publishTimeout bounds one publish. Also the drain budget at shutdown.
const publishTimeout = 5 * time.Second

// ShutdownDrainDuration is how long Wait may need after the HTTP server stops.
const ShutdownDrainDuration = publishTimeout

// Dispatcher publishes messages in the background, one goroutine per message.
// Dispatch never blocks on the broker and never reports failures to its caller.
type Dispatcher struct {
	pub     Publisher
	log     *zap.Logger
	metrics *metrics.Metrics
	now     func() time.Time

	wg sync.WaitGroup
}

// NewDispatcher returns a Dispatcher over pub. m may be nil.
func NewDispatcher(pub Publisher, log *zap.Logger, m *metrics.Metrics) *Dispatcher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Dispatcher{pub: pub, log: log, metrics: m, now: time.Now}
}

// Dispatch fills in missing IDs and timestamps, then publishes each message asynchronously.
// Request cancellation does not abort in-flight publishes.
func (d *Dispatcher) Dispatch(ctx context.Context, msgs ...*domain.Message) {
	if d == nil || d.pub == nil {
		return
	}
	bg := context.WithoutCancel(ctx)
	for _, msg := range msgs {
		if msg == nil {
			continue
		}
		if msg.ID == "" {
			msg.ID = uuid.NewString()
		}
		if msg.CreatedAt.IsZero() {
			msg.CreatedAt = d.now().UTC()
		}
		d.wg.Add(1)
		go func(msg *domain.Message) {
			defer d.wg.Done()
			pubCtx, cancel := context.WithTimeout(bg, publishTimeout)
			defer cancel()
			if err := d.pub.Publish(pubCtx, msg); err != nil {
				d.metrics.NotificationFailed(string(msg.Channel))
				d.log.Warn("notification publish failed",
					zap.Error(apperr.ErrNotificationDelivery),
					zap.NamedError("cause", err),
					zap.String("id", msg.ID),
					zap.String("channel", string(msg.Channel)),
					zap.String("recipient", logging.MaskPhone(msg.Recipient)),
					zap.String("ticket_id", msg.TicketID),
				)
				return
			}
			d.metrics.NotificationQueued(string(msg.Channel))
		}(msg)
	}
}

// Wait blocks until every dispatched message has been published or has failed.
func (d *Dispatcher) Wait() {
	if d == nil {
		return
	}
	d.wg.Wait()
}
