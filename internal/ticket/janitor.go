// Package ticket runs background maintenance over validation tickets.
package ticket

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	attemptdomain "voicetrust/backend/internal/attempt/domain"
	"voicetrust/backend/internal/audit"
	"voicetrust/backend/internal/metrics"
	"voicetrust/backend/internal/telemetry"
	teldomain "voicetrust/backend/internal/telemetry/domain"
	"voicetrust/backend/internal/ticket/domain"
)

var tracer = otel.Tracer("voicetrust/ticket")

// JanitorBatchSize bounds the tickets expired per sweep.
const JanitorBatchSize = 100

// StaleExpirer is the slice of the ticket repository the janitor needs.
type StaleExpirer interface {
	ExpireStale(ctx context.Context, now time.Time, limit int) ([]*domain.Ticket, error)
}

// AttemptResolver moves pending attempts to a final outcome.
type AttemptResolver interface {
	Resolve(ctx context.Context, identityID string, outcome attemptdomain.Outcome)
}

// JanitorDeps are the janitor's collaborators. Everything except Tickets may be nil.
type JanitorDeps struct {
	Tickets  StaleExpirer
	Attempts AttemptResolver
	Audit    audit.AuditLogger
	Emitter  telemetry.EventEmitter
	Metrics  *metrics.Metrics
	Log      *zap.Logger
}

// Janitor expires pending tickets past their TTL so stale codes cannot linger.
type Janitor struct {
	d   JanitorDeps
	now func() time.Time
}

// NewJanitor returns a Janitor.
func NewJanitor(d JanitorDeps) *Janitor {
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	return &Janitor{d: d, now: time.Now}
}

// Run sweeps every interval until ctx is done. A non-positive interval returns immediately.
func (j *Janitor) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := j.Sweep(ctx); err != nil {
				j.d.Log.Warn("ticket janitor: sweep failed", zap.Error(err))
			}
		}
	}
}

// Sweep expires one batch of stale tickets and returns how many were expired.
func (j *Janitor) Sweep(ctx context.Context) (int, error) {
	ctx, span := tracer.Start(ctx, "ticket.Janitor.Sweep")
	defer span.End()

	expired, err := j.d.Tickets.ExpireStale(ctx, j.now().UTC(), JanitorBatchSize)
	if err != nil {
		span.RecordError(err)
		return 0, err
	}
	for _, t := range expired {
		if j.d.Attempts != nil {
			j.d.Attempts.Resolve(ctx, t.IdentityID, attemptdomain.OutcomeFailed)
		}
		if j.d.Audit != nil {
			j.d.Audit.LogEvent(ctx, audit.Event{
				ActorID:    audit.SentinelActorID,
				Action:     audit.ActionJanitorExpired,
				Resource:   audit.ResourceTicket,
				ResourceID: t.ID,
				IdentityID: t.IdentityID,
				Metadata:   `{"status":"expired"}`,
			})
		}
		j.d.Metrics.TicketResolved("expired")
		telemetry.EmitAsync(ctx, j.d.Emitter, &teldomain.Event{
			Type:       teldomain.EventTicketExpired,
			IdentityID: t.IdentityID,
			TicketID:   t.ID,
			Source:     "janitor",
		}, j.d.Log)
	}
	if len(expired) > 0 {
		j.d.Log.Info("ticket janitor: expired stale tickets", zap.Int("count", len(expired)))
	}
	return len(expired), nil
}
