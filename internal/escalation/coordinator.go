// Package escalation hands an identity over to a human validator: it persists a time-boxed
// validation ticket with a 6-digit code and fans the request out to active validators.
package escalation

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"voicetrust/backend/internal/attempt"
	identitydomain "voicetrust/backend/internal/identity/domain"
	"voicetrust/backend/internal/localization"
	"voicetrust/backend/internal/metrics"
	notifdomain "voicetrust/backend/internal/notification/domain"
	"voicetrust/backend/internal/platform/apperr"
	"voicetrust/backend/internal/platform/logging"
	riskdomain "voicetrust/backend/internal/risk/domain"
	"voicetrust/backend/internal/telemetry"
	teldomain "voicetrust/backend/internal/telemetry/domain"
	ticketdomain "voicetrust/backend/internal/ticket/domain"
	validatordomain "voicetrust/backend/internal/validator/domain"
)

// MaxFanout caps how many validators one escalation notifies.
const MaxFanout = 10

var tracer = otel.Tracer("voicetrust/escalation")

// IdentityResolver resolves an identity by id, falling back to phone.
type IdentityResolver interface {
	Resolve(ctx context.Context, id, phone string) (*identitydomain.Identity, error)
}

// TicketCreator persists a new pending ticket, superseding any prior pending one.
type TicketCreator interface {
	Create(ctx context.Context, t *ticketdomain.Ticket) ([]string, error)
}

// ValidatorLister lists active validators, most recently active first.
type ValidatorLister interface {
	ListActive(ctx context.Context, limit int) ([]*validatordomain.Validator, error)
}

// RiskRecorder appends a risk event. Best-effort.
type RiskRecorder interface {
	Record(ctx context.Context, typ string, severity riskdomain.Severity, identityID string, detail map[string]any) bool
}

// AttemptMarker records the identity's pending attempt. Best-effort.
type AttemptMarker interface {
	MarkPending(ctx context.Context, e attempt.Entry)
}

// Notifier hands notifications to the delivery pipeline without blocking.
type Notifier interface {
	Dispatch(ctx context.Context, msgs ...*notifdomain.Message)
}

// Deps are the collaborators of a Coordinator. Risk, Attempts, Notifier, Emitter and Metrics may be nil.
type Deps struct {
	Identities IdentityResolver
	Tickets    TicketCreator
	Validators ValidatorLister
	Risk       RiskRecorder
	Attempts   AttemptMarker
	Notifier   Notifier
	Messages   *localization.Engine
	Emitter    telemetry.EventEmitter
	Metrics    *metrics.Metrics
	Log        *zap.Logger

	// FanoutLimit is clamped to 1..MaxFanout; 0 means MaxFanout.
	FanoutLimit int
	// DeepLinkBaseURL prefixes the ticket id in validator notifications.
	DeepLinkBaseURL string
	// GenerateCode defaults to GenerateCode.
	GenerateCode CodeGenerator
}

// Request is an escalation request. One of IdentityID or Phone is required.
type Request struct {
	IdentityID string
	Phone      string
	Method     ticketdomain.Method
	Reason     string
	Language   string
}

// Result is returned to the merchant. Message speaks the code digit by digit.
type Result struct {
	TicketID   string
	IdentityID string
	Code       string
	Message    string
	ExpiresAt  time.Time
	Superseded []string
}

// Coordinator creates validation tickets.
type Coordinator struct {
	d   Deps
	now func() time.Time
}

// NewCoordinator returns a Coordinator.
func NewCoordinator(d Deps) *Coordinator {
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	if d.FanoutLimit <= 0 || d.FanoutLimit > MaxFanout {
		d.FanoutLimit = MaxFanout
	}
	if d.GenerateCode == nil {
		d.GenerateCode = GenerateCode
	}
	return &Coordinator{d: d, now: time.Now}
}

// Escalate persists a pending ticket for the identity and notifies validators.
// A ticket persistence failure is returned as apperr.ErrDependencyUnavailable and no code is issued.
// Risk, attempt and notification failures are logged and never fail the escalation.
func (c *Coordinator) Escalate(ctx context.Context, req Request) (*Result, error) {
	ctx, span := tracer.Start(ctx, "escalation.Escalate")
	defer span.End()

	if req.Method != ticketdomain.MethodAgent && req.Method != ticketdomain.MethodCooperative {
		return nil, apperr.Invalid("method_preferred must be AGENT or COOP")
	}
	ident, err := c.d.Identities.Resolve(ctx, req.IdentityID, req.Phone)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("identity_id", ident.ID), attribute.String("method", string(req.Method)))

	code, err := c.d.GenerateCode()
	if err != nil {
		return nil, fmt.Errorf("escalation: generate code: %w", err)
	}
	requester := ident.Phone
	if p, err := identitydomain.NormalizePhone(req.Phone); err == nil {
		requester = p
	}
	now := c.now().UTC()
	t := &ticketdomain.Ticket{
		ID:             uuid.New().String(),
		IdentityID:     ident.ID,
		Code:           code,
		Method:         req.Method,
		Reason:         strings.TrimSpace(req.Reason),
		RequesterPhone: requester,
		Status:         ticketdomain.StatusPending,
		CreatedAt:      now,
		ExpiresAt:      now.Add(ticketdomain.TTL),
	}
	superseded, err := c.d.Tickets.Create(ctx, t)
	if err != nil {
		span.RecordError(err)
		return nil, apperr.Unavailable("ticket store", err)
	}
	c.d.Metrics.TicketCreated(string(t.Method))
	c.d.Log.Info("escalation: ticket created",
		zap.String("ticket_id", t.ID),
		zap.String("identity_id", ident.ID),
		zap.String("method", string(t.Method)),
		zap.String("phone", logging.MaskPhone(requester)),
		zap.Strings("superseded", superseded),
	)

	if c.d.Risk != nil {
		c.d.Risk.Record(ctx, riskdomain.TypeEscalation, riskdomain.SeverityMedium, ident.ID, map[string]any{
			"ticket_id":  t.ID,
			"method":     string(t.Method),
			"reason":     t.Reason,
			"superseded": superseded,
		})
	}

	if t.Method == ticketdomain.MethodAgent {
		c.fanOut(ctx, ident, t)
	}

	if c.d.Attempts != nil {
		c.d.Attempts.MarkPending(ctx, attempt.Entry{
			IdentityID:  ident.ID,
			Phone:       requester,
			Decision:    "ESCALATE",
			ReasonCodes: []string{"ESCALATED_TO_" + string(t.Method)},
		})
	}

	lang := req.Language
	if lang == "" {
		lang = ident.Language
	}
	msg := c.d.Messages.Render(localization.StepEscalationCreated, lang, ident.Persona, localization.Vars{
		"name":    ident.DisplayName,
		"code":    localization.SpokenDigits(code),
		"minutes": strconv.Itoa(int(ticketdomain.TTL / time.Minute)),
	})

	telemetry.EmitAsync(ctx, c.d.Emitter, &teldomain.Event{
		Type:       teldomain.EventEscalationCreated,
		IdentityID: ident.ID,
		TicketID:   t.ID,
		Source:     "escalation",
		Attributes: map[string]string{"method": string(t.Method)},
		OccurredAt: now,
	}, c.d.Log)

	return &Result{
		TicketID:   t.ID,
		IdentityID: ident.ID,
		Code:       code,
		Message:    msg,
		ExpiresAt:  t.ExpiresAt,
		Superseded: superseded,
	}, nil
}

// fanOut notifies up to FanoutLimit active validators. Validators with a push token get a push,
// others an SMS.
func (c *Coordinator) fanOut(ctx context.Context, ident *identitydomain.Identity, t *ticketdomain.Ticket) {
	if c.d.Validators == nil || c.d.Notifier == nil {
		return
	}
	validators, err := c.d.Validators.ListActive(ctx, c.d.FanoutLimit)
	if err != nil {
		c.d.Log.Warn("escalation: list validators failed; ticket stays pending without fan-out",
			zap.String("ticket_id", t.ID),
			zap.Error(errors.Join(apperr.ErrNotificationDelivery, err)))
		return
	}
	if len(validators) > c.d.FanoutLimit {
		validators = validators[:c.d.FanoutLimit]
	}
	link := c.deepLink(t.ID)
	body := c.d.Messages.Render(localization.StepValidatorRequest, "", "", localization.Vars{
		"name":  ident.DisplayName,
		"phone": logging.MaskPhone(ident.Phone),
		"code":  t.Code,
		"link":  link,
	})
	msgs := make([]*notifdomain.Message, 0, len(validators))
	for _, v := range validators {
		if v == nil || !v.Active {
			continue
		}
		m := &notifdomain.Message{
			Kind:        notifdomain.KindValidatorRequest,
			RecipientID: v.ID,
			Body:        body,
			DeepLink:    link,
			TicketID:    t.ID,
		}
		switch {
		case v.PushToken != "":
			m.Channel, m.Recipient = notifdomain.ChannelPush, v.PushToken
		case v.Phone != "":
			m.Channel, m.Recipient = notifdomain.ChannelSMS, v.Phone
		default:
			continue
		}
		msgs = append(msgs, m)
	}
	if len(msgs) == 0 {
		c.d.Log.Warn("escalation: no reachable active validators", zap.String("ticket_id", t.ID))
		return
	}
	c.d.Notifier.Dispatch(ctx, msgs...)
}

func (c *Coordinator) deepLink(ticketID string) string {
	base := strings.TrimSuffix(c.d.DeepLinkBaseURL, "/")
	if base == "" {
		return ticketID
	}
	return base + "/" + ticketID
}
