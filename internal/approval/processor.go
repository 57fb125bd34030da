// Package approval applies a validator's decision to a validation ticket.
//
// Checks run in a fixed order: the ticket exists, the validator is eligible, the ticket has not
// expired, the ticket is still pending. The terminal transition is a single conditional write on
// status, so concurrent validators produce exactly one winner; the loser sees AlreadyProcessed.
package approval

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	attemptdomain "voicetrust/backend/internal/attempt/domain"
	"voicetrust/backend/internal/audit"
	identitydomain "voicetrust/backend/internal/identity/domain"
	"voicetrust/backend/internal/localization"
	"voicetrust/backend/internal/metrics"
	notifdomain "voicetrust/backend/internal/notification/domain"
	"voicetrust/backend/internal/platform/apperr"
	"voicetrust/backend/internal/policy/engine"
	riskdomain "voicetrust/backend/internal/risk/domain"
	"voicetrust/backend/internal/telemetry"
	teldomain "voicetrust/backend/internal/telemetry/domain"
	ticketdomain "voicetrust/backend/internal/ticket/domain"
	validatordomain "voicetrust/backend/internal/validator/domain"
)

// Decisions a validator can submit.
const (
	DecisionApproved = "APPROVED"
	DecisionRejected = "REJECTED"
)

var tracer = otel.Tracer("voicetrust/approval")

// TicketStore is the ticket persistence used by the processor.
type TicketStore interface {
	GetByID(ctx context.Context, id string) (*ticketdomain.Ticket, error)
	Resolve(ctx context.Context, id string, res ticketdomain.Resolution) (bool, error)
	MarkExpired(ctx context.Context, id string) (bool, error)
}

// ValidatorReader loads a validator.
type ValidatorReader interface {
	GetByID(ctx context.Context, id string) (*validatordomain.Validator, error)
}

// ApprovalPolicy decides whether a validator may resolve a ticket.
type ApprovalPolicy interface {
	EvaluateApproval(ctx context.Context, in engine.ApprovalInput) (engine.ApprovalResult, error)
}

// IdentityReader loads the identity to notify on approval.
type IdentityReader interface {
	LookupByID(ctx context.Context, id string) (*identitydomain.Identity, error)
}

// AttemptResolver moves an identity's pending attempts to a terminal outcome. Best-effort.
type AttemptResolver interface {
	Resolve(ctx context.Context, identityID string, outcome attemptdomain.Outcome)
}

// RiskRecorder appends a risk event. Best-effort.
type RiskRecorder interface {
	Record(ctx context.Context, typ string, severity riskdomain.Severity, identityID string, detail map[string]any) bool
}

// Notifier hands notifications to the delivery pipeline without blocking.
type Notifier interface {
	Dispatch(ctx context.Context, msgs ...*notifdomain.Message)
}

// Deps are the collaborators of a Processor. Identities, Attempts, Risk, Audit, Notifier,
// Emitter and Metrics may be nil.
type Deps struct {
	Tickets    TicketStore
	Validators ValidatorReader
	Policy     ApprovalPolicy
	Identities IdentityReader
	Attempts   AttemptResolver
	Risk       RiskRecorder
	Audit      audit.AuditLogger
	Notifier   Notifier
	Messages   *localization.Engine
	Emitter    telemetry.EventEmitter
	Metrics    *metrics.Metrics
	Log        *zap.Logger
}

// Request is a validator decision.
type Request struct {
	TicketID    string
	ValidatorID string
	Decision    string
	Notes       string
	Language    string
}

// Result is the outcome shown to the validator. Message is always set, also when Approve
// returns an error, so callers can relay a plain-language explanation.
type Result struct {
	SessionCreated bool
	IdentityID     string
	Status         ticketdomain.Status
	Message        string
}

// Processor applies validator decisions.
type Processor struct {
	d   Deps
	now func() time.Time
}

// NewProcessor returns a Processor.
func NewProcessor(d Deps) *Processor {
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	return &Processor{d: d, now: time.Now}
}

// Approve applies req. Errors wrap apperr sentinels: ErrInvalidArgument, ErrNotFound, ErrForbidden,
// ErrExpired, ErrAlreadyProcessed or ErrDependencyUnavailable. The returned Result is never nil.
// Every outcome is audited.
func (p *Processor) Approve(ctx context.Context, req Request) (res *Result, err error) {
	ctx, span := tracer.Start(ctx, "approval.Approve")
	defer span.End()
	span.SetAttributes(attribute.String("ticket_id", req.TicketID), attribute.String("validator_id", req.ValidatorID))

	req.Decision = strings.ToUpper(strings.TrimSpace(req.Decision))
	res = &Result{}
	var t *ticketdomain.Ticket
	defer func() {
		if err != nil {
			span.RecordError(err)
		}
		p.finish(ctx, req, t, res, err)
	}()

	if req.TicketID == "" || req.ValidatorID == "" {
		res.Message = "ticket_id and agent_id are required"
		return res, apperr.Invalid(res.Message)
	}
	if req.Decision != DecisionApproved && req.Decision != DecisionRejected {
		res.Message = "decision must be APPROVED or REJECTED"
		return res, apperr.Invalid(res.Message)
	}

	t, err = p.d.Tickets.GetByID(ctx, req.TicketID)
	if err != nil {
		return p.fail(res, localization.StepTryAgainLater, nil, apperr.Unavailable("ticket store", err), req)
	}
	if t == nil {
		return p.fail(res, localization.StepTicketNotFound, nil, apperr.ErrNotFound, req)
	}
	res.IdentityID = t.IdentityID
	res.Status = t.Status

	if err := p.checkEligible(ctx, req, t); err != nil {
		step := localization.StepForbidden
		if apperr.Retryable(err) {
			step = localization.StepTryAgainLater
		}
		return p.fail(res, step, nil, err, req)
	}

	now := p.now().UTC()
	if t.ExpiredAt(now) {
		if t.Status == ticketdomain.StatusPending {
			ok, xerr := p.d.Tickets.MarkExpired(ctx, t.ID)
			switch {
			case xerr != nil:
				p.d.Log.Warn("approval: mark expired failed", zap.String("ticket_id", t.ID), zap.Error(xerr))
			case ok:
				res.Status = ticketdomain.StatusExpired
				p.resolveAttempts(ctx, t.IdentityID, attemptdomain.OutcomeFailed)
			default:
				// Another writer resolved the ticket first; report what it holds now.
				res.Status = p.currentStatus(ctx, t.ID)
			}
		}
		return p.fail(res, localization.StepExpired, nil, apperr.ErrExpired, req)
	}

	if t.Status != ticketdomain.StatusPending {
		return p.fail(res, localization.StepAlreadyProcessed, localization.Vars{"status": string(t.Status)},
			fmt.Errorf("%w: ticket is %s", apperr.ErrAlreadyProcessed, t.Status), req)
	}

	status := ticketdomain.StatusRejected
	if req.Decision == DecisionApproved {
		status = ticketdomain.StatusApproved
	}
	ok, err := p.d.Tickets.Resolve(ctx, t.ID, ticketdomain.Resolution{
		Status:      status,
		ValidatorID: req.ValidatorID,
		Notes:       strings.TrimSpace(req.Notes),
		At:          now,
	})
	if err != nil {
		return p.fail(res, localization.StepTryAgainLater, nil, apperr.Unavailable("ticket store", err), req)
	}
	if !ok {
		current := p.currentStatus(ctx, t.ID)
		res.Status = current
		return p.fail(res, localization.StepAlreadyProcessed, localization.Vars{"status": string(current)},
			fmt.Errorf("%w: ticket is %s", apperr.ErrAlreadyProcessed, current), req)
	}
	res.Status = status

	if status == ticketdomain.StatusApproved {
		res.SessionCreated = true
		res.Message = p.d.Messages.Render(localization.StepApproved, req.Language, "", nil)
		p.resolveAttempts(ctx, t.IdentityID, attemptdomain.OutcomeSuccess)
		p.notifyIdentity(ctx, t)
	} else {
		res.Message = p.d.Messages.Render(localization.StepRejected, req.Language, "", nil)
		p.resolveAttempts(ctx, t.IdentityID, attemptdomain.OutcomeFailed)
	}
	return res, nil
}

func (p *Processor) fail(res *Result, step localization.Step, vars localization.Vars, err error, req Request) (*Result, error) {
	res.SessionCreated = false
	res.Message = p.d.Messages.Render(step, req.Language, "", vars)
	return res, err
}

// checkEligible asks the approval policy whether the validator may resolve t.
func (p *Processor) checkEligible(ctx context.Context, req Request, t *ticketdomain.Ticket) error {
	v, err := p.d.Validators.GetByID(ctx, req.ValidatorID)
	if err != nil {
		return apperr.Unavailable("validator directory", err)
	}
	in := engine.ApprovalInput{TicketMethod: string(t.Method)}
	if v != nil {
		in.ValidatorFound = true
		in.ValidatorActive = v.Active
		in.ValidatorKind = string(v.Kind)
	}
	out, err := p.d.Policy.EvaluateApproval(ctx, in)
	if err != nil {
		return apperr.Unavailable("approval policy", err)
	}
	if out.Allow {
		return nil
	}
	if p.d.Risk != nil {
		p.d.Risk.Record(ctx, riskdomain.TypeValidationDenied, riskdomain.SeverityLow, t.IdentityID, map[string]any{
			"ticket_id":    t.ID,
			"validator_id": req.ValidatorID,
			"reason":       out.Reason,
		})
	}
	return fmt.Errorf("%w: %s", apperr.ErrForbidden, out.Reason)
}

func (p *Processor) currentStatus(ctx context.Context, id string) ticketdomain.Status {
	t, err := p.d.Tickets.GetByID(ctx, id)
	if err != nil || t == nil {
		return "processed"
	}
	return t.Status
}

func (p *Processor) resolveAttempts(ctx context.Context, identityID string, outcome attemptdomain.Outcome) {
	if p.d.Attempts != nil {
		p.d.Attempts.Resolve(ctx, identityID, outcome)
	}
}

// notifyIdentity sends the confirmation to the phone that requested the escalation.
func (p *Processor) notifyIdentity(ctx context.Context, t *ticketdomain.Ticket) {
	if p.d.Notifier == nil {
		return
	}
	var ident *identitydomain.Identity
	if p.d.Identities != nil {
		var err error
		if ident, err = p.d.Identities.LookupByID(ctx, t.IdentityID); err != nil {
			p.d.Log.Warn("approval: identity lookup for notification failed",
				zap.String("identity_id", t.IdentityID), zap.Error(err))
		}
	}
	recipient := t.RequesterPhone
	var name, lang, persona string
	if ident != nil {
		name, lang, persona = ident.DisplayName, ident.Language, ident.Persona
		if recipient == "" {
			recipient = ident.Phone
		}
	}
	if recipient == "" {
		return
	}
	p.d.Notifier.Dispatch(ctx, &notifdomain.Message{
		Channel:     notifdomain.ChannelSMS,
		Kind:        notifdomain.KindIdentityConfirmed,
		Recipient:   recipient,
		RecipientID: t.IdentityID,
		Body:        p.d.Messages.Render(localization.StepIdentityConfirmed, lang, persona, localization.Vars{"name": name}),
		TicketID:    t.ID,
	})
}

// finish writes the audit entry, metrics and telemetry for every outcome.
func (p *Processor) finish(ctx context.Context, req Request, t *ticketdomain.Ticket, res *Result, err error) {
	action := audit.ApprovalAction(req.Decision, err)
	outcome := strings.TrimPrefix(action, "validation_")
	p.d.Metrics.TicketResolved(outcome)

	identityID := ""
	if t != nil {
		identityID = t.IdentityID
	}
	if p.d.Audit != nil {
		meta := fmt.Sprintf(`{"decision":%q,"status":%q}`, req.Decision, string(res.Status))
		if err != nil {
			meta = fmt.Sprintf(`{"decision":%q,"status":%q,"error":%q}`, req.Decision, string(res.Status), err.Error())
		}
		p.d.Audit.LogEvent(ctx, audit.Event{
			ActorID:    req.ValidatorID,
			Action:     action,
			Resource:   audit.ResourceTicket,
			ResourceID: req.TicketID,
			IdentityID: identityID,
			Metadata:   meta,
		})
	}

	fields := []zap.Field{
		zap.String("ticket_id", req.TicketID),
		zap.String("validator_id", req.ValidatorID),
		zap.String("decision", req.Decision),
		zap.String("action", action),
	}
	switch {
	case err == nil:
		p.d.Log.Info("approval: ticket resolved", fields...)
	case errors.Is(err, apperr.ErrDependencyUnavailable):
		p.d.Log.Error("approval: dependency unavailable", append(fields, zap.Error(err))...)
	default:
		p.d.Log.Info("approval: request refused", append(fields, zap.Error(err))...)
	}

	if err == nil || errors.Is(err, apperr.ErrExpired) {
		typ := teldomain.EventTicketResolved
		if err != nil {
			typ = teldomain.EventTicketExpired
		}
		telemetry.EmitAsync(ctx, p.d.Emitter, &teldomain.Event{
			Type:       typ,
			IdentityID: identityID,
			TicketID:   req.TicketID,
			Source:     "approval",
			Attributes: map[string]string{"status": string(res.Status), "validator_id": req.ValidatorID},
		}, p.d.Log)
	}
}
