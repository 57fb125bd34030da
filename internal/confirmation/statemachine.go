// Package confirmation decides the next protocol step of the voice-first identity check:
// confirm the phone number, ask a knowledge-based question, then go DIRECT or ESCALATE.
package confirmation

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"voicetrust/backend/internal/attempt"
	attemptdomain "voicetrust/backend/internal/attempt/domain"
	"voicetrust/backend/internal/challenge"
	challengedomain "voicetrust/backend/internal/challenge/domain"
	identitydomain "voicetrust/backend/internal/identity/domain"
	"voicetrust/backend/internal/localization"
	"voicetrust/backend/internal/metrics"
	"voicetrust/backend/internal/platform/apperr"
	"voicetrust/backend/internal/platform/logging"
	"voicetrust/backend/internal/policy/engine"
	riskdomain "voicetrust/backend/internal/risk/domain"
	"voicetrust/backend/internal/telemetry"
	teldomain "voicetrust/backend/internal/telemetry/domain"
)

var tracer = otel.Tracer("voicetrust/confirmation")

// IdentityLookup resolves identities.
type IdentityLookup interface {
	LookupByPhone(ctx context.Context, phone string) (*identitydomain.Identity, error)
	LookupByID(ctx context.Context, id string) (*identitydomain.Identity, error)
}

// ChallengeBank picks, renders and verifies challenge questions.
type ChallengeBank interface {
	Pick(ctx context.Context, identityID string) (challengedomain.Key, error)
	Question(key challengedomain.Key, language, persona string) string
	Verify(ctx context.Context, identityID string, key challengedomain.Key, answer string) (challenge.Verification, error)
}

// DecisionPolicy turns challenge evidence into DIRECT or ESCALATE.
type DecisionPolicy interface {
	EvaluateDecision(ctx context.Context, in engine.DecisionInput) (engine.DecisionResult, error)
}

// AttemptLog records attempts. Writes are best-effort.
type AttemptLog interface {
	Append(ctx context.Context, e attempt.Entry)
	Resolve(ctx context.Context, identityID string, outcome attemptdomain.Outcome)
	RecentFailures(ctx context.Context, identityID string) (int, error)
}

// RiskRecorder appends a risk event. Best-effort.
type RiskRecorder interface {
	Record(ctx context.Context, typ string, severity riskdomain.Severity, identityID string, detail map[string]any) bool
}

// Deps are the collaborators of a StateMachine. Attempts, Risk, Emitter and Metrics may be nil.
type Deps struct {
	Identities IdentityLookup
	Challenges ChallengeBank
	Policy     DecisionPolicy
	Attempts   AttemptLog
	Risk       RiskRecorder
	Messages   *localization.Engine
	Emitter    telemetry.EventEmitter
	Metrics    *metrics.Metrics
	Log        *zap.Logger
}

// StateMachine runs the confirmation protocol. It holds no per-call state.
type StateMachine struct {
	d Deps
}

// NewStateMachine returns a StateMachine.
func NewStateMachine(d Deps) *StateMachine {
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	return &StateMachine{d: d}
}

// ConfirmRequest is the caller's answer to "is this your number?".
type ConfirmRequest struct {
	Phone    string
	Yes      bool
	Language string
	Persona  string
}

// ConfirmResult carries the next step and its spoken message.
type ConfirmResult struct {
	NextStep          localization.Step
	Message           string
	IdentityID        string
	ChallengeKey      challengedomain.Key
	ChallengeQuestion string
}

// ConfirmPhone decides RETRY, REGISTER or ASK_SOCIAL_Q. It writes nothing and is safe to retry.
// A "no" answer short-circuits before any lookup.
func (s *StateMachine) ConfirmPhone(ctx context.Context, req ConfirmRequest) (*ConfirmResult, error) {
	ctx, span := tracer.Start(ctx, "confirmation.ConfirmPhone")
	defer span.End()

	if !req.Yes {
		return s.confirmed(&ConfirmResult{
			NextStep: localization.StepRetry,
			Message:  s.d.Messages.Render(localization.StepRetry, req.Language, req.Persona, nil),
		}), nil
	}

	ident, err := s.d.Identities.LookupByPhone(ctx, req.Phone)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if ident == nil {
		s.d.Log.Info("confirmation: unknown phone", zap.String("phone", logging.MaskPhone(req.Phone)))
		return s.confirmed(&ConfirmResult{
			NextStep: localization.StepRegister,
			Message:  s.d.Messages.Render(localization.StepRegister, req.Language, req.Persona, nil),
		}), nil
	}
	span.SetAttributes(attribute.String("identity_id", ident.ID))

	key, err := s.d.Challenges.Pick(ctx, ident.ID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	lang, persona := preferences(ident, req.Language, req.Persona)
	question := s.d.Challenges.Question(key, lang, persona)
	return s.confirmed(&ConfirmResult{
		NextStep:          localization.StepAskSocialQ,
		Message:           s.d.Messages.Render(localization.StepAskSocialQ, lang, persona, localization.Vars{"name": ident.DisplayName, "question": question}),
		IdentityID:        ident.ID,
		ChallengeKey:      key,
		ChallengeQuestion: question,
	}), nil
}

func (s *StateMachine) confirmed(res *ConfirmResult) *ConfirmResult {
	s.d.Metrics.ProtocolStep("confirm_phone", string(res.NextStep))
	return res
}

// VerifyRequest is the identity's answer to the challenge question.
type VerifyRequest struct {
	IdentityID   string
	ChallengeKey string
	Answer       string
	// TrustScore is an opaque score supplied by the caller; nil when unknown.
	TrustScore *float64
	Language   string
	Persona    string
}

// VerifyResult is DIRECT or ESCALATE with the policy's reason codes.
type VerifyResult struct {
	NextStep    localization.Step
	Message     string
	IdentityID  string
	ReasonCodes []string
}

// reasonFailuresUnknown forces escalation when recent failures cannot be counted.
const reasonFailuresUnknown = "FAILURE_COUNT_UNAVAILABLE"

// VerifyChallenge checks the answer, evaluates the decision policy and records the attempt.
func (s *StateMachine) VerifyChallenge(ctx context.Context, req VerifyRequest) (*VerifyResult, error) {
	ctx, span := tracer.Start(ctx, "confirmation.VerifyChallenge")
	defer span.End()

	key := challengedomain.Key(strings.ToUpper(strings.TrimSpace(req.ChallengeKey)))
	if key == "" {
		return nil, apperr.Invalid("challenge_key is required")
	}
	ident, err := s.d.Identities.LookupByID(ctx, req.IdentityID)
	if err != nil {
		return nil, err
	}
	if ident == nil {
		return nil, apperr.ErrNotFound
	}
	span.SetAttributes(attribute.String("identity_id", ident.ID))

	v, err := s.d.Challenges.Verify(ctx, ident.ID, key, req.Answer)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	in := engine.DecisionInput{AnswerOnFile: v.OnFile, AnswerCorrect: v.Correct}
	if req.TrustScore != nil {
		in.TrustScore, in.TrustScoreKnown = *req.TrustScore, true
	}
	failuresKnown := true
	if s.d.Attempts != nil {
		n, err := s.d.Attempts.RecentFailures(ctx, ident.ID)
		if err != nil {
			s.d.Log.Warn("confirmation: counting recent failures failed; escalating", zap.String("identity_id", ident.ID), zap.Error(err))
			failuresKnown = false
		}
		in.RecentFailures = n
	}

	decision, err := s.d.Policy.EvaluateDecision(ctx, in)
	if err != nil {
		s.d.Log.Warn("confirmation: decision policy failed; escalating", zap.Error(err))
		decision = engine.DecisionResult{NextStep: engine.StepEscalate, ReasonCodes: []string{"POLICY_UNAVAILABLE"}}
	}
	if !failuresKnown {
		decision.NextStep = engine.StepEscalate
		decision.ReasonCodes = append(decision.ReasonCodes, reasonFailuresUnknown)
	}

	step := localization.StepEscalate
	if decision.NextStep == engine.StepDirect {
		step = localization.StepDirect
	}

	if v.OnFile && !v.Correct && s.d.Risk != nil {
		s.d.Risk.Record(ctx, riskdomain.TypeChallengeFailed, riskdomain.SeverityMedium, ident.ID, map[string]any{
			"challenge_key": string(key),
			"reasons":       decision.ReasonCodes,
		})
	}
	s.recordAttempt(ctx, ident, step, v, req.TrustScore, decision.ReasonCodes)

	lang, persona := preferences(ident, req.Language, req.Persona)
	s.d.Metrics.ProtocolStep("verify_challenge", string(step))
	telemetry.EmitAsync(ctx, s.d.Emitter, &teldomain.Event{
		Type:       teldomain.EventChallengeDecided,
		IdentityID: ident.ID,
		Source:     "confirmation",
		Attributes: map[string]string{"next_step": string(step), "reasons": strings.Join(decision.ReasonCodes, ",")},
	}, s.d.Log)

	return &VerifyResult{
		NextStep:    step,
		Message:     s.d.Messages.Render(step, lang, persona, localization.Vars{"name": ident.DisplayName}),
		IdentityID:  ident.ID,
		ReasonCodes: decision.ReasonCodes,
	}, nil
}

// recordAttempt appends one row per decision. A wrong on-file answer is a failed attempt and
// counts toward the recent-failures gate; other escalations stay pending until the ticket
// resolves. A DIRECT decision closes pending rows left by escalations that were never completed.
func (s *StateMachine) recordAttempt(ctx context.Context, ident *identitydomain.Identity, step localization.Step, v challenge.Verification, score *float64, reasons []string) {
	if s.d.Attempts == nil {
		return
	}
	e := attempt.Entry{
		IdentityID:  ident.ID,
		Phone:       ident.Phone,
		Decision:    string(step),
		TrustScore:  score,
		ReasonCodes: reasons,
		Outcome:     attemptdomain.OutcomePending,
	}
	switch {
	case step == localization.StepDirect:
		s.d.Attempts.Resolve(ctx, ident.ID, attemptdomain.OutcomeFailed)
		e.Outcome = attemptdomain.OutcomeSuccess
	case v.OnFile && !v.Correct:
		e.Outcome = attemptdomain.OutcomeFailed
	}
	s.d.Attempts.Append(ctx, e)
}

// preferences picks the message language and persona. The identity's stored persona always
// wins; its stored language is used only when the caller did not choose one.
func preferences(ident *identitydomain.Identity, language, persona string) (string, string) {
	if strings.TrimSpace(language) == "" {
		language = ident.Language
	}
	if ident.Persona != "" {
		persona = ident.Persona
	}
	return language, persona
}
