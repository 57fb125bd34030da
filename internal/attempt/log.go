// Package attempt records authentication attempts for later analytics and escalation resolution.
package attempt

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"voicetrust/backend/internal/attempt/domain"
	attemptrepo "voicetrust/backend/internal/attempt/repository"
	"voicetrust/backend/internal/platform/logging"
)

// FailureWindow bounds how far back recent failures are counted.
const FailureWindow = 24 * time.Hour

// Entry describes one attempt to record.
type Entry struct {
	IdentityID  string
	Phone       string
	Decision    string
	TrustScore  *float64
	ReasonCodes []string
	Outcome     domain.Outcome
}

// Log writes attempt rows. Writes are best-effort: a failure is logged and never fails the
// protocol step that produced the attempt.
type Log struct {
	repo attemptrepo.Repository
	log  *zap.Logger
	now  func() time.Time
}

// NewLog returns a Log backed by repo.
func NewLog(repo attemptrepo.Repository, log *zap.Logger) *Log {
	if log == nil {
		log = zap.NewNop()
	}
	return &Log{repo: repo, log: log, now: time.Now}
}

func (l *Log) build(e Entry) *domain.Attempt {
	now := l.now().UTC()
	return &domain.Attempt{
		ID:          uuid.New().String(),
		IdentityID:  e.IdentityID,
		Phone:       e.Phone,
		Decision:    e.Decision,
		TrustScore:  e.TrustScore,
		ReasonCodes: e.ReasonCodes,
		Outcome:     e.Outcome,
		HourBucket:  domain.HourBucket(now),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Append records a new attempt row.
func (l *Log) Append(ctx context.Context, e Entry) {
	if err := l.repo.Append(ctx, l.build(e)); err != nil {
		l.warn("append", e, err)
	}
}

// MarkPending records or refreshes the identity's pending attempt.
func (l *Log) MarkPending(ctx context.Context, e Entry) {
	e.Outcome = domain.OutcomePending
	if err := l.repo.UpsertPending(ctx, l.build(e)); err != nil {
		l.warn("upsert pending", e, err)
	}
}

// Resolve moves the identity's pending attempts to outcome.
func (l *Log) Resolve(ctx context.Context, identityID string, outcome domain.Outcome) {
	n, err := l.repo.ResolvePending(ctx, identityID, outcome, l.now().UTC())
	if err != nil {
		l.log.Warn("attempt: failed to resolve pending rows",
			zap.String("identity_id", identityID), zap.String("outcome", string(outcome)), zap.Error(err))
		return
	}
	l.log.Debug("attempt: resolved pending rows",
		zap.String("identity_id", identityID), zap.String("outcome", string(outcome)), zap.Int64("rows", n))
}

// RecentFailures counts failed attempts for identityID within FailureWindow.
func (l *Log) RecentFailures(ctx context.Context, identityID string) (int, error) {
	return l.repo.CountFailuresSince(ctx, identityID, l.now().Add(-FailureWindow))
}

func (l *Log) warn(op string, e Entry, err error) {
	l.log.Warn("attempt: failed to "+op,
		zap.String("identity_id", e.IdentityID),
		zap.String("phone", logging.MaskPhone(e.Phone)),
		zap.String("decision", e.Decision),
		zap.Error(err))
}
