// Package risk records security-relevant events.
package risk

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"voicetrust/backend/internal/risk/domain"
	riskrepo "voicetrust/backend/internal/risk/repository"
)

// Recorder appends risk events on a best-effort basis: a failed append is logged and never
// fails the calling transaction.
type Recorder struct {
	repo riskrepo.Repository
	log  *zap.Logger
	now  func() time.Time
}

// NewRecorder returns a Recorder. repo may be nil (no-op).
func NewRecorder(repo riskrepo.Repository, log *zap.Logger) *Recorder {
	if log == nil {
		log = zap.NewNop()
	}
	return &Recorder{repo: repo, log: log, now: time.Now}
}

// Record appends one event and reports whether it was persisted.
func (r *Recorder) Record(ctx context.Context, typ string, severity domain.Severity, identityID string, detail map[string]any) bool {
	if r == nil || r.repo == nil {
		return false
	}
	ev := &domain.Event{
		ID:         uuid.New().String(),
		Type:       typ,
		Severity:   severity,
		Detail:     detail,
		IdentityID: identityID,
		CreatedAt:  r.now().UTC(),
	}
	if err := r.repo.Append(ctx, ev); err != nil {
		r.log.Warn("risk: failed to append event",
			zap.String("type", typ),
			zap.String("identity_id", identityID),
			zap.Error(err))
		return false
	}
	return true
}
