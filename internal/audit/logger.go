// Package audit records validator and system actions on validation tickets.
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"voicetrust/backend/internal/audit/domain"
	auditrepo "voicetrust/backend/internal/audit/repository"
)

// SentinelActorID is the actor recorded for system-initiated actions (e.g. janitor expiry).
const SentinelActorID = "_system"

// ResourceTicket is the resource name for validation ticket actions.
const ResourceTicket = "validation_ticket"

// IPExtractor returns the client IP from the request context.
type IPExtractor func(context.Context) string

// Event is one auditable action.
type Event struct {
	ActorID    string
	Action     string
	Resource   string
	ResourceID string
	IdentityID string
	Metadata   string
}

// AuditLogger writes audit events. LogEvent is best-effort: failures are logged and do not affect the caller.
type AuditLogger interface {
	LogEvent(ctx context.Context, ev Event)
}

// Logger implements AuditLogger using the audit repository and an optional IP extractor.
type Logger struct {
	repo        auditrepo.Repository
	ipExtractor IPExtractor
	log         *zap.Logger
}

// NewLogger returns an AuditLogger that persists to repo. ipExtractor may be nil; then IP is "unknown".
func NewLogger(repo auditrepo.Repository, ipExtractor IPExtractor, log *zap.Logger) *Logger {
	if log == nil {
		log = zap.NewNop()
	}
	return &Logger{repo: repo, ipExtractor: ipExtractor, log: log}
}

// LogEvent writes one audit log entry. Best-effort: errors are logged and not returned.
func (l *Logger) LogEvent(ctx context.Context, ev Event) {
	if l.repo == nil {
		return
	}
	ip := "unknown"
	if l.ipExtractor != nil {
		if v := l.ipExtractor(ctx); v != "" {
			ip = v
		}
	}
	if ev.ActorID == "" {
		ev.ActorID = SentinelActorID
	}
	if ev.Resource == "" {
		ev.Resource = ResourceTicket
	}
	entry := &domain.AuditLog{
		ID:         uuid.New().String(),
		ActorID:    ev.ActorID,
		Action:     ev.Action,
		Resource:   ev.Resource,
		ResourceID: ev.ResourceID,
		IdentityID: ev.IdentityID,
		IP:         ip,
		Metadata:   ev.Metadata,
		CreatedAt:  time.Now().UTC(),
	}
	if err := l.repo.Create(ctx, entry); err != nil {
		l.log.Warn("audit: failed to log event",
			zap.String("action", ev.Action),
			zap.String("resource_id", ev.ResourceID),
			zap.Error(err))
	}
}
