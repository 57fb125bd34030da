package repository

import (
	"context"
	"errors"
	"time"

	"voicetrust/backend/internal/ticket/domain"
)

// ErrPendingConflict is returned by Create when a concurrent escalation kept a pending ticket
// for the same identity and the supersede could not be applied.
var ErrPendingConflict = errors.New("ticket: concurrent pending ticket for identity")

// Repository defines persistence for validation tickets. Tickets are never deleted.
type Repository interface {
	// Create persists t as pending. Any prior pending ticket for the identity is marked expired
	// with superseded_by = t.ID in the same transaction. Returns the superseded ticket ids.
	Create(ctx context.Context, t *domain.Ticket) (superseded []string, err error)
	// GetByID returns the ticket for id, or nil if not found.
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	// Resolve applies res only if the ticket is still pending. ok is false when another writer won.
	Resolve(ctx context.Context, id string, res domain.Resolution) (ok bool, err error)
	// MarkExpired moves a pending ticket to expired. ok is false when it was no longer pending.
	MarkExpired(ctx context.Context, id string) (ok bool, err error)
	// ExpireStale expires up to limit pending tickets whose expires_at <= now and returns them.
	ExpireStale(ctx context.Context, now time.Time, limit int) ([]*domain.Ticket, error)
}
