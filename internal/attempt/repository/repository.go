package repository

import (
	"context"
	"time"

	"voicetrust/backend/internal/attempt/domain"
)

// Repository defines persistence for authentication attempts.
type Repository interface {
	Append(ctx context.Context, a *domain.Attempt) error
	// UpsertPending updates the identity's pending row with a's decision and reason codes,
	// or inserts a when none exists.
	UpsertPending(ctx context.Context, a *domain.Attempt) error
	// ResolvePending moves every pending row for identityID to outcome and returns the count.
	ResolvePending(ctx context.Context, identityID string, outcome domain.Outcome, at time.Time) (int64, error)
	// CountFailuresSince counts failed attempts for identityID created at or after since.
	CountFailuresSince(ctx context.Context, identityID string, since time.Time) (int, error)
}
