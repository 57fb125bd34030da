package repository

import (
	"context"

	"voicetrust/backend/internal/challenge/domain"
)

// Repository defines persistence for challenge answers. Answers are read-only to the protocol;
// Upsert exists for onboarding tooling (cmd/seed).
type Repository interface {
	ListByIdentity(ctx context.Context, identityID string) ([]*domain.Answer, error)
	GetAnswer(ctx context.Context, identityID string, key domain.Key) (*domain.Answer, error)
	Upsert(ctx context.Context, a *domain.Answer) error
}
