package repository

import (
	"context"

	"voicetrust/backend/internal/policy/domain"
)

// Repository defines persistence for policies.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.Policy, error)
	ListEnabledByScope(ctx context.Context, scope string) ([]*domain.Policy, error)
	Create(ctx context.Context, p *domain.Policy) error
	Update(ctx context.Context, p *domain.Policy) error
}
