package repository

import (
	"context"

	"voicetrust/backend/internal/identity/domain"
)

// Repository defines read access to identities. Not-found is (nil, nil).
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.Identity, error)
	GetByPhone(ctx context.Context, phone string) (*domain.Identity, error)
}
