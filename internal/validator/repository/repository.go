package repository

import (
	"context"

	"voicetrust/backend/internal/validator/domain"
)

// Repository defines persistence for validators.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.Validator, error)
	// ListActive returns up to limit active validators, most recently active first.
	ListActive(ctx context.Context, limit int) ([]*domain.Validator, error)
	Upsert(ctx context.Context, v *domain.Validator) error
}
