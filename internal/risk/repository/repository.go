package repository

import (
	"context"

	"voicetrust/backend/internal/risk/domain"
)

// Repository appends risk events. There is no update or delete.
type Repository interface {
	Append(ctx context.Context, e *domain.Event) error
}
