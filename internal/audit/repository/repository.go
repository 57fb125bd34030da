package repository

import (
	"context"

	"voicetrust/backend/internal/audit/domain"
)

// Repository defines persistence for audit logs. Entries are append-only.
type Repository interface {
	Create(ctx context.Context, a *domain.AuditLog) error
}
