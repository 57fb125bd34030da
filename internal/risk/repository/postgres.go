package repository

import (
	"context"
	"database/sql"
	"encoding/json"

	"voicetrust/backend/internal/risk/domain"
)

// PostgresRepository appends risk events.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a risk event repository that uses the given db.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Append inserts e. Detail is stored as jsonb.
func (r *PostgresRepository) Append(ctx context.Context, e *domain.Event) error {
	detail, err := json.Marshal(e.Detail)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO risk_events (id, type, severity, detail, identity_id, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		e.ID, e.Type, string(e.Severity), detail,
		sql.NullString{String: e.IdentityID, Valid: e.IdentityID != ""}, e.CreatedAt)
	return err
}
