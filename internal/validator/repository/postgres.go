package repository

import (
	"context"
	"database/sql"
	"errors"

	"voicetrust/backend/internal/validator/domain"
)

const selectValidator = `SELECT id, kind, display_name, phone_e164, push_token, active, last_active_at FROM validators`

// PostgresRepository reads and upserts validators.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a validator repository that uses the given db.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// GetByID returns the validator for id, or nil if not found.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Validator, error) {
	v, err := scanValidator(r.db.QueryRowContext(ctx, selectValidator+` WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return v, err
}

// ListActive returns up to limit active validators ordered by last_active_at descending.
func (r *PostgresRepository) ListActive(ctx context.Context, limit int) ([]*domain.Validator, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := r.db.QueryContext(ctx,
		selectValidator+` WHERE active ORDER BY last_active_at DESC, id LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*domain.Validator
	for rows.Next() {
		v, err := scanValidator(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// Upsert inserts or updates a validator by id.
func (r *PostgresRepository) Upsert(ctx context.Context, v *domain.Validator) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO validators (id, kind, display_name, phone_e164, push_token, active, last_active_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (id) DO UPDATE SET kind = EXCLUDED.kind, display_name = EXCLUDED.display_name,
		   phone_e164 = EXCLUDED.phone_e164, push_token = EXCLUDED.push_token,
		   active = EXCLUDED.active, last_active_at = EXCLUDED.last_active_at`,
		v.ID, string(v.Kind), v.DisplayName, v.Phone, nullString(v.PushToken), v.Active, v.LastActiveAt)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanValidator(row rowScanner) (*domain.Validator, error) {
	var v domain.Validator
	var kind string
	var push sql.NullString
	if err := row.Scan(&v.ID, &kind, &v.DisplayName, &v.Phone, &push, &v.Active, &v.LastActiveAt); err != nil {
		return nil, err
	}
	v.Kind = domain.Kind(kind)
	v.PushToken = push.String
	return &v, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
