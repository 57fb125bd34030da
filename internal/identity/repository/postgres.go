package repository

import (
	"context"
	"database/sql"
	"errors"

	"voicetrust/backend/internal/identity/domain"
)

const identityColumns = `id, phone_e164, display_name, persona, language, created_at`

// PostgresRepository reads identities from the identities table.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns an identity repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// GetByID returns the identity for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Identity, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+identityColumns+` FROM identities WHERE id = $1`, id)
	return scanIdentity(row)
}

// GetByPhone returns the identity whose canonical phone is phone, or nil if not found.
func (r *PostgresRepository) GetByPhone(ctx context.Context, phone string) (*domain.Identity, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+identityColumns+` FROM identities WHERE phone_e164 = $1`, phone)
	return scanIdentity(row)
}

func scanIdentity(row *sql.Row) (*domain.Identity, error) {
	var (
		i        domain.Identity
		persona  sql.NullString
		language sql.NullString
	)
	if err := row.Scan(&i.ID, &i.Phone, &i.DisplayName, &persona, &language, &i.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	i.Persona = persona.String
	i.Language = language.String
	return &i, nil
}

// Upsert inserts or updates an identity by id. Used by onboarding tooling only.
func (r *PostgresRepository) Upsert(ctx context.Context, i *domain.Identity) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO identities (`+identityColumns+`) VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (id) DO UPDATE SET phone_e164 = EXCLUDED.phone_e164, display_name = EXCLUDED.display_name,
		   persona = EXCLUDED.persona, language = EXCLUDED.language`,
		i.ID, i.Phone, i.DisplayName,
		sql.NullString{String: i.Persona, Valid: i.Persona != ""},
		sql.NullString{String: i.Language, Valid: i.Language != ""},
		i.CreatedAt)
	return err
}
