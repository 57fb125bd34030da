package repository

import (
	"context"
	"database/sql"
	"errors"

	"voicetrust/backend/internal/policy/domain"
)

// PostgresRepository stores Rego policy overrides in the policies table.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a policy repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// GetByID returns the policy for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Policy, error) {
	var p domain.Policy
	err := r.db.QueryRowContext(ctx,
		`SELECT id, scope, rules, enabled, created_at FROM policies WHERE id = $1`, id).
		Scan(&p.ID, &p.Scope, &p.Rules, &p.Enabled, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

// ListEnabledByScope returns enabled policies for scope, oldest first.
func (r *PostgresRepository) ListEnabledByScope(ctx context.Context, scope string) ([]*domain.Policy, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, scope, rules, enabled, created_at FROM policies
		  WHERE scope = $1 AND enabled ORDER BY created_at, id`, scope)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*domain.Policy
	for rows.Next() {
		var p domain.Policy
		if err := rows.Scan(&p.ID, &p.Scope, &p.Rules, &p.Enabled, &p.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &p)
	}
	return out, rows.Err()
}

// Create persists the policy to the database. The policy must have ID set.
func (r *PostgresRepository) Create(ctx context.Context, p *domain.Policy) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO policies (id, scope, rules, enabled, created_at) VALUES ($1, $2, $3, $4, $5)`,
		p.ID, p.Scope, p.Rules, p.Enabled, p.CreatedAt)
	return err
}

// Update replaces rules and the enabled flag of an existing policy.
func (r *PostgresRepository) Update(ctx context.Context, p *domain.Policy) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE policies SET rules = $2, enabled = $3 WHERE id = $1`, p.ID, p.Rules, p.Enabled)
	return err
}
