package repository

import (
	"context"
	"database/sql"
	"errors"

	"voicetrust/backend/internal/challenge/domain"
)

// PostgresRepository reads and upserts hashed challenge answers.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a challenge answer repository that uses the given db.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// ListByIdentity returns all answers for identityID ordered by key. Empty slice when none.
func (r *PostgresRepository) ListByIdentity(ctx context.Context, identityID string) ([]*domain.Answer, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT identity_id, challenge_key, answer_hash, created_at
		   FROM challenge_answers WHERE identity_id = $1 ORDER BY challenge_key`, identityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*domain.Answer
	for rows.Next() {
		var a domain.Answer
		var key string
		if err := rows.Scan(&a.IdentityID, &key, &a.AnswerHash, &a.CreatedAt); err != nil {
			return nil, err
		}
		a.Key = domain.Key(key)
		out = append(out, &a)
	}
	return out, rows.Err()
}

// GetAnswer returns the answer for (identityID, key), or nil if not found.
func (r *PostgresRepository) GetAnswer(ctx context.Context, identityID string, key domain.Key) (*domain.Answer, error) {
	var a domain.Answer
	var k string
	err := r.db.QueryRowContext(ctx,
		`SELECT identity_id, challenge_key, answer_hash, created_at
		   FROM challenge_answers WHERE identity_id = $1 AND challenge_key = $2`, identityID, string(key)).
		Scan(&a.IdentityID, &k, &a.AnswerHash, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	a.Key = domain.Key(k)
	return &a, nil
}

// Upsert inserts or replaces the answer hash for (identity, key).
func (r *PostgresRepository) Upsert(ctx context.Context, a *domain.Answer) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO challenge_answers (identity_id, challenge_key, answer_hash, created_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (identity_id, challenge_key) DO UPDATE SET answer_hash = EXCLUDED.answer_hash`,
		a.IdentityID, string(a.Key), a.AnswerHash, a.CreatedAt)
	return err
}
