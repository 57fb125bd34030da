package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"voicetrust/backend/internal/attempt/domain"
)

// PostgresRepository persists auth_attempts rows. Only pending rows are ever updated.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns an attempt repository that uses the given db.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Append inserts a.
func (r *PostgresRepository) Append(ctx context.Context, a *domain.Attempt) error {
	return r.insert(ctx, r.db, a)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (r *PostgresRepository) insert(ctx context.Context, db execer, a *domain.Attempt) error {
	reasons, err := json.Marshal(nonNil(a.ReasonCodes))
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx,
		`INSERT INTO auth_attempts (id, identity_id, phone_e164, decision, trust_score, reason_codes, outcome, hour_bucket, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)`,
		a.ID, sql.NullString{String: a.IdentityID, Valid: a.IdentityID != ""}, a.Phone, a.Decision,
		nullFloat(a.TrustScore), reasons, string(a.Outcome), a.HourBucket, a.CreatedAt)
	return err
}

// UpsertPending updates the latest pending row for the identity or inserts a new one, in one transaction.
func (r *PostgresRepository) UpsertPending(ctx context.Context, a *domain.Attempt) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	reasons, err := json.Marshal(nonNil(a.ReasonCodes))
	if err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx,
		`UPDATE auth_attempts SET decision = $2, reason_codes = $3, updated_at = $4,
		        trust_score = COALESCE($5, trust_score)
		  WHERE id = (
		    SELECT id FROM auth_attempts
		     WHERE identity_id = $1 AND outcome = 'pending'
		     ORDER BY created_at DESC LIMIT 1 FOR UPDATE)`,
		a.IdentityID, a.Decision, reasons, a.CreatedAt, nullFloat(a.TrustScore))
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		if err := r.insert(ctx, tx, a); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// ResolvePending updates all pending rows for identityID.
func (r *PostgresRepository) ResolvePending(ctx context.Context, identityID string, outcome domain.Outcome, at time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE auth_attempts SET outcome = $2, updated_at = $3 WHERE identity_id = $1 AND outcome = 'pending'`,
		identityID, string(outcome), at)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// CountFailuresSince counts failed attempts in the window.
func (r *PostgresRepository) CountFailuresSince(ctx context.Context, identityID string, since time.Time) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT count(*) FROM auth_attempts WHERE identity_id = $1 AND outcome = 'failed' AND created_at >= $2`,
		identityID, since).Scan(&n)
	return n, err
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
