package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"voicetrust/backend/internal/ticket/domain"
)

const ticketColumns = `id, identity_id, code, method, reason, requester_phone, status, created_at, expires_at,
	validator_id, validator_notes, validated_at, superseded_by`

// pgUniqueViolation is the SQLSTATE for unique_violation.
const pgUniqueViolation = "23505"

// PostgresRepository persists validation tickets. Every status change is a conditional
// write on status = 'pending', which keeps racing validators and the janitor safe across processes.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a ticket repository that uses the given db.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create supersedes any pending ticket for the identity and inserts t, atomically.
// A concurrent escalation that inserts first trips the partial unique index; Create retries once.
func (r *PostgresRepository) Create(ctx context.Context, t *domain.Ticket) ([]string, error) {
	superseded, err := r.create(ctx, t)
	if isUniqueViolation(err) {
		superseded, err = r.create(ctx, t)
	}
	if isUniqueViolation(err) {
		return nil, ErrPendingConflict
	}
	return superseded, err
}

func (r *PostgresRepository) create(ctx context.Context, t *domain.Ticket) ([]string, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.QueryContext(ctx,
		`UPDATE validation_tickets SET status = 'expired', superseded_by = $2
		  WHERE identity_id = $1 AND status = 'pending'
		  RETURNING id`, t.IdentityID, t.ID)
	if err != nil {
		return nil, err
	}
	var superseded []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		superseded = append(superseded, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO validation_tickets (id, identity_id, code, method, reason, requester_phone, status, created_at, expires_at)
		 VALUES ($1, $2, $3, $4, $5, $6, 'pending', $7, $8)`,
		t.ID, t.IdentityID, t.Code, string(t.Method), t.Reason, t.RequesterPhone, t.CreatedAt, t.ExpiresAt)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	t.Status = domain.StatusPending
	return superseded, nil
}

// GetByID returns the ticket for id, or nil if not found.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	t, err := scanTicket(r.db.QueryRowContext(ctx, `SELECT `+ticketColumns+` FROM validation_tickets WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return t, err
}

// Resolve is a single conditional write keyed on (id, status = pending).
func (r *PostgresRepository) Resolve(ctx context.Context, id string, res domain.Resolution) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE validation_tickets
		    SET status = $2, validator_id = $3, validator_notes = $4, validated_at = $5
		  WHERE id = $1 AND status = 'pending'`,
		id, string(res.Status), res.ValidatorID, nullString(res.Notes), res.At)
	if err != nil {
		return false, err
	}
	n, err := result.RowsAffected()
	return n == 1, err
}

// MarkExpired is a conditional pending → expired write.
func (r *PostgresRepository) MarkExpired(ctx context.Context, id string) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE validation_tickets SET status = 'expired' WHERE id = $1 AND status = 'pending'`, id)
	if err != nil {
		return false, err
	}
	n, err := result.RowsAffected()
	return n == 1, err
}

// ExpireStale expires a batch of overdue pending tickets. SKIP LOCKED lets several janitors run.
func (r *PostgresRepository) ExpireStale(ctx context.Context, now time.Time, limit int) ([]*domain.Ticket, error) {
	rows, err := r.db.QueryContext(ctx,
		`UPDATE validation_tickets SET status = 'expired'
		  WHERE id IN (
		    SELECT id FROM validation_tickets
		     WHERE status = 'pending' AND expires_at <= $1
		     ORDER BY expires_at
		     LIMIT $2
		     FOR UPDATE SKIP LOCKED)
		    AND status = 'pending'
		  RETURNING `+ticketColumns, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*domain.Ticket
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTicket(row rowScanner) (*domain.Ticket, error) {
	var (
		t                                   domain.Ticket
		method, status                      string
		reason, validatorID, notes, superBy sql.NullString
		validatedAt                         sql.NullTime
	)
	if err := row.Scan(&t.ID, &t.IdentityID, &t.Code, &method, &reason, &t.RequesterPhone, &status,
		&t.CreatedAt, &t.ExpiresAt, &validatorID, &notes, &validatedAt, &superBy); err != nil {
		return nil, err
	}
	t.Method = domain.Method(method)
	t.Status = domain.Status(status)
	t.Reason = reason.String
	t.ValidatorID = validatorID.String
	t.ValidatorNotes = notes.String
	t.SupersededBy = superBy.String
	if validatedAt.Valid {
		at := validatedAt.Time
		t.ValidatedAt = &at
	}
	return &t, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
