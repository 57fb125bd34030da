package repository

import (
	"context"
	"sync"
	"time"

	"voicetrust/backend/internal/attempt/domain"
)

// MemoryRepository is an in-process Repository used by tests across packages.
type MemoryRepository struct {
	mu   sync.Mutex
	rows []*domain.Attempt
	// Err, when set, is returned by every method.
	Err error
}

// NewMemoryRepository returns an empty MemoryRepository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{}
}

func (m *MemoryRepository) Append(_ context.Context, a *domain.Attempt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	cp := *a
	m.rows = append(m.rows, &cp)
	return nil
}

func (m *MemoryRepository) UpsertPending(_ context.Context, a *domain.Attempt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	for i := len(m.rows) - 1; i >= 0; i-- {
		r := m.rows[i]
		if r.IdentityID == a.IdentityID && r.Outcome == domain.OutcomePending {
			r.Decision = a.Decision
			r.ReasonCodes = append([]string(nil), a.ReasonCodes...)
			r.UpdatedAt = a.CreatedAt
			if a.TrustScore != nil {
				r.TrustScore = a.TrustScore
			}
			return nil
		}
	}
	cp := *a
	m.rows = append(m.rows, &cp)
	return nil
}

func (m *MemoryRepository) ResolvePending(_ context.Context, identityID string, outcome domain.Outcome, at time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return 0, m.Err
	}
	var n int64
	for _, r := range m.rows {
		if r.IdentityID == identityID && r.Outcome == domain.OutcomePending {
			r.Outcome = outcome
			r.UpdatedAt = at
			n++
		}
	}
	return n, nil
}

func (m *MemoryRepository) CountFailuresSince(_ context.Context, identityID string, since time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return 0, m.Err
	}
	n := 0
	for _, r := range m.rows {
		if r.IdentityID == identityID && r.Outcome == domain.OutcomeFailed && !r.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

// Rows returns a copy of every stored attempt in insertion order.
func (m *MemoryRepository) Rows() []domain.Attempt {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Attempt, len(m.rows))
	for i, r := range m.rows {
		out[i] = *r
	}
	return out
}
