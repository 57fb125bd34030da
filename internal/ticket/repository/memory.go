package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"voicetrust/backend/internal/ticket/domain"
)

// MemoryRepository is an in-process Repository with the same conditional-write semantics as
// PostgresRepository. Used by tests across packages.
type MemoryRepository struct {
	mu      sync.Mutex
	tickets map[string]*domain.Ticket
	// Err, when set, is returned by every method.
	Err error
}

// NewMemoryRepository returns an empty MemoryRepository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{tickets: make(map[string]*domain.Ticket)}
}

func (m *MemoryRepository) Create(_ context.Context, t *domain.Ticket) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	var superseded []string
	for _, existing := range m.tickets {
		if existing.IdentityID == t.IdentityID && existing.Status == domain.StatusPending {
			existing.Status = domain.StatusExpired
			existing.SupersededBy = t.ID
			superseded = append(superseded, existing.ID)
		}
	}
	sort.Strings(superseded)
	t.Status = domain.StatusPending
	cp := *t
	m.tickets[t.ID] = &cp
	return superseded, nil
}

func (m *MemoryRepository) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	t, ok := m.tickets[id]
	if !ok {
		return nil, nil
	}
	cp := *t
	return &cp, nil
}

func (m *MemoryRepository) Resolve(_ context.Context, id string, res domain.Resolution) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return false, m.Err
	}
	t, ok := m.tickets[id]
	if !ok || t.Status != domain.StatusPending {
		return false, nil
	}
	at := res.At
	t.Status = res.Status
	t.ValidatorID = res.ValidatorID
	t.ValidatorNotes = res.Notes
	t.ValidatedAt = &at
	return true, nil
}

func (m *MemoryRepository) MarkExpired(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return false, m.Err
	}
	t, ok := m.tickets[id]
	if !ok || t.Status != domain.StatusPending {
		return false, nil
	}
	t.Status = domain.StatusExpired
	return true, nil
}

func (m *MemoryRepository) ExpireStale(_ context.Context, now time.Time, limit int) ([]*domain.Ticket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	var stale []*domain.Ticket
	for _, t := range m.tickets {
		if t.Status == domain.StatusPending && t.ExpiredAt(now) {
			stale = append(stale, t)
		}
	}
	sort.Slice(stale, func(i, j int) bool { return stale[i].ExpiresAt.Before(stale[j].ExpiresAt) })
	if limit > 0 && len(stale) > limit {
		stale = stale[:limit]
	}
	out := make([]*domain.Ticket, 0, len(stale))
	for _, t := range stale {
		t.Status = domain.StatusExpired
		cp := *t
		out = append(out, &cp)
	}
	return out, nil
}

// Pending returns the pending tickets for identityID.
func (m *MemoryRepository) Pending(identityID string) []*domain.Ticket {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Ticket
	for _, t := range m.tickets {
		if t.IdentityID == identityID && t.Status == domain.StatusPending {
			cp := *t
			out = append(out, &cp)
		}
	}
	return out
}
